package camera

import (
	"fmt"
	"strings"
	"time"

	"camera-color-judge/internal/application"
	"camera-color-judge/internal/domain"
)

// Driver names accepted in domain.DeviceConfig.Driver
const (
	DriverMediaDevices = "mediadevices"
	DriverFFmpeg       = "ffmpeg"
	DriverGoCV         = "gocv"
	DriverSynthetic    = "synthetic"
)

// Manager dispatches OpenCamera to the configured driver
type Manager struct {
	media     *MediaDevicesManager
	synthetic *SyntheticSource
	logger    application.Logger
}

// NewManager creates a manager. synthetic may be nil, in which case a
// 640x480 color bar source at ~30 fps is used for the synthetic driver.
func NewManager(logger application.Logger, synthetic *SyntheticSource) *Manager {
	if synthetic == nil {
		synthetic = NewSyntheticSource(640, 480, 33*time.Millisecond)
	}
	return &Manager{
		media:     NewMediaDevicesManager(logger),
		synthetic: synthetic,
		logger:    logger,
	}
}

// Synthetic returns the synthetic source
func (m *Manager) Synthetic() *SyntheticSource {
	return m.synthetic
}

// ListDevices returns the cameras found by mediadevices plus the synthetic source
func (m *Manager) ListDevices() ([]domain.VideoDevice, error) {
	devices, err := m.media.ListDevices()
	if err != nil {
		return nil, err
	}
	return append(devices, domain.VideoDevice{
		ID:    DriverSynthetic,
		Label: "Synthetic color bars",
		Kind:  "videoinput",
	}), nil
}

// OpenCamera opens the device with the driver named in config
func (m *Manager) OpenCamera(config domain.DeviceConfig) (domain.CaptureHandle, error) {
	var (
		handle domain.CaptureHandle
		err    error
	)

	switch strings.ToLower(config.Driver) {
	case "", DriverMediaDevices:
		handle, err = m.media.OpenCamera(config)
	case DriverFFmpeg:
		handle, err = OpenFFmpeg(config)
	case DriverGoCV:
		handle, err = OpenGoCV(config)
	case DriverSynthetic:
		handle, err = m.synthetic.Open()
	default:
		return nil, fmt.Errorf("%w: unknown driver %q", domain.ErrDeviceUnavailable, config.Driver)
	}
	if err != nil {
		return nil, err
	}

	m.logger.Debug("camera opened", "driver", config.Driver, "device", handle.ID())
	return handle, nil
}
