package camera

import (
	"fmt"
	"sync"

	"github.com/pion/mediadevices"
	_ "github.com/pion/mediadevices/pkg/driver/camera" // registers the camera driver
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/prop"

	"camera-color-judge/internal/application"
	"camera-color-judge/internal/domain"
)

// MediaDevicesManager opens cameras through the mediadevices library
type MediaDevicesManager struct {
	logger application.Logger
}

// NewMediaDevicesManager creates a new media devices manager
func NewMediaDevicesManager(logger application.Logger) *MediaDevicesManager {
	return &MediaDevicesManager{
		logger: logger,
	}
}

// ListDevices returns the video input devices
func (m *MediaDevicesManager) ListDevices() ([]domain.VideoDevice, error) {
	devices := mediadevices.EnumerateDevices()
	result := make([]domain.VideoDevice, 0, len(devices))

	for _, device := range devices {
		if device.Kind != mediadevices.VideoInput {
			continue
		}
		result = append(result, domain.VideoDevice{
			ID:    device.DeviceID,
			Label: device.Label,
			Kind:  "videoinput",
		})
	}

	return result, nil
}

// resolveDeviceID maps a device index to a mediadevices device ID
func (m *MediaDevicesManager) resolveDeviceID(config domain.DeviceConfig) (string, error) {
	if config.ID != "" {
		return config.ID, nil
	}
	devices, err := m.ListDevices()
	if err != nil {
		return "", err
	}
	if config.Index < 0 || config.Index >= len(devices) {
		return "", fmt.Errorf("%w: no video device at index %d (%d found)",
			domain.ErrDeviceUnavailable, config.Index, len(devices))
	}
	return devices[config.Index].ID, nil
}

// OpenCamera opens the camera selected by config
func (m *MediaDevicesManager) OpenCamera(config domain.DeviceConfig) (domain.CaptureHandle, error) {
	deviceID, err := m.resolveDeviceID(config)
	if err != nil {
		return nil, err
	}

	constraints := mediadevices.MediaStreamConstraints{
		Video: func(c *mediadevices.MediaTrackConstraints) {
			// Preferred, not strict: let the driver pick the closest format
			if config.Width > 0 && config.Height > 0 {
				c.Width = prop.Int(int32(config.Width))
				c.Height = prop.Int(int32(config.Height))
			}
			c.DeviceID = prop.String(deviceID)
		},
	}

	mediaStream, err := mediadevices.GetUserMedia(constraints)
	if err != nil {
		m.logger.Warn("camera rejected preferred constraints, retrying without them", "device", deviceID, "error", err)

		constraints = mediadevices.MediaStreamConstraints{
			Video: func(c *mediadevices.MediaTrackConstraints) {
				c.DeviceID = prop.String(deviceID)
			},
		}

		mediaStream, err = mediadevices.GetUserMedia(constraints)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrDeviceUnavailable, err)
		}
	}

	videoTracks := mediaStream.GetVideoTracks()
	if len(videoTracks) == 0 {
		return nil, fmt.Errorf("%w: no video track on device %s", domain.ErrDeviceUnavailable, deviceID)
	}

	track, ok := videoTracks[0].(*mediadevices.VideoTrack)
	if !ok {
		for _, t := range videoTracks {
			t.Close()
		}
		return nil, fmt.Errorf("%w: unexpected track type %T", domain.ErrDeviceUnavailable, videoTracks[0])
	}

	return &MediaDevicesHandle{
		track:  track,
		reader: track.NewReader(false),
		logger: m.logger,
	}, nil
}

// MediaDevicesHandle reads decoded frames from a mediadevices video track
type MediaDevicesHandle struct {
	track  *mediadevices.VideoTrack
	reader video.Reader
	logger application.Logger

	mu     sync.Mutex
	closed bool
}

// ID returns the track identifier
func (h *MediaDevicesHandle) ID() string {
	return h.track.ID()
}

// Read returns the next frame as BGR bytes
func (h *MediaDevicesHandle) Read() (*domain.RawFrame, error) {
	img, release, err := h.reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFrameRead, err)
	}
	defer release()

	if img == nil {
		return nil, domain.ErrNoFrame
	}
	return ImageToBGR(img), nil
}

// Close stops the track; a blocked Read returns with an error
func (h *MediaDevicesHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	return h.track.Close()
}
