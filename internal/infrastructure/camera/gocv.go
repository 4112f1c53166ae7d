//go:build gocv

package camera

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"camera-color-judge/internal/domain"
)

// GoCVAvailable reports whether the binary was built with OpenCV support
const GoCVAvailable = true

// GoCVHandle reads frames through OpenCV's VideoCapture
type GoCVHandle struct {
	id      string
	capture *gocv.VideoCapture
	mat     gocv.Mat

	// OpenCV must not release the capture while a read is in progress
	mu     sync.Mutex
	closed bool
}

// OpenGoCV opens the capture device by ID when set, by index otherwise
func OpenGoCV(config domain.DeviceConfig) (domain.CaptureHandle, error) {
	var device interface{} = config.Index
	id := fmt.Sprintf("gocv:%d", config.Index)
	if config.ID != "" {
		device = config.ID
		id = "gocv:" + config.ID
	}

	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDeviceUnavailable, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("%w: %s is not open", domain.ErrDeviceUnavailable, id)
	}

	if config.Width > 0 && config.Height > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(config.Width))
		capture.Set(gocv.VideoCaptureFrameHeight, float64(config.Height))
	}

	return &GoCVHandle{
		id:      id,
		capture: capture,
		mat:     gocv.NewMat(),
	}, nil
}

// ID returns the device identifier
func (h *GoCVHandle) ID() string {
	return h.id
}

// Read returns the next frame in OpenCV's native BGR order
func (h *GoCVHandle) Read() (*domain.RawFrame, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, fmt.Errorf("%w: %s closed", domain.ErrFrameRead, h.id)
	}
	if ok := h.capture.Read(&h.mat); !ok {
		return nil, domain.ErrNoFrame
	}
	if h.mat.Empty() {
		return &domain.RawFrame{}, nil
	}

	return &domain.RawFrame{
		Width:    h.mat.Cols(),
		Height:   h.mat.Rows(),
		Channels: h.mat.Channels(),
		Data:     h.mat.ToBytes(),
	}, nil
}

// Close releases the device
func (h *GoCVHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	h.mat.Close()
	if err := h.capture.Close(); err != nil {
		return fmt.Errorf("close %s: %w", h.id, err)
	}
	return nil
}
