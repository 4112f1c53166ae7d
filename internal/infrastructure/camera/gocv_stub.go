//go:build !gocv

package camera

import (
	"fmt"

	"camera-color-judge/internal/domain"
)

// GoCVAvailable reports whether the binary was built with OpenCV support
const GoCVAvailable = false

// OpenGoCV fails: OpenCV support needs the gocv build tag
func OpenGoCV(config domain.DeviceConfig) (domain.CaptureHandle, error) {
	return nil, fmt.Errorf("%w: gocv driver requires building with -tags gocv", domain.ErrDeviceUnavailable)
}
