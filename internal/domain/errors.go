package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceUnavailable is returned when the capture device cannot be opened
	ErrDeviceUnavailable = errors.New("capture device unavailable")

	// ErrFrameRead marks a transient read failure; the capture loop retries
	ErrFrameRead = errors.New("frame read failed")

	// ErrNoFrame is returned by a handle that has nothing to deliver
	ErrNoFrame = errors.New("device returned no frame")

	// ErrConversion matches every *ConversionError
	ErrConversion = errors.New("frame conversion failed")
)

// ConversionError describes a raw frame that cannot be converted
type ConversionError struct {
	Reason string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("frame conversion failed: %s", e.Reason)
}

// Is lets errors.Is(err, ErrConversion) match
func (e *ConversionError) Is(target error) bool {
	return target == ErrConversion
}
