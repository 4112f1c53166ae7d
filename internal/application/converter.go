package application

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"camera-color-judge/internal/domain"
)

const (
	// DefaultTargetWidth is the width of every published frame
	DefaultTargetWidth = 640
	// DefaultTargetHeight is the height of every published frame
	DefaultTargetHeight = 480
)

// FrameConverter turns raw BGR device frames into RGB frames of a fixed size
type FrameConverter struct {
	width  int
	height int
	scaler draw.Scaler
}

// NewFrameConverter creates a converter producing width x height frames.
// Non-positive sizes fall back to 640x480.
func NewFrameConverter(width, height int) *FrameConverter {
	if width <= 0 || height <= 0 {
		width, height = DefaultTargetWidth, DefaultTargetHeight
	}
	return &FrameConverter{
		width:  width,
		height: height,
		scaler: draw.BiLinear,
	}
}

// TargetSize returns the output resolution
func (c *FrameConverter) TargetSize() (int, int) {
	return c.width, c.height
}

// Convert reorders the channels to RGB and resizes to the target size.
// raw is not modified.
func (c *FrameConverter) Convert(raw *domain.RawFrame) (*domain.Frame, error) {
	if raw == nil {
		return nil, &domain.ConversionError{Reason: "nil frame"}
	}
	if raw.Channels != 3 {
		return nil, &domain.ConversionError{Reason: fmt.Sprintf("unsupported channel count %d", raw.Channels)}
	}
	if raw.Width <= 0 || raw.Height <= 0 {
		return nil, &domain.ConversionError{Reason: fmt.Sprintf("invalid size %dx%d", raw.Width, raw.Height)}
	}
	if want := raw.Width * raw.Height * raw.Channels; len(raw.Data) != want {
		return nil, &domain.ConversionError{
			Reason: fmt.Sprintf("buffer holds %d bytes, %dx%dx%d needs %d", len(raw.Data), raw.Width, raw.Height, raw.Channels, want),
		}
	}

	pix := make([]byte, len(raw.Data))
	copy(pix, raw.Data)
	SwapRedBlue(pix)

	if raw.Width != c.width || raw.Height != c.height {
		pix = c.resize(pix, raw.Width, raw.Height)
	}

	return &domain.Frame{
		Width:    c.width,
		Height:   c.height,
		Channels: 3,
		Pix:      pix,
	}, nil
}

func (c *FrameConverter) resize(rgb []byte, w, h int) []byte {
	src := image.NewRGBA(image.Rect(0, 0, w, h))
	(&domain.Frame{Width: w, Height: h, Channels: 3, Pix: rgb}).FillRGBA(src.Pix)

	dst := image.NewRGBA(image.Rect(0, 0, c.width, c.height))
	c.scaler.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	out := make([]byte, c.width*c.height*3)
	for i, j := 0, 0; j < len(out); i, j = i+4, j+3 {
		out[j] = dst.Pix[i]
		out[j+1] = dst.Pix[i+1]
		out[j+2] = dst.Pix[i+2]
	}
	return out
}

// SwapRedBlue swaps byte 0 and byte 2 of every 3-byte pixel in place.
// Applying it twice restores the original order.
func SwapRedBlue(pix []byte) {
	for i := 0; i+2 < len(pix); i += 3 {
		pix[i], pix[i+2] = pix[i+2], pix[i]
	}
}
