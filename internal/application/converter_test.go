package application

import (
	"bytes"
	"errors"
	"testing"

	"camera-color-judge/internal/domain"
)

func TestSwapRedBlueTwiceRestores(t *testing.T) {
	orig := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}
	pix := append([]byte(nil), orig...)

	SwapRedBlue(pix)
	if !bytes.Equal(pix, []byte{3, 2, 1, 6, 5, 4, 9, 8, 7}) {
		t.Fatalf("single swap = %v", pix)
	}
	SwapRedBlue(pix)
	if !bytes.Equal(pix, orig) {
		t.Errorf("double swap = %v, want %v", pix, orig)
	}
}

func TestConvertProducesTargetSize(t *testing.T) {
	c := NewFrameConverter(640, 480)
	sizes := []struct{ w, h int }{{640, 480}, {320, 240}, {1280, 720}, {1, 1}, {17, 3}}

	for _, s := range sizes {
		frame, err := c.Convert(bgrFrame(s.w, s.h, 0, 0, 255))
		if err != nil {
			t.Fatalf("Convert(%dx%d): %v", s.w, s.h, err)
		}
		if frame.Width != 640 || frame.Height != 480 || frame.Channels != 3 {
			t.Errorf("Convert(%dx%d) = %dx%dx%d", s.w, s.h, frame.Width, frame.Height, frame.Channels)
		}
		if len(frame.Pix) != 640*480*3 {
			t.Errorf("Convert(%dx%d) pix len = %d", s.w, s.h, len(frame.Pix))
		}
		got, _ := frame.At(320, 240)
		if got != (domain.RGB{R: 255}) {
			t.Errorf("Convert(%dx%d) center = %+v, want pure red", s.w, s.h, got)
		}
	}
}

func TestConvertReordersChannels(t *testing.T) {
	raw := &domain.RawFrame{Width: 640, Height: 480, Channels: 3, Data: make([]byte, 640*480*3)}
	raw.Data[0], raw.Data[1], raw.Data[2] = 10, 20, 30

	frame, err := NewFrameConverter(640, 480).Convert(raw)
	if err != nil {
		t.Fatal(err)
	}
	if c, _ := frame.At(0, 0); c != (domain.RGB{R: 30, G: 20, B: 10}) {
		t.Errorf("At(0, 0) = %+v", c)
	}
	if raw.Data[0] != 10 || raw.Data[2] != 30 {
		t.Error("Convert modified the raw frame")
	}
}

func TestConvertRejectsMalformedFrames(t *testing.T) {
	c := NewFrameConverter(0, 0)
	tests := []struct {
		name string
		raw  *domain.RawFrame
	}{
		{"nil", nil},
		{"four channels", &domain.RawFrame{Width: 2, Height: 2, Channels: 4, Data: make([]byte, 16)}},
		{"one channel", &domain.RawFrame{Width: 2, Height: 2, Channels: 1, Data: make([]byte, 4)}},
		{"short buffer", &domain.RawFrame{Width: 2, Height: 2, Channels: 3, Data: make([]byte, 11)}},
		{"long buffer", &domain.RawFrame{Width: 2, Height: 2, Channels: 3, Data: make([]byte, 13)}},
		{"zero width", &domain.RawFrame{Width: 0, Height: 2, Channels: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Convert(tt.raw)
			if !errors.Is(err, domain.ErrConversion) {
				t.Fatalf("err = %v, want ErrConversion", err)
			}
			var ce *domain.ConversionError
			if !errors.As(err, &ce) {
				t.Errorf("err is %T, want *domain.ConversionError", err)
			}
		})
	}
}

func TestNewFrameConverterDefaults(t *testing.T) {
	w, h := NewFrameConverter(-1, 100).TargetSize()
	if w != 640 || h != 480 {
		t.Errorf("TargetSize = %dx%d", w, h)
	}
}
