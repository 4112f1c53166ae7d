package domain

import (
	"image"
	"time"
)

// RawFrame is a frame as the capture device delivers it
type RawFrame struct {
	Width    int    // Width in pixels
	Height   int    // Height in pixels
	Channels int    // Bytes per pixel
	Data     []byte // Interleaved pixels in device order (BGR)
}

// Empty reports whether the device returned a frame without pixels
func (f *RawFrame) Empty() bool {
	return f == nil || len(f.Data) == 0 || f.Width == 0 || f.Height == 0
}

// Frame is a converted image ready for display and sampling.
// A published Frame is never modified; a newer one replaces it.
type Frame struct {
	Width      int       // Width in pixels
	Height     int       // Height in pixels
	Channels   int       // Always 3
	Pix        []byte    // Row-major RGB
	Seq        uint64    // Capture sequence number within a session
	CapturedAt time.Time // When the capture loop published the frame
}

// Contains reports whether pos addresses a pixel of the frame
func (f *Frame) Contains(pos QueryPosition) bool {
	return pos.X >= 0 && pos.Y >= 0 && pos.X < f.Width && pos.Y < f.Height
}

// At returns the pixel at (x, y). ok is false outside the frame or when
// the pixel buffer is shorter than the declared geometry.
func (f *Frame) At(x, y int) (c RGB, ok bool) {
	if !f.Contains(QueryPosition{X: x, Y: y}) {
		return RGB{}, false
	}
	i := (y*f.Width + x) * f.Channels
	if f.Channels < 3 || i+2 >= len(f.Pix) {
		return RGB{}, false
	}
	return RGB{R: f.Pix[i], G: f.Pix[i+1], B: f.Pix[i+2]}, true
}

// RGBA copies the frame into an image.RGBA for renderers and encoders
func (f *Frame) RGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	f.FillRGBA(img.Pix)
	return img
}

// FillRGBA writes the frame as opaque RGBA into dst, which must hold
// at least Width*Height*4 bytes.
func (f *Frame) FillRGBA(dst []byte) {
	n := f.Width * f.Height
	for i := 0; i < n && i*4+3 < len(dst) && i*3+2 < len(f.Pix); i++ {
		dst[i*4] = f.Pix[i*3]
		dst[i*4+1] = f.Pix[i*3+1]
		dst[i*4+2] = f.Pix[i*3+2]
		dst[i*4+3] = 0xFF
	}
}

// QueryPosition is the pixel coordinate currently of interest
type QueryPosition struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// RGB is a single sampled pixel
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// ClassificationResult is the outcome of one sample
type ClassificationResult struct {
	Label     ColorLabel    `json:"label"`
	Color     RGB           `json:"color"`    // Zero for OutOfBounds
	Position  QueryPosition `json:"position"` // Where the sample was taken
	Session   string        `json:"session"`
	SampledAt time.Time     `json:"sampled_at"`
}

// Overlay is the text and marker information drawn over the live image
type Overlay struct {
	Position QueryPosition         `json:"position"`
	Result   *ClassificationResult `json:"result,omitempty"` // nil until the first sample
	State    ConnectionState       `json:"state"`
}

// TextColor returns the color used for the label text: black on a white
// sample so it stays readable, white otherwise.
func (o Overlay) TextColor() RGB {
	if o.Result != nil && o.Result.Label == LabelWhite {
		return RGB{}
	}
	return RGB{R: 0xFF, G: 0xFF, B: 0xFF}
}

// Update is what render surfaces receive
type Update struct {
	Frame   *Frame  // nil before the first frame of a session
	Overlay Overlay
}

// VideoDevice represents a capture device
type VideoDevice struct {
	ID    string // Unique device identifier
	Label string // Human readable name
	Kind  string // Device kind
}

// DeviceConfig selects and configures the capture device
type DeviceConfig struct {
	Driver string // mediadevices, ffmpeg, gocv or synthetic
	Index  int    // Device index, used when ID is empty
	ID     string // Driver specific device ID
	Source string // File or URL for the ffmpeg driver
	Width  int    // Preferred capture width
	Height int    // Preferred capture height
}

// CaptureHandle is an open capture device. Read blocks until the device
// delivers a frame or fails.
type CaptureHandle interface {
	ID() string
	Read() (*RawFrame, error)
	Close() error
}

// CaptureStats is a snapshot of the pipeline counters
type CaptureStats struct {
	Session          string    `json:"session"`
	State            string    `json:"state"`
	ConnectedAt      time.Time `json:"connected_at"`
	FramesCaptured   uint64    `json:"frames_captured"`
	ReadFailures     uint64    `json:"read_failures"`
	ConversionErrors uint64    `json:"conversion_errors"`
	Samples          uint64    `json:"samples"`
}
