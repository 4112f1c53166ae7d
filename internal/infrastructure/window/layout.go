package window

import (
	"fmt"
	"image"

	"camera-color-judge/internal/domain"
)

const (
	headerHeight = 24
	footerHeight = 36
	markerRadius = 10

	buttonWidth  = 110
	buttonHeight = 24
	buttonMargin = 6
)

// Controller is the part of the color judge service the window drives
type Controller interface {
	Snapshot() domain.Update
	MovePointer(x, y int)
	Toggle() error
	ToggleLabel() string
}

// SnapshotSaver stores the current frame
type SnapshotSaver interface {
	Save(update domain.Update) (string, error)
}

// Layout places the header, the image panel and the footer in a window
// whose image panel is Width x Height
type Layout struct {
	Width  int
	Height int
}

// Size returns the logical window size
func (l Layout) Size() (int, int) {
	return l.Width, headerHeight + l.Height + footerHeight
}

// ImageRect is the area showing the live image
func (l Layout) ImageRect() image.Rectangle {
	return image.Rect(0, headerHeight, l.Width, headerHeight+l.Height)
}

// ButtonRect is the connect/disconnect button in the footer
func (l Layout) ButtonRect() image.Rectangle {
	top := headerHeight + l.Height + (footerHeight-buttonHeight)/2
	return image.Rect(buttonMargin, top, buttonMargin+buttonWidth, top+buttonHeight)
}

// ImagePoint converts a cursor position to image coordinates. ok is false
// outside the image panel.
func (l Layout) ImagePoint(cx, cy int) (x, y int, ok bool) {
	p := image.Pt(cx, cy)
	if !p.In(l.ImageRect()) {
		return 0, 0, false
	}
	return cx, cy - headerHeight, true
}

// HeaderText is the pointer and sample readout shown above the image
func HeaderText(o domain.Overlay) string {
	label := domain.LabelUnknown.String()
	var c domain.RGB
	if o.Result != nil {
		label = o.Result.Label.String()
		c = o.Result.Color
	}
	return fmt.Sprintf("X: %d  Y: %d   R: %d  G: %d  B: %d   %s",
		o.Position.X, o.Position.Y, c.R, c.G, c.B, label)
}

// FooterText is the state line next to the button
func FooterText(state domain.ConnectionState, status string) string {
	if status == "" {
		return state.String()
	}
	return state.String() + "  " + status
}
