//go:build cgo

package window

import (
	"context"
	"image"
	"image/color"
	"sync"
	"sync/atomic"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/font/basicfont"

	"camera-color-judge/internal/application"
	"camera-color-judge/internal/domain"
)

var (
	barColor    = color.RGBA{0x22, 0x22, 0x22, 0xFF}
	buttonColor = color.RGBA{0x44, 0x66, 0x99, 0xFF}
	busyColor   = color.RGBA{0x55, 0x55, 0x55, 0xFF}
	textColor   = color.White
)

// Run opens a desktop window showing the live image with the overlay.
// Mouse motion over the image moves the query position, the button or
// C/Space toggles the connection, S saves a snapshot and Esc closes the
// window. It blocks until the window closes or ctx is cancelled.
func Run(ctx context.Context, controller Controller, snapshots SnapshotSaver, width, height int, logger application.Logger) error {
	g := &game{
		ctx:        ctx,
		controller: controller,
		snapshots:  snapshots,
		logger:     logger,
		layout:     Layout{Width: width, Height: height},
		lastX:      -1,
		lastY:      -1,
	}

	w, h := g.layout.Size()
	ebiten.SetWindowTitle("Camera Color Judge")
	ebiten.SetWindowSize(w, h)
	ebiten.SetTPS(60)

	err := ebiten.RunGame(g)
	if err == ebiten.Termination {
		return nil
	}
	return err
}

type game struct {
	ctx        context.Context
	controller Controller
	snapshots  SnapshotSaver
	logger     application.Logger
	layout     Layout

	frame    *domain.Frame
	frameImg *ebiten.Image
	lastX    int
	lastY    int

	busy     atomic.Bool
	statusMu sync.Mutex
	status   string
}

func (g *game) Update() error {
	if g.ctx.Err() != nil || inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}

	cx, cy := ebiten.CursorPosition()
	if x, y, ok := g.layout.ImagePoint(cx, cy); ok && (x != g.lastX || y != g.lastY) {
		g.lastX, g.lastY = x, y
		g.controller.MovePointer(x, y)
	}

	clicked := inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) &&
		image.Pt(cx, cy).In(g.layout.ButtonRect())
	if clicked || inpututil.IsKeyJustPressed(ebiten.KeyC) || inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.toggle()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyS) {
		g.snapshot()
	}
	return nil
}

// toggle runs off the render loop since Disconnect waits for the pipeline
func (g *game) toggle() {
	if !g.busy.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer g.busy.Store(false)
		if err := g.controller.Toggle(); err != nil {
			g.logger.Warn("toggle failed", "error", err)
			g.setStatus(err.Error())
			return
		}
		g.setStatus("")
	}()
}

func (g *game) snapshot() {
	if g.snapshots == nil {
		g.setStatus("snapshots disabled")
		return
	}
	path, err := g.snapshots.Save(g.controller.Snapshot())
	if err != nil {
		g.setStatus("snapshot failed: " + err.Error())
		return
	}
	g.setStatus("saved " + path)
}

func (g *game) setStatus(s string) {
	g.statusMu.Lock()
	g.status = s
	g.statusMu.Unlock()
}

func (g *game) getStatus() string {
	g.statusMu.Lock()
	defer g.statusMu.Unlock()
	return g.status
}

func (g *game) Draw(screen *ebiten.Image) {
	update := g.controller.Snapshot()
	area := g.layout.ImageRect()

	if update.Frame != nil {
		g.drawFrame(screen, update.Frame, area)
	}
	g.drawMarker(screen, update.Overlay, area)

	w, _ := g.layout.Size()
	vector.DrawFilledRect(screen, 0, 0, float32(w), headerHeight, barColor, false)
	text.Draw(screen, HeaderText(update.Overlay), basicfont.Face7x13, 6, 17, textColor)

	vector.DrawFilledRect(screen, 0, float32(area.Max.Y), float32(w), footerHeight, barColor, false)
	button := g.layout.ButtonRect()
	fill := buttonColor
	if g.busy.Load() {
		fill = busyColor
	}
	vector.DrawFilledRect(screen, float32(button.Min.X), float32(button.Min.Y),
		float32(button.Dx()), float32(button.Dy()), fill, false)
	text.Draw(screen, g.controller.ToggleLabel(), basicfont.Face7x13, button.Min.X+10, button.Min.Y+16, textColor)
	text.Draw(screen, FooterText(update.Overlay.State, g.getStatus()), basicfont.Face7x13,
		button.Max.X+12, button.Min.Y+16, textColor)
}

func (g *game) drawFrame(screen *ebiten.Image, frame *domain.Frame, area image.Rectangle) {
	if frame != g.frame {
		if g.frameImg == nil || g.frameImg.Bounds().Dx() != frame.Width || g.frameImg.Bounds().Dy() != frame.Height {
			if g.frameImg != nil {
				g.frameImg.Deallocate()
			}
			g.frameImg = ebiten.NewImage(frame.Width, frame.Height)
		}
		g.frameImg.WritePixels(frame.RGBA().Pix)
		g.frame = frame
	}

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(float64(area.Min.X), float64(area.Min.Y))
	screen.DrawImage(g.frameImg, op)
}

func (g *game) drawMarker(screen *ebiten.Image, overlay domain.Overlay, area image.Rectangle) {
	if overlay.Result == nil {
		return
	}
	cx := float32(area.Min.X + overlay.Position.X)
	cy := float32(area.Min.Y + overlay.Position.Y)
	c := overlay.Result.Color
	tc := overlay.TextColor()
	ink := color.RGBA{tc.R, tc.G, tc.B, 0xFF}

	vector.DrawFilledCircle(screen, cx, cy, markerRadius, color.RGBA{c.R, c.G, c.B, 0xFF}, true)
	vector.StrokeCircle(screen, cx, cy, markerRadius, 1, ink, true)
	text.Draw(screen, overlay.Result.Label.String(), basicfont.Face7x13, int(cx)+markerRadius+4, int(cy)-markerRadius, ink)
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.layout.Size()
}
