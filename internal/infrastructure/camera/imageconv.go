package camera

import (
	"image"
	"image/color"

	"camera-color-judge/internal/domain"
)

// ImageToBGR packs an image into a BGR raw frame, the byte order capture
// devices deliver
func ImageToBGR(img image.Image) *domain.RawFrame {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	data := make([]byte, w*h*3)

	switch src := img.(type) {
	case *image.YCbCr:
		i := 0
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				yi := src.YOffset(x, y)
				ci := src.COffset(x, y)
				r, g, bl := color.YCbCrToRGB(src.Y[yi], src.Cb[ci], src.Cr[ci])
				data[i], data[i+1], data[i+2] = bl, g, r
				i += 3
			}
		}
	case *image.RGBA:
		i := 0
		for y := b.Min.Y; y < b.Max.Y; y++ {
			row := src.Pix[src.PixOffset(b.Min.X, y):]
			for x := 0; x < w; x++ {
				data[i], data[i+1], data[i+2] = row[x*4+2], row[x*4+1], row[x*4]
				i += 3
			}
		}
	default:
		i := 0
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
				data[i], data[i+1], data[i+2] = c.B, c.G, c.R
				i += 3
			}
		}
	}

	return &domain.RawFrame{Width: w, Height: h, Channels: 3, Data: data}
}
