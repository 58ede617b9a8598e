package frame

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// canvas adapts the logical area of a Frame to draw.Image.
type canvas struct {
	f *Frame
}

func (c canvas) ColorModel() color.Model { return color.RGBAModel }

func (c canvas) Bounds() image.Rectangle { return image.Rect(0, 0, c.f.width, c.f.height) }

func (c canvas) At(x, y int) color.Color {
	if !(image.Point{x, y}.In(c.Bounds())) {
		return color.RGBA{}
	}
	i := y*c.f.Stride() + x*BytesPerPixel
	d := c.f.data
	return color.RGBA{R: d[i+2], G: d[i+1], B: d[i], A: d[i+3]}
}

func (c canvas) Set(x, y int, col color.Color) {
	if !(image.Point{x, y}.In(c.Bounds())) {
		return
	}
	rgba := color.RGBAModel.Convert(col).(color.RGBA)
	i := y*c.f.Stride() + x*BytesPerPixel
	d := c.f.data
	d[i], d[i+1], d[i+2], d[i+3] = rgba.B, rgba.G, rgba.R, rgba.A
}

// DrawText writes a line of text with its baseline at (x, y).
func (f *Frame) DrawText(x, y int, text string, c color.Color) {
	d := &font.Drawer{
		Dst:  canvas{f: f},
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
