package compositor

import (
	"image"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gogpu/gg"
)

// composer draws the two eye images side by side on the output surface.
type composer struct {
	width, height int
	surface       *gg.Context
}

func newComposer(width, height int) *composer {
	return &composer{
		width:   width,
		height:  height,
		surface: gg.NewContext(width, height),
	}
}

// compose places left and right into their halves of the surface. Each
// eye is shifted by correction times the half width: a positive value
// moves the images towards the centre.
func (c *composer) compose(left, right *image.RGBA, correction float64) *gg.Context {
	c.surface.ClearWithColor(gg.Black)
	hw := float64(c.width) / 2
	shift := mgl64.Clamp(correction*hw, -hw, hw)

	leftBuf := gg.ImageBufFromImage(left)
	rightBuf := leftBuf
	if right != left {
		rightBuf = gg.ImageBufFromImage(right)
	}
	c.placeEye(leftBuf, left.Bounds(), 0, hw, shift)
	c.placeEye(rightBuf, right.Bounds(), hw, hw, -shift)
	return c.surface
}

// placeEye draws img into the viewport [x0, x0+hw) moved right by shift,
// cropping whatever would leave the viewport.
func (c *composer) placeEye(img *gg.ImageBuf, bounds image.Rectangle, x0, hw, shift float64) {
	src := image.Rect(0, 0, bounds.Dx(), bounds.Dy())
	scale := float64(src.Dx()) / hw

	x, w := x0, hw
	switch {
	case shift > 0:
		x += shift
		w -= shift
		src.Max.X = int(math.Round(w * scale))
	case shift < 0:
		w += shift
		src.Min.X = int(math.Round(-shift * scale))
	}
	if w < 1 || src.Empty() {
		return
	}

	c.surface.DrawImageEx(img, gg.DrawImageOptions{
		X:             x,
		Y:             0,
		DstWidth:      w,
		DstHeight:     float64(c.height),
		SrcRect:       &src,
		Interpolation: gg.InterpBilinear,
		Opacity:       1,
		BlendMode:     gg.BlendNormal,
	})
}

func (c *composer) close() error {
	return c.surface.Close()
}
