package compositor

import (
	"image"

	"golang.org/x/image/draw"
)

// eyeRects returns the source regions of the left and right eye.
func eyeRects(b image.Rectangle, mode SplitMode) (left, right image.Rectangle) {
	switch mode {
	case SplitLeftRight:
		mid := b.Min.X + b.Dx()/2
		return image.Rect(b.Min.X, b.Min.Y, mid, b.Max.Y), image.Rect(mid, b.Min.Y, b.Max.X, b.Max.Y)
	case SplitUpDown:
		mid := b.Min.Y + b.Dy()/2
		return image.Rect(b.Min.X, b.Min.Y, b.Max.X, mid), image.Rect(b.Min.X, mid, b.Max.X, b.Max.Y)
	default:
		return b, b
	}
}

// splitEyes scales each eye region of src into its own eye texture.
func splitEyes(src *image.RGBA, mode SplitMode, swap bool, left, right *image.RGBA) {
	lr, rr := eyeRects(src.Bounds(), mode)
	if swap {
		lr, rr = rr, lr
	}
	draw.ApproxBiLinear.Scale(left, left.Bounds(), src, lr, draw.Src, nil)
	draw.ApproxBiLinear.Scale(right, right.Bounds(), src, rr, draw.Src, nil)
}
