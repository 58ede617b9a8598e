package compositor

import (
	"image"
	"math"
	"runtime"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/sync/errgroup"
)

// Square field of view. The lenses shrink the picture towards the centre
// by about half, so the nominal 60 degrees is doubled.
var projection = mgl64.Perspective(mgl64.DegToRad(120), 1, 0.1, 3)

// Half height of the flat virtual screen at distance 1.
const flatScreenHalfHeight = 0.75

// eyeRays maps normalized eye viewport coordinates to world directions
// for a given head rotation.
type eyeRays struct {
	inv mgl64.Mat4
}

func newEyeRays(view mgl64.Mat4) eyeRays {
	// The head looks along +z; the perspective matrix expects -z.
	flip := mgl64.Scale3D(1, 1, -1)
	return eyeRays{inv: projection.Mul4(flip).Mul4(view.Transpose()).Inv()}
}

// dir returns the world direction through viewport point (nx, ny), both
// in [-1, 1] with y pointing up.
func (r eyeRays) dir(nx, ny float64) mgl64.Vec3 {
	p := r.inv.Mul4x1(mgl64.Vec4{nx, ny, 1, 1})
	return p.Vec3().Mul(1 / p.W())
}

// surface maps a world direction to texture coordinates in [0, 1].
type surface func(d mgl64.Vec3) (u, v float64, ok bool)

// halfCylinder wraps the texture over the front half of the sphere
// around the viewer, 180 degrees in both directions.
func halfCylinder(d mgl64.Vec3) (u, v float64, ok bool) {
	theta := math.Atan2(d.X(), d.Z())
	if math.Abs(theta) > math.Pi/2 {
		return 0, 0, false
	}
	phi := math.Atan2(d.Y(), math.Hypot(d.X(), d.Z()))
	return theta/math.Pi + 0.5, 0.5 - phi/math.Pi, true
}

// flatScreen is a screen in front of the viewer with the given width to
// height ratio.
func flatScreen(aspect float64) surface {
	hh := flatScreenHalfHeight
	hw := hh * aspect
	return func(d mgl64.Vec3) (u, v float64, ok bool) {
		if d.Z() <= 0 {
			return 0, 0, false
		}
		x, y := d.X()/d.Z(), d.Y()/d.Z()
		if math.Abs(x) > hw || math.Abs(y) > hh {
			return 0, 0, false
		}
		return (x/hw + 1) / 2, (1 - y/hh) / 2, true
	}
}

// project renders src as seen through dst's viewport when mapped onto s.
// Rows are rendered in parallel bands.
func project(dst, src *image.RGBA, rays eyeRays, s surface) {
	b := dst.Bounds()
	w, h := b.Dx(), b.Dy()
	sw, sh := float64(src.Bounds().Dx()), float64(src.Bounds().Dy())

	workers := runtime.GOMAXPROCS(0)
	band := (h + workers - 1) / workers

	var g errgroup.Group
	for y0 := 0; y0 < h; y0 += band {
		y1 := min(y0+band, h)
		g.Go(func() error {
			for y := y0; y < y1; y++ {
				ny := 1 - 2*(float64(y)+0.5)/float64(h)
				row := dst.Pix[y*dst.Stride:]
				for x := 0; x < w; x++ {
					nx := 2*(float64(x)+0.5)/float64(w) - 1
					px := row[x*4 : x*4+4 : x*4+4]
					u, v, ok := s(rays.dir(nx, ny))
					if !ok {
						px[0], px[1], px[2], px[3] = 0, 0, 0, 0xff
						continue
					}
					sampleBilinear(src, u*sw-0.5, v*sh-0.5, px)
				}
			}
			return nil
		})
	}
	_ = g.Wait()
}

// sampleBilinear writes the colour of src at (fx, fy) into px. Points
// outside the image are clamped to the edge.
func sampleBilinear(src *image.RGBA, fx, fy float64, px []byte) {
	b := src.Bounds()
	maxX, maxY := b.Dx()-1, b.Dy()-1
	fx = mgl64.Clamp(fx, 0, float64(maxX))
	fy = mgl64.Clamp(fy, 0, float64(maxY))

	x0, y0 := int(fx), int(fy)
	x1, y1 := min(x0+1, maxX), min(y0+1, maxY)
	ax, ay := fx-float64(x0), fy-float64(y0)

	p00 := src.PixOffset(b.Min.X+x0, b.Min.Y+y0)
	p10 := src.PixOffset(b.Min.X+x1, b.Min.Y+y0)
	p01 := src.PixOffset(b.Min.X+x0, b.Min.Y+y1)
	p11 := src.PixOffset(b.Min.X+x1, b.Min.Y+y1)
	for i := range 4 {
		top := float64(src.Pix[p00+i])*(1-ax) + float64(src.Pix[p10+i])*ax
		bottom := float64(src.Pix[p01+i])*(1-ax) + float64(src.Pix[p11+i])*ax
		px[i] = uint8(top*(1-ay) + bottom*ay + 0.5)
	}
}
