package orientation

import "github.com/go-gl/mathgl/mgl64"

// FixedSource always looks straight ahead. The player falls back to it
// when the headset cannot be opened.
type FixedSource struct{}

func (FixedSource) Next() (Pose, error)   { return Pose{}, nil }
func (FixedSource) ViewPoint() mgl64.Mat4 { return mgl64.Ident4() }
func (FixedSource) CenterView()           {}
