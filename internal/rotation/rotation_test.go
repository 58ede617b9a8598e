package rotation

import (
	"math"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tolerance = 1e-6

type orientation struct {
	view, tip mgl64.Vec3
}

// increment computes the (right, top, clock) degrees that Rotate needs to
// move from one orientation to the next.
func increment(from, to orientation) (right, top, clock float64) {
	r := RadAngle(from.tip, from.view, to.view)
	fv1 := rotate(from.view, r, from.tip)
	rv1 := from.tip.Cross(fv1).Normalize()
	t := -RadAngle(rv1, fv1, to.view)
	uv1 := rotate(from.tip, -t, rv1)
	c := -RadAngle(to.view, uv1, to.tip)
	return mgl64.RadToDeg(r), mgl64.RadToDeg(t), mgl64.RadToDeg(c)
}

// sweep builds a track by turning start about a fixed or moving axis in
// 0.1 degree steps up to total degrees.
func sweep(start orientation, total float64, axis func(o orientation) mgl64.Vec3) []orientation {
	const step = 0.1
	n := int(math.Round(math.Abs(total) / step))
	dir := math.Copysign(1, total)
	track := make([]orientation, 0, n)
	cur := start
	for range n {
		a := axis(cur)
		m := mgl64.HomogRotate3D(mgl64.DegToRad(dir*step), a.Normalize())
		cur = orientation{
			view: m.Mul4x1(cur.view.Vec4(0)).Vec3(),
			tip:  m.Mul4x1(cur.tip.Vec4(0)).Vec3(),
		}
		track = append(track, cur)
	}
	return track
}

func fixed(v mgl64.Vec3) func(orientation) mgl64.Vec3 {
	return func(orientation) mgl64.Vec3 { return v }
}

func aboutView(o orientation) mgl64.Vec3 { return o.view }

func assertVec(t *testing.T, want, got mgl64.Vec3, msgAndArgs ...any) {
	t.Helper()
	for i := range 3 {
		assert.InDelta(t, want[i], got[i], tolerance, msgAndArgs...)
	}
}

func runTrack(t *testing.T, track []orientation) {
	t.Helper()
	r := New()
	for i, target := range track {
		right, top, clock := increment(orientation{r.View(), r.Tip()}, target)
		r.Rotate(right, top, clock)

		assertVec(t, target.view, r.View(), "view at step %d", i)
		assertVec(t, target.tip, r.Tip(), "tip at step %d", i)

		m := r.SummRotation()
		assertVec(t, target.view, m.Mul4x1(BaseView.Vec4(0)).Vec3(), "summary view at step %d", i)
		assertVec(t, target.tip, m.Mul4x1(BaseTip.Vec4(0)).Vec3(), "summary tip at step %d", i)
		if t.Failed() {
			return
		}
	}
}

func TestRoundTripTracks(t *testing.T) {
	base := orientation{BaseView, BaseTip}
	yawed := sweep(base, 45, fixed(BaseTip))
	pitched := sweep(base, 30, fixed(mgl64.Vec3{1, 0, 0}))

	tracks := map[string][]orientation{
		"right":            sweep(base, -90, fixed(BaseTip)),
		"left":             sweep(base, 90, fixed(BaseTip)),
		"up":               sweep(base, -90, fixed(mgl64.Vec3{1, 0, 0})),
		"down":             sweep(base, 90, fixed(mgl64.Vec3{1, 0, 0})),
		"clockwise":        sweep(base, -90, aboutView),
		"counterclockwise": sweep(base, 90, aboutView),
		"yawed roll":       append(yawed, sweep(yawed[len(yawed)-1], 60, aboutView)...),
		"pitched roll":     append(pitched, sweep(pitched[len(pitched)-1], -60, aboutView)...),
	}
	for name, track := range tracks {
		t.Run(name, func(t *testing.T) {
			require.NotEmpty(t, track)
			runTrack(t, track)
		})
	}
}

func TestRotateKeepsOrthonormal(t *testing.T) {
	r := New()
	for i := range 5000 {
		r.Rotate(0.3, -0.2*math.Sin(float64(i)/50), 0.15)
	}
	assert.InDelta(t, 1, r.View().Len(), tolerance)
	assert.InDelta(t, 1, r.Tip().Len(), tolerance)
	assert.InDelta(t, 0, r.View().Dot(r.Tip()), tolerance)
}

func TestRotateSmallStepDirections(t *testing.T) {
	r := New()
	r.Rotate(1, 0, 0)
	// yaw swings the view towards the right vector (+x)
	assert.Greater(t, r.View().X(), 0.0)

	r.Reset()
	r.Rotate(0, 1, 0)
	// looking up raises the view
	assert.Greater(t, r.View().Y(), 0.0)

	r.Reset()
	assertVec(t, BaseView, r.View())
	assertVec(t, BaseTip, r.Tip())
}

func TestResetGivesIdentitySummary(t *testing.T) {
	r := New()
	r.Rotate(10, 20, 30)
	r.Reset()
	assert.True(t, r.SummRotation().ApproxEqualThreshold(mgl64.Ident4(), tolerance))
}

func TestSummRotationHandlesHalfTurns(t *testing.T) {
	r := New()
	r.view = mgl64.Vec3{0, 0, -1}
	r.tip = BaseTip
	m := r.SummRotation()
	assertVec(t, r.view, m.Mul4x1(BaseView.Vec4(0)).Vec3())
	assertVec(t, r.tip, m.Mul4x1(BaseTip.Vec4(0)).Vec3())

	r.view = BaseView
	r.tip = mgl64.Vec3{0, -1, 0}
	m = r.SummRotation()
	assertVec(t, r.view, m.Mul4x1(BaseView.Vec4(0)).Vec3())
	assertVec(t, r.tip, m.Mul4x1(BaseTip.Vec4(0)).Vec3())
}

func TestRadAngle(t *testing.T) {
	z := mgl64.Vec3{0, 0, 1}
	x := mgl64.Vec3{1, 0, 0}
	y := mgl64.Vec3{0, 1, 0}

	assert.InDelta(t, math.Pi/2, RadAngle(z, x, y), 1e-12)
	assert.InDelta(t, -math.Pi/2, RadAngle(z, y, x), 1e-12)
	assert.InDelta(t, math.Pi, math.Abs(RadAngle(z, x, x.Mul(-1))), 1e-12)
	assert.InDelta(t, math.Pi/4, RadAngle(z, x, mgl64.Vec3{1, 1, 5}), 1e-12)

	tiny := mgl64.DegToRad(1e-3)
	assert.InDelta(t, tiny, RadAngle(z, x, mgl64.Vec3{math.Cos(tiny), math.Sin(tiny), 0}), 1e-9)
	assert.Equal(t, 0.0, RadAngle(z, x, x))
}

func TestRadAngleDegenerate(t *testing.T) {
	z := mgl64.Vec3{0, 0, 1}
	x := mgl64.Vec3{1, 0, 0}
	small := mgl64.Vec3{NearZeroLength / 2, 0, 0}

	cases := map[string][3]mgl64.Vec3{
		"zero normal":        {{}, x, z},
		"tiny normal":        {small, x, z},
		"zero v1":            {z, {}, x},
		"tiny v2":            {z, x, small},
		"v1 parallel normal": {z, z.Mul(3), x},
		"v2 parallel normal": {z, x, z.Mul(-2)},
	}
	for name, c := range cases {
		got := RadAngle(c[0], c[1], c[2])
		assert.Equal(t, 0.0, got, name)
		assert.False(t, math.IsNaN(got) || math.IsInf(got, 0), name)
	}
}

func TestSummRotationTinyStep(t *testing.T) {
	r := New()
	r.Rotate(0, 0.005, 0)
	m := r.SummRotation()
	assert.False(t, m.ApproxEqualThreshold(mgl64.Ident4(), 1e-9), "a tiny step is not lost")
	assertVec(t, r.view, m.Mul4x1(BaseView.Vec4(0)).Vec3())
	assertVec(t, r.tip, m.Mul4x1(BaseTip.Vec4(0)).Vec3())
}

func TestSummRotationRandomWalk(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	step := func() float64 { return float64(rng.Intn(3) - 1) }

	r := New()
	for i := range 50000 {
		r.Rotate(step(), step(), step())
		m := r.SummRotation()
		view := m.Mul4x1(BaseView.Vec4(0)).Vec3()
		tip := m.Mul4x1(BaseTip.Vec4(0)).Vec3()
		if view.Sub(r.view).Len() > tolerance || tip.Sub(r.tip).Len() > tolerance {
			require.Failf(t, "summary rotation drifted", "step %d: view %v want %v, tip %v want %v",
				i, view, r.view, tip, r.tip)
		}
	}
}

func TestAlignment(t *testing.T) {
	axis, angle := alignment(BaseView, BaseView, BaseTip)
	assert.Zero(t, angle)
	assert.True(t, axisRotation(angle, axis).ApproxEqual(mgl64.Ident4()))

	axis, angle = alignment(BaseView, BaseView.Mul(-1), BaseTip)
	assert.Equal(t, math.Pi, angle)
	assert.Equal(t, BaseTip, axis)

	to := mgl64.Vec3{1e-7, 0, 1}.Normalize()
	axis, angle = alignment(BaseView, to, BaseTip)
	assert.InDelta(t, 1e-7, angle, 1e-15)
	assertVec(t, mgl64.Vec3{0, 1, 0}, axis)
	assertVec(t, to, rotate(BaseView, angle, axis))
}
