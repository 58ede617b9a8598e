// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package rotation accumulates small incremental head rotations into an
// absolute orientation, kept as two orthonormal vectors: view (forward)
// and tip (local up).
package rotation

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// NearZeroLength is the length below which a vector is treated as zero.
const NearZeroLength = 1e-4

// minAxisLength is the cross product length below which two unit
// vectors count as parallel when aligning them.
const minAxisLength = 1e-12

var (
	BaseView = mgl64.Vec3{0, 0, 1}
	BaseTip  = mgl64.Vec3{0, 1, 0}
)

// Rotation is not safe for concurrent use; the tracker serializes access.
type Rotation struct {
	view mgl64.Vec3
	tip  mgl64.Vec3
}

// New returns a Rotation in the canonical forward orientation.
func New() *Rotation {
	r := &Rotation{}
	r.Reset()
	return r
}

func (r *Rotation) Reset() {
	r.view = BaseView
	r.tip = BaseTip
}

func (r *Rotation) View() mgl64.Vec3 { return r.view }
func (r *Rotation) Tip() mgl64.Vec3  { return r.tip }

// Rotate applies an incremental rotation given in degrees: yaw about tip,
// then pitch about the yawed right vector, then roll about the pitched
// view. The sequential composition only holds for small angles such as
// a single sensor integration step.
func (r *Rotation) Rotate(rightDeg, topDeg, clockDeg float64) {
	right := mgl64.DegToRad(rightDeg)
	top := mgl64.DegToRad(topDeg)
	clock := mgl64.DegToRad(clockDeg)

	rightVec := r.view.Cross(r.tip).Mul(-1)

	fv1 := rotate(r.view, right, r.tip)
	rv1 := rotate(rightVec, right, r.tip)

	fv2 := rotate(fv1, -top, rv1)
	uv1 := rotate(r.tip, -top, rv1)

	uv2 := rotate(uv1, -clock, fv2)

	r.view = fv2.Normalize()
	r.tip = uv2.Normalize()
}

// SummRotation returns the single rotation that carries the canonical
// (BaseView, BaseTip) pair onto the current (view, tip) pair: first the
// view is aligned, then the tip is turned about the new view.
func (r *Rotation) SummRotation() mgl64.Mat4 {
	// looking straight back: any axis orthogonal to BaseView works
	viewAxis, viewAngle := alignment(BaseView, r.view, BaseTip)
	fixTip := rotate(BaseTip, viewAngle, viewAxis)

	tipAxis, tipAngle := alignment(fixTip, r.tip, r.view)
	return axisRotation(tipAngle, tipAxis).Mul4(axisRotation(viewAngle, viewAxis))
}

// alignment returns the unit axis and the angle of the shortest rotation
// carrying unit vector from onto unit vector to. Opposite vectors turn
// by pi about fallback, which must be a unit vector orthogonal to from.
func alignment(from, to, fallback mgl64.Vec3) (mgl64.Vec3, float64) {
	axis := from.Cross(to)
	sin := axis.Len()
	cos := from.Dot(to)
	switch {
	case sin > minAxisLength:
		return axis.Mul(1 / sin), math.Atan2(sin, cos)
	case cos < 0:
		return fallback, math.Pi
	default:
		return fallback, 0
	}
}

// RadAngle returns the signed angle in radians, in [-pi, pi], from v1 to
// v2 as seen looking down normal. Both vectors are projected onto the
// plane orthogonal to normal. Degenerate input (near-zero vectors, or
// v1/v2 parallel to normal) yields exactly 0.
func RadAngle(normal, v1, v2 mgl64.Vec3) float64 {
	if isNearZero(normal) || isNearZero(v1) || isNearZero(v2) {
		return 0
	}
	p1 := normal.Cross(v1)
	p2 := normal.Cross(v2)
	if isNearZero(p1) || isNearZero(p2) {
		return 0
	}

	// Half-angle form of acos keeps precision near 0 and pi.
	d := p1.Dot(p2)
	cos2 := d * d / p1.LenSqr() / p2.LenSqr()
	var angle float64
	switch {
	case cos2 >= 1 && d >= 0:
		return 0
	case cos2 >= 1:
		angle = math.Pi
	default:
		angle = math.Acos(2*cos2-1) / 2
		if d < 0 {
			angle = math.Pi - angle
		}
	}
	if p1.Cross(p2).Dot(normal) < 0 {
		angle = -angle
	}
	return angle
}

func isNearZero(v mgl64.Vec3) bool {
	return v.Len() < NearZeroLength
}

// axisRotation is a right-handed rotation about axis; identity for a zero axis.
func axisRotation(angle float64, axis mgl64.Vec3) mgl64.Mat4 {
	if angle == 0 || isNearZero(axis) {
		return mgl64.Ident4()
	}
	return mgl64.HomogRotate3D(angle, axis.Normalize())
}

func rotate(v mgl64.Vec3, angle float64, axis mgl64.Vec3) mgl64.Vec3 {
	return axisRotation(angle, axis).Mul4x1(v.Vec4(0)).Vec3()
}
