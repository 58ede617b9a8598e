// Package orientation turns headset angular-rate samples into a head
// orientation and offers fixed and simulated orientations for running
// without a headset.
package orientation

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/relabs-tech/psvr_player/internal/rotation"
)

// Pose is the orientation in degrees. Yaw is positive to the right,
// pitch positive looking up, roll positive tilting clockwise.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Source is anything that can provide poses over time.
type Source interface {
	Next() (Pose, error)
}

// Tracking is an orientation provider the player can render from.
type Tracking interface {
	Source
	// ViewPoint returns the rotation carrying the canonical forward
	// orientation onto the current one.
	ViewPoint() mgl64.Mat4
	CenterView()
}

// PoseFromVectors derives yaw, pitch and roll from a view/tip pair.
func PoseFromVectors(view, tip mgl64.Vec3) Pose {
	yaw := math.Atan2(view.X(), view.Z())
	pitch := math.Asin(mgl64.Clamp(view.Y(), -1, 1))

	// tip with the same view but no roll
	level := view.Cross(rotation.BaseTip.Cross(view))
	var roll float64
	if level.Len() >= rotation.NearZeroLength {
		roll = -rotation.RadAngle(view, level, tip)
	}

	return Pose{
		Roll:  mgl64.RadToDeg(roll),
		Pitch: mgl64.RadToDeg(pitch),
		Yaw:   mgl64.RadToDeg(yaw),
	}
}

// ViewPointFromPose builds the rotation for a pose: yaw about the
// vertical axis, then pitch, then roll about the resulting view.
func ViewPointFromPose(p Pose) mgl64.Mat4 {
	yaw := mgl64.HomogRotate3DY(mgl64.DegToRad(p.Yaw))
	pitch := mgl64.HomogRotate3DX(-mgl64.DegToRad(p.Pitch))
	roll := mgl64.HomogRotate3DZ(-mgl64.DegToRad(p.Roll))
	return yaw.Mul4(pitch).Mul4(roll)
}
