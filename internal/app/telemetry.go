package app

import (
	"time"

	"github.com/relabs-tech/psvr_player/internal/compositor"
	"github.com/relabs-tech/psvr_player/internal/frame"
	"github.com/relabs-tech/psvr_player/internal/orientation"
	"github.com/relabs-tech/psvr_player/internal/rotation"
	"github.com/relabs-tech/psvr_player/internal/sensors"
)

// PoseMessage is the JSON payload published on the pose topic and
// served by the monitor.
type PoseMessage struct {
	View  [3]float64 `json:"view"`
	Tip   [3]float64 `json:"tip"`
	Roll  float64    `json:"roll"`
	Pitch float64    `json:"pitch"`
	Yaw   float64    `json:"yaw"`
	Time  string     `json:"time"`
}

// StatsMessage summarizes the running player.
type StatsMessage struct {
	Compositor compositor.Stats `json:"compositor"`
	Pool       frame.Stats      `json:"pool"`
	Sensors    *sensors.Stats   `json:"sensors,omitempty"`
	Samples    uint64           `json:"samples"`
	Time       string           `json:"time"`
}

func poseMessage(src orientation.Source, now time.Time) (PoseMessage, error) {
	p, err := src.Next()
	if err != nil {
		return PoseMessage{}, err
	}
	view := orientation.ViewPointFromPose(p)
	v := view.Mul4x1(rotation.BaseView.Vec4(0)).Vec3()
	t := view.Mul4x1(rotation.BaseTip.Vec4(0)).Vec3()
	return PoseMessage{
		View:  [3]float64{v.X(), v.Y(), v.Z()},
		Tip:   [3]float64{t.X(), t.Y(), t.Z()},
		Roll:  p.Roll,
		Pitch: p.Pitch,
		Yaw:   p.Yaw,
		Time:  now.Format(time.RFC3339Nano),
	}, nil
}

// StatsFunc reports the player statistics at call time.
type StatsFunc func() StatsMessage
