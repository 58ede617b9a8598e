// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/relabs-tech/psvr_player/internal/rotation"
	"github.com/relabs-tech/psvr_player/internal/sensors"
)

// Bias is the steady-state drift of each axis in degrees per millisecond.
type Bias struct {
	Right float64 `json:"right"`
	Top   float64 `json:"top"`
	Clock float64 `json:"clock"`
}

// SampleSource delivers sensor samples; *sensors.Mailbox implements it.
type SampleSource interface {
	Next(ctx context.Context) (sensors.Sample, error)
}

// Tracker integrates angular-rate samples into a Rotation.
type Tracker struct {
	mu         sync.Mutex
	rot        *rotation.Rotation
	lastMicros int64
	haveLast   bool
	speedup    float64

	biasMu sync.Mutex
	bias   Bias

	center  atomic.Bool
	samples atomic.Uint64

	logger zerolog.Logger
}

// NewTracker starts centered. A speedup of zero or less is treated as 1.
func NewTracker(bias Bias, speedup float64) *Tracker {
	t := &Tracker{
		rot:    rotation.New(),
		bias:   bias,
		logger: log.With().Str("component", "tracker").Logger(),
	}
	t.SetSpeedup(speedup)
	t.center.Store(true)
	return t
}

func (t *Tracker) SetBias(b Bias) {
	t.biasMu.Lock()
	t.bias = b
	t.biasMu.Unlock()
}

func (t *Tracker) Bias() Bias {
	t.biasMu.Lock()
	defer t.biasMu.Unlock()
	return t.bias
}

// SetSpeedup scales every integrated angle.
func (t *Tracker) SetSpeedup(f float64) {
	if f <= 0 {
		f = 1
	}
	t.mu.Lock()
	t.speedup = f
	t.mu.Unlock()
}

// Update integrates one sample. The first sample only establishes the
// time base. A pending center request resets the orientation instead of
// integrating.
func (t *Tracker) Update(s sensors.Sample) {
	t.samples.Add(1)
	b := t.Bias()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.center.Swap(false) {
		t.rot.Reset()
		t.lastMicros, t.haveLast = s.Micros, true
		return
	}
	if !t.haveLast {
		t.lastMicros, t.haveLast = s.Micros, true
		return
	}

	ms := float64(s.Micros-t.lastMicros) * 0.001
	t.lastMicros = s.Micros
	if ms <= 0 {
		return
	}

	k := ms * t.speedup
	t.rot.Rotate(
		(s.RightRate-b.Right)*k,
		(s.TopRate-b.Top)*k,
		(s.RollRate-b.Clock)*k,
	)
}

// Run feeds samples from src into the tracker until ctx is done or the
// source is closed.
func (t *Tracker) Run(ctx context.Context, src SampleSource) error {
	for {
		s, err := src.Next(ctx)
		switch {
		case err == nil:
			t.Update(s)
		case errors.Is(err, sensors.ErrClosed):
			t.logger.Warn().Uint64("samples", t.samples.Load()).Msg("sensor stream ended, orientation frozen")
			return nil
		case ctx.Err() != nil:
			return nil
		default:
			return err
		}
	}
}

// CenterView makes the current head position the new forward direction.
// It takes effect on the next sample or the next ViewPoint call.
func (t *Tracker) CenterView() {
	t.center.Store(true)
}

func (t *Tracker) ViewPoint() mgl64.Mat4 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.center.Swap(false) {
		t.rot.Reset()
	}
	return t.rot.SummRotation()
}

// Vectors returns the current view and tip.
func (t *Tracker) Vectors() (view, tip mgl64.Vec3) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rot.View(), t.rot.Tip()
}

func (t *Tracker) Next() (Pose, error) {
	return PoseFromVectors(t.Vectors()), nil
}

// Samples is the number of samples seen so far.
func (t *Tracker) Samples() uint64 {
	return t.samples.Load()
}
