// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// MockSource simulates a slowly looking-around head.
type MockSource struct {
	mu    sync.Mutex
	start time.Time
	now   func() time.Time
}

// NewMockSource creates a mock orientation source that
// generates smooth changing values.
func NewMockSource() *MockSource {
	return &MockSource{start: time.Now(), now: time.Now}
}

func (m *MockSource) Next() (Pose, error) {
	m.mu.Lock()
	elapsed := m.now().Sub(m.start).Seconds()
	m.mu.Unlock()

	return Pose{
		Roll:  10 * math.Sin(elapsed),
		Pitch: 15 * math.Sin(elapsed*0.7),
		Yaw:   40 * math.Sin(elapsed*0.3),
	}, nil
}

func (m *MockSource) ViewPoint() mgl64.Mat4 {
	p, _ := m.Next()
	return ViewPointFromPose(p)
}

// CenterView restarts the motion, which begins facing forward.
func (m *MockSource) CenterView() {
	m.mu.Lock()
	m.start = m.now()
	m.mu.Unlock()
}
