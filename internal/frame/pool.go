// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package frame

import (
	"sync"
	"sync/atomic"
)

// Stats is a snapshot of pool activity.
type Stats struct {
	Allocated uint64 `json:"allocated"`
	Reused    uint64 `json:"reused"`
	Discarded uint64 `json:"discarded"`
	Free      int    `json:"free"`
	InFlight  int64  `json:"in_flight"`
}

// Pool is a freelist of retired frames. It is shared by the producer
// that fills frames and the compositor that consumes them, and lives as
// long as the pipeline does. The list has no capacity bound.
type Pool struct {
	mu        sync.Mutex
	free      []*Frame
	allocated uint64
	reused    uint64
	discarded uint64

	inFlight atomic.Int64
}

func NewPool() *Pool {
	return &Pool{}
}

// RequestFrame returns a pooled frame with exactly the requested aligned
// size, or a newly allocated one. Pooled frames of another size found
// on the way are dropped.
func (p *Pool) RequestFrame(alignedWidth, alignedHeight int) (*Frame, error) {
	p.mu.Lock()
	for len(p.free) > 0 {
		f := p.free[len(p.free)-1]
		p.free[len(p.free)-1] = nil
		p.free = p.free[:len(p.free)-1]
		f.pooled = false
		if f.alignedWidth == alignedWidth && f.alignedHeight == alignedHeight {
			p.reused++
			p.mu.Unlock()
			p.inFlight.Add(1)
			return f, nil
		}
		p.discarded++
	}
	p.mu.Unlock()

	f, err := newFrame(alignedWidth, alignedHeight)
	if err != nil {
		return nil, err
	}
	f.pool = p

	p.mu.Lock()
	p.allocated++
	p.mu.Unlock()
	p.inFlight.Add(1)
	return f, nil
}

// ReleaseFrame resets the logical size and returns the frame to the
// pool. The caller must not touch the frame afterwards. Releasing a
// frame that is already pooled, or that another pool allocated, is a
// no-op.
func (p *Pool) ReleaseFrame(f *Frame) {
	if f == nil || f.pool != p {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if f.pooled {
		return
	}
	f.width, f.height = 0, 0
	f.pooled = true
	p.free = append(p.free, f)
	p.inFlight.Add(-1)
}

// InFlight is the number of frames handed out and not yet released.
func (p *Pool) InFlight() int64 {
	return p.inFlight.Load()
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Allocated: p.allocated,
		Reused:    p.reused,
		Discarded: p.discarded,
		Free:      len(p.free),
		InFlight:  p.inFlight.Load(),
	}
}
