// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package frame

import (
	"context"
	"fmt"
	"image/color"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// PatternSize is the side of the square test pattern frames.
const PatternSize = 1000

// maxInFlight is the number of outstanding frames above which the
// producer warns that the consumer is not keeping up.
const maxInFlight = 10

var (
	patternGray  = color.RGBA{R: 128, G: 128, B: 128, A: 255}
	patternRed   = color.RGBA{R: 128, A: 255}
	patternGreen = color.RGBA{G: 128, A: 255}
	patternBlue  = color.RGBA{B: 128, A: 255}
)

// Patterns lists the names accepted by DrawPattern.
var Patterns = []string{"squares", "colors", "grid"}

// DrawPattern renders a named test pattern over the logical area of f.
func DrawPattern(f *Frame, name string) error {
	switch name {
	case "squares":
		drawSquares(f)
	case "colors":
		drawColors(f)
	case "grid":
		drawGrid(f)
	default:
		return fmt.Errorf("unknown pattern %q", name)
	}
	return nil
}

// drawSquares draws nested gray square outlines centered on a 1000x1000 frame.
func drawSquares(f *Frame) {
	for width := 250; width <= 1000; width += 250 {
		f.DrawRectangle(500-width/2, 500-width/2, width, 25, patternGray)
		f.DrawRectangle(500-width/2, 475+width/2, width, 25, patternGray)
		f.DrawRectangle(500-width/2, 525-width/2, 25, width-50, patternGray)
		f.DrawRectangle(475+width/2, 525-width/2, 25, width-50, patternGray)
	}
}

// drawColors draws a lattice of red, green and blue corner marks.
func drawColors(f *Frame) {
	for i := 0; i < 1000; i += 110 {
		for j := 0; j < 1000; j += 110 {
			f.DrawRectangle(i, j, 10, 10, patternRed)
			f.DrawRectangle(i+10, j, 50, 10, patternGreen)
			f.DrawRectangle(i+60, j, 50, 10, patternBlue)
			f.DrawRectangle(i, j+10, 10, 50, patternGreen)
			f.DrawRectangle(i, j+60, 10, 50, patternBlue)
		}
	}
}

func drawGrid(f *Frame) {
	for i := 0; i <= f.width; i += 100 {
		f.DrawRectangle(i-1, 0, 3, f.height, patternGray)
	}
	for j := 0; j <= f.height; j += 100 {
		f.DrawRectangle(0, j-1, f.width, 3, patternGray)
	}
	f.DrawRectangle(f.width/2-5, f.height/2-5, 10, 10, patternRed)
}

// Sink receives filled frames. Ownership of the frame passes to the sink.
type Sink interface {
	SetImage(f *Frame)
}

// PatternProducer stands in for a video decoder: it fills pooled frames
// with a test pattern and hands them to a Sink. The first frames are
// produced quickly so the display settles, then the pace drops to
// Interval. A frame that cannot be allocated is skipped.
type PatternProducer struct {
	Pool       *Pool
	Sink       Sink
	Pattern    string
	Size       int
	Interval   time.Duration
	FastFrames int

	failed atomic.Uint64
	logger zerolog.Logger
}

func NewPatternProducer(pool *Pool, sink Sink, pattern string, interval time.Duration) *PatternProducer {
	return &PatternProducer{
		Pool:       pool,
		Sink:       sink,
		Pattern:    pattern,
		Size:       PatternSize,
		Interval:   interval,
		FastFrames: 20,
		logger:     log.With().Str("component", "producer").Logger(),
	}
}

// Failed is the number of frames skipped because the pool could not
// provide a buffer.
func (p *PatternProducer) Failed() uint64 {
	return p.failed.Load()
}

// Run produces frames until ctx is cancelled or the pattern cannot be
// drawn.
func (p *PatternProducer) Run(ctx context.Context) error {
	fast := p.FastFrames
	var seq uint64
	for {
		wait := p.Interval
		if fast > 0 {
			wait = 100 * time.Millisecond
			fast--
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}

		f, err := p.Pool.RequestFrame(p.Size, p.Size)
		if err != nil {
			n := p.failed.Add(1)
			p.logger.Warn().Err(err).Uint64("failed", n).Msg("skipping frame")
			continue
		}
		if err := f.SetSize(p.Size, p.Size); err != nil {
			p.Pool.ReleaseFrame(f)
			return fmt.Errorf("producer: %w", err)
		}
		clear(f.Data())
		if err := DrawPattern(f, p.Pattern); err != nil {
			p.Pool.ReleaseFrame(f)
			return fmt.Errorf("producer: %w", err)
		}
		seq++
		f.DrawText(20, p.Size-20, fmt.Sprintf("%s #%d", p.Pattern, seq), patternGray)

		if n := p.Pool.InFlight(); n > maxInFlight {
			p.logger.Warn().Int64("in_flight", n).Msg("frames are not being returned to the pool")
		}
		p.Sink.SetImage(f)
	}
}
