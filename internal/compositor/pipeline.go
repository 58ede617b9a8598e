// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package compositor turns decoded frames into the stereo image shown by
// the headset, re-projected for the current head orientation.
package compositor

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gogpu/gg"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/relabs-tech/psvr_player/internal/frame"
)

// ErrStopped is returned when starting a pipeline that was stopped.
var ErrStopped = errors.New("compositor stopped")

// DefaultEyeSize is the side of the square per-eye render textures.
const DefaultEyeSize = 512

// Orientation provides the current head rotation. It must not block.
type Orientation interface {
	ViewPoint() mgl64.Mat4
}

// Stats counts render loop activity.
type Stats struct {
	Rendered      uint64 `json:"rendered"`
	Dropped       uint64 `json:"dropped"`
	PresentErrors uint64 `json:"present_errors"`
}

// Pipeline renders the most recent frame handed to SetImage on its own
// goroutine. Frames that are replaced before the render goroutine picks
// them up go back to the pool unrendered.
type Pipeline struct {
	pool        *frame.Pool
	orientation Orientation
	presenter   Presenter

	width, height, eyeSize int

	mu       sync.Mutex
	cond     *sync.Cond
	pending  *frame.Frame
	shutdown bool
	started  bool

	settingsMu sync.Mutex
	settings   Settings

	rendered      atomic.Uint64
	dropped       atomic.Uint64
	presentErrors atomic.Uint64

	done chan struct{}

	logger zerolog.Logger
}

type Option func(*Pipeline)

// WithOutputSize sets the size of the composed output surface.
func WithOutputSize(width, height int) Option {
	return func(p *Pipeline) { p.width, p.height = width, height }
}

func WithEyeSize(size int) Option {
	return func(p *Pipeline) { p.eyeSize = size }
}

func WithSettings(s Settings) Option {
	return func(p *Pipeline) { p.settings = s }
}

// New creates a stopped pipeline. Rendered frames are returned to pool.
func New(pool *frame.Pool, orientation Orientation, presenter Presenter, opts ...Option) *Pipeline {
	p := &Pipeline{
		pool:        pool,
		orientation: orientation,
		presenter:   presenter,
		width:       1920,
		height:      1080,
		eyeSize:     DefaultEyeSize,
		settings:    DefaultSettings(),
		done:        make(chan struct{}),
		logger:      log.With().Str("component", "compositor").Logger(),
	}
	p.cond = sync.NewCond(&p.mu)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the render goroutine. It stops when ctx is done or Stop
// is called.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shutdown {
		return ErrStopped
	}
	if p.started {
		return nil
	}
	p.started = true
	context.AfterFunc(ctx, p.Stop)
	go p.run()
	return nil
}

// SetImage hands f to the pipeline. The caller must not touch f
// afterwards.
func (p *Pipeline) SetImage(f *frame.Frame) {
	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		p.pool.ReleaseFrame(f)
		return
	}
	old := p.pending
	p.pending = f
	p.cond.Signal()
	p.mu.Unlock()

	if old != nil {
		p.dropped.Add(1)
		p.pool.ReleaseFrame(old)
	}
}

func (p *Pipeline) SetSettings(s Settings) {
	p.settingsMu.Lock()
	p.settings = s
	p.settingsMu.Unlock()
}

func (p *Pipeline) Settings() Settings {
	p.settingsMu.Lock()
	defer p.settingsMu.Unlock()
	return p.settings
}

// Stop ends the render goroutine and waits for it to release its
// resources. A frame still waiting to be rendered goes back to the pool.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	first := !p.shutdown
	p.shutdown = true
	pending := p.pending
	p.pending = nil
	started := p.started
	p.cond.Broadcast()
	p.mu.Unlock()

	if pending != nil {
		p.pool.ReleaseFrame(pending)
	}
	if started {
		<-p.done
	} else if first {
		close(p.done)
	}
}

// Done is closed when the render goroutine has exited.
func (p *Pipeline) Done() <-chan struct{} { return p.done }

func (p *Pipeline) Stats() Stats {
	return Stats{
		Rendered:      p.rendered.Load(),
		Dropped:       p.dropped.Load(),
		PresentErrors: p.presentErrors.Load(),
	}
}

// next blocks until a frame is pending or the pipeline stops.
func (p *Pipeline) next() (*frame.Frame, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shutdown {
		return nil, false
	}
	for p.pending == nil && !p.shutdown {
		p.cond.Wait()
	}
	if p.shutdown {
		return nil, false
	}
	f := p.pending
	p.pending = nil
	return f, true
}

func (p *Pipeline) run() {
	defer close(p.done)

	r := newRenderer(p.width, p.height, p.eyeSize)
	defer func() {
		if err := r.close(); err != nil {
			p.logger.Warn().Err(err).Msg("closing renderer")
		}
	}()
	p.logger.Info().
		Int("width", p.width).
		Int("height", p.height).
		Int("eye_size", p.eyeSize).
		Msg("render loop started")

	for {
		f, ok := p.next()
		if !ok {
			p.logger.Info().Uint64("rendered", p.rendered.Load()).Uint64("dropped", p.dropped.Load()).Msg("render loop stopped")
			return
		}

		params := p.sceneParameters(f)
		r.upload(f)
		p.pool.ReleaseFrame(f)

		surface := r.render(params)
		if err := p.presenter.Present(surface); err != nil {
			if p.presentErrors.Add(1) == 1 {
				p.logger.Error().Err(err).Msg("present failed")
			}
		}
		if n := p.rendered.Add(1); n%300 == 0 {
			p.logger.Debug().Uint64("rendered", n).Uint64("dropped", p.dropped.Load()).Msg("render stats")
		}
	}
}

func (p *Pipeline) sceneParameters(f *frame.Frame) SceneParameters {
	s := p.Settings()
	w, h, aw, ah := f.Sizes()
	view := mgl64.Ident4()
	if p.orientation != nil {
		view = p.orientation.ViewPoint()
	}
	return SceneParameters{
		Scheme:         s.Scheme,
		Split:          s.Split,
		SwapEyes:       s.SwapEyes,
		EyesCorrection: EyesCorrection(s.EyesDistance),
		Width:          w,
		Height:         h,
		AlignedWidth:   aw,
		AlignedHeight:  ah,
		ViewPoint:      view,
	}
}

// renderer owns every render-side buffer. Only the render goroutine
// uses it.
type renderer struct {
	input                 *image.RGBA
	leftEye, rightEye     *image.RGBA
	leftScene, rightScene *image.RGBA
	composer              *composer
}

func newRenderer(width, height, eyeSize int) *renderer {
	square := image.Rect(0, 0, eyeSize, eyeSize)
	return &renderer{
		leftEye:    image.NewRGBA(square),
		rightEye:   image.NewRGBA(square),
		leftScene:  image.NewRGBA(square),
		rightScene: image.NewRGBA(square),
		composer:   newComposer(width, height),
	}
}

func (r *renderer) upload(f *frame.Frame) {
	r.input = f.Upload(r.input)
}

func (r *renderer) render(params SceneParameters) *gg.Context {
	left, right := r.input, r.input
	if r.input.Bounds().Empty() {
		return r.composer.compose(r.leftScene, r.leftScene, params.EyesCorrection)
	}

	switch params.Scheme {
	case LeftRight180:
		splitEyes(r.input, SplitLeftRight, params.SwapEyes, r.leftEye, r.rightEye)
		rays := newEyeRays(params.ViewPoint)
		project(r.leftScene, r.leftEye, rays, halfCylinder)
		project(r.rightScene, r.rightEye, rays, halfCylinder)
		left, right = r.leftScene, r.rightScene
	case Flat3D:
		splitEyes(r.input, params.Split, params.SwapEyes, r.leftEye, r.rightEye)
		rays := newEyeRays(params.ViewPoint)
		screen := flatScreen(float64(params.Width) / float64(params.Height))
		project(r.leftScene, r.leftEye, rays, screen)
		project(r.rightScene, r.rightEye, rays, screen)
		left, right = r.leftScene, r.rightScene
	}
	return r.composer.compose(left, right, params.EyesCorrection)
}

func (r *renderer) close() error {
	r.input = nil
	return r.composer.close()
}
