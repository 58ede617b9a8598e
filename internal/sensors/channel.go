// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultReadTimeout bounds each sensor read and therefore shutdown latency.
const DefaultReadTimeout = 10 * time.Millisecond

// Stats counts read loop activity.
type Stats struct {
	Packets   uint64 `json:"packets"`
	Discarded uint64 `json:"discarded"`
	Dropped   uint64 `json:"dropped"`
}

// Channel owns the headset interfaces, runs the sensor read loop and
// publishes decoded samples into a latest-wins Mailbox. One consumer
// (a tracker or a calibration collector) reads the mailbox.
type Channel struct {
	sensor  Device
	control Device

	mailbox        *Mailbox
	readTimeout    time.Duration
	useDeviceClock bool
	now            func() time.Time

	controlMu sync.Mutex

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
	err       atomic.Value // error that ended the read loop

	packets   atomic.Uint64
	discarded atomic.Uint64

	logger zerolog.Logger
}

type Option func(*Channel)

// WithDeviceClock derives sample times from the headset timestamp
// instead of the host monotonic clock.
func WithDeviceClock(on bool) Option {
	return func(c *Channel) { c.useDeviceClock = on }
}

func WithReadTimeout(d time.Duration) Option {
	return func(c *Channel) { c.readTimeout = d }
}

// NewChannel takes ownership of the given interfaces; Close releases
// them. control may be nil.
func NewChannel(sensor, control Device, opts ...Option) *Channel {
	c := &Channel{
		sensor:      sensor,
		control:     control,
		mailbox:     NewMailbox(),
		readTimeout: DefaultReadTimeout,
		now:         time.Now,
		done:        make(chan struct{}),
		logger:      log.With().Str("component", "sensors").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OpenChannel opens the headset and wraps both interfaces in a Channel.
func OpenChannel(opts ...Option) (*Channel, error) {
	h, err := OpenHeadset(true, true)
	if err != nil {
		return nil, err
	}
	return NewChannel(h.Sensor, h.Control, opts...), nil
}

// Samples is the mailbox the read loop publishes to.
func (c *Channel) Samples() *Mailbox { return c.mailbox }

// Start launches the read loop. Calling it more than once has no effect.
func (c *Channel) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		ctx, c.cancel = context.WithCancel(ctx)
		c.wg.Add(1)
		go c.readLoop(ctx)
	})
}

// Done is closed when the read loop has exited.
func (c *Channel) Done() <-chan struct{} { return c.done }

// Err reports the I/O error that terminated the read loop, if any.
func (c *Channel) Err() error {
	if err, ok := c.err.Load().(error); ok {
		return err
	}
	return nil
}

func (c *Channel) Stats() Stats {
	return Stats{
		Packets:   c.packets.Load(),
		Discarded: c.discarded.Load(),
		Dropped:   c.mailbox.Dropped(),
	}
}

func (c *Channel) readLoop(ctx context.Context) {
	defer c.wg.Done()
	defer close(c.done)
	defer c.mailbox.Close()

	buf := make([]byte, PacketSize+1)
	start := c.now()
	var (
		micros   int64
		lastTime uint32
		haveLast bool
	)

	for {
		if ctx.Err() != nil {
			return
		}
		n, err := c.sensor.ReadWithTimeout(buf, c.readTimeout)
		if errors.Is(err, ErrTimeout) {
			continue
		}
		if err != nil {
			// No reconnect: the tracker keeps its last orientation.
			c.err.Store(fmt.Errorf("sensor read: %w", err))
			c.logger.Error().Err(err).Msg("sensor read failed, stopping read loop")
			return
		}

		pkt, ok := DecodePacket(buf[:n])
		if !ok {
			c.discarded.Add(1)
			continue
		}
		c.packets.Add(1)

		if c.useDeviceClock {
			if haveLast {
				micros += int64(pkt.DeviceTime - lastTime)
			}
			lastTime, haveLast = pkt.DeviceTime, true
		} else {
			micros = c.now().Sub(start).Microseconds()
		}

		right, top, roll := pkt.Rates()
		c.mailbox.Publish(Sample{
			RightRate: right,
			TopRate:   top,
			RollRate:  roll,
			Micros:    micros,
		})
	}
}

// SetSplitMode switches the headset between split-screen (stereo) and
// mirrored output. It reports whether the command was written.
func (c *Channel) SetSplitMode(on bool) bool {
	return writeSplitMode(c.control, &c.controlMu, on, c.logger)
}

// Close stops the read loop, turns split-screen off and closes the
// interfaces.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
			c.wg.Wait()
		} else {
			c.mailbox.Close()
		}
		c.SetSplitMode(false)

		var errs []error
		if c.sensor != nil {
			errs = append(errs, c.sensor.Close())
		}
		if c.control != nil {
			errs = append(errs, c.control.Close())
		}
		err = errors.Join(errs...)
	})
	return err
}

// Controller drives only the control interface, for tools that switch
// display modes without tracking.
type Controller struct {
	control Device
	mu      sync.Mutex
	logger  zerolog.Logger
}

func NewController(control Device) *Controller {
	return &Controller{
		control: control,
		logger:  log.With().Str("component", "sensors").Logger(),
	}
}

// OpenController opens only the control interface of the headset.
func OpenController() (*Controller, error) {
	h, err := OpenHeadset(false, true)
	if err != nil {
		return nil, err
	}
	return NewController(h.Control), nil
}

func (c *Controller) SetSplitMode(on bool) bool {
	return writeSplitMode(c.control, &c.mu, on, c.logger)
}

func (c *Controller) Close() error {
	if c.control == nil {
		return nil
	}
	return c.control.Close()
}

func writeSplitMode(control Device, mu *sync.Mutex, on bool, logger zerolog.Logger) bool {
	if control == nil {
		return false
	}
	cmd := SplitModeCommand(on)
	mu.Lock()
	n, err := control.Write(cmd)
	mu.Unlock()
	if err != nil || n != len(cmd) {
		logger.Warn().Err(err).Int("written", n).Bool("split", on).Msg("split mode command failed")
		return false
	}
	return true
}
