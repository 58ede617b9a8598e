package orientation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/relabs-tech/psvr_player/internal/sensors"
)

// MinSamples is the smallest sample count a calibration is accepted with.
const MinSamples = 1000

const (
	progressTick  = 100 * time.Millisecond
	noDataTimeout = 300 * time.Millisecond

	// rates are summed as fixed point so long windows do not lose precision
	fixedPointScale = 1e9
)

var (
	ErrNotEnoughSamples = errors.New("not enough samples for calibration")
	ErrNoData           = errors.New("no sensor data received")
)

// BiasStore persists a calibration result.
type BiasStore interface {
	SaveBias(right, top, clock float64) error
}

// Collector accumulates raw, uncorrected rates for calibration.
type Collector struct {
	mu                        sync.Mutex
	sumRight, sumTop, sumRoll int64
	count                     int
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Add(s sensors.Sample) {
	c.mu.Lock()
	c.sumRight += int64(math.Round(s.RightRate * fixedPointScale))
	c.sumTop += int64(math.Round(s.TopRate * fixedPointScale))
	c.sumRoll += int64(math.Round(s.RollRate * fixedPointScale))
	c.count++
	c.mu.Unlock()
}

func (c *Collector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Mean returns the average rates, or ErrNotEnoughSamples when fewer than
// MinSamples were collected.
func (c *Collector) Mean() (Bias, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.count < MinSamples {
		return Bias{}, fmt.Errorf("%w: got %d, need %d", ErrNotEnoughSamples, c.count, MinSamples)
	}
	n := float64(c.count) * fixedPointScale
	return Bias{
		Right: float64(c.sumRight) / n,
		Top:   float64(c.sumTop) / n,
		Clock: float64(c.sumRoll) / n,
	}, nil
}

// Progress is called every 100 ms during calibration.
type Progress func(elapsed, window time.Duration, samples int)

// Calibrate collects samples from src for window and stores their mean
// as the new bias. Nothing is stored when calibration fails. It gives up
// early when no sample arrives within the first 300 ms.
func Calibrate(ctx context.Context, src SampleSource, window time.Duration, store BiasStore, progress Progress) (Bias, error) {
	logger := log.With().Str("component", "calibration").Logger()
	c := NewCollector()

	start := time.Now()
	end := start.Add(window)
	nextTick := start.Add(progressTick)

collect:
	for {
		now := time.Now()
		if !now.Before(end) {
			break
		}
		if !now.Before(nextTick) {
			elapsed := now.Sub(start)
			if progress != nil {
				progress(elapsed, window, c.Count())
			}
			if c.Count() == 0 && elapsed >= noDataTimeout {
				return Bias{}, ErrNoData
			}
			nextTick = nextTick.Add(progressTick)
		}

		wait := nextTick
		if end.Before(wait) {
			wait = end
		}
		sctx, cancel := context.WithDeadline(ctx, wait)
		s, err := src.Next(sctx)
		cancel()
		switch {
		case err == nil:
			c.Add(s)
		case ctx.Err() != nil:
			return Bias{}, ctx.Err()
		case errors.Is(err, context.DeadlineExceeded):
		case errors.Is(err, sensors.ErrClosed):
			logger.Warn().Int("samples", c.Count()).Msg("sensor stream ended during calibration")
			break collect
		default:
			return Bias{}, err
		}
	}

	b, err := c.Mean()
	if err != nil {
		return Bias{}, err
	}
	if err := store.SaveBias(b.Right, b.Top, b.Clock); err != nil {
		return Bias{}, fmt.Errorf("calibration: save bias: %w", err)
	}
	logger.Info().
		Int("samples", c.Count()).
		Float64("right", b.Right).
		Float64("top", b.Top).
		Float64("clock", b.Clock).
		Msg("calibration stored")
	return b, nil
}
