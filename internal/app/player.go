// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/psvr_player/internal/compositor"
	"github.com/relabs-tech/psvr_player/internal/config"
	"github.com/relabs-tech/psvr_player/internal/frame"
	"github.com/relabs-tech/psvr_player/internal/orientation"
	"github.com/relabs-tech/psvr_player/internal/sensors"
)

// headset bundles the tracking side of a player session. channel and
// tracker are nil when no headset could be opened.
type headset struct {
	channel  *sensors.Channel
	tracker  *orientation.Tracker
	tracking orientation.Tracking
}

// openTracking opens the headset and starts tracking with the stored
// bias. Without a headset the player keeps running with a fixed or
// simulated orientation.
func openTracking(ctx context.Context, cfg *config.Config, stored config.Settings, open func(...sensors.Option) (*sensors.Channel, error)) headset {
	logger := log.With().Str("component", "player").Logger()

	ch, err := open(sensors.WithDeviceClock(cfg.UseDeviceClock))
	if err != nil {
		if cfg.MockOrientation {
			logger.Warn().Err(err).Msg("headset unavailable, simulating head motion")
			return headset{tracking: orientation.NewMockSource()}
		}
		logger.Warn().Err(err).Msg("headset unavailable, using fixed forward orientation")
		return headset{tracking: orientation.FixedSource{}}
	}

	bias := orientation.Bias{Right: stored.BiasRight, Top: stored.BiasTop, Clock: stored.BiasClock}
	tr := orientation.NewTracker(bias, cfg.RotationSpeedup)
	ch.Start(ctx)
	logger.Info().
		Float64("bias_right", bias.Right).
		Float64("bias_top", bias.Top).
		Float64("bias_clock", bias.Clock).
		Msg("headset tracking started")
	return headset{channel: ch, tracker: tr, tracking: tr}
}

func (h headset) close() error {
	if h.channel == nil {
		return nil
	}
	return h.channel.Close()
}

func compositorSettings(cfg *config.Config, stored config.Settings) (compositor.Settings, error) {
	scheme, err := compositor.ParseScheme(cfg.Scheme)
	if err != nil {
		return compositor.Settings{}, err
	}
	split, err := compositor.ParseSplitMode(cfg.Split)
	if err != nil {
		return compositor.Settings{}, err
	}
	return compositor.Settings{
		Scheme:       scheme,
		Split:        split,
		SwapEyes:     cfg.SwapEyes,
		EyesDistance: eyesDistance(cfg, stored),
	}, nil
}

// eyesDistance prefers the configured distance over the stored one.
func eyesDistance(cfg *config.Config, stored config.Settings) int {
	if cfg.EyesDistance > 0 {
		return cfg.EyesDistance
	}
	return stored.EyesDistance
}

// SaveDisplaySettings stores the effective eye distance as the default
// for later sessions.
func SaveDisplaySettings(cfg *config.Config) error {
	store := config.NewSettingsStore(cfg.DataDir)
	stored, err := store.Load()
	if err != nil {
		return fmt.Errorf("load %s: %w", store.Path(), err)
	}
	eyes := eyesDistance(cfg, stored)
	if err := store.SaveDisplay(eyes); err != nil {
		return fmt.Errorf("save %s: %w", store.Path(), err)
	}
	log.Info().Str("component", "player").Int("eyes_distance", eyes).Str("path", store.Path()).Msg("display settings saved")
	return nil
}

// RunPlayer plays the test pattern on the headset until ctx is done.
func RunPlayer(ctx context.Context, cfg *config.Config) error {
	return runPlayer(ctx, cfg, sensors.OpenChannel)
}

func runPlayer(ctx context.Context, cfg *config.Config, open func(...sensors.Option) (*sensors.Channel, error)) error {
	logger := log.With().Str("component", "player").Logger()

	store := config.NewSettingsStore(cfg.DataDir)
	stored, err := store.Load()
	if err != nil {
		return fmt.Errorf("load %s: %w", store.Path(), err)
	}
	settings, err := compositorSettings(cfg, stored)
	if err != nil {
		return err
	}

	hs := openTracking(ctx, cfg, stored, open)
	defer func() {
		if err := hs.close(); err != nil {
			logger.Warn().Err(err).Msg("closing headset")
		}
	}()
	if hs.channel != nil {
		hs.channel.SetSplitMode(settings.Scheme != compositor.SingleImage)
	}

	var presenter compositor.Presenter = compositor.Discard
	if cfg.SnapshotPath != "" && cfg.SnapshotEvery > 0 {
		presenter = compositor.NewSnapshotPresenter(cfg.SnapshotPath, cfg.SnapshotEvery)
	}

	pool := frame.NewPool()
	pipeline := compositor.New(pool, hs.tracking, presenter,
		compositor.WithOutputSize(cfg.OutputWidth, cfg.OutputHeight),
		compositor.WithSettings(settings),
	)

	stats := func() StatsMessage {
		msg := StatsMessage{Compositor: pipeline.Stats(), Pool: pool.Stats()}
		if hs.channel != nil {
			s := hs.channel.Stats()
			msg.Sensors = &s
		}
		if hs.tracker != nil {
			msg.Samples = hs.tracker.Samples()
		}
		return msg
	}

	g, gctx := errgroup.WithContext(ctx)
	if err := pipeline.Start(gctx); err != nil {
		return err
	}
	logger.Info().
		Str("scheme", settings.Scheme.String()).
		Str("split", settings.Split.String()).
		Int("width", cfg.OutputWidth).
		Int("height", cfg.OutputHeight).
		Msg("player started")

	if hs.tracker != nil {
		g.Go(func() error { return hs.tracker.Run(gctx, hs.channel.Samples()) })
	}

	interval := time.Second / time.Duration(max(cfg.PatternFPS, 1))
	producer := frame.NewPatternProducer(pool, pipeline, cfg.Pattern, interval)
	g.Go(func() error { return producer.Run(gctx) })

	if cfg.MQTTEnabled {
		pub, err := NewMQTTPublisher(cfg.MQTTBroker, cfg.MQTTClientIDPlayer)
		if err != nil {
			logger.Warn().Err(err).Msg("pose telemetry disabled")
		} else {
			defer pub.Close()
			pp := NewPosePublisher(pub, hs.tracking, stats, cfg.TopicPose, cfg.TopicStats,
				time.Duration(cfg.PosePublishInterval)*time.Millisecond)
			g.Go(func() error { return pp.Run(gctx) })
		}
	}

	if cfg.WebEnabled {
		mon := NewMonitor(hs.tracking, stats, cfg.SnapshotPath)
		g.Go(func() error { return mon.Run(gctx, fmt.Sprintf(":%d", cfg.WebServerPort)) })
	}

	err = g.Wait()
	pipeline.Stop()
	st := stats()
	logger.Info().
		Uint64("rendered", st.Compositor.Rendered).
		Uint64("dropped", st.Compositor.Dropped).
		Int64("in_flight", st.Pool.InFlight).
		Msg("player stopped")
	return err
}
