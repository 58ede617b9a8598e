// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/relabs-tech/psvr_player/internal/orientation"
)

// Publisher sends a retained message on a topic.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// MQTTPublisher publishes over a paho client.
type MQTTPublisher struct {
	client mqtt.Client
}

// NewMQTTPublisher connects to the broker.
func NewMQTTPublisher(broker, clientID string) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, token.Error())
	}
	return &MQTTPublisher{client: client}, nil
}

func (p *MQTTPublisher) Publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, 0, true, payload)
	token.Wait()
	return token.Error()
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}

// statsEvery is how many pose ticks pass between stats messages.
const statsEvery = 20

// PosePublisher periodically publishes the head pose and, less often,
// the player statistics.
type PosePublisher struct {
	pub        Publisher
	source     orientation.Source
	stats      StatsFunc
	poseTopic  string
	statsTopic string
	interval   time.Duration
	now        func() time.Time
	logger     zerolog.Logger
}

// NewPosePublisher returns a publisher for src. stats may be nil.
func NewPosePublisher(pub Publisher, src orientation.Source, stats StatsFunc, poseTopic, statsTopic string, interval time.Duration) *PosePublisher {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	return &PosePublisher{
		pub:        pub,
		source:     src,
		stats:      stats,
		poseTopic:  poseTopic,
		statsTopic: statsTopic,
		interval:   interval,
		now:        time.Now,
		logger:     log.With().Str("component", "publisher").Logger(),
	}
}

// Run publishes until ctx is done. Publish failures are logged and the
// loop carries on with the next tick.
func (p *PosePublisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info().Str("topic", p.poseTopic).Dur("interval", p.interval).Msg("publishing pose")

	var ticks int
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		p.publishPose()
		ticks++
		if p.stats != nil && ticks%statsEvery == 0 {
			p.publishStats()
		}
	}
}

func (p *PosePublisher) publishPose() {
	msg, err := poseMessage(p.source, p.now())
	if err != nil {
		p.logger.Warn().Err(err).Msg("orientation source error")
		return
	}
	p.publish(p.poseTopic, msg)
}

func (p *PosePublisher) publishStats() {
	msg := p.stats()
	msg.Time = p.now().Format(time.RFC3339)
	p.publish(p.statsTopic, msg)
}

func (p *PosePublisher) publish(topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		p.logger.Error().Err(err).Str("topic", topic).Msg("json marshal error")
		return
	}
	if err := p.pub.Publish(topic, payload); err != nil {
		p.logger.Warn().Err(err).Str("topic", topic).Msg("mqtt publish error")
	}
}
