// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/psvr_player/internal/config"
)

// DisplayData holds the latest telemetry for the status display.
type DisplayData struct {
	mu sync.RWMutex

	pose      PoseMessage
	havePose  bool
	stats     StatsMessage
	haveStats bool
}

type displaySnapshot struct {
	pose      PoseMessage
	havePose  bool
	stats     StatsMessage
	haveStats bool
}

func (d *DisplayData) setPose(p PoseMessage) {
	d.mu.Lock()
	d.pose, d.havePose = p, true
	d.mu.Unlock()
}

func (d *DisplayData) setStats(s StatsMessage) {
	d.mu.Lock()
	d.stats, d.haveStats = s, true
	d.mu.Unlock()
}

func (d *DisplayData) snapshot() displaySnapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return displaySnapshot{pose: d.pose, havePose: d.havePose, stats: d.stats, haveStats: d.haveStats}
}

// RunDisplay shows the player pose and frame counters on an SSD1306
// OLED attached to the host, fed from the MQTT telemetry topics.
func RunDisplay(ctx context.Context, cfg *config.Config) error {
	logger := log.With().Str("component", "display").Logger()

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open(cfg.DisplayI2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus %q: %w", cfg.DisplayI2CBus, err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	defer func() {
		if err := dev.Halt(); err != nil {
			logger.Warn().Err(err).Msg("display halt")
		}
	}()

	if err := dev.Draw(dev.Bounds(), renderSplash(), image.Point{}); err != nil {
		logger.Warn().Err(err).Msg("error showing splash")
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDDisplay)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect %s: %w", cfg.MQTTBroker, token.Error())
	}
	defer client.Disconnect(250)
	logger.Info().Str("broker", cfg.MQTTBroker).Msg("connected to MQTT broker")

	data := &DisplayData{}
	if err := subscribeTelemetry(client, cfg, data, logger); err != nil {
		return err
	}

	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	logger.Info().Msg("starting update loop")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if err := dev.Draw(dev.Bounds(), renderStatus(data.snapshot()), image.Point{}); err != nil {
			logger.Warn().Err(err).Msg("error updating display")
		}
	}
}

func subscribeTelemetry(client mqtt.Client, cfg *config.Config, data *DisplayData, logger zerolog.Logger) error {
	subs := map[string]mqtt.MessageHandler{
		cfg.TopicPose: func(_ mqtt.Client, msg mqtt.Message) {
			var p PoseMessage
			if err := json.Unmarshal(msg.Payload(), &p); err != nil {
				logger.Warn().Err(err).Msg("pose unmarshal error")
				return
			}
			data.setPose(p)
		},
		cfg.TopicStats: func(_ mqtt.Client, msg mqtt.Message) {
			var s StatsMessage
			if err := json.Unmarshal(msg.Payload(), &s); err != nil {
				logger.Warn().Err(err).Msg("stats unmarshal error")
				return
			}
			data.setStats(s)
		},
	}
	for topic, handler := range subs {
		token := client.Subscribe(topic, 0, handler)
		token.Wait()
		if token.Error() != nil {
			return fmt.Errorf("subscribe %s: %w", topic, token.Error())
		}
		logger.Info().Str("topic", topic).Msg("subscribed")
	}
	return nil
}

// oledBounds is the SSD1306 panel size.
var oledBounds = image.Rect(0, 0, 128, 64)

func newOLEDImage() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(oledBounds)
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	return img, drawer
}

func drawLine(d *font.Drawer, x, y int, text string) {
	d.Dot = fixed.P(x, y)
	d.DrawString(text)
}

func renderSplash() *image1bit.VerticalLSB {
	img, d := newOLEDImage()
	drawLine(d, 20, 26, "PSVR Player")
	drawLine(d, 10, 43, "Waiting for")
	drawLine(d, 30, 56, "telemetry")
	return img
}

func renderStatus(s displaySnapshot) *image1bit.VerticalLSB {
	img, d := newOLEDImage()
	if !s.havePose {
		drawLine(d, 0, 26, "Orientation")
		drawLine(d, 0, 39, "Waiting...")
	} else {
		drawLine(d, 0, 13, fmt.Sprintf("R: %6.1f", s.pose.Roll))
		drawLine(d, 0, 26, fmt.Sprintf("P: %6.1f", s.pose.Pitch))
		drawLine(d, 0, 39, fmt.Sprintf("Y: %6.1f", s.pose.Yaw))
	}
	if s.haveStats {
		drawLine(d, 0, 52, fmt.Sprintf("F:%d D:%d", s.stats.Compositor.Rendered, s.stats.Compositor.Dropped))
	}
	return img
}
