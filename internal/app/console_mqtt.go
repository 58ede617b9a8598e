package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/relabs-tech/psvr_player/internal/config"
)

// RunConsoleMQTT prints the player telemetry to out until ctx is done.
func RunConsoleMQTT(ctx context.Context, cfg *config.Config, out io.Writer) error {
	logger := log.With().Str("component", "console").Logger()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect %s: %w", cfg.MQTTBroker, token.Error())
	}
	defer client.Disconnect(250)
	logger.Info().Str("broker", cfg.MQTTBroker).Msg("connected to MQTT broker")

	handlers := map[string]func([]byte) error{
		cfg.TopicPose:  func(b []byte) error { return printPose(out, b) },
		cfg.TopicStats: func(b []byte) error { return printStats(out, b) },
	}
	for topic, handle := range handlers {
		token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			if err := handle(msg.Payload()); err != nil {
				logger.Warn().Err(err).Str("topic", msg.Topic()).Msg("unmarshal error")
			}
		})
		token.Wait()
		if token.Error() != nil {
			return fmt.Errorf("subscribe %s: %w", topic, token.Error())
		}
		logger.Info().Str("topic", topic).Msg("subscribed")
	}

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	return nil
}

func printPose(out io.Writer, payload []byte) error {
	var p PoseMessage
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "[POSE]  ROLL=%6.2f  PITCH=%6.2f  YAW=%6.2f\n", p.Roll, p.Pitch, p.Yaw)
	return err
}

func printStats(out io.Writer, payload []byte) error {
	var s StatsMessage
	if err := json.Unmarshal(payload, &s); err != nil {
		return err
	}
	line := fmt.Sprintf("[STATS] rendered=%d dropped=%d in_flight=%d",
		s.Compositor.Rendered, s.Compositor.Dropped, s.Pool.InFlight)
	if s.Sensors != nil {
		line += fmt.Sprintf(" packets=%d sensor_dropped=%d", s.Sensors.Packets, s.Sensors.Dropped)
	}
	_, err := fmt.Fprintln(out, line)
	return err
}
