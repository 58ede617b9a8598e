// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/relabs-tech/psvr_player/internal/frame"
)

// DefaultPath is the configuration file the commands read when no
// -config flag is given.
const DefaultPath = "psvr_config.txt"

// Config holds all application configuration values.
type Config struct {
	LogLevel string
	DataDir  string

	// Rendering
	Scheme       string // single, lr180 or flat3d
	Split        string // lr, ud or mono
	SwapEyes     bool
	EyesDistance int // millimetres, 0 keeps the stored value
	OutputWidth  int
	OutputHeight int

	// Tracking
	RotationSpeedup    float64
	UseDeviceClock     bool
	CalibrationSeconds int
	MockOrientation    bool // simulate head motion when no headset is present

	// Test source and snapshots
	Pattern       string
	PatternFPS    int
	SnapshotPath  string
	SnapshotEvery int // frames, 0 disables snapshots

	// MQTT
	MQTTEnabled         bool
	MQTTBroker          string
	MQTTClientIDPlayer  string
	MQTTClientIDDisplay string
	MQTTClientIDConsole string
	TopicPose           string
	TopicStats          string
	PosePublishInterval int // milliseconds

	// Web Server
	WebEnabled    bool
	WebServerPort int

	// Display
	DisplayI2CBus         string
	DisplayUpdateInterval int // milliseconds
}

var (
	Schemes    = []string{"single", "lr180", "flat3d"}
	SplitModes = []string{"lr", "ud", "mono"}
)

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATA_DIR", ".")

	v.SetDefault("SCHEME", "single")
	v.SetDefault("SPLIT", "lr")
	v.SetDefault("SWAP_EYES", false)
	v.SetDefault("EYES_DISTANCE", 0)
	v.SetDefault("OUTPUT_WIDTH", 1920)
	v.SetDefault("OUTPUT_HEIGHT", 1080)

	v.SetDefault("ROTATION_SPEEDUP", 1.0)
	v.SetDefault("USE_DEVICE_CLOCK", false)
	v.SetDefault("CALIBRATION_SECONDS", 20)
	v.SetDefault("MOCK_ORIENTATION", false)

	v.SetDefault("PATTERN", "squares")
	v.SetDefault("PATTERN_FPS", 30)
	v.SetDefault("SNAPSHOT_PATH", "")
	v.SetDefault("SNAPSHOT_EVERY", 0)

	v.SetDefault("MQTT_ENABLED", false)
	v.SetDefault("MQTT_BROKER", "tcp://localhost:1883")
	v.SetDefault("MQTT_CLIENT_ID_PLAYER", "psvr-player")
	v.SetDefault("MQTT_CLIENT_ID_DISPLAY", "psvr-display")
	v.SetDefault("MQTT_CLIENT_ID_CONSOLE", "psvr-console")
	v.SetDefault("TOPIC_POSE", "psvr/pose")
	v.SetDefault("TOPIC_STATS", "psvr/stats")
	v.SetDefault("POSE_PUBLISH_INTERVAL", 50)

	v.SetDefault("WEB_ENABLED", false)
	v.SetDefault("WEB_SERVER_PORT", 8080)

	v.SetDefault("DISPLAY_I2C_BUS", "")
	v.SetDefault("DISPLAY_UPDATE_INTERVAL", 200)
}

// Load reads a KEY=VALUE configuration file. A missing file is not an
// error: defaults apply. PSVR_<KEY> environment variables override both.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("PSVR")
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg := &Config{
		LogLevel: v.GetString("LOG_LEVEL"),
		DataDir:  v.GetString("DATA_DIR"),

		Scheme:       strings.ToLower(v.GetString("SCHEME")),
		Split:        strings.ToLower(v.GetString("SPLIT")),
		SwapEyes:     v.GetBool("SWAP_EYES"),
		EyesDistance: v.GetInt("EYES_DISTANCE"),
		OutputWidth:  v.GetInt("OUTPUT_WIDTH"),
		OutputHeight: v.GetInt("OUTPUT_HEIGHT"),

		RotationSpeedup:    v.GetFloat64("ROTATION_SPEEDUP"),
		UseDeviceClock:     v.GetBool("USE_DEVICE_CLOCK"),
		CalibrationSeconds: v.GetInt("CALIBRATION_SECONDS"),
		MockOrientation:    v.GetBool("MOCK_ORIENTATION"),

		Pattern:       v.GetString("PATTERN"),
		PatternFPS:    v.GetInt("PATTERN_FPS"),
		SnapshotPath:  v.GetString("SNAPSHOT_PATH"),
		SnapshotEvery: v.GetInt("SNAPSHOT_EVERY"),

		MQTTEnabled:         v.GetBool("MQTT_ENABLED"),
		MQTTBroker:          v.GetString("MQTT_BROKER"),
		MQTTClientIDPlayer:  v.GetString("MQTT_CLIENT_ID_PLAYER"),
		MQTTClientIDDisplay: v.GetString("MQTT_CLIENT_ID_DISPLAY"),
		MQTTClientIDConsole: v.GetString("MQTT_CLIENT_ID_CONSOLE"),
		TopicPose:           v.GetString("TOPIC_POSE"),
		TopicStats:          v.GetString("TOPIC_STATS"),
		PosePublishInterval: v.GetInt("POSE_PUBLISH_INTERVAL"),

		WebEnabled:    v.GetBool("WEB_ENABLED"),
		WebServerPort: v.GetInt("WEB_SERVER_PORT"),

		DisplayI2CBus:         v.GetString("DISPLAY_I2C_BUS"),
		DisplayUpdateInterval: v.GetInt("DISPLAY_UPDATE_INTERVAL"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks value ranges and enumerations.
func (c *Config) validate() error {
	if !slices.Contains(Schemes, c.Scheme) {
		return fmt.Errorf("SCHEME must be one of %v, got %q", Schemes, c.Scheme)
	}
	if !slices.Contains(SplitModes, c.Split) {
		return fmt.Errorf("SPLIT must be one of %v, got %q", SplitModes, c.Split)
	}
	if c.EyesDistance < 0 {
		return fmt.Errorf("EYES_DISTANCE must not be negative")
	}
	if c.OutputWidth <= 0 || c.OutputHeight <= 0 {
		return fmt.Errorf("OUTPUT_WIDTH and OUTPUT_HEIGHT must be positive")
	}
	if c.RotationSpeedup <= 0 {
		return fmt.Errorf("ROTATION_SPEEDUP must be positive")
	}
	if c.CalibrationSeconds <= 0 {
		return fmt.Errorf("CALIBRATION_SECONDS must be positive")
	}
	if !slices.Contains(frame.Patterns, c.Pattern) {
		return fmt.Errorf("PATTERN must be one of %v, got %q", frame.Patterns, c.Pattern)
	}
	if c.PatternFPS <= 0 {
		return fmt.Errorf("PATTERN_FPS must be positive")
	}
	if c.SnapshotEvery < 0 {
		return fmt.Errorf("SNAPSHOT_EVERY must not be negative")
	}
	if c.SnapshotEvery > 0 && c.SnapshotPath == "" {
		return fmt.Errorf("SNAPSHOT_PATH is required when SNAPSHOT_EVERY is set")
	}
	if c.MQTTEnabled {
		if c.MQTTBroker == "" {
			return fmt.Errorf("MQTT_BROKER is required")
		}
		if c.TopicPose == "" {
			return fmt.Errorf("TOPIC_POSE is required")
		}
		if c.PosePublishInterval <= 0 {
			return fmt.Errorf("POSE_PUBLISH_INTERVAL must be positive")
		}
	}
	if c.WebEnabled && (c.WebServerPort <= 0 || c.WebServerPort > 65535) {
		return fmt.Errorf("WEB_SERVER_PORT out of range: %d", c.WebServerPort)
	}
	if c.DisplayUpdateInterval <= 0 {
		return fmt.Errorf("DISPLAY_UPDATE_INTERVAL must be positive")
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Only the first call has any effect.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
