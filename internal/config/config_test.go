package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.txt"))
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "single", cfg.Scheme)
	assert.Equal(t, "lr", cfg.Split)
	assert.Equal(t, 1920, cfg.OutputWidth)
	assert.Equal(t, 1.0, cfg.RotationSpeedup)
	assert.Equal(t, 20, cfg.CalibrationSeconds)
	assert.Equal(t, "squares", cfg.Pattern)
	assert.False(t, cfg.MQTTEnabled)
	assert.Equal(t, "psvr/pose", cfg.TopicPose)
	assert.Zero(t, cfg.EyesDistance)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, "psvr_config.txt", `# player
LOG_LEVEL=debug
SCHEME=LR180
SPLIT=ud
SWAP_EYES=true
EYES_DISTANCE=64
ROTATION_SPEEDUP=1.5
USE_DEVICE_CLOCK=true
PATTERN=colors
SNAPSHOT_PATH=/tmp/out.png
SNAPSHOT_EVERY=30
MQTT_ENABLED=true
MQTT_BROKER=tcp://broker:1883
POSE_PUBLISH_INTERVAL=20
WEB_ENABLED=true
WEB_SERVER_PORT=9000
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "lr180", cfg.Scheme)
	assert.Equal(t, "ud", cfg.Split)
	assert.True(t, cfg.SwapEyes)
	assert.Equal(t, 1.5, cfg.RotationSpeedup)
	assert.True(t, cfg.UseDeviceClock)
	assert.Equal(t, "colors", cfg.Pattern)
	assert.Equal(t, 30, cfg.SnapshotEvery)
	assert.True(t, cfg.MQTTEnabled)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTTBroker)
	assert.Equal(t, 20, cfg.PosePublishInterval)
	assert.Equal(t, 64, cfg.EyesDistance)
	assert.Equal(t, 9000, cfg.WebServerPort)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeFile(t, "psvr_config.txt", "SCHEME=flat3d\n")
	t.Setenv("PSVR_SCHEME", "single")
	t.Setenv("PSVR_OUTPUT_WIDTH", "1280")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "single", cfg.Scheme)
	assert.Equal(t, 1280, cfg.OutputWidth)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	for name, content := range map[string]string{
		"scheme":   "SCHEME=dome\n",
		"split":    "SPLIT=diagonal\n",
		"speedup":  "ROTATION_SPEEDUP=0\n",
		"eyes":     "EYES_DISTANCE=-3\n",
		"pattern":  "PATTERN=noise\n",
		"snapshot": "SNAPSHOT_EVERY=10\n",
		"port":     "WEB_ENABLED=true\nWEB_SERVER_PORT=70000\n",
		"broker":   "MQTT_ENABLED=true\nMQTT_BROKER=\n",
	} {
		_, err := Load(writeFile(t, "psvr_config.txt", content))
		assert.Error(t, err, name)
	}
}

func TestSettingsDefaultsWithoutFile(t *testing.T) {
	store := NewSettingsStore(t.TempDir())
	s, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, Settings{EyesDistance: DefaultEyesDistance}, s)
	assert.NoFileExists(t, store.Path())
}

func TestSettingsSaveBiasRoundTrip(t *testing.T) {
	store := NewSettingsStore(filepath.Join(t.TempDir(), "nested"))
	require.NoError(t, store.SaveDisplay(62))
	require.NoError(t, store.SaveBias(0.0123456789, -0.5, 1e-9))

	s, err := store.Load()
	require.NoError(t, err)
	// stored with a resolution of 1e-9
	assert.InDelta(t, 0.0123456789, s.BiasRight, 0.5e-9)
	assert.Equal(t, 0.012345679, s.BiasRight)
	assert.Equal(t, -0.5, s.BiasTop)
	assert.InDelta(t, 1e-9, s.BiasClock, 1e-18)
	assert.Equal(t, 62, s.EyesDistance, "display settings survive a bias save")

	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "[Calibration]")
	assert.Contains(t, string(raw), "top")
	assert.Contains(t, string(raw), "-500000000")
}

func TestSettingsSaveDisplay(t *testing.T) {
	store := NewSettingsStore(t.TempDir())
	require.NoError(t, store.SaveBias(0.25, 0, 0))
	require.NoError(t, store.SaveDisplay(70))

	s, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 70, s.EyesDistance)
	assert.Equal(t, 0.25, s.BiasRight, "calibration survives a display save")

	assert.Error(t, store.SaveDisplay(0))
	s, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, 70, s.EyesDistance)
}

func TestGlobalConfig(t *testing.T) {
	require.NoError(t, InitGlobal(filepath.Join(t.TempDir(), "missing.txt")))
	cfg := Get()
	require.NotNil(t, cfg)
	assert.Equal(t, "single", cfg.Scheme)

	// later calls keep the first configuration
	require.NoError(t, InitGlobal(writeFile(t, "other.txt", "SCHEME=flat3d\n")))
	assert.Same(t, cfg, Get())
}
