package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/ini.v1"
)

// SettingsFile is the name of the persisted player settings in DATA_DIR.
const SettingsFile = "psvrplayer.cfg"

const (
	calibrationSection = "Calibration"
	fixedPointScale    = 1e9

	DefaultEyesDistance = 66 // millimetres
)

// Settings is what the player remembers between runs.
type Settings struct {
	BiasRight    float64 // degrees per millisecond
	BiasTop      float64
	BiasClock    float64
	EyesDistance int
}

// SettingsStore reads and writes the INI settings file. Saving keeps keys
// it does not own.
type SettingsStore struct {
	mu   sync.Mutex
	path string
}

func NewSettingsStore(dataDir string) *SettingsStore {
	return &SettingsStore{path: filepath.Join(dataDir, SettingsFile)}
}

func (s *SettingsStore) Path() string { return s.path }

// Load returns the stored settings. A missing file yields defaults.
func (s *SettingsStore) Load() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := ini.LooseLoad(s.path)
	if err != nil {
		return Settings{}, fmt.Errorf("load settings %s: %w", s.path, err)
	}
	cal := f.Section(calibrationSection)
	root := f.Section(ini.DefaultSection)
	return Settings{
		BiasRight:    fromFixed(cal.Key("right").MustInt64(0)),
		BiasTop:      fromFixed(cal.Key("top").MustInt64(0)),
		BiasClock:    fromFixed(cal.Key("clock").MustInt64(0)),
		EyesDistance: root.Key("eyes_distance").MustInt(DefaultEyesDistance),
	}, nil
}

// SaveBias stores a calibration result.
func (s *SettingsStore) SaveBias(right, top, clock float64) error {
	return s.update(func(f *ini.File) {
		cal := f.Section(calibrationSection)
		cal.Key("right").SetValue(fmt.Sprint(toFixed(right)))
		cal.Key("top").SetValue(fmt.Sprint(toFixed(top)))
		cal.Key("clock").SetValue(fmt.Sprint(toFixed(clock)))
	})
}

// SaveDisplay stores the eye distance used when EYES_DISTANCE is unset.
func (s *SettingsStore) SaveDisplay(eyesDistance int) error {
	if eyesDistance <= 0 {
		return fmt.Errorf("eyes distance must be positive, got %d", eyesDistance)
	}
	return s.update(func(f *ini.File) {
		f.Section(ini.DefaultSection).Key("eyes_distance").SetValue(fmt.Sprint(eyesDistance))
	})
}

func (s *SettingsStore) update(apply func(*ini.File)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := ini.LooseLoad(s.path)
	if err != nil {
		return fmt.Errorf("load settings %s: %w", s.path, err)
	}
	apply(f)

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := f.SaveTo(tmp); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func toFixed(v float64) int64   { return int64(math.Round(v * fixedPointScale)) }
func fromFixed(v int64) float64 { return float64(v) / fixedPointScale }
