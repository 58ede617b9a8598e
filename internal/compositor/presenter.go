package compositor

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gogpu/gg"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Presenter shows a composed output surface. It is called from the
// render goroutine only and must not keep the surface after returning.
type Presenter interface {
	Present(surface *gg.Context) error
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(surface *gg.Context) error

func (f PresenterFunc) Present(surface *gg.Context) error { return f(surface) }

// Discard drops every surface.
var Discard Presenter = PresenterFunc(func(*gg.Context) error { return nil })

// SnapshotPresenter writes every Nth output to a PNG file, replacing the
// previous one.
type SnapshotPresenter struct {
	path   string
	every  uint64
	count  uint64
	logger zerolog.Logger
}

func NewSnapshotPresenter(path string, every int) *SnapshotPresenter {
	return &SnapshotPresenter{
		path:   path,
		every:  uint64(max(every, 1)),
		logger: log.With().Str("component", "snapshot").Logger(),
	}
}

func (s *SnapshotPresenter) Present(surface *gg.Context) error {
	s.count++
	if s.count%s.every != 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("snapshot dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := surface.SavePNG(tmp); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	s.logger.Debug().Uint64("frame", s.count).Str("path", s.path).Msg("snapshot written")
	return nil
}
