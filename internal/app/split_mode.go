package app

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/relabs-tech/psvr_player/internal/sensors"
)

// splitModeController is the part of the headset control interface the
// split mode command needs.
type splitModeController interface {
	SetSplitMode(on bool) bool
	Close() error
}

// RunSplitMode switches the headset display between split-screen and
// mirrored output without starting the tracker.
func RunSplitMode(on bool) error {
	c, err := sensors.OpenController()
	if err != nil {
		return fmt.Errorf("split mode: %w", err)
	}
	return setSplitMode(c, on)
}

func setSplitMode(c splitModeController, on bool) error {
	ok := c.SetSplitMode(on)
	closeErr := c.Close()
	if !ok {
		return errors.New("split mode: command not accepted by headset")
	}
	if closeErr != nil {
		return fmt.Errorf("split mode: %w", closeErr)
	}
	log.Info().Str("component", "split_mode").Bool("split", on).Msg("split mode set")
	return nil
}
