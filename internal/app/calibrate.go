package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/relabs-tech/psvr_player/internal/config"
	"github.com/relabs-tech/psvr_player/internal/orientation"
	"github.com/relabs-tech/psvr_player/internal/sensors"
)

// RunCalibration measures the gyro bias of the headset resting still
// and stores it in the settings file. Progress is printed to out.
func RunCalibration(ctx context.Context, cfg *config.Config, out io.Writer) error {
	ch, err := sensors.OpenChannel(sensors.WithDeviceClock(cfg.UseDeviceClock))
	if err != nil {
		return fmt.Errorf("calibration: %w", err)
	}
	defer func() {
		if err := ch.Close(); err != nil {
			log.Warn().Err(err).Str("component", "calibration").Msg("closing headset")
		}
	}()
	ch.Start(ctx)

	store := config.NewSettingsStore(cfg.DataDir)
	window := time.Duration(cfg.CalibrationSeconds) * time.Second
	return calibrate(ctx, ch.Samples(), store, window, out)
}

func calibrate(ctx context.Context, src orientation.SampleSource, store *config.SettingsStore, window time.Duration, out io.Writer) error {
	fmt.Fprintln(out, "=== Headset gyro calibration ===")
	fmt.Fprintln(out, "Place the headset on a stable surface and do not touch it.")
	fmt.Fprintf(out, "Collecting for %s...\n", window)

	var lastSecond time.Duration = -1
	progress := func(elapsed, window time.Duration, samples int) {
		if s := elapsed.Truncate(time.Second); s != lastSecond {
			lastSecond = s
			fmt.Fprintf(out, "  %2.0fs / %.0fs  samples=%d\n", elapsed.Seconds(), window.Seconds(), samples)
		}
	}

	bias, err := orientation.Calibrate(ctx, src, window, store, progress)
	if err != nil {
		return fmt.Errorf("calibration: %w", err)
	}

	fmt.Fprintf(out, "Bias (deg/ms): right=%.9f top=%.9f clock=%.9f\n", bias.Right, bias.Top, bias.Clock)
	fmt.Fprintf(out, "Saved to %s\n", store.Path())
	return nil
}
