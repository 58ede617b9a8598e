// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// ./cmd/calibration/main.go
//
// Gyro bias calibration for the headset. The headset must rest still for
// the whole window; the mean angular rate is written to psvrplayer.cfg in
// DATA_DIR and picked up by the player on its next start.
//
// Run:
//
//	go run ./cmd/calibration -seconds 20
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/psvr_player/internal/app"
	"github.com/relabs-tech/psvr_player/internal/config"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "Path to configuration file")
	seconds := flag.Int("seconds", 0, "Calibration window in seconds (default CALIBRATION_SECONDS)")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to load config from %s: %v\n", *configPath, err)
		os.Exit(1)
	}
	cfg := *config.Get()
	if *seconds > 0 {
		cfg.CalibrationSeconds = *seconds
	}
	app.SetupLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunCalibration(ctx, &cfg, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Calibration complete.")
}
