// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/relabs-tech/psvr_player/internal/app"
	"github.com/relabs-tech/psvr_player/internal/config"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "Path to configuration file")
	eyes := flag.Int("eyes", 0, "Distance between the eyes in millimetres (overrides EYES_DISTANCE)")
	save := flag.Bool("save", false, "Save the eye distance as default and exit")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("failed to load config")
	}
	cfg := *config.Get()
	app.SetupLogging(cfg.LogLevel)
	if *eyes > 0 {
		cfg.EyesDistance = *eyes
	}

	if *save {
		if err := app.SaveDisplaySettings(&cfg); err != nil {
			log.Fatal().Err(err).Msg("failed to save settings")
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("scheme", cfg.Scheme).Msg("starting psvr player")
	if err := app.RunPlayer(ctx, &cfg); err != nil {
		log.Fatal().Err(err).Msg("player failed")
	}
}
