// Command split_mode switches the headset between split-screen (stereo)
// and mirrored output.
//
//	split_mode on
//	split_mode off
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/relabs-tech/psvr_player/internal/app"
	"github.com/relabs-tech/psvr_player/internal/config"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "Path to configuration file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-config path] on|off\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	var on bool
	switch flag.Arg(0) {
	case "on":
		on = true
	case "off":
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("failed to load config")
	}
	app.SetupLogging(config.Get().LogLevel)

	if err := app.RunSplitMode(on); err != nil {
		log.Fatal().Err(err).Msg("split mode failed")
	}
}
