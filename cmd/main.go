package main

import (
	"context"
	"os"

	"github.com/desertthunder/projector/internal/services"
	"github.com/desertthunder/projector/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		}
	}

	// The spotify service is only needed by serve; the other commands talk
	// to a running relay. Missing credentials surface when serving.
	var spotify *services.SpotifyService
	if svc, err := services.NewSpotifyService(config.Credentials.Spotify, nil, logger); err == nil {
		spotify = svc
	}

	relay := services.NewRelayClient(config.Relay.BaseURL, nil)

	runner := NewRunner(RunnerOpts{
		Config:  config,
		Spotify: spotify,
		Relay:   relay,
		Logger:  logger,
	})

	app := &cli.Command{
		Name:     "projector",
		Usage:    "Spotify now-playing relay for a projector display",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
