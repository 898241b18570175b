package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/projector/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup writes a starter configuration file at the given path.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if err := shared.CreateConfigFile(configPath); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	r.logger.Infof("created config file at %v", configPath)

	return r.writePlain("Created %s. Fill in your Spotify client credentials, then run `projector serve`.\n", configPath)
}
