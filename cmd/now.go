package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/projector/internal/formatter"
	"github.com/desertthunder/projector/internal/shared"
	"github.com/urfave/cli/v3"
)

// Now prints the current playback snapshot from a running relay.
func (r *Runner) Now(ctx context.Context, cmd *cli.Command) error {
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	state, err := r.relay.NowPlaying(ctx)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrNotAuthenticated):
			return err
		case errors.Is(err, shared.ErrNetwork):
			return fmt.Errorf("%w: relay is not running, start it with `projector serve`", shared.ErrServiceUnavailable)
		default:
			return err
		}
	}

	if useJSON || pretty {
		return r.writeJSON(state, pretty)
	}

	return r.writePlain("%s", formatter.PlaybackText(state))
}
