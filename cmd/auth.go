package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/projector/internal/formatter"
	"github.com/desertthunder/projector/internal/shared"
	"github.com/urfave/cli/v3"
)

// Login opens the relay's authorization flow in the local browser.
func (r *Runner) Login(ctx context.Context, cmd *cli.Command) error {
	if err := r.relay.Health(ctx); err != nil {
		return fmt.Errorf("%w: relay is not running, start it with `projector serve`", shared.ErrServiceUnavailable)
	}

	loginURL := r.relay.BaseURL() + "/login"

	r.logger.Infof("opening %v", loginURL)

	if err := shared.OpenBrowser(loginURL); err != nil {
		r.logger.Warnf("failed to open browser: %v", err)
		return r.writePlain("Open this URL to authorize:\n\n  %s\n", loginURL)
	}

	return r.writePlain("Complete the authorization in your browser.\n")
}

// AuthStatus reports whether the relay holds a valid Spotify session.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	status, err := r.relay.AuthStatus(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrServiceUnavailable) || errors.Is(err, shared.ErrNetwork) {
			return fmt.Errorf("%w: relay is not running, start it with `projector serve`", shared.ErrServiceUnavailable)
		}
		return err
	}

	if useJSON || pretty {
		return r.writeJSON(status, pretty)
	}

	return r.writePlain("%s", formatter.StatusText(status))
}
