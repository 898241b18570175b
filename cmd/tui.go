package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/projector/internal/shared"
	"github.com/desertthunder/projector/internal/ui"
	"github.com/urfave/cli/v3"
)

// Watch launches the terminal now-playing watcher.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	if err := r.relay.Health(ctx); err != nil {
		return fmt.Errorf("%w: relay is not running, start it with `projector serve`", shared.ErrServiceUnavailable)
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/projector-watch.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	model := ui.NewModel(ctx, r.relay)
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running watcher: %w", err)
	}

	return nil
}
