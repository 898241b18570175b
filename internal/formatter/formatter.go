// package formatter renders relay snapshots as human-readable text for the CLI
package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/projector/internal/models"
)

// PlaybackText renders a playback snapshot as plain text.
func PlaybackText(state *models.PlaybackState) string {
	if state == nil || state.Title == nil {
		return "Nothing playing\n"
	}

	var buf strings.Builder

	if state.IsPlaying {
		buf.WriteString("▶ ")
	} else {
		buf.WriteString("⏸ ")
	}
	buf.WriteString(*state.Title)

	if state.Artist != nil {
		buf.WriteString(fmt.Sprintf(" — %s", *state.Artist))
	}
	buf.WriteString("\n")

	if state.DeviceName != nil {
		buf.WriteString(fmt.Sprintf("  Device: %s\n", *state.DeviceName))
	}
	if state.DurationMs > 0 {
		buf.WriteString(fmt.Sprintf("  Position: %s / %s\n",
			formatMs(state.ProgressMs), formatMs(state.DurationMs)))
	}

	return buf.String()
}

// StatusText renders an auth status summary as plain text.
func StatusText(status *models.AuthStatus) string {
	if status == nil || !status.Authenticated {
		return "✗ Not authenticated\n"
	}

	remaining := time.Duration(status.TokenExpiresIn) * time.Second
	return fmt.Sprintf("✓ Authenticated\n  Token expires in: %s\n", remaining)
}

// formatMs renders milliseconds as m:ss.
func formatMs(ms int) string {
	total := ms / 1000
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
