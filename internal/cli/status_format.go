package cli

import (
	"fmt"
	"strings"

	"github.com/opencode-ai/sequencer/internal/models"
	"github.com/opencode-ai/sequencer/internal/scheduler"
)

func formatRunStatus(status models.RunStatus) string {
	label, color := statusLabelForRun(status)
	return colorize(formatStatusLabel(label, string(status)), color)
}

func formatPlaybackState(state scheduler.State) string {
	label, color := statusLabelForPlayback(state)
	return colorize(formatStatusLabel(label, string(state)), color)
}

func formatEventKind(kind scheduler.EventKind) string {
	return colorize(fmt.Sprintf("%-11s", kind), colorForEventKind(kind))
}

func statusLabelForRun(status models.RunStatus) (string, string) {
	switch status {
	case models.RunStatusFinished:
		return "OK", colorGreen
	case models.RunStatusPlaying:
		return "BUSY", colorCyan
	case models.RunStatusStopped:
		return "STOP", colorYellow
	default:
		return "WARN", colorMagenta
	}
}

func statusLabelForPlayback(state scheduler.State) (string, string) {
	switch state {
	case scheduler.StatePlaying:
		return "BUSY", colorCyan
	case scheduler.StateFinished:
		return "OK", colorGreen
	case scheduler.StateClosing:
		return "WAIT", colorYellow
	case scheduler.StateClosed:
		return "DONE", ""
	default:
		return "WARN", colorMagenta
	}
}

func colorForEventKind(kind scheduler.EventKind) string {
	switch kind {
	case scheduler.EventActivated:
		return colorGreen
	case scheduler.EventCancelled, scheduler.EventDiscarded:
		return colorYellow
	case scheduler.EventUnresolved:
		return colorRed
	case scheduler.EventMessage:
		return colorMagenta
	case scheduler.EventFinished, scheduler.EventClosed:
		return colorCyan
	default:
		return ""
	}
}

func formatStatusLabel(label, status string) string {
	normalized := strings.TrimSpace(status)
	if normalized != "" {
		normalized = strings.ReplaceAll(normalized, "_", " ")
	}
	if normalized == "" {
		return label
	}
	return fmt.Sprintf("%s %s", label, normalized)
}
