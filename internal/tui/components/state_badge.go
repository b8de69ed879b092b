// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/opencode-ai/sequencer/internal/scheduler"
	"github.com/opencode-ai/sequencer/internal/tui/styles"
)

// RenderStateBadge renders a playback state with icon and color.
func RenderStateBadge(styleSet styles.Styles, state scheduler.State) string {
	icon, label, style := stateDescriptor(styleSet, state)
	return style.Render(fmt.Sprintf("%s %s", icon, label))
}

func stateDescriptor(styleSet styles.Styles, state scheduler.State) (string, string, lipgloss.Style) {
	switch state {
	case scheduler.StatePlaying:
		return ">", "Playing", styleSet.StatusPlaying
	case scheduler.StateFinished:
		return "OK", "Finished", styleSet.StatusFinished
	case scheduler.StateClosing:
		return "~", "Closing", styleSet.StatusClosing
	case scheduler.StateClosed:
		return "-", "Closed", styleSet.StatusClosed
	default:
		return "-", normalizeLabel(string(state)), styleSet.Muted
	}
}

// RenderEventKind renders a scheduler event kind as a fixed-width tag.
func RenderEventKind(styleSet styles.Styles, kind scheduler.EventKind) string {
	style := styleSet.Muted
	switch kind {
	case scheduler.EventActivated:
		style = styleSet.Success
	case scheduler.EventCompleted, scheduler.EventFinished:
		style = styleSet.Info
	case scheduler.EventCancelled, scheduler.EventDiscarded:
		style = styleSet.Warning
	case scheduler.EventUnresolved:
		style = styleSet.Error
	case scheduler.EventMessage:
		style = styleSet.Accent
	}
	return style.Render(fmt.Sprintf("%-11s", normalizeLabel(string(kind))))
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ReplaceAll(value, "_", " "))
	if value == "" {
		return "Unknown"
	}
	return strings.ToUpper(value[:1]) + value[1:]
}
