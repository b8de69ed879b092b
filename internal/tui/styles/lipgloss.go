package styles

import "github.com/charmbracelet/lipgloss"

// Styles contains lipgloss styles derived from theme tokens.
type Styles struct {
	Theme   Theme
	Title   lipgloss.Style
	Text    lipgloss.Style
	Muted   lipgloss.Style
	Accent  lipgloss.Style
	Panel   lipgloss.Style
	Border  lipgloss.Style
	Focus   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Info    lipgloss.Style

	// Playback states.
	StatusPlaying  lipgloss.Style
	StatusFinished lipgloss.Style
	StatusClosing  lipgloss.Style
	StatusClosed   lipgloss.Style
}

// DefaultStyles builds styles from the default theme.
func DefaultStyles() Styles {
	return BuildStyles(DefaultTheme)
}

// BuildStyles converts theme tokens into lipgloss styles.
func BuildStyles(theme Theme) Styles {
	tokens := theme.Tokens
	color := func(c string) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(c))
	}

	return Styles{
		Theme:   theme,
		Title:   color(tokens.Text).Bold(true),
		Text:    color(tokens.Text),
		Muted:   color(tokens.TextMuted),
		Accent:  color(tokens.Accent),
		Panel:   color(tokens.Text).Background(lipgloss.Color(tokens.Panel)).BorderStyle(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color(tokens.Border)),
		Border:  color(tokens.Border),
		Focus:   color(tokens.Focus).Bold(true),
		Success: color(tokens.Success),
		Warning: color(tokens.Warning),
		Error:   color(tokens.Error),
		Info:    color(tokens.Info),

		StatusPlaying:  color(tokens.Success),
		StatusFinished: color(tokens.Info),
		StatusClosing:  color(tokens.Warning),
		StatusClosed:   color(tokens.TextMuted),
	}
}
