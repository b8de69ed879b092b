// Package tui implements the playback monitor: a live view of the
// Director's sequences and the scheduler events they emit.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/opencode-ai/sequencer/internal/scheduler"
	"github.com/opencode-ai/sequencer/internal/sequencer"
	"github.com/opencode-ai/sequencer/internal/tui/components"
	"github.com/opencode-ai/sequencer/internal/tui/styles"
)

// Options configures the monitor.
type Options struct {
	// Theme names a palette from styles.Themes.
	Theme string
}

// Run launches the monitor until the user quits or ctx is done. The Director
// must be running its loop on another goroutine; feed must be attached to it.
func Run(ctx context.Context, d *sequencer.Director, feed *Feed, opts Options) error {
	program := tea.NewProgram(newModel(d, feed, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

type model struct {
	director *sequencer.Director
	feed     *Feed

	width  int
	height int
	styles styles.Styles
	filter eventFilter

	paused      bool
	clockNow    time.Duration
	handles     []HandleView
	log         []RecordMsg
	lastUpdated time.Time
	now         time.Time
}

const (
	minWidth   = 60
	minHeight  = 15
	staleAfter = 5 * time.Second
	maxLog     = 200
	maxQueued  = 3
)

type eventFilter int

const (
	filterAll eventFilter = iota
	filterCommands
	filterMessages
)

func (f eventFilter) String() string {
	switch f {
	case filterCommands:
		return "commands"
	case filterMessages:
		return "messages"
	default:
		return "all"
	}
}

func (f eventFilter) next() eventFilter {
	return (f + 1) % 3
}

func (f eventFilter) match(kind scheduler.EventKind) bool {
	switch f {
	case filterCommands:
		switch kind {
		case scheduler.EventActivated, scheduler.EventCompleted, scheduler.EventCancelled,
			scheduler.EventDiscarded, scheduler.EventUnresolved:
			return true
		}
		return false
	case filterMessages:
		return kind == scheduler.EventMessage
	default:
		return true
	}
}

func newModel(d *sequencer.Director, feed *Feed, opts Options) model {
	theme, _ := styles.ThemeByName(opts.Theme)
	return model{
		director: d,
		feed:     feed,
		styles:   styles.BuildStyles(theme),
		now:      time.Now(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), waitForRecord(m.feed), refreshCmd(m.director))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "p", " ":
			m.togglePause()
		case "s":
			m.stopAll()
		case "f":
			m.filter = m.filter.next()
		case "c":
			m.log = nil
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		m.now = time.Time(msg)
		return m, tickCmd()
	case RecordMsg:
		m.log = append(m.log, msg)
		if len(m.log) > maxLog {
			m.log = m.log[len(m.log)-maxLog:]
		}
		return m, waitForRecord(m.feed)
	case SnapshotMsg:
		m.paused = msg.Paused
		m.clockNow = msg.Now
		m.handles = msg.Handles
		m.lastUpdated = msg.At
		return m, refreshCmd(m.director)
	case snapshotMissedMsg:
		return m, refreshCmd(m.director)
	}
	return m, nil
}

func (m model) togglePause() {
	if m.director == nil {
		return
	}
	d := m.director
	d.Do(func() {
		if d.Clock().Paused() {
			d.Resume()
		} else {
			d.Pause()
		}
	})
}

func (m model) stopAll() {
	if m.director == nil {
		return
	}
	d := m.director
	d.Do(func() {
		for _, h := range d.Handles() {
			d.StopSequence(h)
		}
	})
}

func (m model) View() string {
	if m.width > 0 && m.height > 0 {
		if m.width < minWidth || m.height < minHeight {
			return fmt.Sprintf("%s\n", joinLines(m.smallViewLines()))
		}
	}

	clockLine := fmt.Sprintf("Clock %s", formatClock(m.clockNow))
	if m.paused {
		clockLine += " " + m.styles.Warning.Render("(paused)")
	}
	lines := []string{
		m.styles.Title.Render("Sequencer monitor"),
		m.styles.Muted.Render(clockLine),
		"",
		m.styles.Accent.Render(fmt.Sprintf("Playbacks (%d)", len(m.handles))),
	}
	lines = append(lines, m.handleLines()...)

	footer := []string{
		"",
		m.styles.Muted.Render(m.lastUpdatedLine()),
		m.styles.Muted.Render("Shortcuts: q quit | p pause | s stop all | f filter | c clear"),
	}

	lines = append(lines, "", m.styles.Accent.Render(fmt.Sprintf("Events [%s]", m.filter)))
	lines = append(lines, m.eventLines(m.eventBudget(len(lines)+len(footer)))...)
	lines = append(lines, footer...)

	return fmt.Sprintf("%s\n", joinLines(lines))
}

func (m model) smallViewLines() []string {
	message := fmt.Sprintf("Terminal too small (%dx%d).", m.width, m.height)
	hint := fmt.Sprintf("Resize to at least %dx%d.", minWidth, minHeight)

	return []string{
		m.styles.Warning.Render(message),
		m.styles.Muted.Render(hint),
		m.styles.Muted.Render("Press q to quit."),
	}
}

func (m model) handleLines() []string {
	if len(m.handles) == 0 {
		return []string{components.EmptyPlaybacks().RenderCompact(m.styles)}
	}

	var lines []string
	for _, h := range m.handles {
		name := h.Name
		if name == "" {
			name = shortID(h.ID)
		}
		header := fmt.Sprintf("%s %s %s",
			components.RenderStateBadge(m.styles, h.Stats.State),
			m.styles.Text.Render(name),
			m.styles.Muted.Render(fmt.Sprintf("queued %d | active %d | dispatched %d",
				h.Stats.Queued, h.Stats.Active, h.Stats.Activations)),
		)
		if h.Stopped {
			header += " " + m.styles.Warning.Render("stopped")
		}
		lines = append(lines, header)

		for _, a := range h.Snapshot.Active {
			lines = append(lines, fmt.Sprintf("  %s %s %s",
				m.styles.Success.Render(">"),
				a.Statement,
				m.styles.Muted.Render("since "+formatClock(a.Started))))
		}
		for i, q := range h.Snapshot.Queued {
			if i == maxQueued {
				lines = append(lines, m.styles.Muted.Render(fmt.Sprintf("  ... %d more queued", len(h.Snapshot.Queued)-maxQueued)))
				break
			}
			lines = append(lines, fmt.Sprintf("  %s %s %s",
				m.styles.Muted.Render("·"),
				q.Statement,
				m.styles.Muted.Render(waitLabel(q))))
		}
	}
	return lines
}

func (m model) eventBudget(used int) int {
	if m.height <= 0 {
		return 10
	}
	budget := m.height - used
	if budget < 3 {
		budget = 3
	}
	return budget
}

func (m model) eventLines(budget int) []string {
	var matched []RecordMsg
	for _, r := range m.log {
		if m.filter.match(r.Event.Kind) {
			matched = append(matched, r)
		}
	}
	if len(matched) == 0 {
		if len(m.log) > 0 {
			return []string{components.EmptyEventsFiltered(m.filter.String()).RenderCompact(m.styles)}
		}
		return []string{components.EmptyEvents().RenderCompact(m.styles)}
	}
	if len(matched) > budget {
		matched = matched[len(matched)-budget:]
	}

	lines := make([]string, 0, len(matched))
	for _, r := range matched {
		lines = append(lines, m.recordLine(r))
	}
	return lines
}

func (m model) recordLine(r RecordMsg) string {
	name := r.Name
	if name == "" {
		name = shortID(r.HandleID)
	}
	detail := r.Event.Statement
	if r.Event.Kind == scheduler.EventMessage {
		detail = r.Event.Message
	}
	if r.Event.Forced {
		detail += " (required)"
	}
	return fmt.Sprintf("%s %s %s %s",
		m.styles.Muted.Render(formatClock(r.Event.At)),
		components.RenderEventKind(m.styles, r.Event.Kind),
		m.styles.Muted.Render(name),
		detail)
}

func waitLabel(q scheduler.QueuedInfo) string {
	var label string
	if q.Message != "" {
		label = "on " + q.Message
	} else {
		label = "at " + formatClock(q.Due)
	}
	if q.Required {
		label += " (required)"
	}
	return label
}

func formatClock(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n")
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) lastUpdatedLine() string {
	if m.lastUpdated.IsZero() {
		return "Last updated: --"
	}
	label := m.lastUpdated.Format("15:04:05")
	if m.isStale() {
		label += " (stale)"
	}
	if m.feed != nil {
		if dropped := m.feed.Dropped(); dropped > 0 {
			label += fmt.Sprintf(" | %d events dropped", dropped)
		}
	}
	return fmt.Sprintf("Last updated: %s", label)
}

func (m model) isStale() bool {
	if m.lastUpdated.IsZero() || m.now.IsZero() {
		return false
	}
	return m.now.Sub(m.lastUpdated) > staleAfter
}
