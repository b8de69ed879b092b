package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/sequencer/internal/bus"
	"github.com/opencode-ai/sequencer/internal/clock"
	"github.com/opencode-ai/sequencer/internal/scene"
	"github.com/opencode-ai/sequencer/internal/scheduler"
	"github.com/opencode-ai/sequencer/internal/sequencer"
)

func newDirector(t *testing.T) (*sequencer.Director, *clock.Manual, *scene.Node) {
	t.Helper()
	clk := clock.NewManual()
	s := scene.New()
	alice := s.Add(scene.NewNode("Alice"))
	d := sequencer.New(sequencer.DefaultConfig(), sequencer.Options{
		Clock: clk,
		Bus:   bus.New(),
		Scene: s,
	})
	return d, clk, alice
}

func update(t *testing.T, m model, msg tea.Msg) model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(model)
	require.True(t, ok)
	return out
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestCollectDescribesPlaybacks(t *testing.T) {
	d, _, alice := newDirector(t)

	_, err := d.PlaySequence("SendMessage(Wave)@Message(Go); Delay(2)", alice, nil, sequencer.PlayOptions{Name: "intro"})
	require.NoError(t, err)

	snap := Collect(d)
	require.False(t, snap.Paused)
	require.Len(t, snap.Handles, 1)
	require.Equal(t, "intro", snap.Handles[0].Name)
	require.Equal(t, scheduler.StatePlaying, snap.Handles[0].Stats.State)
	require.Len(t, snap.Handles[0].Snapshot.Queued, 1)
	require.Equal(t, "Go", snap.Handles[0].Snapshot.Queued[0].Message)
}

func TestFeedReceivesDirectorRecords(t *testing.T) {
	d, _, alice := newDirector(t)
	feed := NewFeed(1)
	feed.Attach(d)

	_, err := d.PlaySequence("None(); None()", alice, nil, sequencer.PlayOptions{})
	require.NoError(t, err)

	msg := waitForRecord(feed)()
	record, ok := msg.(RecordMsg)
	require.True(t, ok)
	require.Equal(t, scheduler.EventActivated, record.Event.Kind)
	require.Positive(t, feed.Dropped())
}

func TestModelShowsPlaybacksAndEvents(t *testing.T) {
	m := newModel(nil, nil, Options{})
	require.Contains(t, m.View(), "No sequences playing")
	require.Contains(t, m.View(), "No events yet")

	m = update(t, m, SnapshotMsg{
		Handles: []HandleView{{
			ID:   "0123456789abcdef",
			Name: "intro",
			Stats: scheduler.Stats{State: scheduler.StatePlaying, Queued: 1, Active: 1, Activations: 2},
			Snapshot: scheduler.Snapshot{
				Active: []scheduler.ActiveInfo{{Statement: "Camera(Wide, , 2)"}},
				Queued: []scheduler.QueuedInfo{{Statement: "Delay(1)@Message(Go)", Message: "Go", Required: true}},
			},
		}},
	})
	m = update(t, m, RecordMsg{HandleID: "0123456789abcdef", Event: scheduler.Event{
		Kind:      scheduler.EventActivated,
		Statement: "Camera(Wide, , 2)",
	}})

	view := m.View()
	require.Contains(t, view, "Playbacks (1)")
	require.Contains(t, view, "Playing")
	require.Contains(t, view, "queued 1 | active 1 | dispatched 2")
	require.Contains(t, view, "on Go (required)")
	require.Contains(t, view, "01234567")
	require.Contains(t, view, "Activated")
}

func TestModelFilterCyclesAndClears(t *testing.T) {
	m := newModel(nil, nil, Options{})
	m = update(t, m, RecordMsg{Event: scheduler.Event{Kind: scheduler.EventActivated, Statement: "None()"}})

	m = update(t, m, key("f"))
	require.Equal(t, filterCommands, m.filter)
	require.Contains(t, m.View(), "None()")

	m = update(t, m, key("f"))
	require.Equal(t, filterMessages, m.filter)
	require.Contains(t, m.View(), "No events match 'messages'")

	m = update(t, m, key("f"))
	require.Equal(t, filterAll, m.filter)

	m = update(t, m, key("c"))
	require.Empty(t, m.log)
}

func TestModelLogIsBounded(t *testing.T) {
	m := newModel(nil, nil, Options{})
	for i := 0; i < maxLog+10; i++ {
		m = update(t, m, RecordMsg{Event: scheduler.Event{Kind: scheduler.EventMessage, Message: "Go"}})
	}
	require.Len(t, m.log, maxLog)
}

func TestModelKeysDriveDirector(t *testing.T) {
	d, clk, alice := newDirector(t)
	h, err := d.PlaySequence("Delay(5)", alice, nil, sequencer.PlayOptions{})
	require.NoError(t, err)

	m := newModel(d, nil, Options{})
	m = update(t, m, key("p"))
	require.False(t, clk.Paused(), "pause waits for the loop")
	d.Tick()
	require.True(t, clk.Paused())

	m = update(t, m, key("p"))
	d.Tick()
	require.False(t, clk.Paused())

	update(t, m, key("s"))
	d.Tick()
	require.True(t, h.Stopped())
}

func TestModelSmallTerminal(t *testing.T) {
	m := newModel(nil, nil, Options{Theme: "high-contrast"})
	m = update(t, m, tea.WindowSizeMsg{Width: 40, Height: 10})

	view := m.View()
	require.True(t, strings.Contains(view, "Terminal too small (40x10)."))
	require.Equal(t, "high-contrast", m.styles.Theme.Name)
}

func TestModelQuit(t *testing.T) {
	m := newModel(nil, nil, Options{})
	_, cmd := m.Update(key("q"))
	require.NotNil(t, cmd)
	require.IsType(t, tea.QuitMsg{}, cmd())
}
