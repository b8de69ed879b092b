package tui

import (
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/opencode-ai/sequencer/internal/scheduler"
	"github.com/opencode-ai/sequencer/internal/sequencer"
)

const (
	defaultFeedSize = 512
	refreshInterval = 250 * time.Millisecond
	snapshotTimeout = time.Second
)

// RecordMsg carries one scheduler event from the Director.
type RecordMsg sequencer.Record

// SnapshotMsg carries the state of every playback.
type SnapshotMsg struct {
	Paused  bool
	Now     time.Duration
	Handles []HandleView
	At      time.Time
}

// snapshotMissedMsg means the Director did not answer in time.
type snapshotMissedMsg struct{}

// HandleView is one playback as the monitor shows it.
type HandleView struct {
	ID       string
	Name     string
	Stopped  bool
	Stats    scheduler.Stats
	Snapshot scheduler.Snapshot
}

// Collect reads the Director's playbacks. It must run on the loop goroutine.
func Collect(d *sequencer.Director) SnapshotMsg {
	msg := SnapshotMsg{
		Paused: d.Clock().Paused(),
		Now:    d.Clock().Now(),
		At:     time.Now(),
	}
	for _, h := range d.Handles() {
		msg.Handles = append(msg.Handles, HandleView{
			ID:       h.ID,
			Name:     h.Name,
			Stopped:  h.Stopped(),
			Stats:    h.Stats(),
			Snapshot: h.Snapshot(),
		})
	}
	return msg
}

// Feed buffers Director records until the program reads them. Push never
// blocks; records arriving on a full feed are counted and dropped.
type Feed struct {
	ch      chan RecordMsg
	dropped atomic.Int64
}

// NewFeed creates a feed holding up to size records.
func NewFeed(size int) *Feed {
	if size <= 0 {
		size = defaultFeedSize
	}
	return &Feed{ch: make(chan RecordMsg, size)}
}

// Attach registers the feed as a Director observer.
func (f *Feed) Attach(d *sequencer.Director) {
	d.Observe(f.Push)
}

// Push enqueues a record.
func (f *Feed) Push(r sequencer.Record) {
	select {
	case f.ch <- RecordMsg(r):
	default:
		f.dropped.Add(1)
	}
}

// Dropped returns the number of records lost to a full feed.
func (f *Feed) Dropped() int64 {
	return f.dropped.Load()
}

// waitForRecord delivers the next record. Update re-issues it after each one.
func waitForRecord(f *Feed) tea.Cmd {
	if f == nil {
		return nil
	}
	return func() tea.Msg {
		return <-f.ch
	}
}

// refreshCmd asks the loop goroutine for a snapshot after refreshInterval.
func refreshCmd(d *sequencer.Director) tea.Cmd {
	if d == nil {
		return nil
	}
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		return requestSnapshot(d)
	})
}

func requestSnapshot(d *sequencer.Director) tea.Msg {
	ch := make(chan SnapshotMsg, 1)
	if !d.Do(func() { ch <- Collect(d) }) {
		return snapshotMissedMsg{}
	}
	select {
	case msg := <-ch:
		return msg
	case <-time.After(snapshotTimeout):
		return snapshotMissedMsg{}
	}
}
