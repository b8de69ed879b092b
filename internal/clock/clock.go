// Package clock provides the pausable time sources used for sequence delays.
//
// Times are elapsed durations since the clock started, never wall-clock
// instants: a paused clock stops advancing and resumes where it left off.
package clock

import (
	"sync"
	"time"
)

// Clock is a pausable monotonic time source.
type Clock interface {
	// Now returns the elapsed unpaused time.
	Now() time.Duration

	// Paused reports whether time is currently frozen.
	Paused() bool
}

// Pausable is a Clock whose pause state can be changed.
type Pausable interface {
	Clock
	Pause()
	Resume()
}

// Game is a wall-clock backed Clock that excludes paused intervals.
type Game struct {
	mu       sync.Mutex
	now      func() time.Time
	start    time.Time
	pausedAt time.Time
	offset   time.Duration // total time spent paused
	paused   bool
}

// NewGame returns a running clock backed by time.Now.
func NewGame() *Game {
	return NewGameWithSource(time.Now)
}

// NewGameWithSource returns a running clock backed by a custom time source.
func NewGameWithSource(now func() time.Time) *Game {
	return &Game{now: now, start: now()}
}

// Now returns the elapsed unpaused time.
func (g *Game) Now() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused {
		return g.pausedAt.Sub(g.start) - g.offset
	}
	return g.now().Sub(g.start) - g.offset
}

// Paused reports whether the clock is paused.
func (g *Game) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// Pause freezes the clock. Pausing twice is a no-op.
func (g *Game) Pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused {
		return
	}
	g.paused = true
	g.pausedAt = g.now()
}

// Resume continues a paused clock. Resuming a running clock is a no-op.
func (g *Game) Resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.paused {
		return
	}
	g.offset += g.now().Sub(g.pausedAt)
	g.paused = false
}

// Manual is a Clock advanced explicitly by the caller. Tests and offline
// renderers step it frame by frame.
type Manual struct {
	mu     sync.Mutex
	now    time.Duration
	paused bool
}

// NewManual returns a manual clock at zero.
func NewManual() *Manual {
	return &Manual{}
}

// Now returns the current time.
func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Paused reports whether the clock is paused.
func (m *Manual) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// Advance moves time forward by d. It has no effect while paused.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.paused || d <= 0 {
		return
	}
	m.now += d
}

// Set jumps to an absolute time. Going backwards is ignored.
func (m *Manual) Set(t time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t > m.now {
		m.now = t
	}
}

// Pause freezes the clock.
func (m *Manual) Pause() {
	m.mu.Lock()
	m.paused = true
	m.mu.Unlock()
}

// Resume unfreezes the clock.
func (m *Manual) Resume() {
	m.mu.Lock()
	m.paused = false
	m.mu.Unlock()
}

// Seconds converts fractional seconds to a Duration.
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
