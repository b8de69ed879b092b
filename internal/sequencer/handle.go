package sequencer

import (
	"time"

	"github.com/opencode-ai/sequencer/internal/clock"
	"github.com/opencode-ai/sequencer/internal/scheduler"
	"github.com/opencode-ai/sequencer/internal/sequence"
)

// Handle identifies one playback started by PlaySequence.
type Handle struct {
	// ID is a random UUID.
	ID string

	// Name is PlayOptions.Name.
	Name string

	// Sequence is the source text as given.
	Sequence string

	// Statements is the number of statements that parsed.
	Statements int

	sched      *scheduler.Scheduler
	clock      clock.Clock
	startedAt  time.Time
	startClock time.Duration
	endClock   time.Duration
	ended      bool
	finished   bool
	stopped    bool
}

// Finished reports whether the sequence has drained.
func (h *Handle) Finished() bool { return h.finished }

// Stopped reports whether StopSequence ended the playback.
func (h *Handle) Stopped() bool { return h.stopped }

// Closed reports whether the playback has released its resources.
func (h *Handle) Closed() bool { return h.sched.Closed() }

// Elapsed returns the clock time from start until the playback finished or
// was stopped, or until now while it is still running.
func (h *Handle) Elapsed() time.Duration {
	if h.ended {
		return h.endClock - h.startClock
	}
	return h.clock.Now() - h.startClock
}

func (h *Handle) end() {
	if !h.ended {
		h.ended = true
		h.endClock = h.clock.Now()
	}
}

// Stats returns the scheduler statistics of the playback.
func (h *Handle) Stats() scheduler.Stats { return h.sched.Stats() }

// Snapshot describes what the playback is waiting for and running.
func (h *Handle) Snapshot() scheduler.Snapshot { return h.sched.Snapshot() }

// Submit parses src and schedules its statements on the playback. Valid
// statements are submitted even when others fail to parse.
func (h *Handle) Submit(src string) error {
	statements, err := sequence.Parse(src, "")
	for _, stmt := range statements {
		h.sched.Submit(stmt)
	}
	return err
}
