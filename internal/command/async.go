package command

import "time"

// Async is a command that runs across several ticks. The scheduler calls
// Start once, then Advance every tick until Finished reports true.
type Async interface {
	Start(env *Env, args Args)
	Advance(dt time.Duration)
	Finished() bool

	// Stop forces completion: the command jumps to its final state and
	// reports Finished from then on.
	Stop()

	// Release frees anything the command holds. Called exactly once.
	Release()
}

// Factory creates a fresh Async instance per activation.
type Factory func() Async

// Base carries the bookkeeping most async commands share. Embed it and
// override what differs.
type Base struct {
	env      *Env
	args     Args
	finished bool
}

// Start stores env and args.
func (b *Base) Start(env *Env, args Args) {
	b.env = env
	b.args = args
}

// Env returns the environment passed to Start.
func (b *Base) Env() *Env { return b.env }

// Args returns the arguments passed to Start.
func (b *Base) Args() Args { return b.args }

// Advance does nothing.
func (b *Base) Advance(time.Duration) {}

// Finish marks the command complete.
func (b *Base) Finish() { b.finished = true }

// Finished implements Async.
func (b *Base) Finished() bool { return b.finished }

// Stop implements Async.
func (b *Base) Stop() { b.finished = true }

// Release implements Async.
func (b *Base) Release() {}

// Tween tracks progress over a fixed duration.
type Tween struct {
	Duration time.Duration
	Elapsed  time.Duration
}

// Step adds dt and returns the clamped progress in [0,1].
func (t *Tween) Step(dt time.Duration) float64 {
	t.Elapsed += dt
	return t.Progress()
}

// Progress returns the clamped progress in [0,1]. Zero-length tweens are done.
func (t *Tween) Progress() float64 {
	if t.Duration <= 0 || t.Elapsed >= t.Duration {
		return 1
	}
	return float64(t.Elapsed) / float64(t.Duration)
}

// Done reports whether the tween has completed.
func (t *Tween) Done() bool { return t.Progress() >= 1 }
