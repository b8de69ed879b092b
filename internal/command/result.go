package command

import "time"

// Result is what an inline handler returns: either handled, with the
// duration of the effect, or deferred to the async command of the same name.
type Result struct {
	deferred bool
	duration time.Duration
}

// Handled reports an inline effect lasting d (zero for instantaneous).
func Handled(d time.Duration) Result {
	if d < 0 {
		d = 0
	}
	return Result{duration: d}
}

// Defer routes the invocation to the async path.
func Defer() Result {
	return Result{deferred: true}
}

// Deferred reports whether the invocation must run asynchronously.
func (r Result) Deferred() bool { return r.deferred }

// Duration is the effect length of a handled result.
func (r Result) Duration() time.Duration { return r.duration }

// Inline is a synchronous command handler.
type Inline func(env *Env, args Args) Result
