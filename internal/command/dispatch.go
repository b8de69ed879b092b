package command

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/opencode-ai/sequencer/internal/logging"
)

// NoneCommand is the built-in no-op. A blank name behaves the same.
const NoneCommand = "None"

// Dispatch is the outcome of dispatching one statement.
type Dispatch struct {
	// Sync is set when an inline handler ran to completion.
	Sync bool

	// Duration is the inline effect length.
	Duration time.Duration

	// Active is the started async command, if any.
	Active Async

	// Found is false when nothing answered to the name.
	Found bool

	// EndMessage is carried through for the caller.
	EndMessage string
}

// Dispatcher runs statements against a registry.
type Dispatcher struct {
	registry *Registry
	logger   zerolog.Logger
}

// NewDispatcher returns a dispatcher. A nil registry means the builtins.
func NewDispatcher(registry *Registry) *Dispatcher {
	if registry == nil {
		registry = NewBuiltinRegistry()
	}
	return &Dispatcher{
		registry: registry,
		logger:   logging.Component("dispatch"),
	}
}

// Registry returns the registry in use.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// Dispatch runs a command: inline handler first, then the async lookup.
// Unknown commands and panicking handlers never escape; they are logged and
// reported through the result.
func (d *Dispatcher) Dispatch(env *Env, name string, args []string, endMessage string) (out Dispatch) {
	name = strings.TrimSpace(name)
	out.EndMessage = endMessage

	if name == "" || name == NoneCommand {
		out.Sync, out.Found = true, true
		return out
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().Str("command", name).Str("panic", fmt.Sprint(r)).Msg("command panicked")
			out = Dispatch{Sync: true, Found: true, EndMessage: endMessage}
		}
	}()

	if fn, ok := d.registry.Inline(name); ok {
		res := fn(env, Args(args))
		if !res.Deferred() {
			out.Sync, out.Found, out.Duration = true, true, res.Duration()
			return out
		}
	}

	factory, ok := d.registry.Lookup(name)
	if !ok {
		d.logger.Debug().Str("command", name).Strs("args", args).Msg("no handler for command")
		return out
	}

	cmd := factory()
	cmd.Start(env, Args(args))
	out.Found, out.Active = true, cmd
	return out
}
