// Package sequencer plays sequences against a scene. A Director owns the
// clock, the message bus and the viewport; each PlaySequence call gets its
// own scheduler, and the Director's run loop ticks them all.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/opencode-ai/sequencer/internal/assets"
	"github.com/opencode-ai/sequencer/internal/bus"
	"github.com/opencode-ai/sequencer/internal/clock"
	"github.com/opencode-ai/sequencer/internal/command"
	"github.com/opencode-ai/sequencer/internal/events"
	"github.com/opencode-ai/sequencer/internal/logging"
	"github.com/opencode-ai/sequencer/internal/models"
	"github.com/opencode-ai/sequencer/internal/scene"
	"github.com/opencode-ai/sequencer/internal/scheduler"
	"github.com/opencode-ai/sequencer/internal/script"
	"github.com/opencode-ai/sequencer/internal/sequence"
	"github.com/opencode-ai/sequencer/internal/viewport"
)

// ErrAlreadyRunning is returned by Run when the loop is already running.
var ErrAlreadyRunning = errors.New("director already running")

// Config contains Director configuration.
type Config struct {
	// TickInterval is the frame period of Run.
	// Default: 16ms.
	TickInterval time.Duration

	// Scheduler is applied to every sequence. InformParticipants and
	// DestroyWhenDone are taken from PlayOptions instead.
	Scheduler scheduler.Config

	// InboxSize is the capacity of the Post/Do queue.
	// Default: 256.
	InboxSize int
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		TickInterval: 16 * time.Millisecond,
		Scheduler:    scheduler.DefaultConfig(),
		InboxSize:    256,
	}
}

// RunStore persists one row per playback.
type RunStore interface {
	Create(ctx context.Context, run *models.SequenceRun) error
	Complete(ctx context.Context, id string, status models.RunStatus, activations int64, at time.Time) error
}

// Options are the Director's collaborators. Zero values get working
// defaults: a wall clock, the process-wide bus, an empty scene and the
// builtin command registry.
type Options struct {
	Clock     clock.Clock
	Bus       *bus.Bus
	Scene     *scene.Scene
	Viewport  *viewport.Controller
	Registry  *command.Registry
	Assets    assets.Loader
	Presenter command.Presenter
	Variables *script.Environment
	Events    events.Repository
	Runs      RunStore
}

// PlayOptions configure a single playback.
type PlayOptions struct {
	// InformParticipants sends OnSequenceStart/OnSequenceEnd to the
	// speaker and listener.
	InformParticipants bool

	// DestroyWhenDone closes the sequence once it finishes.
	DestroyWhenDone bool

	// EntryTag replaces the literal "entrytag" token in the sequence.
	EntryTag string

	// Name labels the playback, usually the cutscene it came from.
	Name string

	// OnFinished is invoked once when the sequence drains.
	OnFinished func()
}

// Record is a scheduler event attributed to a playback.
type Record struct {
	HandleID string
	Name     string
	Event    scheduler.Event
}

// Director plays sequences. Methods other than Post and Do must be called
// from the goroutine running Run (or driving Tick).
type Director struct {
	config     Config
	clock      clock.Clock
	bus        *bus.Bus
	scene      *scene.Scene
	viewport   *viewport.Controller
	dispatcher *command.Dispatcher
	assets     assets.Loader
	presenter  command.Presenter
	variables  *script.Environment
	events     events.Repository
	runs       RunStore
	logger     zerolog.Logger

	handles   []*Handle
	inbox     chan func()
	observers []func(Record)
	running   atomic.Bool
}

// New creates a Director.
func New(cfg Config, opts Options) *Director {
	defaults := DefaultConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaults.TickInterval
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = defaults.InboxSize
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewGame()
	}
	if opts.Bus == nil {
		opts.Bus = bus.Default()
	}
	if opts.Scene == nil {
		opts.Scene = scene.New()
	}
	if opts.Variables == nil {
		opts.Variables = script.New()
	}

	return &Director{
		config:     cfg,
		clock:      opts.Clock,
		bus:        opts.Bus,
		scene:      opts.Scene,
		viewport:   opts.Viewport,
		dispatcher: command.NewDispatcher(opts.Registry),
		assets:     opts.Assets,
		presenter:  opts.Presenter,
		variables:  opts.Variables,
		events:     opts.Events,
		runs:       opts.Runs,
		logger:     logging.Component("director"),
		inbox:      make(chan func(), cfg.InboxSize),
	}
}

// Scene returns the scene sequences act on.
func (d *Director) Scene() *scene.Scene { return d.scene }

// Bus returns the bus sequences listen on.
func (d *Director) Bus() *bus.Bus { return d.bus }

// Clock returns the Director's clock.
func (d *Director) Clock() clock.Clock { return d.clock }

// Viewport returns the camera controller, or nil.
func (d *Director) Viewport() *viewport.Controller { return d.viewport }

// Variables returns the Lua variable environment.
func (d *Director) Variables() *script.Environment { return d.variables }

// Observe registers fn to receive every scheduler event after it is logged.
// fn runs on the loop goroutine.
func (d *Director) Observe(fn func(Record)) {
	d.observers = append(d.observers, fn)
}

// Handles returns the live playbacks in start order.
func (d *Director) Handles() []*Handle {
	out := make([]*Handle, len(d.handles))
	copy(out, d.handles)
	return out
}

// PlaySequence parses seq and starts playing it. Statements that fail to
// parse are logged and skipped.
func (d *Director) PlaySequence(seq string, speaker, listener *scene.Node, opts PlayOptions) (*Handle, error) {
	statements, err := sequence.Parse(seq, opts.EntryTag)
	if err != nil {
		d.logger.Warn().Err(err).Str("sequence", seq).Msg("sequence has invalid statements")
	}

	env := command.NewEnv(d.scene, speaker, listener)
	env.Assets = d.assets
	env.Presenter = d.presenter
	env.Variables = d.variables
	env.Viewport = d.viewport
	env.Bus = d.bus

	h := &Handle{
		ID:         uuid.New().String(),
		Name:       opts.Name,
		Sequence:   seq,
		Statements: len(statements),
		startedAt:  time.Now().UTC(),
		clock:      d.clock,
		startClock: d.clock.Now(),
	}

	cfg := d.config.Scheduler
	cfg.InformParticipants = opts.InformParticipants
	cfg.DestroyWhenDone = opts.DestroyWhenDone

	sched, err := scheduler.New(cfg, scheduler.Deps{
		ID:         h.ID,
		Clock:      d.clock,
		Bus:        d.bus,
		Dispatcher: d.dispatcher,
		Env:        env,
	})
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	h.sched = sched

	sched.OnFinished(func() {
		h.finished = true
		h.end()
		if !h.stopped {
			d.complete(h, models.RunStatusFinished)
		}
		if opts.OnFinished != nil {
			opts.OnFinished()
		}
	})

	d.handles = append(d.handles, h)
	d.begin(h, speaker, listener)

	if err := sched.Play(statements); err != nil {
		return nil, fmt.Errorf("play sequence: %w", err)
	}
	d.drain(h)

	d.logger.Info().
		Str("handle", h.ID).
		Str("name", h.Name).
		Int("statements", h.Statements).
		Msg("sequence started")
	return h, nil
}

// StopSequence ends a playback early: required statements run, active
// commands snap to their final state and the viewport is released a couple
// of ticks later. Stopping a closed handle is a no-op.
func (d *Director) StopSequence(h *Handle) {
	if h == nil || h.sched == nil || h.sched.Closed() {
		return
	}

	if !h.finished && !h.stopped {
		h.stopped = true
		h.end()
		if d.events != nil {
			if err := events.LogSequenceStopped(context.Background(), d.events, h.ID); err != nil {
				d.logger.Warn().Err(err).Str("handle", h.ID).Msg("failed to record stop")
			}
		}
		d.complete(h, models.RunStatusStopped)
	}

	h.sched.Close()
	d.drain(h)
	d.logger.Info().Str("handle", h.ID).Msg("sequence stopped")
}

// Message sends name on the Director's bus, reaching every sequence waiting
// for it. Use Post from other goroutines.
func (d *Director) Message(name string) {
	d.bus.Send(name)
}

// Post queues a message for delivery on the loop goroutine. It is safe for
// concurrent use and reports false when the inbox is full.
func (d *Director) Post(name string) bool {
	if !d.Do(func() { d.bus.Send(name) }) {
		d.logger.Warn().Str("message", name).Msg("inbox full, message dropped")
		return false
	}
	return true
}

// Do queues fn to run on the loop goroutine before the next tick. It is
// safe for concurrent use and reports false when the inbox is full.
func (d *Director) Do(fn func()) bool {
	select {
	case d.inbox <- fn:
		return true
	default:
		return false
	}
}

// Tick runs queued work, then one frame of every playback.
func (d *Director) Tick() {
	d.runQueued()

	for _, h := range d.Handles() {
		h.sched.Tick()
		d.drain(h)
	}
	d.prune()
}

// Run ticks every TickInterval until ctx is done, then closes all playbacks
// and ticks until their viewport release has happened.
func (d *Director) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer d.running.Store(false)

	d.logger.Info().Dur("tick_interval", d.config.TickInterval).Msg("director starting")

	ticker := time.NewTicker(d.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.Shutdown()
			d.logger.Info().Msg("director stopped")
			return nil

		case fn := <-d.inbox:
			fn()

		case <-ticker.C:
			d.Tick()
		}
	}
}

// Shutdown stops every playback and ticks until all of them have closed.
func (d *Director) Shutdown() {
	for _, h := range d.Handles() {
		d.StopSequence(h)
	}
	for i := 0; i <= d.config.Scheduler.ReleaseDelayTicks+1 && len(d.handles) > 0; i++ {
		d.Tick()
	}
}

// Pause freezes the clock when it supports pausing.
func (d *Director) Pause() bool {
	p, ok := d.clock.(clock.Pausable)
	if ok {
		p.Pause()
	}
	return ok
}

// Resume unfreezes the clock when it supports pausing.
func (d *Director) Resume() bool {
	p, ok := d.clock.(clock.Pausable)
	if ok {
		p.Resume()
	}
	return ok
}

func (d *Director) runQueued() {
	for {
		select {
		case fn := <-d.inbox:
			fn()
		default:
			return
		}
	}
}

func (d *Director) prune() {
	kept := d.handles[:0]
	for _, h := range d.handles {
		if h.sched.Closed() {
			d.logger.Debug().Str("handle", h.ID).Msg("sequence closed")
			continue
		}
		kept = append(kept, h)
	}
	for i := len(kept); i < len(d.handles); i++ {
		d.handles[i] = nil
	}
	d.handles = kept
}

func (d *Director) begin(h *Handle, speaker, listener *scene.Node) {
	ctx := context.Background()
	run := &models.SequenceRun{
		ID:        h.ID,
		Sequence:  h.Sequence,
		Cutscene:  h.Name,
		Speaker:   nodeName(speaker),
		Listener:  nodeName(listener),
		StartedAt: h.startedAt,
	}
	if d.runs != nil && run.Sequence != "" {
		if err := d.runs.Create(ctx, run); err != nil {
			d.logger.Warn().Err(err).Str("handle", h.ID).Msg("failed to record run")
		}
	}
	if d.events != nil {
		err := events.LogSequenceStarted(ctx, d.events, h.ID, models.SequenceStartedPayload{
			Sequence:   h.Sequence,
			Cutscene:   h.Name,
			Speaker:    run.Speaker,
			Listener:   run.Listener,
			Statements: h.Statements,
		})
		if err != nil {
			d.logger.Warn().Err(err).Str("handle", h.ID).Msg("failed to record start")
		}
	}
}

func (d *Director) complete(h *Handle, status models.RunStatus) {
	if d.runs == nil || h.Sequence == "" {
		return
	}
	err := d.runs.Complete(context.Background(), h.ID, status, h.sched.Stats().Activations, time.Now().UTC())
	if err != nil {
		d.logger.Warn().Err(err).Str("handle", h.ID).Msg("failed to complete run")
	}
}

// drain forwards pending scheduler events to the event log and observers.
func (d *Director) drain(h *Handle) {
	ch := h.sched.Events()
	for {
		select {
		case e := <-ch:
			d.record(h, e)
		default:
			return
		}
	}
}

func (d *Director) record(h *Handle, e scheduler.Event) {
	if d.events != nil {
		var err error
		if e.Kind == scheduler.EventFinished {
			err = events.LogSequenceFinished(context.Background(), d.events, h.ID, h.sched.Stats().Activations, e.At-h.startClock)
		} else {
			err = events.LogSchedulerEvent(context.Background(), d.events, h.ID, e)
		}
		if err != nil {
			d.logger.Warn().Err(err).Str("handle", h.ID).Str("kind", string(e.Kind)).Msg("failed to record event")
		}
	}

	r := Record{HandleID: h.ID, Name: h.Name, Event: e}
	for _, fn := range d.observers {
		fn(r)
	}
}

func nodeName(n *scene.Node) string {
	if n == nil {
		return ""
	}
	return n.Name
}

// Message sends name on the process-wide bus, reaching every sequence of
// every Director built on the default bus.
func Message(name string) {
	bus.Message(name)
}
