// Package scheduler runs parsed sequence statements: it dispatches them
// immediately, after a delay or when a named message arrives, polls the
// async commands they start and reports when the sequence has drained.
package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/opencode-ai/sequencer/internal/bus"
	"github.com/opencode-ai/sequencer/internal/clock"
	"github.com/opencode-ai/sequencer/internal/command"
	"github.com/opencode-ai/sequencer/internal/logging"
	"github.com/opencode-ai/sequencer/internal/sequence"
)

// Scheduler errors.
var (
	ErrClosed       = errors.New("scheduler closed")
	ErrMissingClock = errors.New("scheduler requires a clock")
)

// Participant lifecycle messages sent to the speaker and listener.
const (
	MessageSequenceStart = "OnSequenceStart"
	MessageSequenceEnd   = "OnSequenceEnd"
)

// Config contains scheduler configuration.
type Config struct {
	// ImmediateEpsilon is the delay below which an unpaused statement is
	// dispatched inline by Submit.
	// Default: 1ms.
	ImmediateEpsilon time.Duration

	// CancelGracePeriod is how long stopped async commands are kept before
	// they are released.
	// Default: 100ms.
	CancelGracePeriod time.Duration

	// ReleaseDelayTicks is how many ticks Close waits before releasing the
	// viewport.
	// Default: 2.
	ReleaseDelayTicks int

	// InformParticipants sends OnSequenceStart/OnSequenceEnd to the speaker
	// and listener.
	InformParticipants bool

	// DestroyWhenDone closes the scheduler once the sequence finishes.
	DestroyWhenDone bool
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		ImmediateEpsilon:  time.Millisecond,
		CancelGracePeriod: 100 * time.Millisecond,
		ReleaseDelayTicks: 2,
	}
}

// Deps are the collaborators a scheduler works with. Env and Dispatcher
// default to an empty environment and the builtin registry; Bus may be nil,
// in which case end messages only reach this scheduler.
type Deps struct {
	ID         string
	Clock      clock.Clock
	Bus        *bus.Bus
	Dispatcher *command.Dispatcher
	Env        *command.Env
}

// State is the lifecycle state of a scheduler.
type State string

const (
	StatePlaying  State = "playing"
	StateFinished State = "finished"
	StateClosing  State = "closing"
	StateClosed   State = "closed"
)

// EventKind identifies a lifecycle event.
type EventKind string

const (
	EventActivated  EventKind = "activated"
	EventCompleted  EventKind = "completed"
	EventCancelled  EventKind = "cancelled"
	EventDiscarded  EventKind = "discarded"
	EventMessage    EventKind = "message"
	EventFinished   EventKind = "finished"
	EventClosed     EventKind = "closed"
	EventUnresolved EventKind = "unresolved"
)

// Event is a lifecycle notification from the scheduler.
type Event struct {
	// Kind is what happened.
	Kind EventKind

	// SchedulerID is the ID from Deps.
	SchedulerID string

	// Statement is the statement involved, rendered in sequence syntax.
	Statement string

	// Message is the end message fired, for EventMessage.
	Message string

	// Forced is set for required statements activated by Stop.
	Forced bool

	// At is the clock time of the event.
	At time.Duration
}

// Stats contains scheduler statistics.
type Stats struct {
	// State is the current lifecycle state.
	State State

	// Queued is the number of statements waiting for their trigger.
	Queued int

	// Active is the number of running async commands.
	Active int

	// Cancelling is the number of stopped commands awaiting release.
	Cancelling int

	// PendingMessages is the number of inline end-message timers.
	PendingMessages int

	// Activations is the total number of statements dispatched.
	Activations int64

	// Ticks is the number of Tick calls processed.
	Ticks int64
}

type queuedCommand struct {
	stmt    sequence.Statement
	due     time.Duration
	message string
}

type activeCommand struct {
	stmt    sequence.Statement
	cmd     command.Async
	started time.Duration
}

type cancellingCommand struct {
	cmd      command.Async
	deadline time.Duration
}

type messageTimer struct {
	due     time.Duration
	message string
}

// Scheduler owns the queued and active sets of one playing sequence. It is
// not safe for concurrent use: every method must be called from the
// goroutine that drives Tick.
type Scheduler struct {
	id         string
	config     Config
	clock      clock.Clock
	bus        *bus.Bus
	dispatcher *command.Dispatcher
	env        *command.Env
	logger     zerolog.Logger

	queued     []*queuedCommand
	active     []*activeCommand
	cancelling []cancellingCommand
	timers     []messageTimer

	state      State
	finished   bool
	closing    bool
	closed     bool
	closeTicks int
	lastTick   time.Duration

	onFinished  func()
	unsubscribe func()

	activations int64
	ticks       int64
	events      chan Event
}

// New creates a scheduler and subscribes it to the bus.
func New(config Config, deps Deps) (*Scheduler, error) {
	if deps.Clock == nil {
		return nil, ErrMissingClock
	}
	if config.ImmediateEpsilon <= 0 {
		config.ImmediateEpsilon = DefaultConfig().ImmediateEpsilon
	}
	if config.CancelGracePeriod <= 0 {
		config.CancelGracePeriod = DefaultConfig().CancelGracePeriod
	}
	if config.ReleaseDelayTicks <= 0 {
		config.ReleaseDelayTicks = DefaultConfig().ReleaseDelayTicks
	}
	if deps.Dispatcher == nil {
		deps.Dispatcher = command.NewDispatcher(nil)
	}
	if deps.Env == nil {
		deps.Env = command.NewEnv(nil, nil, nil)
	}
	if deps.Env.Bus == nil {
		deps.Env.Bus = deps.Bus
	}

	s := &Scheduler{
		id:         deps.ID,
		config:     config,
		clock:      deps.Clock,
		bus:        deps.Bus,
		dispatcher: deps.Dispatcher,
		env:        deps.Env,
		logger:     logging.Component("scheduler").With().Str("scheduler_id", deps.ID).Logger(),
		state:      StatePlaying,
		lastTick:   deps.Clock.Now(),
		events:     make(chan Event, 256),
	}
	if s.bus != nil {
		s.unsubscribe = s.bus.Subscribe(s)
	}
	return s, nil
}

// ID returns the scheduler ID.
func (s *Scheduler) ID() string { return s.id }

// OnFinished sets the callback invoked once when the sequence drains.
func (s *Scheduler) OnFinished(fn func()) { s.onFinished = fn }

// Events returns the channel of lifecycle events. Events are dropped when
// nobody drains it.
func (s *Scheduler) Events() <-chan Event { return s.events }

// Play informs the participants (if configured) and submits statements in
// source order.
func (s *Scheduler) Play(statements []sequence.Statement) error {
	if s.closing || s.closed {
		return ErrClosed
	}
	if s.config.InformParticipants {
		s.inform(MessageSequenceStart)
	}
	for _, stmt := range statements {
		s.Submit(stmt)
	}
	return nil
}

// Submit dispatches a statement inline when it has no message trigger, its
// delay is below the immediate threshold and the clock is running;
// otherwise the statement is queued.
func (s *Scheduler) Submit(stmt sequence.Statement) {
	if s.closing || s.closed {
		s.logger.Debug().Str("statement", stmt.String()).Msg("submit on closed scheduler ignored")
		return
	}
	if s.finished {
		s.finished = false
		s.state = StatePlaying
	}

	var delay time.Duration
	if stmt.Trigger.Kind == sequence.After {
		delay = stmt.Trigger.Delay
	}

	if stmt.Trigger.Kind != sequence.OnMessage && delay < s.config.ImmediateEpsilon && !s.clock.Paused() {
		s.activate(stmt, false)
		return
	}

	q := &queuedCommand{stmt: stmt}
	if stmt.Trigger.Kind == sequence.OnMessage {
		q.message = stmt.Trigger.Message
	} else {
		q.due = s.clock.Now() + delay
	}
	s.queued = append(s.queued, q)

	s.logger.Debug().
		Str("statement", stmt.String()).
		Dur("due", q.due).
		Str("wait_message", q.message).
		Msg("statement queued")
}

// Tick runs one scheduling frame: due statements are activated, running
// commands advanced and reaped, end-message timers fired and, when nothing
// is left, the sequence finishes.
func (s *Scheduler) Tick() {
	if s.closed {
		return
	}
	s.ticks++
	wasClosing := s.closing

	now := s.clock.Now()
	dt := now - s.lastTick
	if dt < 0 {
		dt = 0
	}
	s.lastTick = now

	running := make([]*activeCommand, len(s.active))
	copy(running, s.active)

	if !s.clock.Paused() {
		s.activateDue(now)
	}

	for _, a := range running {
		s.protect(a.stmt, "advance", func() { a.cmd.Advance(dt) })
	}
	s.reap(now)
	s.fireTimers(now, false)
	s.releaseCancelled(now, false)

	if !s.finished && len(s.queued) == 0 && len(s.active) == 0 {
		s.finish(now)
	}

	if wasClosing && s.closing && len(s.timers) == 0 {
		s.closeTicks--
		if s.closeTicks <= 0 {
			s.finalize()
		}
	}
}

// OnMessage activates every statement waiting for name, in registration
// order. It runs regardless of pause state.
func (s *Scheduler) OnMessage(name string) {
	if s.closing || s.closed {
		return
	}

	var matched []*queuedCommand
	remaining := make([]*queuedCommand, 0, len(s.queued))
	for _, q := range s.queued {
		if q.stmt.Trigger.Kind == sequence.OnMessage && q.message == name {
			matched = append(matched, q)
			continue
		}
		remaining = append(remaining, q)
	}
	if len(matched) == 0 {
		return
	}

	// Activation can deliver further messages back into this method, so
	// the matched entries leave the queue first.
	s.queued = remaining
	for _, q := range matched {
		s.activate(q.stmt, false)
	}
}

// Stop ends the sequence early: required queued statements run once,
// everything else queued is discarded, running commands are forced to
// complete and pending end messages are delivered.
func (s *Scheduler) Stop() {
	if s.closed {
		return
	}
	s.StopQueued()
	s.StopActive()
	s.fireTimers(s.clock.Now(), true)
}

// StopQueued activates required queued statements and discards the rest.
func (s *Scheduler) StopQueued() {
	pending := s.queued
	s.queued = nil

	now := s.clock.Now()
	for _, q := range pending {
		if q.stmt.Required {
			s.activate(q.stmt, true)
			continue
		}
		s.emit(Event{Kind: EventDiscarded, Statement: q.stmt.String(), At: now})
	}
}

// StopActive forces every running command to its final state, fires its end
// message and releases it after the grace period.
func (s *Scheduler) StopActive() {
	running := s.active
	s.active = nil

	now := s.clock.Now()
	for _, a := range running {
		s.protect(a.stmt, "stop", a.cmd.Stop)
		s.cancelling = append(s.cancelling, cancellingCommand{
			cmd:      a.cmd,
			deadline: now + s.config.CancelGracePeriod,
		})
		s.emit(Event{Kind: EventCancelled, Statement: a.stmt.String(), At: now})
		if a.stmt.EndMessage != "" {
			s.sendMessage(a.stmt.EndMessage)
		}
	}
}

// Close stops the sequence and, after ReleaseDelayTicks further ticks,
// releases the viewport if this sequence took it and detaches from the bus.
// Pending end messages are delivered at once.
func (s *Scheduler) Close() {
	if s.closed {
		return
	}
	s.Stop()
	s.beginClose()
}

// beginClose starts the release countdown. Pending end-message timers keep
// firing at their due times and hold the countdown until they drain.
func (s *Scheduler) beginClose() {
	if s.closing || s.closed {
		return
	}
	s.closing = true
	s.closeTicks = s.config.ReleaseDelayTicks
	s.logger.Debug().Int("release_delay_ticks", s.closeTicks).Int("pending_messages", len(s.timers)).Msg("scheduler closing")
}

// Closed reports whether Close has completed.
func (s *Scheduler) Closed() bool { return s.closed }

// Stats returns current scheduler statistics.
func (s *Scheduler) Stats() Stats {
	return Stats{
		State:           s.currentState(),
		Queued:          len(s.queued),
		Active:          len(s.active),
		Cancelling:      len(s.cancelling),
		PendingMessages: len(s.timers),
		Activations:     s.activations,
		Ticks:           s.ticks,
	}
}

// Snapshot describes the queued and active sets.
type Snapshot struct {
	ID     string
	State  State
	Now    time.Duration
	Queued []QueuedInfo
	Active []ActiveInfo
}

// QueuedInfo describes a waiting statement.
type QueuedInfo struct {
	Statement string
	Required  bool
	Due       time.Duration // zero for message triggers
	Message   string
}

// ActiveInfo describes a running async command.
type ActiveInfo struct {
	Statement string
	Started   time.Duration
}

// Snapshot returns a copy of the scheduler's sets for display.
func (s *Scheduler) Snapshot() Snapshot {
	snap := Snapshot{ID: s.id, State: s.currentState(), Now: s.clock.Now()}
	for _, q := range s.queued {
		snap.Queued = append(snap.Queued, QueuedInfo{
			Statement: q.stmt.String(),
			Required:  q.stmt.Required,
			Due:       q.due,
			Message:   q.message,
		})
	}
	for _, a := range s.active {
		snap.Active = append(snap.Active, ActiveInfo{Statement: a.stmt.String(), Started: a.started})
	}
	return snap
}

func (s *Scheduler) currentState() State {
	switch {
	case s.closed:
		return StateClosed
	case s.closing:
		return StateClosing
	default:
		return s.state
	}
}

// activate dispatches a statement and tracks whatever it started.
func (s *Scheduler) activate(stmt sequence.Statement, forced bool) {
	s.activations++
	now := s.clock.Now()

	res := s.dispatcher.Dispatch(s.env, stmt.Command, stmt.Args, stmt.EndMessage)
	if !res.Found {
		s.emit(Event{Kind: EventUnresolved, Statement: stmt.String(), At: now})
	}
	s.emit(Event{Kind: EventActivated, Statement: stmt.String(), Forced: forced, At: now})

	switch {
	case res.Active != nil:
		s.active = append(s.active, &activeCommand{stmt: stmt, cmd: res.Active, started: now})
	case stmt.EndMessage == "":
		// nothing to announce
	case res.Sync && res.Duration > 0:
		s.timers = append(s.timers, messageTimer{due: now + res.Duration, message: stmt.EndMessage})
	default:
		s.sendMessage(stmt.EndMessage)
	}
}

// activateDue activates After entries whose time has come, in insertion
// order. Message-gated entries are left alone.
func (s *Scheduler) activateDue(now time.Duration) {
	var due []*queuedCommand
	remaining := make([]*queuedCommand, 0, len(s.queued))
	for _, q := range s.queued {
		if q.stmt.Trigger.Kind != sequence.OnMessage && q.due <= now {
			due = append(due, q)
			continue
		}
		remaining = append(remaining, q)
	}
	if len(due) == 0 {
		return
	}
	s.queued = remaining
	for _, q := range due {
		s.activate(q.stmt, false)
	}
}

// reap removes finished commands, fires their end messages and releases them.
func (s *Scheduler) reap(now time.Duration) {
	var done []*activeCommand
	remaining := make([]*activeCommand, 0, len(s.active))
	for _, a := range s.active {
		finished := true
		s.protect(a.stmt, "poll", func() { finished = a.cmd.Finished() })
		if finished {
			done = append(done, a)
			continue
		}
		remaining = append(remaining, a)
	}
	if len(done) == 0 {
		return
	}

	s.active = remaining
	for _, a := range done {
		s.emit(Event{Kind: EventCompleted, Statement: a.stmt.String(), At: now})
		if a.stmt.EndMessage != "" {
			s.sendMessage(a.stmt.EndMessage)
		}
		s.protect(a.stmt, "release", a.cmd.Release)
	}
}

func (s *Scheduler) fireTimers(now time.Duration, all bool) {
	var due []messageTimer
	remaining := s.timers[:0:0]
	for _, t := range s.timers {
		if all || t.due <= now {
			due = append(due, t)
			continue
		}
		remaining = append(remaining, t)
	}
	s.timers = remaining
	for _, t := range due {
		s.sendMessage(t.message)
	}
}

func (s *Scheduler) releaseCancelled(now time.Duration, all bool) {
	var expired []cancellingCommand
	remaining := s.cancelling[:0:0]
	for _, c := range s.cancelling {
		if all || c.deadline <= now {
			expired = append(expired, c)
			continue
		}
		remaining = append(remaining, c)
	}
	s.cancelling = remaining
	for _, c := range expired {
		s.protect(sequence.Statement{}, "release", c.cmd.Release)
	}
}

func (s *Scheduler) finish(now time.Duration) {
	s.finished = true
	s.state = StateFinished
	s.logger.Debug().Int64("activations", s.activations).Msg("sequence finished")
	s.emit(Event{Kind: EventFinished, At: now})

	if fn := s.onFinished; fn != nil {
		s.onFinished = nil
		fn()
	}
	if s.config.InformParticipants {
		s.inform(MessageSequenceEnd)
	}
	if s.config.DestroyWhenDone {
		s.beginClose()
	}
}

func (s *Scheduler) finalize() {
	s.releaseCancelled(s.clock.Now(), true)
	if s.env != nil {
		s.env.ReleaseCamera()
	}
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.closing = false
	s.closed = true
	s.emit(Event{Kind: EventClosed, At: s.clock.Now()})
	s.logger.Debug().Msg("scheduler closed")
}

// sendMessage delivers an end message on the bus, or straight to this
// scheduler when there is no bus.
func (s *Scheduler) sendMessage(name string) {
	s.emit(Event{Kind: EventMessage, Message: name, At: s.clock.Now()})
	if s.bus != nil {
		s.bus.Send(name)
		return
	}
	s.OnMessage(name)
}

func (s *Scheduler) inform(method string) {
	speaker, listener := s.env.Speaker, s.env.Listener
	if speaker != nil {
		arg := ""
		if listener != nil {
			arg = listener.Name
		}
		speaker.Receive(method, arg)
	}
	if listener != nil && listener != speaker {
		arg := ""
		if speaker != nil {
			arg = speaker.Name
		}
		listener.Receive(method, arg)
	}
}

// protect runs fn and turns a panic into a log entry, so a faulty command
// never takes the tick loop down.
func (s *Scheduler) protect(stmt sequence.Statement, op string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("statement", stmt.String()).
				Str("op", op).
				Str("panic", fmt.Sprint(r)).
				Msg("command panicked")
		}
	}()
	fn()
}

func (s *Scheduler) emit(e Event) {
	e.SchedulerID = s.id
	select {
	case s.events <- e:
	default:
		// Channel full, drop event
	}
}
