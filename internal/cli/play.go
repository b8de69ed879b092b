package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/sequencer/internal/scheduler"
	"github.com/opencode-ai/sequencer/internal/sequence"
	"github.com/opencode-ai/sequencer/internal/sequencer"
	"github.com/opencode-ai/sequencer/internal/tui"
)

var (
	playCutscene    string
	playSpeaker     string
	playListener    string
	playEntryTag    string
	playVars        []string
	playMessages    []string
	playWatch       bool
	playInform      bool
	playMaxDuration time.Duration
	playFile        string
)

func init() {
	rootCmd.AddCommand(playCmd)

	flags := playCmd.Flags()
	flags.StringVarP(&playCutscene, "cutscene", "c", "", "play a library cutscene instead of a sequence argument")
	flags.StringVar(&playSpeaker, "speaker", demoSpeaker, "speaker node in the demo scene")
	flags.StringVar(&playListener, "listener", demoListener, "listener node in the demo scene")
	flags.StringVar(&playEntryTag, "entrytag", "", "value substituted for the entrytag token")
	flags.StringArrayVar(&playVars, "var", nil, "cutscene variable key=value (repeatable)")
	flags.StringArrayVar(&playMessages, "message", nil, "send a message at a time, name@seconds (repeatable)")
	flags.BoolVarP(&playWatch, "watch", "w", false, "open the playback monitor")
	flags.BoolVar(&playInform, "inform", false, "send OnSequenceStart/OnSequenceEnd to the participants")
	flags.DurationVar(&playMaxDuration, "max-duration", time.Minute, "stop the sequence after this long (0 = no limit)")
	flags.StringVarP(&playFile, "file", "f", "", "read the sequence from a file (- for stdin)")
}

var playCmd = &cobra.Command{
	Use:   "play [sequence]",
	Short: "Play a sequence on the demo scene",
	Long: `Play a sequence or library cutscene on a small demo scene (Alice, Bob,
a door and the main camera) and print every scheduler event as it happens.

The sequence is stopped when --max-duration elapses or on interrupt; required
statements still run in that case.`,
	Example: `  sequencer play 'Animation(Wave); Delay(1)->Message(Waved); Camera(Wide)@Message(Waved)'
  sequencer play --cutscene greeting --var wait=2
  sequencer play --message Go@1.5 'SendMessage(Wave)@Message(Go)'
  sequencer play --watch --cutscene door-knock`,
	RunE: func(cmd *cobra.Command, args []string) error {
		src, name, err := resolvePlaySource(args, cmd.InOrStdin())
		if err != nil {
			return err
		}
		schedule, err := parseMessageSchedule(playMessages)
		if err != nil {
			return err
		}
		if playWatch && IsNonInteractive() {
			return &PreflightError{
				Message:  "the playback monitor requires an interactive terminal",
				Hint:     "Run without --non-interactive and with a TTY, or drop --watch",
				NextStep: "sequencer play --help",
			}
		}

		st, err := newStage(GetConfig())
		if err != nil {
			return err
		}
		defer st.Close()

		return runPlayback(cmd.Context(), st, playRequest{
			Source:   src,
			Name:     name,
			Speaker:  playSpeaker,
			Listener: playListener,
			Messages: schedule,
			Watch:    playWatch,
			MaxRun:   playMaxDuration,
		}, cmd.OutOrStdout())
	},
}

type playRequest struct {
	Source   string
	Name     string
	Speaker  string
	Listener string
	Messages []scheduledMessage
	Watch    bool
	MaxRun   time.Duration
}

// PlaySummary is the payload written by `sequencer play --json`.
type PlaySummary struct {
	ID          string          `json:"id"`
	Name        string          `json:"name,omitempty"`
	Sequence    string          `json:"sequence"`
	Statements  int             `json:"statements"`
	Activations int64           `json:"activations"`
	Finished    bool            `json:"finished"`
	Stopped     bool            `json:"stopped"`
	State       scheduler.State `json:"state"`
	Elapsed     float64         `json:"elapsed_seconds"`
	Events      []PlayEvent     `json:"events,omitempty"`
}

// PlayEvent is one scheduler event in CLI output.
type PlayEvent struct {
	Handle    string              `json:"handle"`
	Kind      scheduler.EventKind `json:"kind"`
	Statement string              `json:"statement,omitempty"`
	Message   string              `json:"message,omitempty"`
	Forced    bool                `json:"forced,omitempty"`
	At        float64             `json:"at_seconds"`
}

func toPlayEvent(r sequencer.Record) PlayEvent {
	return PlayEvent{
		Handle:    r.HandleID,
		Kind:      r.Event.Kind,
		Statement: r.Event.Statement,
		Message:   r.Event.Message,
		Forced:    r.Event.Forced,
		At:        r.Event.At.Seconds(),
	}
}

func resolvePlaySource(args []string, stdin io.Reader) (src, name string, err error) {
	if playCutscene == "" {
		src, err = readSequenceSource(args, playFile, stdin)
		return src, "", err
	}
	if len(args) > 0 || playFile != "" {
		return "", "", fmt.Errorf("--cutscene cannot be combined with a sequence argument or --file")
	}

	c, err := sequence.FindCutscene(projectDir(), playCutscene)
	if err != nil {
		return "", "", &PreflightError{
			Message:  err.Error(),
			NextStep: "sequencer cutscenes list",
		}
	}
	vars, err := parseCutsceneVars(playVars)
	if err != nil {
		return "", "", err
	}
	src, err = sequence.RenderCutscene(c, vars)
	if err != nil {
		return "", "", err
	}
	return src, c.Name, nil
}

func runPlayback(parent context.Context, st *stage, req playRequest, out io.Writer) error {
	ctx, stopSignals := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	d := st.director
	printer := newEventPrinter(out)
	var feed *tui.Feed
	if req.Watch {
		feed = tui.NewFeed(0)
		feed.Attach(d)
	} else {
		d.Observe(printer.record)
	}

	finished := make(chan struct{})
	started := make(chan error, 1)
	var handle *sequencer.Handle
	d.Do(func() {
		speaker := st.scene.Find(req.Speaker)
		listener := st.scene.Find(req.Listener)
		h, err := d.PlaySequence(req.Source, speaker, listener, sequencer.PlayOptions{
			Name:               req.Name,
			EntryTag:           playEntryTag,
			InformParticipants: playInform,
			DestroyWhenDone:    true,
			OnFinished:         func() { close(finished) },
		})
		handle = h
		started <- err
	})

	runDone := st.run(runCtx)
	if err := <-started; err != nil {
		cancelRun()
		<-runDone
		return err
	}

	for _, m := range req.Messages {
		m := m
		timer := time.AfterFunc(m.At, func() { d.Post(m.Name) })
		defer timer.Stop()
	}

	var limit <-chan time.Time
	if req.MaxRun > 0 {
		timer := time.NewTimer(req.MaxRun)
		defer timer.Stop()
		limit = timer.C
	}

	if req.Watch {
		monitorCtx, cancelMonitor := context.WithCancel(ctx)
		go func() {
			select {
			case <-limit:
				d.Do(func() { d.StopSequence(handle) })
			case <-monitorCtx.Done():
			}
		}()
		err := tui.Run(monitorCtx, d, feed, tui.Options{Theme: GetConfig().TUI.Theme})
		cancelMonitor()
		if err != nil {
			cancelRun()
			<-runDone
			return err
		}
	} else {
		select {
		case <-finished:
		case <-limit:
			printer.note("max duration reached, stopping")
		case <-ctx.Done():
			printer.note("interrupted, stopping")
		}
	}

	cancelRun()
	if err := <-runDone; err != nil {
		return err
	}
	return printer.summary(handle, req.Source)
}

// eventPrinter writes Director records as they arrive. It runs on the loop
// goroutine; summary is called after the loop has stopped.
type eventPrinter struct {
	mu     sync.Mutex
	out    io.Writer
	events []PlayEvent
}

func newEventPrinter(out io.Writer) *eventPrinter {
	return &eventPrinter{out: out}
}

func (p *eventPrinter) record(r sequencer.Record) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ev := toPlayEvent(r)
	p.events = append(p.events, ev)
	switch {
	case IsJSONLOutput():
		if data, err := json.Marshal(ev); err == nil {
			fmt.Fprintln(p.out, string(data))
		}
	case IsJSONOutput():
	default:
		detail := ev.Statement
		if ev.Kind == scheduler.EventMessage {
			detail = ev.Message
		}
		if ev.Forced {
			detail += " (required)"
		}
		fmt.Fprintf(p.out, "%7.2fs  %s %s\n", ev.At, formatEventKind(ev.Kind), detail)
	}
}

func (p *eventPrinter) note(msg string) {
	if IsJSONOutput() || IsJSONLOutput() {
		return
	}
	fmt.Fprintln(os.Stderr, msg)
}

func (p *eventPrinter) summary(h *sequencer.Handle, src string) error {
	if h == nil {
		return nil
	}
	stats := h.Stats()
	summary := PlaySummary{
		ID:          h.ID,
		Name:        h.Name,
		Sequence:    src,
		Statements:  h.Statements,
		Activations: stats.Activations,
		Finished:    h.Finished(),
		Stopped:     h.Stopped(),
		Elapsed:     h.Elapsed().Seconds(),
		State:       stats.State,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case IsJSONLOutput():
		return nil
	case IsJSONOutput():
		summary.Events = p.events
		return WriteOutput(p.out, summary)
	}

	result := "finished"
	if summary.Stopped {
		result = "stopped"
	}
	fmt.Fprintf(p.out, "\nSequence %s %s after %.2fs: %d statements, %d activations, %d events (%s)\n",
		shortID(summary.ID), result, summary.Elapsed, summary.Statements, summary.Activations,
		len(p.events), formatPlaybackState(summary.State))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
