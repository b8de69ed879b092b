package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/opencode-ai/sequencer/internal/assets"
	"github.com/opencode-ai/sequencer/internal/bus"
	"github.com/opencode-ai/sequencer/internal/clock"
	"github.com/opencode-ai/sequencer/internal/command"
	"github.com/opencode-ai/sequencer/internal/config"
	"github.com/opencode-ai/sequencer/internal/db"
	"github.com/opencode-ai/sequencer/internal/events"
	"github.com/opencode-ai/sequencer/internal/logging"
	"github.com/opencode-ai/sequencer/internal/scene"
	"github.com/opencode-ai/sequencer/internal/sequencer"
	"github.com/opencode-ai/sequencer/internal/viewport"
)

// Demo scene node names.
const (
	demoSpeaker  = "Alice"
	demoListener = "Bob"
	demoCamera   = "Main Camera"
)

// stage is a Director playing on the demo scene, with the event log
// attached when recording is enabled.
type stage struct {
	director *sequencer.Director
	scene    *scene.Scene
	database *db.DB
	events   events.Repository
}

func newStage(cfg *config.Config) (*stage, error) {
	s := &stage{scene: demoScene()}

	opts := sequencer.Options{
		Clock:     clock.NewGame(),
		Bus:       bus.New(),
		Scene:     s.scene,
		Viewport:  viewport.New(s.scene.Find(demoCamera), scene.NewNode("Sequencer Camera").WithCamera(60)),
		Presenter: command.LogPresenter{Logger: logging.Component("presenter")},
	}

	if path := strings.TrimSpace(cfg.Cutscenes.AssetsFile); path != "" {
		catalog, err := assets.LoadCatalog(path)
		if err != nil {
			return nil, err
		}
		opts.Assets = catalog
	}

	if cfg.Database.Enabled {
		database, err := openDatabase()
		if err != nil {
			return nil, err
		}
		s.database = database
		s.events = db.NewEventRepository(database)
		opts.Events = s.events
		opts.Runs = db.NewRunRepository(database)
	}

	s.director = sequencer.New(directorConfig(cfg), opts)
	return s, nil
}

func (s *stage) Close() {
	if s.database != nil {
		s.database.Close()
	}
}

// run drives the Director loop until ctx is done and reports its result.
func (s *stage) run(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- s.director.Run(ctx)
	}()
	return done
}

func directorConfig(cfg *config.Config) sequencer.Config {
	out := sequencer.DefaultConfig()
	out.TickInterval = cfg.Scheduler.TickInterval
	out.Scheduler.ImmediateEpsilon = cfg.Scheduler.ImmediateEpsilon
	out.Scheduler.CancelGracePeriod = cfg.Scheduler.CancelGracePeriod
	out.Scheduler.ReleaseDelayTicks = cfg.Scheduler.ReleaseDelayTicks
	return out
}

// demoScene is a two-character room: Alice and Bob facing each other, a
// door and the main camera.
func demoScene() *scene.Scene {
	s := scene.New()

	alice := scene.NewNode(demoSpeaker).
		WithAnimator(scene.NewAnimator(map[string]time.Duration{
			"Idle": time.Second,
			"Wave": 1500 * time.Millisecond,
			"Talk": 2 * time.Second,
			"Nod":  800 * time.Millisecond,
		})).
		WithAudio()
	alice.Transform.Position = scene.Vector3{X: -1}

	bob := scene.NewNode(demoListener).
		WithAnimator(scene.NewAnimator(map[string]time.Duration{
			"Idle":  time.Second,
			"Wave":  1200 * time.Millisecond,
			"Shrug": time.Second,
		})).
		WithAudio()
	bob.Transform.Position = scene.Vector3{X: 1, Z: 4}

	door := scene.NewNode("Door").WithAudio()
	door.Transform.Position = scene.Vector3{Z: 8}

	camera := scene.NewNode(demoCamera).WithCamera(60)
	camera.Transform.Position = scene.Vector3{Y: 1.6, Z: -6}

	s.Add(alice, bob, door, camera)
	return s
}

func parseMessageSchedule(values []string) ([]scheduledMessage, error) {
	out := make([]scheduledMessage, 0, len(values))
	for _, value := range values {
		name, at, ok := strings.Cut(strings.TrimSpace(value), "@")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("invalid --message %q (expected name@seconds)", value)
		}
		msg := scheduledMessage{Name: name}
		if ok {
			d, err := parseSeconds(at)
			if err != nil {
				return nil, fmt.Errorf("invalid --message %q: %w", value, err)
			}
			msg.At = d
		}
		out = append(out, msg)
	}
	return out, nil
}

type scheduledMessage struct {
	Name string
	At   time.Duration
}

func parseSeconds(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(value, 64)
	if err != nil || secs < 0 {
		return 0, fmt.Errorf("invalid seconds %q", value)
	}
	return clock.Seconds(secs), nil
}
