package sequencer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/sequencer/internal/bus"
	"github.com/opencode-ai/sequencer/internal/clock"
	"github.com/opencode-ai/sequencer/internal/db"
	"github.com/opencode-ai/sequencer/internal/models"
	"github.com/opencode-ai/sequencer/internal/scene"
	"github.com/opencode-ai/sequencer/internal/scheduler"
	"github.com/opencode-ai/sequencer/internal/viewport"
)

type fixture struct {
	clk      *clock.Manual
	bus      *bus.Bus
	director *Director
	alice    *scene.Node
	bob      *scene.Node
	main     *scene.Node
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()

	f := &fixture{clk: clock.NewManual(), bus: bus.New()}
	s := scene.New()
	f.alice = s.Add(scene.NewNode("Alice"))
	f.bob = s.Add(scene.NewNode("Bob"))
	f.bob.Transform.Position = scene.Vector3{Z: 4}
	f.main = s.Add(scene.NewNode("Main Camera").WithCamera(60))

	opts.Clock = f.clk
	opts.Bus = f.bus
	opts.Scene = s
	opts.Viewport = viewport.New(f.main, scene.NewNode("Sequencer Camera"))
	f.director = New(DefaultConfig(), opts)
	return f
}

func (f *fixture) tickAt(t time.Duration) {
	f.clk.Set(t)
	f.director.Tick()
}

func TestPlaySequenceNone(t *testing.T) {
	f := newFixture(t, Options{})
	finished := 0

	h, err := f.director.PlaySequence("None()", f.alice, f.bob, PlayOptions{
		OnFinished: func() { finished++ },
	})
	require.NoError(t, err)
	require.NotEmpty(t, h.ID)
	require.Equal(t, 1, h.Statements)
	require.Zero(t, finished)

	f.director.Tick()
	require.Equal(t, 1, finished)
	require.True(t, h.Finished())

	f.director.Tick()
	require.Equal(t, 1, finished)
	require.Len(t, f.director.Handles(), 1)
}

func TestPlaySequenceSkipsInvalidStatements(t *testing.T) {
	f := newFixture(t, Options{})

	h, err := f.director.PlaySequence("None(); Camera(Wide)@Message(); None()", f.alice, f.bob, PlayOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, h.Statements)
}

func TestStopSequenceRestoresCamera(t *testing.T) {
	f := newFixture(t, Options{})
	vp := f.director.Viewport()
	before := viewport.StateOf(f.main)

	h, err := f.director.PlaySequence(
		"Camera(Closeup, listener)@2; required Camera(default, speaker)@5",
		f.alice, f.bob, PlayOptions{},
	)
	require.NoError(t, err)

	f.tickAt(2 * time.Second)
	closeup, _ := vp.Shot("Closeup", f.bob)
	require.Equal(t, closeup, viewport.StateOf(vp.Camera()))
	require.False(t, f.main.Active)

	f.tickAt(3 * time.Second)
	f.director.StopSequence(h)
	require.True(t, h.Stopped())

	speaker, _ := vp.Shot("Closeup", f.alice)
	require.Equal(t, speaker, viewport.StateOf(vp.Camera()))
	require.Zero(t, h.Stats().Queued)

	f.director.Tick()
	require.True(t, vp.Holding())
	f.director.Tick()
	require.False(t, vp.Holding())
	require.True(t, f.main.Active)
	require.Equal(t, before, viewport.StateOf(vp.Camera()))
	require.True(t, h.Closed())
	require.Empty(t, f.director.Handles())

	require.NotPanics(t, func() { f.director.StopSequence(h) })
}

func TestDestroyWhenDonePrunesHandle(t *testing.T) {
	f := newFixture(t, Options{})

	h, err := f.director.PlaySequence("Camera(Wide, speaker)", f.alice, f.bob, PlayOptions{DestroyWhenDone: true})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		f.director.Tick()
	}
	require.True(t, h.Closed())
	require.Empty(t, f.director.Handles())
	require.False(t, f.director.Viewport().Holding())
	require.Zero(t, f.bus.Len())
}

func TestSequenceReleasesOnlyCameraItTook(t *testing.T) {
	tests := []struct {
		name  string
		other string
	}{
		{"without camera", "SetActive(Bob, true)"},
		{"camera refused", "Camera(Wide, listener)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Options{})
			vp := f.director.Viewport()

			holder, err := f.director.PlaySequence("Camera(Closeup, speaker); Delay(10)", f.alice, f.bob, PlayOptions{})
			require.NoError(t, err)
			closeup, _ := vp.Shot("Closeup", f.alice)
			require.Equal(t, closeup, viewport.StateOf(vp.Camera()))

			other, err := f.director.PlaySequence(tt.other, f.alice, f.bob, PlayOptions{DestroyWhenDone: true})
			require.NoError(t, err)

			for i := 0; i < 4; i++ {
				f.director.Tick()
			}
			require.True(t, other.Closed())
			require.False(t, holder.Finished())
			require.True(t, vp.Holding())
			require.False(t, f.main.Active)
			require.Equal(t, closeup, viewport.StateOf(vp.Camera()))

			f.director.StopSequence(holder)
			f.director.Tick()
			f.director.Tick()
			require.False(t, vp.Holding())
			require.True(t, f.main.Active)
		})
	}
}

func TestEntryTag(t *testing.T) {
	f := newFixture(t, Options{})
	var got []string
	f.bob.On("Greet", func(arg string) { got = append(got, arg) })

	_, err := f.director.PlaySequence("SendMessage(Greet, entrytag, listener)", f.alice, f.bob, PlayOptions{EntryTag: "line_7"})
	require.NoError(t, err)
	require.Equal(t, []string{"line_7"}, got)
}

func TestPostDeliversOnTick(t *testing.T) {
	f := newFixture(t, Options{})
	var got []string
	f.alice.On("Wave", func(string) { got = append(got, "wave") })

	_, err := f.director.PlaySequence("SendMessage(Wave)@Message(Go)", f.alice, f.bob, PlayOptions{})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		require.True(t, f.director.Post("Go"))
	}()
	<-done
	require.Empty(t, got)

	f.director.Tick()
	require.Equal(t, []string{"wave"}, got)
}

func TestMessageReachesEverySequence(t *testing.T) {
	f := newFixture(t, Options{})
	count := 0
	f.alice.On("Ping", func(string) { count++ })

	for i := 0; i < 3; i++ {
		_, err := f.director.PlaySequence("SendMessage(Ping)@Message(Go)", f.alice, f.bob, PlayOptions{})
		require.NoError(t, err)
	}
	f.director.Message("Go")
	require.Equal(t, 3, count)
}

func TestGlobalMessageUsesDefaultBus(t *testing.T) {
	s := scene.New()
	alice := s.Add(scene.NewNode("Alice"))
	d := New(DefaultConfig(), Options{Clock: clock.NewManual(), Scene: s})
	got := 0
	alice.On("Ping", func(string) { got++ })

	h, err := d.PlaySequence("SendMessage(Ping)@Message(GlobalMessageTest)", alice, nil, PlayOptions{})
	require.NoError(t, err)
	t.Cleanup(func() {
		d.StopSequence(h)
		d.Shutdown()
	})

	Message("GlobalMessageTest")
	require.Equal(t, 1, got)
}

func TestInformParticipants(t *testing.T) {
	f := newFixture(t, Options{})
	var got []string
	f.alice.On(scheduler.MessageSequenceStart, func(arg string) { got = append(got, "start:"+arg) })
	f.alice.On(scheduler.MessageSequenceEnd, func(arg string) { got = append(got, "end:"+arg) })

	_, err := f.director.PlaySequence("None()", f.alice, f.bob, PlayOptions{InformParticipants: true})
	require.NoError(t, err)
	f.director.Tick()
	require.Equal(t, []string{"start:Bob", "end:Bob"}, got)
}

func TestPauseHoldsDelays(t *testing.T) {
	f := newFixture(t, Options{})
	count := 0
	f.alice.On("Ping", func(string) { count++ })

	_, err := f.director.PlaySequence("SendMessage(Ping)@1", f.alice, f.bob, PlayOptions{})
	require.NoError(t, err)

	require.True(t, f.director.Pause())
	f.clk.Set(2 * time.Second)
	f.director.Tick()
	require.Zero(t, count)

	require.True(t, f.director.Resume())
	f.director.Tick()
	require.Equal(t, 1, count)
}

func TestEventsAreRecorded(t *testing.T) {
	ctx := context.Background()
	database, err := db.OpenInMemory()
	require.NoError(t, err)
	defer database.Close()
	_, err = database.MigrateUp(ctx)
	require.NoError(t, err)

	eventRepo := db.NewEventRepository(database)
	runRepo := db.NewRunRepository(database)
	f := newFixture(t, Options{Events: eventRepo, Runs: runRepo})

	var observed []scheduler.EventKind
	f.director.Observe(func(r Record) { observed = append(observed, r.Event.Kind) })

	h, err := f.director.PlaySequence("Delay(1)->Message(Done)", f.alice, f.bob, PlayOptions{Name: "test"})
	require.NoError(t, err)
	f.tickAt(time.Second)
	f.tickAt(2 * time.Second)
	require.True(t, h.Finished())

	require.Equal(t, []scheduler.EventKind{
		scheduler.EventActivated,
		scheduler.EventCompleted,
		scheduler.EventMessage,
		scheduler.EventFinished,
	}, observed)

	recorded, err := eventRepo.ListByEntity(ctx, models.EntityTypeSequence, h.ID, 0)
	require.NoError(t, err)
	var types []models.EventType
	for _, e := range recorded {
		types = append(types, e.Type)
	}
	require.Equal(t, []models.EventType{
		models.EventTypeSequenceStarted,
		models.EventTypeCommandActivated,
		models.EventTypeCommandCompleted,
		models.EventTypeMessageSent,
		models.EventTypeSequenceFinished,
	}, types)

	run, err := runRepo.Get(ctx, h.ID)
	require.NoError(t, err)
	require.Equal(t, models.RunStatusFinished, run.Status)
	require.Equal(t, "test", run.Cutscene)
	require.Equal(t, "Alice", run.Speaker)
	require.EqualValues(t, 1, run.Activations)
}

func TestStoppedRunIsRecorded(t *testing.T) {
	ctx := context.Background()
	database, err := db.OpenInMemory()
	require.NoError(t, err)
	defer database.Close()
	_, err = database.MigrateUp(ctx)
	require.NoError(t, err)

	runRepo := db.NewRunRepository(database)
	f := newFixture(t, Options{Runs: runRepo, Events: db.NewEventRepository(database)})

	h, err := f.director.PlaySequence("Delay(10)", f.alice, f.bob, PlayOptions{})
	require.NoError(t, err)
	f.director.StopSequence(h)

	run, err := runRepo.Get(ctx, h.ID)
	require.NoError(t, err)
	require.Equal(t, models.RunStatusStopped, run.Status)
	require.NotNil(t, run.FinishedAt)
}

func TestRunLoop(t *testing.T) {
	s := scene.New()
	alice := s.Add(scene.NewNode("Alice"))
	cfg := DefaultConfig()
	cfg.TickInterval = time.Millisecond
	d := New(cfg, Options{Bus: bus.New(), Scene: s})

	finished := make(chan struct{})
	_, err := d.PlaySequence("None()@Message(Go)", alice, nil, PlayOptions{
		OnFinished: func() { close(finished) },
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- d.Run(ctx) }()

	d.Post("Go")
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("sequence did not finish")
	}

	cancel()
	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run loop did not stop")
	}
}

func TestHandleElapsed(t *testing.T) {
	f := newFixture(t, Options{})
	f.clk.Set(time.Second)

	h, err := f.director.PlaySequence("Delay(2)", f.alice, nil, PlayOptions{})
	require.NoError(t, err)

	f.tickAt(1500 * time.Millisecond)
	require.Equal(t, 500*time.Millisecond, h.Elapsed())

	f.tickAt(3 * time.Second)
	require.True(t, h.Finished())
	f.clk.Set(10 * time.Second)
	require.Equal(t, 2*time.Second, h.Elapsed())
}
