package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/sequencer/internal/config"
)

func TestParseMessageSchedule(t *testing.T) {
	got, err := parseMessageSchedule([]string{"Go@1.5", " DoorOpen @ 250ms", "Now"})
	require.NoError(t, err)
	require.Equal(t, []scheduledMessage{
		{Name: "Go", At: 1500 * time.Millisecond},
		{Name: "DoorOpen", At: 250 * time.Millisecond},
		{Name: "Now"},
	}, got)

	for _, bad := range []string{"@1", "Go@soon", "Go@-1"} {
		_, err := parseMessageSchedule([]string{bad})
		require.Error(t, err, bad)
	}
}

func TestDemoScene(t *testing.T) {
	s := demoScene()
	for _, name := range []string{demoSpeaker, demoListener, "Door", demoCamera} {
		require.NotNil(t, s.Find(name), name)
	}
	require.NotNil(t, s.Find(demoCamera).Camera)
	require.NotNil(t, s.Find(demoSpeaker).Animator)
}

func TestDirectorConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Scheduler.TickInterval = 5 * time.Millisecond
	cfg.Scheduler.ReleaseDelayTicks = 3

	got := directorConfig(cfg)
	require.Equal(t, 5*time.Millisecond, got.TickInterval)
	require.Equal(t, 3, got.Scheduler.ReleaseDelayTicks)
	require.Equal(t, cfg.Scheduler.CancelGracePeriod, got.Scheduler.CancelGracePeriod)
}

func newTestStage(t *testing.T, record bool) *stage {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Scheduler.TickInterval = 2 * time.Millisecond
	cfg.Database.Enabled = record
	cfg.Database.Path = filepath.Join(t.TempDir(), "sequencer.db")

	orig := appConfig
	appConfig = cfg
	t.Cleanup(func() { appConfig = orig })

	st, err := newStage(cfg)
	require.NoError(t, err)
	t.Cleanup(st.Close)
	return st
}

func TestRunPlaybackFinishes(t *testing.T) {
	st := newTestStage(t, true)
	var out bytes.Buffer

	err := runPlayback(context.Background(), st, playRequest{
		Source:   "SendMessage(Wave)@Message(Go); Delay(0.05)->Message(Go)",
		Speaker:  demoSpeaker,
		Listener: demoListener,
		MaxRun:   5 * time.Second,
	}, &out)
	require.NoError(t, err)

	text := out.String()
	require.Contains(t, text, "Delay(0.05)->Message(Go)")
	require.Contains(t, text, "SendMessage(Wave)@Message(Go)")
	require.Contains(t, text, "finished after")
	require.Empty(t, st.director.Handles())
}

func TestRunPlaybackStopsAtMaxDuration(t *testing.T) {
	st := newTestStage(t, false)
	var out bytes.Buffer

	err := runPlayback(context.Background(), st, playRequest{
		Source: "Delay(60); required SendMessage(Bye)@Message(Never)",
		MaxRun: 30 * time.Millisecond,
	}, &out)
	require.NoError(t, err)
	require.Contains(t, out.String(), "stopped after")
	require.Contains(t, out.String(), "(required)")
}

func TestRunPlaybackScheduledMessage(t *testing.T) {
	st := newTestStage(t, false)
	var out bytes.Buffer

	err := runPlayback(context.Background(), st, playRequest{
		Source:   "None()@Message(Go)",
		Messages: []scheduledMessage{{Name: "Go", At: 10 * time.Millisecond}},
		MaxRun:   5 * time.Second,
	}, &out)
	require.NoError(t, err)
	require.Contains(t, out.String(), "finished after")
}
