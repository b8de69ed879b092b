package sequencer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/sequencer/internal/scene"
	"github.com/opencode-ai/sequencer/internal/sequence"
	"github.com/opencode-ai/sequencer/internal/viewport"
)

func findBuiltin(t *testing.T, name string) *sequence.Cutscene {
	t.Helper()
	cutscenes, err := sequence.LoadBuiltinCutscenes()
	require.NoError(t, err)
	for _, c := range cutscenes {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("builtin cutscene %q not found", name)
	return nil
}

func TestPlayCutsceneGreeting(t *testing.T) {
	f := newFixture(t, Options{})
	f.alice.WithAnimator(scene.NewAnimator(map[string]time.Duration{"Wave": time.Second}))

	h, err := f.director.PlayCutscene(findBuiltin(t, "greeting"), CutsceneRequest{
		Speaker:  "Alice",
		Listener: "Bob",
		Vars:     map[string]string{"wait": "1"},
	}, PlayOptions{})
	require.NoError(t, err)
	require.Equal(t, "greeting", h.Name)
	require.Equal(t, "Wave", f.alice.Animator.State(0))

	f.tickAt(500 * time.Millisecond)
	_, ok := f.director.Variables().Get("greeted")
	require.False(t, ok)

	f.tickAt(time.Second)
	greeted, ok := f.director.Variables().Get("greeted")
	require.True(t, ok)
	require.Equal(t, true, greeted)

	vp := f.director.Viewport()
	shot, _ := vp.Shot("Closeup", f.bob)
	require.Equal(t, shot, viewport.StateOf(vp.Camera()))

	f.director.Tick()
	require.True(t, h.Finished())
}

func TestPlayCutsceneMissingRequiredVar(t *testing.T) {
	f := newFixture(t, Options{})

	_, err := f.director.PlayCutscene(findBuiltin(t, "ending"), CutsceneRequest{Speaker: "Alice"}, PlayOptions{})
	require.Error(t, err)
	require.Empty(t, f.director.Handles())
}

func TestPlayCutsceneUnknownParticipants(t *testing.T) {
	f := newFixture(t, Options{})

	h, err := f.director.PlayCutscene(findBuiltin(t, "door-knock"), CutsceneRequest{Speaker: "Nobody"}, PlayOptions{})
	require.NoError(t, err)
	require.Equal(t, "door-knock", h.Name)
}
