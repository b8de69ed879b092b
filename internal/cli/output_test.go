package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/sequencer/internal/models"
	"github.com/opencode-ai/sequencer/internal/scheduler"
)

func withOutputFlags(t *testing.T, json, jsonl bool) {
	t.Helper()
	origJSON, origJSONL := jsonOutput, jsonlOutput
	jsonOutput, jsonlOutput = json, jsonl
	t.Cleanup(func() {
		jsonOutput, jsonlOutput = origJSON, origJSONL
	})
}

func TestWriteOutputJSON(t *testing.T) {
	withOutputFlags(t, true, false)

	var buf bytes.Buffer
	require.NoError(t, WriteOutput(&buf, []string{"a", "b"}))
	require.Equal(t, "[\n  \"a\",\n  \"b\"\n]\n", buf.String())
}

func TestWriteOutputJSONLSplitsSlices(t *testing.T) {
	withOutputFlags(t, false, true)

	var buf bytes.Buffer
	require.NoError(t, WriteOutput(&buf, []map[string]int{{"n": 1}, {"n": 2}}))
	require.Equal(t, "{\"n\":1}\n{\"n\":2}\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteOutput(&buf, map[string]bool{"ok": true}))
	require.Equal(t, "{\"ok\":true}\n", buf.String())
}

func TestPreflightError(t *testing.T) {
	err := &PreflightError{Message: "no broker", Hint: "set mqtt.broker", NextStep: "sequencer bridge --broker x"}
	lines := strings.Split(err.Error(), "\n")
	require.Equal(t, []string{"no broker", "Hint: set mqtt.broker", "Try: sequencer bridge --broker x"}, lines)

	require.Equal(t, "bare", (&PreflightError{Message: "bare"}).Error())
}

func TestStatusFormatting(t *testing.T) {
	withOutputFlags(t, true, false) // disables color

	require.Equal(t, "OK finished", formatRunStatus(models.RunStatusFinished))
	require.Equal(t, "STOP stopped", formatRunStatus(models.RunStatusStopped))
	require.Equal(t, "BUSY playing", formatPlaybackState(scheduler.StatePlaying))
	require.Equal(t, "DONE closed", formatPlaybackState(scheduler.StateClosed))
	require.Equal(t, "WARN", formatStatusLabel("WARN", " "))
	require.Equal(t, "activated  ", formatEventKind(scheduler.EventActivated))
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "short", truncate(" short ", 10))
	require.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{" YES \n", true},
		{"yes", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		var prompt bytes.Buffer
		if got := confirm(strings.NewReader(tt.input), &prompt, "Delete?"); got != tt.want {
			t.Errorf("confirm(%q) = %v, want %v", tt.input, got, tt.want)
		}
		if prompt.String() != "Delete? [y/N] " {
			t.Errorf("prompt = %q", prompt.String())
		}
	}
}
