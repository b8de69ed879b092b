package cli

import (
	"testing"

	"github.com/opencode-ai/sequencer/internal/sequence"
)

func TestFilterCutscenes(t *testing.T) {
	items := []*sequence.Cutscene{
		{Name: "a", Tags: []string{"dialogue", "intro"}},
		{Name: "b", Tags: []string{"door"}},
		{Name: "c", Tags: []string{"Dialogue"}},
		{Name: "d", Tags: nil},
	}

	tests := []struct {
		name     string
		tags     []string
		expected int
	}{
		{"no filter", nil, 4},
		{"filter dialogue", []string{"dialogue"}, 2},
		{"filter door", []string{"door"}, 1},
		{"filter multiple", []string{"intro", "door"}, 2},
		{"filter nonexistent", []string{"nonexistent"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := filterCutscenes(items, tt.tags)
			if len(result) != tt.expected {
				t.Errorf("filterCutscenes() = %d items, want %d", len(result), tt.expected)
			}
		})
	}
}

func TestFindCutsceneByName(t *testing.T) {
	items := []*sequence.Cutscene{
		{Name: "greeting"},
		{Name: "door-knock"},
		{Name: "ending"},
	}

	tests := []struct {
		name    string
		search  string
		wantNil bool
	}{
		{"exact match", "greeting", false},
		{"case insensitive", "DOOR-KNOCK", false},
		{"surrounding space", " ending ", false},
		{"not found", "nonexistent", true},
		{"partial match fails", "greet", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := findCutsceneByName(items, tt.search)
			if (result == nil) != tt.wantNil {
				t.Errorf("findCutsceneByName(%q) nil = %v, want nil = %v", tt.search, result == nil, tt.wantNil)
			}
		})
	}
}

func TestParseCutsceneVars(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		wantLen int
		wantErr bool
	}{
		{"single var", []string{"key=value"}, 1, false},
		{"multiple vars", []string{"k1=v1", "k2=v2"}, 2, false},
		{"comma separated", []string{"k1=v1,k2=v2"}, 2, false},
		{"empty value", []string{"key="}, 1, false},
		{"missing equals", []string{"invalid"}, 0, true},
		{"empty key", []string{"=value"}, 0, true},
		{"empty input", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseCutsceneVars(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseCutsceneVars() error = %v, wantErr = %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && len(result) != tt.wantLen {
				t.Errorf("parseCutsceneVars() = %d vars, want %d", len(result), tt.wantLen)
			}
		})
	}
}

func TestNormalizeCutsceneName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple name", "greeting", false},
		{"with dashes", "door-knock", false},
		{"with underscores", "door_knock", false},
		{"empty", "", true},
		{"whitespace only", "   ", true},
		{"with slash", "foo/bar", true},
		{"with dots", "foo..bar", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := normalizeCutsceneName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("normalizeCutsceneName(%q) error = %v, wantErr = %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestCutsceneSourceLabel(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		userDir string
		projDir string
		want    string
	}{
		{"builtin", "builtin", "/home/user/.config/sequencer/cutscenes", "/project/.sequencer/cutscenes", "builtin"},
		{"user cutscene", "/home/user/.config/sequencer/cutscenes/foo.yaml", "/home/user/.config/sequencer/cutscenes", "", "user"},
		{"project cutscene", "/project/.sequencer/cutscenes/bar.yaml", "", "/project/.sequencer/cutscenes", "project"},
		{"other file", "/some/other/path.yaml", "/home/user/.config/sequencer/cutscenes", "/project/.sequencer/cutscenes", "file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := cutsceneSourceLabel(tt.source, tt.userDir, tt.projDir)
			if result != tt.want {
				t.Errorf("cutsceneSourceLabel() = %q, want %q", result, tt.want)
			}
		})
	}
}
