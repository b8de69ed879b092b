package sequence

import (
	"fmt"
	"os"
	"path/filepath"
)

// CutsceneSearchPaths returns cutscene directories in precedence order.
func CutsceneSearchPaths(projectDir string) []string {
	paths := make([]string, 0, 3)
	if projectDir != "" {
		paths = append(paths, filepath.Join(projectDir, ".sequencer", "cutscenes"))
	}

	if home, err := os.UserHomeDir(); err == nil && home != "" {
		paths = append(paths, filepath.Join(home, ".config", "sequencer", "cutscenes"))
	}

	paths = append(paths, filepath.Join(string(filepath.Separator), "usr", "share", "sequencer", "cutscenes"))
	return paths
}

// LoadCutscenesFromSearchPaths loads cutscenes with first-hit precedence,
// falling back to the builtins.
func LoadCutscenesFromSearchPaths(projectDir string) ([]*Cutscene, error) {
	seen := make(map[string]*Cutscene)
	order := make([]string, 0)

	add := func(cutscenes []*Cutscene) {
		for _, c := range cutscenes {
			if _, exists := seen[c.Name]; exists {
				continue
			}
			seen[c.Name] = c
			order = append(order, c.Name)
		}
	}

	for _, path := range CutsceneSearchPaths(projectDir) {
		cutscenes, err := LoadCutscenesFromDir(path)
		if err != nil {
			return nil, err
		}
		add(cutscenes)
	}

	builtins, err := LoadBuiltinCutscenes()
	if err != nil {
		return nil, err
	}
	add(builtins)

	resolved := make([]*Cutscene, 0, len(order))
	for _, name := range order {
		resolved = append(resolved, seen[name])
	}
	return resolved, nil
}

// FindCutscene returns the named cutscene from the search paths.
func FindCutscene(projectDir, name string) (*Cutscene, error) {
	cutscenes, err := LoadCutscenesFromSearchPaths(projectDir)
	if err != nil {
		return nil, err
	}
	for _, c := range cutscenes {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("cutscene %q: %w", name, ErrCutsceneNotFound)
}
