package sequence

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// LoadBuiltinCutscenes returns the cutscenes bundled with the sequencer.
func LoadBuiltinCutscenes() ([]*Cutscene, error) {
	entries, err := fs.ReadDir(builtinFS, "builtin")
	if err != nil {
		return nil, fmt.Errorf("read builtin cutscenes: %w", err)
	}

	cutscenes := make([]*Cutscene, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := builtinFS.ReadFile("builtin/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read builtin cutscene %s: %w", entry.Name(), err)
		}
		c, err := parseCutscene(data)
		if err != nil {
			return nil, fmt.Errorf("parse builtin cutscene %s: %w", entry.Name(), err)
		}
		c.Source = "builtin"
		cutscenes = append(cutscenes, c)
	}

	sort.Slice(cutscenes, func(i, j int) bool {
		return cutscenes[i].Name < cutscenes[j].Name
	})

	return cutscenes, nil
}
