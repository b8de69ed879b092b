package sequence

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// LoadCutscene reads a single cutscene from disk.
func LoadCutscene(path string) (*Cutscene, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("cutscene path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cutscene %s: %w", path, err)
	}

	c, err := parseCutscene(data)
	if err != nil {
		return nil, fmt.Errorf("parse cutscene %s: %w", path, err)
	}
	c.Source = path
	return c, nil
}

// LoadCutscenesFromDir loads all cutscenes from a directory.
func LoadCutscenesFromDir(dir string) ([]*Cutscene, error) {
	if strings.TrimSpace(dir) == "" {
		return []*Cutscene{}, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*Cutscene{}, nil
		}
		return nil, fmt.Errorf("read cutscenes dir %s: %w", dir, err)
	}

	cutscenes := make([]*Cutscene, 0)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		c, err := LoadCutscene(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		cutscenes = append(cutscenes, c)
	}

	sort.Slice(cutscenes, func(i, j int) bool {
		return cutscenes[i].Name < cutscenes[j].Name
	})

	return cutscenes, nil
}

func parseCutscene(data []byte) (*Cutscene, error) {
	var c Cutscene
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}

	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return nil, fmt.Errorf("cutscene name is required")
	}
	c.Description = strings.TrimSpace(c.Description)

	c.Sequence = strings.TrimSpace(c.Sequence)
	if c.Sequence == "" {
		return nil, fmt.Errorf("cutscene sequence is required")
	}
	if _, err := template.New(c.Name).Funcs(templateFuncs).Parse(c.Sequence); err != nil {
		return nil, fmt.Errorf("cutscene template: %w", err)
	}

	seen := make(map[string]struct{})
	for i := range c.Variables {
		name := strings.TrimSpace(c.Variables[i].Name)
		if name == "" {
			return nil, fmt.Errorf("cutscene variable name is required")
		}
		if _, exists := seen[name]; exists {
			return nil, fmt.Errorf("duplicate cutscene variable %q", name)
		}
		seen[name] = struct{}{}
		c.Variables[i].Name = name
	}

	return &c, nil
}
