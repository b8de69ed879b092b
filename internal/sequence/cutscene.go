package sequence

// Cutscene is a named, reusable sequence with template variables.
type Cutscene struct {
	Name        string        `yaml:"name" json:"name"`
	Description string        `yaml:"description" json:"description"`
	Sequence    string        `yaml:"sequence" json:"sequence"`
	Variables   []CutsceneVar `yaml:"variables,omitempty" json:"variables,omitempty"`
	Tags        []string      `yaml:"tags,omitempty" json:"tags,omitempty"`
	Source      string        `yaml:"-" json:"source"` // file path or "builtin"
}

// CutsceneVar describes a template variable used in a cutscene.
type CutsceneVar struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Default     string `yaml:"default,omitempty" json:"default,omitempty"`
	Required    bool   `yaml:"required" json:"required"`
}
