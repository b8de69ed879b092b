package sequence

import (
	"errors"
	"fmt"
	"strings"
	"text/template"
)

// ErrCutsceneNotFound is returned when no cutscene has the requested name.
var ErrCutsceneNotFound = errors.New("cutscene not found")

var templateFuncs = template.FuncMap{"default": defaultValue}

// RenderCutscene applies variables to a cutscene and returns sequence text.
// Defaults fill unset variables; unset required variables are an error.
func RenderCutscene(c *Cutscene, vars map[string]string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("cutscene is required")
	}

	data := make(map[string]string, len(vars))
	for key, value := range vars {
		data[key] = value
	}

	for _, variable := range c.Variables {
		value := strings.TrimSpace(data[variable.Name])
		if value != "" {
			continue
		}
		if variable.Default != "" {
			data[variable.Name] = variable.Default
			continue
		}
		if variable.Required {
			return "", fmt.Errorf("missing required variable %q", variable.Name)
		}
	}

	parsed, err := template.New(c.Name).
		Funcs(templateFuncs).
		Option("missingkey=zero").
		Parse(c.Sequence)
	if err != nil {
		return "", fmt.Errorf("parse template %q: %w", c.Name, err)
	}

	var out strings.Builder
	if err := parsed.Execute(&out, data); err != nil {
		return "", fmt.Errorf("render template %q: %w", c.Name, err)
	}
	return out.String(), nil
}

func defaultValue(def string, value any) string {
	if value == nil {
		return def
	}

	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return def
		}
		return v
	default:
		text := strings.TrimSpace(fmt.Sprint(v))
		if text == "" {
			return def
		}
		return text
	}
}
