package command

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Args are a statement's raw arguments with typed, defaulting accessors.
// Missing and blank arguments yield the default.
type Args []string

// String returns argument i.
func (a Args) String(i int, def string) string {
	if i < 0 || i >= len(a) || strings.TrimSpace(a[i]) == "" {
		return def
	}
	return strings.TrimSpace(a[i])
}

// Float returns argument i as a float.
func (a Args) Float(i int, def float64) float64 {
	s := a.String(i, "")
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

// Int returns argument i as an int. Fractions are truncated.
func (a Args) Int(i int, def int) int {
	s := a.String(i, "")
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return def
}

// Bool returns argument i as a bool.
func (a Args) Bool(i int, def bool) bool {
	s := a.String(i, "")
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.ToLower(s))
	if err != nil {
		return def
	}
	return b
}

// Seconds returns argument i, in seconds, as a duration. Negative values
// are zero.
func (a Args) Seconds(i int) time.Duration {
	f := a.Float(i, 0)
	if f <= 0 {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}

// Toggle resolves a true/false/flip argument against the current value.
func (a Args) Toggle(i int, current bool) bool {
	s := strings.ToLower(a.String(i, "true"))
	switch s {
	case "false":
		return false
	case "flip":
		return !current
	default:
		return true
	}
}

// Join returns every argument from i onwards joined with ", ", which
// undoes the comma split for free-form text.
func (a Args) Join(i int) string {
	if i >= len(a) {
		return ""
	}
	return strings.Join(a[i:], ", ")
}
