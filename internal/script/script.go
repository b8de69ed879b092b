// Package script hosts the Lua environment sequences use for variables and
// small bits of scripted logic.
package script

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Shopify/go-lua"
)

// ErrUnsupportedValue is returned by Set for Go values with no Lua mapping.
var ErrUnsupportedValue = errors.New("unsupported lua value")

// Func is a Go function exposed to Lua. Arguments arrive as strings.
type Func func(args []string) error

// Environment wraps a single Lua state. Like the scheduler it belongs to a
// single goroutine; registered functions may call back into it.
type Environment struct {
	state *lua.State
}

// New returns an environment with the standard libraries loaded.
func New() *Environment {
	state := lua.NewState()
	lua.OpenLibraries(state)
	return &Environment{state: state}
}

// Run executes a chunk of Lua code.
func (e *Environment) Run(code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil
	}

	if err := lua.DoString(e.state, code); err != nil {
		return fmt.Errorf("run lua: %w", err)
	}
	return nil
}

// Set assigns a global variable.
func (e *Environment) Set(name string, value any) error {
	switch v := value.(type) {
	case nil:
		e.state.PushNil()
	case string:
		e.state.PushString(v)
	case bool:
		e.state.PushBoolean(v)
	case int:
		e.state.PushNumber(float64(v))
	case int64:
		e.state.PushNumber(float64(v))
	case float64:
		e.state.PushNumber(v)
	default:
		return fmt.Errorf("set %s (%T): %w", name, value, ErrUnsupportedValue)
	}
	e.state.SetGlobal(name)
	return nil
}

// SetLiteral assigns a global from text: numbers and booleans are converted,
// anything else is stored as a string.
func (e *Environment) SetLiteral(name, text string) error {
	text = strings.TrimSpace(text)
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return e.Set(name, f)
	}
	switch strings.ToLower(text) {
	case "true":
		return e.Set(name, true)
	case "false":
		return e.Set(name, false)
	case "nil":
		return e.Set(name, nil)
	}
	return e.Set(name, text)
}

// Get reads a global variable. Numbers come back as float64. The second
// result is false for nil and for values with no Go mapping.
func (e *Environment) Get(name string) (any, bool) {
	e.state.Global(name)
	defer e.state.Pop(1)

	switch e.state.TypeOf(-1) {
	case lua.TypeBoolean:
		return e.state.ToBoolean(-1), true
	case lua.TypeNumber:
		n, ok := e.state.ToNumber(-1)
		return n, ok
	case lua.TypeString:
		s, ok := e.state.ToString(-1)
		return s, ok
	default:
		return nil, false
	}
}

// GetString reads a global as display text ("" when unset).
func (e *Environment) GetString(name string) string {
	v, ok := e.Get(name)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// Register exposes fn to Lua as a global function. Errors returned by fn are
// raised as Lua errors.
func (e *Environment) Register(name string, fn Func) {
	e.state.Register(name, func(l *lua.State) int {
		n := l.Top()
		args := make([]string, 0, n)
		for i := 1; i <= n; i++ {
			s, _ := l.ToString(i)
			args = append(args, s)
		}
		if err := fn(args); err != nil {
			lua.Errorf(l, "%s: %s", name, err.Error())
		}
		return 0
	})
}

var varTag = regexp.MustCompile(`\[var=([A-Za-z_][A-Za-z0-9_]*)\]`)

// Expand replaces [var=name] tags in text with the variable's current value.
func (e *Environment) Expand(text string) string {
	if !strings.Contains(text, "[var=") {
		return text
	}
	return varTag.ReplaceAllStringFunc(text, func(tag string) string {
		name := varTag.FindStringSubmatch(tag)[1]
		return e.GetString(name)
	})
}
