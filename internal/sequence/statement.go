// Package sequence parses the cutscene DSL and loads named cutscenes.
//
// A sequence is a list of statements separated by ';':
//
//	[required] Command(arg, arg, ...)[@seconds | @Message(name)][->Message(name)]
package sequence

import (
	"strconv"
	"strings"
	"time"
)

// TriggerKind selects what starts a statement.
type TriggerKind int

const (
	// Immediate statements have no @ clause.
	Immediate TriggerKind = iota
	// After statements start once their delay has elapsed.
	After
	// OnMessage statements start when a named message arrives.
	OnMessage
)

func (k TriggerKind) String() string {
	switch k {
	case Immediate:
		return "immediate"
	case After:
		return "after"
	case OnMessage:
		return "message"
	default:
		return "unknown"
	}
}

// Trigger is the start condition of a statement. Delay is used by After,
// Message by OnMessage.
type Trigger struct {
	Kind    TriggerKind   `json:"kind"`
	Delay   time.Duration `json:"delay,omitempty"`
	Message string        `json:"message,omitempty"`
}

// Statement is one parsed sequence command.
type Statement struct {
	Required   bool     `json:"required"`
	Command    string   `json:"command"`
	Args       []string `json:"args"`
	Trigger    Trigger  `json:"trigger"`
	EndMessage string   `json:"end_message,omitempty"`
}

// String renders the statement back into sequence syntax.
func (s Statement) String() string {
	var b strings.Builder
	if s.Required {
		b.WriteString("required ")
	}
	b.WriteString(s.Command)
	b.WriteByte('(')
	b.WriteString(strings.Join(s.Args, ", "))
	b.WriteByte(')')

	switch s.Trigger.Kind {
	case After:
		b.WriteByte('@')
		b.WriteString(strconv.FormatFloat(s.Trigger.Delay.Seconds(), 'f', -1, 64))
	case OnMessage:
		b.WriteString("@Message(")
		b.WriteString(s.Trigger.Message)
		b.WriteByte(')')
	}

	if s.EndMessage != "" {
		b.WriteString("->Message(")
		b.WriteString(s.EndMessage)
		b.WriteByte(')')
	}
	return b.String()
}
