package sequence

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/opencode-ai/sequencer/internal/logging"
)

// EntryTagToken is replaced by the caller's entry tag before parsing.
const EntryTagToken = "entrytag"

const endMessageMarker = "->Message("

var (
	// ErrInvalidStatement wraps every per-statement parse failure.
	ErrInvalidStatement = errors.New("invalid statement")

	tokenSplitter = regexp.MustCompile(`[()@]`)
)

// StatementError describes a statement that was skipped.
type StatementError struct {
	Index  int    // zero-based position among non-empty statements
	Raw    string // statement text
	Reason string
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("statement %d %q: %s", e.Index+1, e.Raw, e.Reason)
}

func (e *StatementError) Unwrap() error {
	return ErrInvalidStatement
}

// Parse converts a sequence into statements in source order. Statements that
// fail to parse are skipped; their errors are joined into the returned error
// while every valid statement is still returned.
func Parse(src, entrytag string) ([]Statement, error) {
	if entrytag != "" && strings.Contains(src, EntryTagToken) {
		src = strings.ReplaceAll(src, EntryTagToken, entrytag)
	}

	statements := make([]Statement, 0)
	var errs []error
	index := 0
	for _, raw := range strings.Split(src, ";") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		stmt, err := parseStatement(raw)
		if err != nil {
			errs = append(errs, &StatementError{Index: index, Raw: raw, Reason: err.Error()})
		} else {
			statements = append(statements, stmt)
		}
		index++
	}

	return statements, errors.Join(errs...)
}

// MustParse is Parse for sequences known to be valid. It panics on error.
func MustParse(src string) []Statement {
	statements, err := Parse(src, "")
	if err != nil {
		panic(err)
	}
	return statements
}

func parseStatement(raw string) (Statement, error) {
	var stmt Statement

	text := raw
	if idx := strings.Index(text, endMessageMarker); idx >= 0 {
		rest := text[idx+len(endMessageMarker):]
		end := strings.Index(rest, ")")
		if end < 0 {
			end = len(rest)
			stmt.EndMessage = strings.TrimSpace(rest)
			text = text[:idx]
		} else {
			stmt.EndMessage = strings.TrimSpace(rest[:end])
			text = text[:idx] + rest[end+1:]
		}
	}

	tokens := tokenSplitter.Split(text, -1)

	head := strings.Fields(tokens[0])
	switch len(head) {
	case 0:
		// Blank command; dispatched as a no-op.
	case 1:
		stmt.Command = head[0]
	case 2:
		if !strings.EqualFold(head[0], "required") {
			return Statement{}, fmt.Errorf("expected 'required' before %q, got %q", head[1], head[0])
		}
		stmt.Required = true
		stmt.Command = head[1]
	default:
		return Statement{}, fmt.Errorf("expected [required] command, got %d words", len(head))
	}

	stmt.Args = []string{}
	if len(tokens) > 1 && strings.TrimSpace(tokens[1]) != "" {
		for _, arg := range strings.Split(tokens[1], ",") {
			stmt.Args = append(stmt.Args, strings.TrimSpace(arg))
		}
	}

	trigger, err := parseTrigger(tokens)
	if err != nil {
		return Statement{}, err
	}
	stmt.Trigger = trigger
	return stmt, nil
}

func parseTrigger(tokens []string) (Trigger, error) {
	if len(tokens) < 4 || strings.TrimSpace(tokens[3]) == "" {
		return Trigger{Kind: Immediate}, nil
	}

	clause := strings.TrimSpace(tokens[3])
	if words := strings.Fields(clause); strings.EqualFold(words[0], "message") {
		name := ""
		if len(tokens) > 4 {
			name = strings.TrimSpace(tokens[4])
		}
		if name == "" {
			return Trigger{}, fmt.Errorf("message trigger needs a name")
		}
		return Trigger{Kind: OnMessage, Message: name}, nil
	}

	seconds, err := strconv.ParseFloat(clause, 64)
	if err != nil || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		logger := logging.Component("sequence")
		logger.Warn().Str("trigger", clause).Msg("unparseable delay, using 0")
		seconds = 0
	}
	if seconds < 0 {
		seconds = 0
	}
	return Trigger{Kind: After, Delay: time.Duration(seconds * float64(time.Second))}, nil
}
