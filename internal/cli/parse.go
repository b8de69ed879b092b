package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/sequencer/internal/sequence"
)

var (
	parseEntryTag string
	parseFile     string
)

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().StringVar(&parseEntryTag, "entrytag", "", "value substituted for the entrytag token")
	parseCmd.Flags().StringVarP(&parseFile, "file", "f", "", "read the sequence from a file (- for stdin)")
}

var parseCmd = &cobra.Command{
	Use:   "parse [sequence]",
	Short: "Parse a sequence and print its statements",
	Long: `Parse a sequence and print one row per statement.

Invalid statements are reported on stderr and skipped; the command still
succeeds so the valid part of a sequence can be inspected.`,
	Example: `  sequencer parse 'Camera(Closeup); Animation(Wave)@0.5'
  sequencer parse --entrytag Greeting 'Audio(entrytag)@Message(Start)->Message(Done)'
  sequencer parse --json -f intro.seq`,
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := readSequenceSource(args, parseFile, cmd.InOrStdin())
		if err != nil {
			return err
		}

		statements, parseErr := sequence.Parse(src, parseEntryTag)
		problems := statementProblems(parseErr)

		if IsJSONOutput() || IsJSONLOutput() {
			if IsJSONLOutput() {
				return WriteOutput(cmd.OutOrStdout(), statements)
			}
			return WriteOutput(cmd.OutOrStdout(), ParseResult{Statements: statements, Errors: problems})
		}

		for _, p := range problems {
			fmt.Fprintln(cmd.ErrOrStderr(), colorize("skipped "+p, colorYellow))
		}
		if len(statements) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No statements.")
			return nil
		}
		return writeTable(cmd.OutOrStdout(), []string{"#", "REQUIRED", "COMMAND", "ARGS", "TRIGGER", "END MESSAGE"}, statementRows(statements))
	},
}

// ParseResult is the payload written by `sequencer parse --json`.
type ParseResult struct {
	Statements []sequence.Statement `json:"statements"`
	Errors     []string             `json:"errors,omitempty"`
}

func readSequenceSource(args []string, file string, stdin io.Reader) (string, error) {
	switch {
	case file == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", file, err)
		}
		return string(data), nil
	case len(args) > 0:
		return strings.Join(args, " "), nil
	default:
		return "", fmt.Errorf("a sequence argument or --file is required")
	}
}

func statementProblems(err error) []string {
	if err == nil {
		return nil
	}
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		out := make([]string, 0, len(joined.Unwrap()))
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}

func statementRows(statements []sequence.Statement) [][]string {
	rows := make([][]string, 0, len(statements))
	for i, stmt := range statements {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			formatYesNo(stmt.Required),
			stmt.Command,
			strings.Join(stmt.Args, ", "),
			formatTrigger(stmt.Trigger),
			dashIfEmpty(stmt.EndMessage),
		})
	}
	return rows
}

func formatTrigger(t sequence.Trigger) string {
	switch t.Kind {
	case sequence.After:
		return fmt.Sprintf("after %gs", t.Delay.Seconds())
	case sequence.OnMessage:
		return "on " + t.Message
	default:
		return "now"
	}
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
