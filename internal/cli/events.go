package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/sequencer/internal/db"
	"github.com/opencode-ai/sequencer/internal/models"
)

var (
	eventsSequence string
	eventsType     string
	eventsSince    string
	eventsLimit    int

	pruneOlderThan string
	pruneYes       bool
)

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsPruneCmd)

	eventsCmd.Flags().StringVar(&eventsSequence, "sequence", "", "only events of this sequence (handle ID)")
	eventsCmd.Flags().StringVar(&eventsType, "type", "", "only events of this type (e.g. command.activated)")
	eventsCmd.Flags().StringVar(&eventsSince, "since", "", "only events after this time (duration like 1h or RFC3339)")
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 50, "maximum number of events")
	eventsCmd.Flags().BoolVar(&watchMode, "follow", false, "stream new events as JSON lines (requires --jsonl)")

	eventsPruneCmd.Flags().StringVar(&pruneOlderThan, "older-than", "30d", "delete events older than this (e.g. 12h, 7d)")
	eventsPruneCmd.Flags().BoolVarP(&pruneYes, "yes", "y", false, "skip the confirmation prompt")
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Query the sequence event log",
	Long: `Query the sqlite event log written while sequences play with
database.enabled set. Use --follow --jsonl to stream new events.`,
	Example: `  sequencer events --limit 20
  sequencer events --sequence 3f2c... --type command.activated
  sequencer events --since 1h --json
  sequencer events --follow --jsonl`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := MustBeJSONLForWatch(); err != nil {
			return err
		}
		since, err := ParseSince(eventsSince)
		if err != nil {
			return err
		}

		database, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()
		repo := db.NewEventRepository(database)

		if watchMode {
			config := DefaultStreamConfig()
			config.EntityID = strings.TrimSpace(eventsSequence)
			if eventsType != "" {
				config.EventTypes = []models.EventType{models.EventType(eventsType)}
			}
			if since != nil {
				config.IncludeExisting = true
				config.Since = since
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return NewEventStreamer(repo, cmd.OutOrStdout(), config).Stream(ctx)
		}

		q := db.EventQuery{Since: since, Limit: eventsLimit}
		if id := strings.TrimSpace(eventsSequence); id != "" {
			entityType := models.EntityTypeSequence
			q.EntityType = &entityType
			q.EntityID = &id
		}
		if eventsType != "" {
			eventType := models.EventType(eventsType)
			q.Type = &eventType
		}

		page, err := repo.Query(context.Background(), q)
		if err != nil {
			return fmt.Errorf("failed to query events: %w", err)
		}

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(cmd.OutOrStdout(), page.Events)
		}
		if len(page.Events) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No events found.")
			return nil
		}

		rows := make([][]string, 0, len(page.Events))
		for _, e := range page.Events {
			rows = append(rows, []string{
				e.Timestamp.Local().Format("2006-01-02 15:04:05.000"),
				string(e.Type),
				fmt.Sprintf("%s/%s", e.EntityType, shortID(e.EntityID)),
				truncate(string(e.Payload), 60),
			})
		}
		if err := writeTable(cmd.OutOrStdout(), []string{"TIME", "TYPE", "ENTITY", "PAYLOAD"}, rows); err != nil {
			return err
		}
		if page.NextCursor != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "\nMore events available; raise --limit or narrow with --since.\n")
		}
		return nil
	},
}

var eventsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old events from the log",
	Example: `  sequencer events prune --older-than 7d
  sequencer events prune --older-than 12h --yes`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		age, err := parseDurationWithDays(pruneOlderThan)
		if err != nil || age <= 0 {
			return fmt.Errorf("invalid --older-than %q", pruneOlderThan)
		}
		cutoff := time.Now().Add(-age)

		if !pruneYes {
			if IsNonInteractive() {
				return &PreflightError{
					Message:  "refusing to prune without confirmation",
					Hint:     "Non-interactive sessions cannot answer the prompt",
					NextStep: "sequencer events prune --older-than " + pruneOlderThan + " --yes",
				}
			}
			prompt := fmt.Sprintf("Delete events recorded before %s?", cutoff.Local().Format("2006-01-02 15:04:05"))
			if !confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), prompt) {
				fmt.Fprintln(cmd.ErrOrStderr(), "Aborted.")
				return nil
			}
		}

		database, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()

		removed, err := db.NewEventRepository(database).Prune(cmd.Context(), cutoff)
		if err != nil {
			return err
		}
		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(cmd.OutOrStdout(), map[string]any{
				"removed": removed,
				"before":  cutoff.UTC(),
			})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d events.\n", removed)
		return nil
	},
}

func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N] ", prompt)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 3 || len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
