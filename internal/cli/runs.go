package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/sequencer/internal/db"
	"github.com/opencode-ai/sequencer/internal/models"
)

var (
	runsCutscene string
	runsStatus   string
	runsSince    string
	runsLimit    int
)

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsShowCmd)

	runsCmd.Flags().StringVar(&runsCutscene, "cutscene", "", "only runs of this cutscene")
	runsCmd.Flags().StringVar(&runsStatus, "status", "", "only runs with this status (playing, finished, stopped)")
	runsCmd.Flags().StringVar(&runsSince, "since", "", "only runs started after this time")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum number of runs")
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded sequence runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		since, err := ParseSince(runsSince)
		if err != nil {
			return err
		}
		q := models.RunQuery{Since: since, Limit: runsLimit}
		if c := strings.TrimSpace(runsCutscene); c != "" {
			q.Cutscene = &c
		}
		if s := strings.TrimSpace(runsStatus); s != "" {
			status := models.RunStatus(s)
			switch status {
			case models.RunStatusPlaying, models.RunStatusFinished, models.RunStatusStopped:
			default:
				return fmt.Errorf("invalid --status %q", s)
			}
			q.Status = &status
		}

		database, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()

		runs, err := db.NewRunRepository(database).List(context.Background(), q)
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(cmd.OutOrStdout(), runs)
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded. Enable database.enabled and play a sequence.")
			return nil
		}

		rows := make([][]string, 0, len(runs))
		for _, r := range runs {
			rows = append(rows, runRow(r))
		}
		return writeTable(cmd.OutOrStdout(), []string{"ID", "CUTSCENE", "STATUS", "ACTIVATIONS", "STARTED", "DURATION"}, rows)
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a run and its events",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		database, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()

		run, err := db.NewRunRepository(database).Get(ctx, args[0])
		if err != nil {
			if errors.Is(err, db.ErrRunNotFound) {
				return fmt.Errorf("run '%s' not found", args[0])
			}
			return err
		}
		events, err := db.NewEventRepository(database).ListByEntity(ctx, models.EntityTypeSequence, run.ID, 500)
		if err != nil {
			return fmt.Errorf("failed to list events: %w", err)
		}

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(cmd.OutOrStdout(), RunDetail{Run: run, Events: events})
		}

		out := cmd.OutOrStdout()
		if err := writeTable(out, []string{"ID", "CUTSCENE", "STATUS", "ACTIVATIONS", "STARTED", "DURATION"}, [][]string{runRow(run)}); err != nil {
			return err
		}
		fmt.Fprintf(out, "\nSequence: %s\n\n", run.Sequence)
		rows := make([][]string, 0, len(events))
		for _, e := range events {
			rows = append(rows, []string{
				e.Timestamp.Local().Format("15:04:05.000"),
				string(e.Type),
				truncate(string(e.Payload), 70),
			})
		}
		return writeTable(out, []string{"TIME", "TYPE", "PAYLOAD"}, rows)
	},
}

// RunDetail is the payload written by `sequencer runs show --json`.
type RunDetail struct {
	Run    *models.SequenceRun `json:"run"`
	Events []*models.Event     `json:"events"`
}

func runRow(r *models.SequenceRun) []string {
	duration := "-"
	if r.FinishedAt != nil {
		duration = formatDuration(r.Duration())
	}
	return []string{
		shortID(r.ID),
		dashIfEmpty(r.Cutscene),
		formatRunStatus(r.Status),
		fmt.Sprintf("%d", r.Activations),
		r.StartedAt.Local().Format("2006-01-02 15:04:05"),
		duration,
	}
}
