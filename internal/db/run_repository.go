package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/opencode-ai/sequencer/internal/models"
)

// Run repository errors.
var (
	ErrRunNotFound = errors.New("sequence run not found")
	ErrInvalidRun  = errors.New("invalid sequence run")
)

// RunRepository handles sequence run persistence.
type RunRepository struct {
	db *DB
}

// NewRunRepository creates a new RunRepository.
func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new run. The ID must already be set to the playback
// handle ID.
func (r *RunRepository) Create(ctx context.Context, run *models.SequenceRun) error {
	if run.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidRun)
	}
	if err := run.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRun, err)
	}
	if run.Status == "" {
		run.Status = models.RunStatusPlaying
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sequence_runs (
			id, sequence, cutscene, speaker, listener, status,
			activations, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Sequence,
		nullString(run.Cutscene),
		nullString(run.Speaker),
		nullString(run.Listener),
		string(run.Status),
		run.Activations,
		run.StartedAt.UTC().Format(timestampFormat),
		formatOptionalTime(run.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert sequence run: %w", err)
	}
	return nil
}

// Complete marks a run finished or stopped.
func (r *RunRepository) Complete(ctx context.Context, id string, status models.RunStatus, activations int64, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sequence_runs
		SET status = ?, activations = ?, finished_at = ?
		WHERE id = ?
	`, string(status), activations, at.UTC().Format(timestampFormat), id)
	if err != nil {
		return fmt.Errorf("failed to update sequence run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrRunNotFound
	}
	return nil
}

// Get retrieves a run by ID.
func (r *RunRepository) Get(ctx context.Context, id string) (*models.SequenceRun, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, sequence, cutscene, speaker, listener, status,
			activations, started_at, finished_at
		FROM sequence_runs WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	return run, err
}

// List returns runs matching q, newest first.
func (r *RunRepository) List(ctx context.Context, q models.RunQuery) ([]*models.SequenceRun, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, sequence, cutscene, speaker, listener, status,
		activations, started_at, finished_at
		FROM sequence_runs WHERE 1=1`
	args := []any{}

	if q.Cutscene != nil {
		query += ` AND cutscene = ?`
		args = append(args, *q.Cutscene)
	}
	if q.Status != nil {
		query += ` AND status = ?`
		args = append(args, string(*q.Status))
	}
	if q.Since != nil {
		query += ` AND started_at >= ?`
		args = append(args, q.Since.UTC().Format(timestampFormat))
	}
	query += ` ORDER BY started_at DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sequence runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.SequenceRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sequence runs: %w", err)
	}
	return runs, nil
}

func scanRun(row rowScanner) (*models.SequenceRun, error) {
	var run models.SequenceRun
	var cutscene, speaker, listener, finishedAt sql.NullString
	var status, startedAt string

	err := row.Scan(
		&run.ID,
		&run.Sequence,
		&cutscene,
		&speaker,
		&listener,
		&status,
		&run.Activations,
		&startedAt,
		&finishedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan sequence run: %w", err)
	}

	run.Cutscene = cutscene.String
	run.Speaker = speaker.String
	run.Listener = listener.String
	run.Status = models.RunStatus(status)
	run.StartedAt = parseTimestamp(startedAt)
	if finishedAt.Valid {
		t := parseTimestamp(finishedAt.String)
		run.FinishedAt = &t
	}
	return &run, nil
}

func formatOptionalTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timestampFormat)
}
