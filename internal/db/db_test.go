package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/sequencer/internal/models"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	database, err := OpenInMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if _, err := database.MigrateUp(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return database
}

func TestMigrateUpIsIdempotent(t *testing.T) {
	ctx := context.Background()
	database, err := OpenInMemory()
	require.NoError(t, err)
	defer database.Close()

	applied, err := database.MigrateUp(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, applied)

	applied, err = database.MigrateUp(ctx)
	require.NoError(t, err)
	require.Zero(t, applied)
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sequencer.db")
	database, err := Open(Config{Path: path, BusyTimeout: time.Second})
	require.NoError(t, err)
	defer database.Close()

	_, err = database.MigrateUp(context.Background())
	require.NoError(t, err)
	require.FileExists(t, path)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	require.Error(t, err)
}

func TestEventRepositoryCreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewEventRepository(setupTestDB(t))

	event := &models.Event{
		Type:       models.EventTypeCommandActivated,
		EntityType: models.EntityTypeSequence,
		EntityID:   "seq-1",
		Payload:    []byte(`{"statement":"Camera(Closeup)"}`),
		Metadata:   map[string]string{"source": "test"},
	}
	require.NoError(t, repo.Create(ctx, event))
	require.NotEmpty(t, event.ID)
	require.False(t, event.Timestamp.IsZero())

	got, err := repo.Get(ctx, event.ID)
	require.NoError(t, err)
	require.Equal(t, event.Type, got.Type)
	require.Equal(t, "seq-1", got.EntityID)
	require.JSONEq(t, `{"statement":"Camera(Closeup)"}`, string(got.Payload))
	require.Equal(t, "test", got.Metadata["source"])
	require.True(t, event.Timestamp.Equal(got.Timestamp))
}

func TestEventRepositoryCreateInvalid(t *testing.T) {
	repo := NewEventRepository(setupTestDB(t))

	err := repo.Create(context.Background(), &models.Event{Type: models.EventTypeMessageSent})
	require.ErrorIs(t, err, ErrInvalidEvent)
}

func TestEventRepositoryGetMissing(t *testing.T) {
	repo := NewEventRepository(setupTestDB(t))

	_, err := repo.Get(context.Background(), "missing")
	require.True(t, errors.Is(err, ErrEventNotFound))
}

func TestEventRepositoryQueryPagination(t *testing.T) {
	ctx := context.Background()
	repo := NewEventRepository(setupTestDB(t))

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i := 0; i < 5; i++ {
		entity := "seq-a"
		if i%2 == 1 {
			entity = "seq-b"
		}
		require.NoError(t, repo.Create(ctx, &models.Event{
			Type:       models.EventTypeCommandActivated,
			EntityType: models.EntityTypeSequence,
			EntityID:   entity,
			Timestamp:  base.Add(time.Duration(i) * time.Millisecond),
		}))
	}

	page, err := repo.Query(ctx, EventQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Events, 2)
	require.NotEmpty(t, page.NextCursor)

	next, err := repo.Query(ctx, EventQuery{Limit: 10, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, next.Events, 3)
	require.Empty(t, next.NextCursor)

	entity := "seq-b"
	filtered, err := repo.Query(ctx, EventQuery{EntityID: &entity})
	require.NoError(t, err)
	require.Len(t, filtered.Events, 2)

	listed, err := repo.ListByEntity(ctx, models.EntityTypeSequence, "seq-a", 0)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	for i := 1; i < len(listed); i++ {
		require.True(t, listed[i-1].Timestamp.Before(listed[i].Timestamp))
	}
}

func TestEventRepositoryPrune(t *testing.T) {
	ctx := context.Background()
	repo := NewEventRepository(setupTestDB(t))

	cutoff := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	for _, ts := range []time.Time{cutoff.Add(-48 * time.Hour), cutoff.Add(-time.Nanosecond), cutoff, cutoff.Add(time.Hour)} {
		require.NoError(t, repo.Create(ctx, &models.Event{
			Type:       models.EventTypeSequenceFinished,
			EntityType: models.EntityTypeSequence,
			EntityID:   "seq-1",
			Timestamp:  ts,
		}))
	}

	removed, err := repo.Prune(ctx, cutoff)
	require.NoError(t, err)
	require.EqualValues(t, 2, removed)

	left, err := repo.ListByEntity(ctx, models.EntityTypeSequence, "seq-1", 0)
	require.NoError(t, err)
	require.Len(t, left, 2)
	require.True(t, left[0].Timestamp.Equal(cutoff))
}

func TestRunRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository(setupTestDB(t))

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	run := &models.SequenceRun{
		ID:        "run-1",
		Sequence:  "Camera(Closeup)",
		Cutscene:  "greeting",
		Speaker:   "Alice",
		StartedAt: started,
	}
	require.NoError(t, repo.Create(ctx, run))
	require.Equal(t, models.RunStatusPlaying, run.Status)

	got, err := repo.Get(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, "greeting", got.Cutscene)
	require.Empty(t, got.Listener)
	require.Nil(t, got.FinishedAt)
	require.Zero(t, got.Duration())

	require.NoError(t, repo.Complete(ctx, "run-1", models.RunStatusFinished, 4, started.Add(3*time.Second)))

	got, err = repo.Get(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, models.RunStatusFinished, got.Status)
	require.EqualValues(t, 4, got.Activations)
	require.Equal(t, 3*time.Second, got.Duration())

	require.ErrorIs(t, repo.Complete(ctx, "missing", models.RunStatusStopped, 0, started), ErrRunNotFound)
	_, err = repo.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrRunNotFound)
}

func TestRunRepositoryList(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository(setupTestDB(t))

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"greeting", "ending", "greeting"} {
		require.NoError(t, repo.Create(ctx, &models.SequenceRun{
			ID:        string(rune('a' + i)),
			Sequence:  "None()",
			Cutscene:  name,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	runs, err := repo.List(ctx, models.RunQuery{})
	require.NoError(t, err)
	require.Len(t, runs, 3)
	require.Equal(t, "c", runs[0].ID)

	name := "greeting"
	runs, err = repo.List(ctx, models.RunQuery{Cutscene: &name, Limit: 1})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, "c", runs[0].ID)
}

func TestRunRepositoryRejectsInvalid(t *testing.T) {
	repo := NewRunRepository(setupTestDB(t))

	err := repo.Create(context.Background(), &models.SequenceRun{ID: "x"})
	require.ErrorIs(t, err, ErrInvalidRun)

	var validation *models.ValidationErrors
	require.ErrorAs(t, (&models.SequenceRun{}).Validate(), &validation)
	require.Len(t, validation.Errors, 1)
}
