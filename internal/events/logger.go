// Package events provides helper functions for logging sequencer events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opencode-ai/sequencer/internal/models"
	"github.com/opencode-ai/sequencer/internal/scheduler"
)

// Repository is the minimal interface needed to write events.
type Repository interface {
	Create(ctx context.Context, event *models.Event) error
}

var schedulerEventTypes = map[scheduler.EventKind]models.EventType{
	scheduler.EventActivated:  models.EventTypeCommandActivated,
	scheduler.EventCompleted:  models.EventTypeCommandCompleted,
	scheduler.EventCancelled:  models.EventTypeCommandCancelled,
	scheduler.EventDiscarded:  models.EventTypeCommandDiscarded,
	scheduler.EventUnresolved: models.EventTypeCommandUnresolved,
	scheduler.EventMessage:    models.EventTypeMessageSent,
	scheduler.EventFinished:   models.EventTypeSequenceFinished,
	scheduler.EventClosed:     models.EventTypeSequenceClosed,
}

// LogSequenceStarted records the start of a playback.
func LogSequenceStarted(ctx context.Context, repo Repository, sequenceID string, payload models.SequenceStartedPayload) error {
	return logSequence(ctx, repo, sequenceID, models.EventTypeSequenceStarted, payload)
}

// LogSequenceStopped records an early stop requested by the caller.
func LogSequenceStopped(ctx context.Context, repo Repository, sequenceID string) error {
	return logSequence(ctx, repo, sequenceID, models.EventTypeSequenceStopped, nil)
}

// LogSchedulerEvent records a scheduler lifecycle event for a sequence.
func LogSchedulerEvent(ctx context.Context, repo Repository, sequenceID string, e scheduler.Event) error {
	eventType, ok := schedulerEventTypes[e.Kind]
	if !ok {
		return fmt.Errorf("unknown scheduler event kind %q", e.Kind)
	}

	var payload any
	switch e.Kind {
	case scheduler.EventMessage:
		payload = models.MessagePayload{Name: e.Message, Source: "scheduler"}
	case scheduler.EventFinished, scheduler.EventClosed:
		payload = nil
	default:
		payload = models.CommandPayload{
			Statement: e.Statement,
			Forced:    e.Forced,
			At:        e.At.String(),
		}
	}
	return logSequence(ctx, repo, sequenceID, eventType, payload)
}

// LogSequenceFinished records a drained sequence with its totals.
func LogSequenceFinished(ctx context.Context, repo Repository, sequenceID string, activations int64, elapsed time.Duration) error {
	return logSequence(ctx, repo, sequenceID, models.EventTypeSequenceFinished, models.SequenceFinishedPayload{
		Activations: activations,
		Elapsed:     elapsed.String(),
	})
}

// LogMessageReceived records a named message that arrived from outside the
// process.
func LogMessageReceived(ctx context.Context, repo Repository, bridgeID, name, source string) error {
	if repo == nil {
		return fmt.Errorf("event repository is required")
	}
	if bridgeID == "" {
		return fmt.Errorf("bridge id is required")
	}

	payload, err := json.Marshal(models.MessagePayload{Name: name, Source: source})
	if err != nil {
		return fmt.Errorf("failed to marshal message payload: %w", err)
	}

	return repo.Create(ctx, &models.Event{
		Type:       models.EventTypeMessageReceived,
		EntityType: models.EntityTypeBridge,
		EntityID:   bridgeID,
		Payload:    payload,
	})
}

func logSequence(ctx context.Context, repo Repository, sequenceID string, eventType models.EventType, payload any) error {
	if repo == nil {
		return fmt.Errorf("event repository is required")
	}
	if sequenceID == "" {
		return fmt.Errorf("sequence id is required")
	}

	event := &models.Event{
		Type:       eventType,
		EntityType: models.EntityTypeSequence,
		EntityID:   sequenceID,
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
		}
		event.Payload = data
	}

	return repo.Create(ctx, event)
}
