package models

import (
	"strings"
	"time"
)

// RunStatus is the outcome of a sequence run.
type RunStatus string

const (
	RunStatusPlaying  RunStatus = "playing"
	RunStatusFinished RunStatus = "finished"
	RunStatusStopped  RunStatus = "stopped"
)

// SequenceRun records one playback of a sequence.
type SequenceRun struct {
	// ID is the handle ID of the playback.
	ID string `json:"id"`

	// Sequence is the raw sequence text after entrytag substitution.
	Sequence string `json:"sequence"`

	// Cutscene is the library cutscene name, if played from the library.
	Cutscene string `json:"cutscene,omitempty"`

	// Speaker and Listener are the participant node names.
	Speaker  string `json:"speaker,omitempty"`
	Listener string `json:"listener,omitempty"`

	// Status is the current run status.
	Status RunStatus `json:"status"`

	// Activations is the number of statements dispatched.
	Activations int64 `json:"activations"`

	// StartedAt is when playback started.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the run finished or was stopped.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Validate checks if the run is valid.
func (r *SequenceRun) Validate() error {
	validation := &ValidationErrors{}
	if strings.TrimSpace(r.Sequence) == "" {
		validation.AddMessage("sequence", "sequence is required")
	}
	switch r.Status {
	case "", RunStatusPlaying, RunStatusFinished, RunStatusStopped:
	default:
		validation.AddMessage("status", "unknown status "+string(r.Status))
	}
	return validation.Err()
}

// Duration returns how long the run took, or zero while it is still playing.
func (r *SequenceRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunQuery filters sequence runs.
type RunQuery struct {
	Cutscene *string
	Status   *RunStatus
	Since    *time.Time
	Limit    int
}
