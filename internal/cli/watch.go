package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/opencode-ai/sequencer/internal/db"
	"github.com/opencode-ai/sequencer/internal/logging"
	"github.com/opencode-ai/sequencer/internal/models"
)

// watchMode is set by commands that follow the event log.
var watchMode bool

// MustBeJSONLForWatch rejects --follow without --jsonl.
func MustBeJSONLForWatch() error {
	if watchMode && !jsonlOutput {
		return fmt.Errorf("--follow requires --jsonl output")
	}
	return nil
}

// ConnectionStatus describes the streamer's access to the event log.
type ConnectionStatus string

const (
	ConnectionStatusConnected    ConnectionStatus = "connected"
	ConnectionStatusReconnecting ConnectionStatus = "reconnecting"
	ConnectionStatusDisconnected ConnectionStatus = "disconnected"
)

// ReconnectConfig controls retries after failed polls.
type ReconnectConfig struct {
	Enabled bool

	// MaxAttempts is the number of consecutive failures tolerated; 0 means
	// unlimited.
	MaxAttempts int

	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64

	// OnStatusChange is called on every status transition.
	OnStatusChange func(status ConnectionStatus, attempt int, nextRetry time.Duration, err error)
}

// DefaultReconnectConfig retries forever with exponential backoff.
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		Enabled:           true,
		InitialBackoff:    time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// StreamConfig controls an EventStreamer.
type StreamConfig struct {
	PollInterval time.Duration
	BatchSize    int

	// IncludeExisting replays events from Since before following.
	IncludeExisting bool
	Since           *time.Time

	EntityTypes []models.EntityType
	EventTypes  []models.EventType
	EntityID    string

	Reconnect ReconnectConfig
}

// DefaultStreamConfig follows new events only.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		PollInterval: 500 * time.Millisecond,
		BatchSize:    100,
		Reconnect:    DefaultReconnectConfig(),
	}
}

// EventStreamer polls the event log and writes new events as JSON lines.
type EventStreamer struct {
	repo   *db.EventRepository
	out    io.Writer
	config StreamConfig
}

// NewEventStreamer creates a streamer writing to out.
func NewEventStreamer(repo *db.EventRepository, out io.Writer, config StreamConfig) *EventStreamer {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultStreamConfig().PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultStreamConfig().BatchSize
	}
	return &EventStreamer{repo: repo, out: out, config: config}
}

// Stream writes events until ctx is done. It returns nil on cancellation
// and an error once polling fails beyond the reconnect policy.
func (s *EventStreamer) Stream(ctx context.Context) error {
	logger := logging.Component("watch")

	var since *time.Time
	if s.config.IncludeExisting {
		since = s.config.Since
	} else {
		now := time.Now().UTC()
		since = &now
	}

	cursor := ""
	failures := 0
	var backoff time.Duration
	s.notify(ConnectionStatusConnected, 0, 0, nil)

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		events, next, err := s.poll(ctx, cursor, since)
		if err != nil {
			if ctx.Err() != nil {
				s.notify(ConnectionStatusDisconnected, 0, 0, nil)
				return nil
			}
			failures++
			if !s.config.Reconnect.Enabled {
				s.notify(ConnectionStatusDisconnected, failures, 0, err)
				return fmt.Errorf("failed to poll events: %w", err)
			}
			if max := s.config.Reconnect.MaxAttempts; max > 0 && failures > max {
				s.notify(ConnectionStatusDisconnected, failures, 0, err)
				return fmt.Errorf("max reconnection attempts (%d) exceeded: %w", max, err)
			}
			backoff = s.calculateBackoff(failures, backoff)
			logger.Warn().Err(err).Int("attempt", failures).Dur("retry_in", backoff).Msg("event poll failed")
			s.notify(ConnectionStatusReconnecting, failures, backoff, err)

			select {
			case <-ctx.Done():
				s.notify(ConnectionStatusDisconnected, failures, 0, nil)
				return nil
			case <-time.After(backoff):
			}
			continue
		}

		if failures > 0 {
			failures = 0
			backoff = 0
			s.notify(ConnectionStatusConnected, 0, 0, nil)
		}

		for _, event := range events {
			if err := s.writeEvent(event); err != nil {
				return err
			}
		}
		if next != cursor {
			cursor = next
			continue
		}

		select {
		case <-ctx.Done():
			s.notify(ConnectionStatusDisconnected, 0, 0, nil)
			return nil
		case <-ticker.C:
		}
	}
}

// poll reads one batch after cursor. The returned cursor is the last event
// read, matching the filters or not, so filtered batches still advance.
func (s *EventStreamer) poll(ctx context.Context, cursor string, since *time.Time) ([]*models.Event, string, error) {
	q := db.EventQuery{
		Cursor: cursor,
		Limit:  s.config.BatchSize,
	}
	if cursor == "" {
		q.Since = since
	}
	if len(s.config.EntityTypes) == 1 {
		q.EntityType = &s.config.EntityTypes[0]
	}
	if len(s.config.EventTypes) == 1 {
		q.Type = &s.config.EventTypes[0]
	}
	if s.config.EntityID != "" {
		q.EntityID = &s.config.EntityID
	}

	page, err := s.repo.Query(ctx, q)
	if err != nil {
		return nil, cursor, err
	}
	if len(page.Events) == 0 {
		return nil, cursor, nil
	}

	next := page.Events[len(page.Events)-1].ID
	out := make([]*models.Event, 0, len(page.Events))
	for _, event := range page.Events {
		if s.matches(event) {
			out = append(out, event)
		}
	}
	return out, next, nil
}

func (s *EventStreamer) matches(event *models.Event) bool {
	if len(s.config.EntityTypes) > 1 && !containsValue(s.config.EntityTypes, event.EntityType) {
		return false
	}
	if len(s.config.EventTypes) > 1 && !containsValue(s.config.EventTypes, event.Type) {
		return false
	}
	return true
}

func (s *EventStreamer) writeEvent(event *models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", event.ID, err)
	}
	if _, err := fmt.Fprintln(s.out, string(data)); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

func (s *EventStreamer) calculateBackoff(attempt int, current time.Duration) time.Duration {
	cfg := s.config.Reconnect
	if attempt <= 1 || current <= 0 {
		return cfg.InitialBackoff
	}
	next := time.Duration(math.Round(float64(current) * cfg.BackoffMultiplier))
	if cfg.MaxBackoff > 0 && next > cfg.MaxBackoff {
		return cfg.MaxBackoff
	}
	return next
}

func (s *EventStreamer) notify(status ConnectionStatus, attempt int, nextRetry time.Duration, err error) {
	if fn := s.config.Reconnect.OnStatusChange; fn != nil {
		fn(status, attempt, nextRetry, err)
	}
}

func containsValue[T comparable](values []T, v T) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseSince accepts a duration ("30m", "2d") meaning that long ago, an
// RFC3339 timestamp, a date, or a date and time without zone (UTC).
func ParseSince(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	if d, err := parseDurationWithDays(value); err == nil {
		t := time.Now().Add(-d).UTC()
		return &t, nil
	}

	layouts := []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid time %q (use a duration like 1h or 2d, or RFC3339)", value)
}

func parseDurationWithDays(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if days, ok := strings.CutSuffix(value, "d"); ok {
		n, err := strconv.ParseFloat(days, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid day count %q", value)
		}
		return time.Duration(n * float64(24*time.Hour)), nil
	}
	return time.ParseDuration(value)
}
