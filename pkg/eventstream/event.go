package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/llmux/pkg/stream"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeSessionCompleted is emitted after a stream session reaches a
	// terminal state.
	EventTypeSessionCompleted = "llmux.session.completed"
)

// SessionCompletedEvent is a transport-neutral event payload for a finished
// stream session.
type SessionCompletedEvent struct {
	SchemaVersion int            `json:"schema_version"`
	EventType     string         `json:"event_type"`
	EventID       string         `json:"event_id"`
	EmittedAt     time.Time      `json:"emitted_at"`
	Source        EventSource    `json:"source"`
	Request       RequestMeta    `json:"request_meta"`
	Session       stream.Summary `json:"session"`
}

// EventSource identifies where the session originated.
type EventSource struct {
	Sink     string `json:"sink"`
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
}

// RequestMeta captures request lifecycle metadata for the event.
type RequestMeta struct {
	Path        string    `json:"path,omitempty"`
	RemoteAddr  string    `json:"remote_addr,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
}

// NewSessionCompletedEvent builds an event for summary with a fresh event ID.
func NewSessionCompletedEvent(summary stream.Summary, source EventSource, req RequestMeta) *SessionCompletedEvent {
	now := time.Now().UTC()
	if req.CompletedAt.IsZero() {
		req.CompletedAt = now
	}
	if req.StartedAt.IsZero() {
		req.StartedAt = summary.StartedAt
	}
	if req.DurationMs == 0 && !req.StartedAt.IsZero() {
		req.DurationMs = req.CompletedAt.Sub(req.StartedAt).Milliseconds()
	}
	if source.Provider == "" {
		source.Provider = summary.Provider
	}

	return &SessionCompletedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeSessionCompleted,
		EventID:       uuid.NewString(),
		EmittedAt:     now,
		Source:        source,
		Request:       req,
		Session:       summary,
	}
}
