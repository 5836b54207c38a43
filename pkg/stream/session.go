package stream

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/llmux/pkg/logger"
)

var (
	// ErrFamilyMismatch is returned by NewSession when a transport's family
	// disagrees with the provider's registered family.
	ErrFamilyMismatch = errors.New("transport family does not match provider")

	// ErrUnexpectedEOF is the error reported under TerminationStrict when a
	// transport ends without a [DONE] sentinel or a finish reason.
	ErrUnexpectedEOF = errors.New("unexpected stream termination")
)

// Status is the result of one pull from a Session.
type Status int

const (
	// StatusChunk means a chunk was produced and the session may continue.
	StatusChunk Status = iota

	// StatusEnd means the session is exhausted. The returned chunk is zero.
	StatusEnd

	// StatusError means the transport failed. The returned chunk is the
	// session's single terminal error chunk.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusChunk:
		return "chunk"
	case StatusEnd:
		return "end"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// State is the lifecycle of a Session.
type State int

const (
	StateActive State = iota
	StateFinished
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateFinished:
		return "finished"
	case StateErrored:
		return "errored"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// TerminationPolicy decides what a transport ending without [DONE] or a
// finish reason means.
type TerminationPolicy int

const (
	// TerminationLenient ends the session quietly.
	TerminationLenient TerminationPolicy = iota

	// TerminationStrict reports ErrUnexpectedEOF as an error chunk.
	TerminationStrict
)

// Option configures a Session.
type Option func(*Session)

// WithTerminationPolicy sets how an unterminated stream is reported.
func WithTerminationPolicy(p TerminationPolicy) Option {
	return func(s *Session) {
		s.policy = p
	}
}

// WithLogger sets the logger used for lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithID overrides the generated session ID.
func WithID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// Session normalizes one provider stream into chunks. It owns its transport,
// is pulled by a single consumer and is not restartable.
type Session struct {
	id        string
	provider  string
	transport *Transport
	decoder   decoder

	acc          Accumulator
	state        State
	finishReason string
	err          error
	closed       bool

	policy TerminationPolicy
	logger *slog.Logger

	startedAt time.Time
	endedAt   time.Time
}

// NewSession binds a transport to a provider name. The transport's family
// must match the provider's entry in Families when one is registered.
func NewSession(provider string, t *Transport, opts ...Option) (*Session, error) {
	if t == nil {
		return nil, errors.New("nil transport")
	}
	if family, ok := Families.Classify(provider); ok && family != t.Family() {
		return nil, fmt.Errorf("%w: provider %q is %s, transport is %s",
			ErrFamilyMismatch, provider, family, t.Family())
	}

	s := &Session{
		id:        uuid.NewString(),
		provider:  provider,
		transport: t,
		decoder:   newDecoder(t),
		state:     StateActive,
		logger:    logger.Nop(),
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session_id", s.id, "provider", provider)
	return s, nil
}

// Next pulls the next chunk. Transport failures, including panics raised
// while reading, are contained and returned as a single error chunk with
// StatusError. Once the session is finished or errored every call returns
// StatusEnd without touching the transport.
func (s *Session) Next() (chunk Chunk, status Status) {
	if s.state != StateActive {
		return Chunk{}, StatusEnd
	}

	defer func() {
		if r := recover(); r != nil {
			chunk, status = s.fail(fmt.Errorf("transport panic: %v", r))
		}
	}()

	f, err := s.decoder.decode()
	switch {
	case errors.Is(err, errDone):
		s.finish("")
		return Chunk{}, StatusEnd
	case errors.Is(err, io.EOF):
		if s.policy == TerminationStrict {
			return s.fail(ErrUnexpectedEOF)
		}
		s.finish("")
		return Chunk{}, StatusEnd
	case err != nil:
		return s.fail(err)
	}

	s.acc.Add(f.content)
	chunk = newChunk(f.content, f.finishReason, f.metadata)
	if f.finishReason != "" {
		s.finish(f.finishReason)
	}
	return chunk, StatusChunk
}

func (s *Session) finish(reason string) {
	s.state = StateFinished
	s.finishReason = reason
	s.endedAt = time.Now()
	s.logger.Debug("stream finished",
		"finish_reason", reason,
		"chunks", s.acc.Count(),
		"content_length", s.acc.Len(),
	)
	s.release()
}

func (s *Session) fail(err error) (Chunk, Status) {
	s.state = StateErrored
	s.err = err
	s.endedAt = time.Now()
	s.logger.Warn("stream failed", "error", err, "chunks", s.acc.Count())
	s.release()
	return newErrorChunk(err.Error(), s.provider), StatusError
}

func (s *Session) release() {
	if err := s.Close(); err != nil {
		s.logger.Debug("closing transport", "error", err)
	}
}

// Close releases the transport. It is idempotent. Closing an active session
// abandons it: later pulls return StatusEnd.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.state == StateActive {
		s.state = StateFinished
		s.endedAt = time.Now()
	}
	return s.transport.Close()
}

// ID returns the session's identifier.
func (s *Session) ID() string { return s.id }

// Provider returns the provider name the session was opened for.
func (s *Session) Provider() string { return s.provider }

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// Err returns the error that terminated the session, if any.
func (s *Session) Err() error { return s.err }

// FinishReason returns the provider's finish reason once seen.
func (s *Session) FinishReason() string { return s.finishReason }

// Content returns the content accumulated so far.
func (s *Session) Content() string { return s.acc.Content() }

// ChunkCount returns the number of non-empty content chunks seen so far.
func (s *Session) ChunkCount() int { return s.acc.Count() }

// ContentLength returns the accumulated content length in characters.
func (s *Session) ContentLength() int { return s.acc.Len() }

// Summary describes a session at the time of the call.
type Summary struct {
	ID            string        `json:"id"`
	Provider      string        `json:"provider"`
	State         string        `json:"state"`
	FinishReason  string        `json:"finish_reason,omitempty"`
	Error         string        `json:"error,omitempty"`
	ChunkCount    int           `json:"chunk_count"`
	ContentLength int           `json:"content_length"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
}

// Summary snapshots the session.
func (s *Session) Summary() Summary {
	end := s.endedAt
	if end.IsZero() {
		end = time.Now()
	}

	sum := Summary{
		ID:            s.id,
		Provider:      s.provider,
		State:         s.state.String(),
		FinishReason:  s.finishReason,
		ChunkCount:    s.acc.Count(),
		ContentLength: s.acc.Len(),
		StartedAt:     s.startedAt,
		Duration:      end.Sub(s.startedAt),
	}
	if s.err != nil {
		sum.Error = s.err.Error()
	}
	return sum
}
