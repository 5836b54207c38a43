package stream

import (
	"fmt"
	"io"
	"iter"
	"maps"
	"strings"
	"time"

	"github.com/papercomputeco/llmux/pkg/sse"
)

// Response projects a Session into one of three consumption modes. Each
// projection drains the session; a Response is consumed once.
type Response struct {
	session  *Session
	doneSent bool
}

// NewResponse wraps a session.
func NewResponse(s *Session) *Response {
	return &Response{session: s}
}

// Open binds a transport to provider and wraps the resulting session. A
// family mismatch is reported through the returned response as an error
// chunk, so callers always get a stream they can drain.
func Open(provider string, t *Transport, opts ...Option) *Response {
	s, err := NewSession(provider, t, opts...)
	if err != nil {
		family, ok := Families.Classify(provider)
		if !ok && t != nil {
			family = t.Family()
		}
		if t != nil {
			_ = t.Close()
		}
		s, _ = NewSession(provider, Failed(family, err), opts...)
	}
	return NewResponse(s)
}

// Session returns the underlying session.
func (r *Response) Session() *Session {
	return r.session
}

// EventStream yields server-sent event frames: one "data: <chunk>\n\n" frame
// per chunk carrying content or an error, a synthetic finish frame when the
// provider reports a finish reason, and a final "data: [DONE]\n\n". The
// sentinel is yielded exactly once on every exit path unless the consumer
// stops the iteration. The transport is closed when the iteration ends.
func (r *Response) EventStream() iter.Seq[string] {
	return func(yield func(string) bool) {
		s := r.session
		defer s.Close()

		// open is false while yield runs so a panicking consumer is never
		// called again from the deferred sentinel.
		open := true
		emit := func(frame string) bool {
			open = false
			open = yield(frame)
			return open
		}
		defer func() {
			if open && !r.doneSent {
				r.doneSent = true
				yield(sse.DoneFrame)
			}
		}()

		for {
			chunk, status := s.Next()
			if status == StatusEnd {
				return
			}

			if chunk.Content != "" || chunk.Error != "" {
				if !emit(sse.Frame(chunk.JSON())) {
					return
				}
			}
			if chunk.FinishReason != "" {
				emit(sse.Frame(r.finishChunk(chunk).JSON()))
				return
			}
			if status == StatusError {
				return
			}
		}
	}
}

func (r *Response) finishChunk(last Chunk) Chunk {
	return Chunk{
		Kind:         KindFinish,
		FinishReason: last.FinishReason,
		Metadata: map[string]any{
			"total_chunks":         r.session.ChunkCount(),
			"total_content_length": r.session.ContentLength(),
			"provider":             r.session.Provider(),
		},
		Timestamp: time.Now(),
	}
}

// WriteEventStream writes EventStream frames to w. It stops at the first
// write error, which usually means the client went away, and returns it.
func (r *Response) WriteEventStream(w io.Writer) error {
	var writeErr error
	for frame := range r.EventStream() {
		if _, err := io.WriteString(w, frame); err != nil {
			writeErr = fmt.Errorf("writing event frame: %w", err)
			break
		}
		if f, ok := w.(interface{ Flush() error }); ok {
			if err := f.Flush(); err != nil {
				writeErr = fmt.Errorf("flushing event frame: %w", err)
				break
			}
		}
	}
	return writeErr
}

// MessageStream yields the JSON form of every chunk carrying content, an
// error or a finish reason, for message-oriented sinks such as websockets.
// It yields no framing and no sentinel.
func (r *Response) MessageStream() iter.Seq[string] {
	return func(yield func(string) bool) {
		s := r.session
		defer s.Close()

		for {
			chunk, status := s.Next()
			if status == StatusEnd {
				return
			}
			if chunk.Content != "" || chunk.Error != "" || chunk.FinishReason != "" {
				if !yield(chunk.JSON()) {
					return
				}
			}
			if chunk.IsTerminal() || status == StatusError {
				return
			}
		}
	}
}

// Result is the outcome of CollectFull.
type Result struct {
	Success    bool           `json:"success"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata"`
	ChunkCount int            `json:"chunk_count"`
	Error      string         `json:"error,omitempty"`
}

// CollectFull drains the session and returns the concatenated content with
// merged metadata, later keys overwriting earlier ones. On an error chunk it
// returns what was collected so far with Success false.
func (r *Response) CollectFull() Result {
	s := r.session
	defer s.Close()

	var content strings.Builder
	res := Result{Metadata: map[string]any{}}
	for {
		chunk, status := s.Next()
		if status == StatusEnd {
			break
		}

		if chunk.Content != "" {
			content.WriteString(chunk.Content)
			res.ChunkCount++
		}
		maps.Copy(res.Metadata, chunk.Metadata)

		if chunk.Error != "" {
			res.Content = content.String()
			res.Error = chunk.Error
			return res
		}
	}

	res.Success = true
	res.Content = content.String()
	return res
}
