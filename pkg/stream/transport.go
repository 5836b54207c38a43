package stream

import (
	"errors"
	"io"
)

// EventSource is a structured event stream as exposed by an SDK client: a
// cursor that is advanced with Next and read with Event.
type EventSource interface {
	Next() bool
	Event() TypedEvent
	Err() error
	Close() error
}

// TypedEvent is the provider-neutral view of one typed SDK event. Each
// typed-event provider supplies a fixed function producing it from the SDK's
// own chunk type.
type TypedEvent struct {
	Content      string
	FinishReason string

	// Usage is nil when the event carries no token accounting.
	Usage *Usage

	// SearchResults holds decoded search results when the provider attaches
	// them (perplexity), nil otherwise.
	SearchResults any
}

// Usage is normalized token accounting.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Map returns the usage counters keyed by their wire names.
func (u Usage) Map() map[string]any {
	return map[string]any{
		"prompt_tokens":     u.PromptTokens,
		"completion_tokens": u.CompletionTokens,
		"total_tokens":      u.TotalTokens,
	}
}

// Transport is an open provider stream tagged with its family. Exactly one
// of its variants is populated: a typed event source, a raw SSE body, or an
// error raised while opening the stream.
type Transport struct {
	family Family

	events EventSource
	body   io.ReadCloser
	tee    io.Writer

	openErr error
}

// TypedEvents wraps an SDK event source as a typed-event transport.
func TypedEvents(src EventSource) *Transport {
	return &Transport{family: FamilyTypedEvent, events: src}
}

// RawSSE wraps a raw HTTP response body as a raw-SSE transport.
func RawSSE(body io.ReadCloser) *Transport {
	return &Transport{family: FamilyRawSSE, body: body}
}

// Failed returns a transport that yields err on its first pull. Errors raised
// while opening a stream travel through it so they surface as the session's
// single error chunk.
func Failed(family Family, err error) *Transport {
	if err == nil {
		err = errors.New("stream failed to open")
	}
	return &Transport{family: family, openErr: err}
}

// WithTee copies every raw SSE line read from the body to w. It has no effect
// on typed-event transports.
func (t *Transport) WithTee(w io.Writer) *Transport {
	t.tee = w
	return t
}

// Family returns the transport's family tag.
func (t *Transport) Family() Family {
	return t.family
}

// Close releases the underlying connection.
func (t *Transport) Close() error {
	switch {
	case t.events != nil:
		return t.events.Close()
	case t.body != nil:
		return t.body.Close()
	default:
		return nil
	}
}
