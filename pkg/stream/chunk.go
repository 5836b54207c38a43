package stream

import (
	"bytes"
	"encoding/json"
	"math"
	"time"
)

// Kind distinguishes ordinary content from terminal chunks.
type Kind string

const (
	KindContent Kind = "content"
	KindFinish  Kind = "finish"
	KindError   Kind = "error"
)

// Chunk is one normalized unit of streamed model output.
type Chunk struct {
	// Content is the text fragment emitted in this step, "" if none.
	Content string

	Kind Kind

	// FinishReason is the provider's terminal state label ("stop",
	// "length", ...). Empty until the model signals completion.
	FinishReason string

	// Metadata carries provider auxiliary data such as "usage" and
	// "search_results". Most chunks leave it empty.
	Metadata map[string]any

	// Error is set on the single terminal error chunk of a failed stream.
	Error string

	Timestamp time.Time
}

func newChunk(content, finishReason string, metadata map[string]any) Chunk {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return Chunk{
		Content:      content,
		Kind:         KindContent,
		FinishReason: finishReason,
		Metadata:     metadata,
		Timestamp:    time.Now(),
	}
}

func newErrorChunk(message, provider string) Chunk {
	return Chunk{
		Kind:      KindError,
		Error:     message,
		Metadata:  map[string]any{"provider": provider},
		Timestamp: time.Now(),
	}
}

// IsTerminal reports whether no further chunks may follow this one.
func (c Chunk) IsTerminal() bool {
	return c.Error != "" || c.FinishReason != ""
}

// chunkWire is the JSON wire contract for a Chunk. Empty finish reasons and
// errors are rendered as null.
type chunkWire struct {
	Content      string         `json:"content"`
	Type         Kind           `json:"type"`
	FinishReason *string        `json:"finish_reason"`
	Metadata     map[string]any `json:"metadata"`
	Error        *string        `json:"error"`
	Timestamp    float64        `json:"timestamp"`
}

// MarshalJSON implements json.Marshaler.
func (c Chunk) MarshalJSON() ([]byte, error) {
	w := chunkWire{
		Content:   c.Content,
		Type:      c.Kind,
		Metadata:  c.Metadata,
		Timestamp: float64(c.Timestamp.UnixNano()) / float64(time.Second),
	}
	if w.Type == "" {
		w.Type = KindContent
	}
	if w.Metadata == nil {
		w.Metadata = map[string]any{}
	}
	if c.FinishReason != "" {
		w.FinishReason = &c.FinishReason
	}
	if c.Error != "" {
		w.Error = &c.Error
	}

	// Model output is forwarded verbatim: no HTML escaping of <, > and &.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(w); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalJSON implements json.Unmarshaler so clients of the SSE and
// websocket sinks can decode chunks back.
func (c *Chunk) UnmarshalJSON(data []byte) error {
	var w chunkWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*c = Chunk{
		Content:   w.Content,
		Kind:      w.Type,
		Metadata:  w.Metadata,
		Timestamp: fromUnixSeconds(w.Timestamp),
	}
	if w.FinishReason != nil {
		c.FinishReason = *w.FinishReason
	}
	if w.Error != nil {
		c.Error = *w.Error
	}
	return nil
}

func fromUnixSeconds(ts float64) time.Time {
	sec := math.Floor(ts)
	return time.Unix(int64(sec), int64(math.Round((ts-sec)*float64(time.Second))))
}

// JSON returns the serialized wire form of the chunk.
func (c Chunk) JSON() string {
	b, err := c.MarshalJSON()
	if err != nil {
		// Metadata holding an unencodable value degrades to an error chunk
		// rather than a broken frame.
		fallback, _ := newErrorChunk("encoding chunk: "+err.Error(), "").MarshalJSON()
		return string(fallback)
	}
	return string(b)
}
