package sse

import (
	"bufio"
	"io"
	"strings"
)

const (
	initialBufferSize = 64 * 1024
	maxLineSize       = 1024 * 1024
)

// Reader reads SSE events from a source io.Reader. When constructed with
// NewTeeReader, every raw line is also written verbatim to a destination
// writer before it is parsed.
//
// ┌──────────────────┐
// │ source io.Reader │
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐   ┌──────────────────────────┐
// │  Reader.Next()   │──▶│ tee io.Writer (optional) │
// └──────────────────┘   └──────────────────────────┘
// │
// ▼
// ┌──────────────────┐
// │      Event       │
// └──────────────────┘
type Reader struct {
	scanner *bufio.Scanner
	tee     io.Writer

	// current accumulates fields for the event being built in the current scan.
	current *Event
	hasData bool
}

// NewReader returns a Reader that parses SSE events from src.
func NewReader(src io.Reader) *Reader {
	return NewTeeReader(src, nil)
}

// NewTeeReader returns a Reader that parses SSE events from src and writes
// all raw bytes through to tee. A nil tee disables the copy.
func NewTeeReader(src io.Reader, tee io.Writer) *Reader {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, initialBufferSize), maxLineSize)

	return &Reader{
		scanner: scanner,
		tee:     tee,
		current: &Event{},
	}
}

// Next returns the next parsed SSE event. It blocks until a complete event is
// available (terminated by a blank line in the stream). Next returns io.EOF
// once the source is exhausted; any other error comes from the source or the
// tee writer.
func (r *Reader) Next() (*Event, error) {
	for r.scanner.Scan() {
		raw := r.scanner.Text()

		if r.tee != nil {
			// bufio.Scanner strips the newline, so it is reinserted here.
			if _, err := io.WriteString(r.tee, raw+"\n"); err != nil {
				return nil, err
			}
		}

		// A blank line signals the end of the current event.
		if raw == "" {
			if r.hasData {
				return r.take(), nil
			}

			// Leading blank lines and keep-alive newlines.
			continue
		}

		// Lines starting with ':' are comments.
		if strings.HasPrefix(raw, ":") {
			continue
		}

		r.parseLine(raw)
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	// The stream ended without a trailing blank line: yield what is pending.
	if r.hasData {
		return r.take(), nil
	}

	return nil, io.EOF
}

// NextData returns the payload of the next "data:" line, one line at a time.
// Unlike Next it does not join consecutive data lines into one event: each
// line is its own payload, which is how OpenAI-compatible providers frame
// their chunks. Other fields, comments and blank lines are skipped. NextData
// returns io.EOF once the source is exhausted.
func (r *Reader) NextData() (string, error) {
	for r.scanner.Scan() {
		raw := r.scanner.Text()

		if r.tee != nil {
			if _, err := io.WriteString(r.tee, raw+"\n"); err != nil {
				return "", err
			}
		}

		value, ok := strings.CutPrefix(raw, "data:")
		if !ok {
			continue
		}
		return strings.TrimPrefix(value, " "), nil
	}

	if err := r.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// parseLine processes a single non-empty, non-comment SSE line of the form
// "field:value". The first space after the colon is stripped if present.
func (r *Reader) parseLine(line string) {
	field, value, ok := strings.Cut(line, ":")
	if ok {
		value = strings.TrimPrefix(value, " ")
	}

	switch field {
	case "data":
		if r.hasData && r.current.Data != "" {
			r.current.Data += "\n"
		}
		r.current.Data += value
		r.hasData = true
	case "event":
		r.current.Type = value
		r.hasData = true
	case "id":
		r.current.ID = value
		r.hasData = true
	default:
		// "retry" and unknown fields are ignored.
	}
}

func (r *Reader) take() *Event {
	ev := r.current
	r.current = &Event{}
	r.hasData = false
	return ev
}
