// Package sse parses Server-Sent Events from an upstream LLM provider.
//
// The Reader turns a raw text/event-stream body into discrete events and can
// optionally tee every raw byte to a second writer, which the chat command
// uses to dump the upstream wire format for debugging.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

import "strings"

// DoneSentinel is the payload OpenAI-compatible providers send as the final
// data frame of a stream.
const DoneSentinel = "[DONE]"

// Event represents a single parsed SSE event, delimited by a blank line
// in the upstream byte stream.
type Event struct {
	// Type is the SSE event type from the "event:" field.
	// An empty string means the default "message" type per the SSE spec.
	Type string

	// Data is the concatenated contents of all "data:" lines for this event,
	// joined with "\n".
	Data string

	// ID is the last event ID from the "id:" field, if present.
	ID string
}

// IsDone reports whether the event carries the [DONE] sentinel.
func (e *Event) IsDone() bool {
	return IsDone(e.Data)
}

// IsDone reports whether a data payload is the [DONE] sentinel.
func IsDone(data string) bool {
	return strings.TrimSpace(data) == DoneSentinel
}

// Frame renders data as a single SSE data frame terminated by a blank line.
func Frame(data string) string {
	return "data: " + data + "\n\n"
}

// DoneFrame is the rendered [DONE] sentinel frame.
var DoneFrame = Frame(DoneSentinel)
