package stream

import (
	"strings"
	"unicode/utf8"
)

// Accumulator is the running concatenation of a session's content fragments.
type Accumulator struct {
	buf   strings.Builder
	count int
}

// Add appends a fragment. Empty fragments are ignored and not counted.
func (a *Accumulator) Add(fragment string) {
	if fragment == "" {
		return
	}
	a.buf.WriteString(fragment)
	a.count++
}

// Content returns everything accumulated so far.
func (a *Accumulator) Content() string {
	return a.buf.String()
}

// Count returns the number of non-empty fragments added.
func (a *Accumulator) Count() int {
	return a.count
}

// Len returns the accumulated length in characters.
func (a *Accumulator) Len() int {
	return utf8.RuneCountInString(a.buf.String())
}
