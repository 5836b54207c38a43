package stream

import (
	"fmt"
	"sort"
	"strings"
)

// Family classifies how a provider's stream is consumed.
type Family int

const (
	// FamilyTypedEvent providers are consumed through a structured SDK
	// client that exposes delta and finish fields directly.
	FamilyTypedEvent Family = iota + 1

	// FamilyRawSSE providers are consumed from raw HTTP bodies framed as
	// "data: {...}" lines terminated by "data: [DONE]".
	FamilyRawSSE
)

func (f Family) String() string {
	switch f {
	case FamilyTypedEvent:
		return "typed-event"
	case FamilyRawSSE:
		return "raw-sse"
	default:
		return fmt.Sprintf("family(%d)", int(f))
	}
}

// Families is the static provider-name to family table. Callers register
// newly integrated providers here instead of touching decoder code.
var Families = FamilyTable{
	"openai":     FamilyTypedEvent,
	"gemini":     FamilyTypedEvent,
	"perplexity": FamilyTypedEvent,
	"groq":       FamilyRawSSE,
	"ali":        FamilyRawSSE,
}

// FamilyTable maps lower-cased provider names to families.
type FamilyTable map[string]Family

// Classify returns the family registered for provider. Lookup is
// case-insensitive.
func (t FamilyTable) Classify(provider string) (Family, bool) {
	f, ok := t[strings.ToLower(strings.TrimSpace(provider))]
	return f, ok
}

// Register adds or replaces the family of provider.
func (t FamilyTable) Register(provider string, family Family) {
	t[strings.ToLower(strings.TrimSpace(provider))] = family
}

// Names returns the registered provider names in sorted order.
func (t FamilyTable) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
