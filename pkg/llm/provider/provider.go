// Package provider builds and dispatches to the streaming chat providers.
package provider

import (
	"context"
	"errors"

	"github.com/papercomputeco/llmux/pkg/llm"
	"github.com/papercomputeco/llmux/pkg/stream"
)

var (
	// ErrUnknownProvider is returned for provider names outside SupportedProviders.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrMissingAPIKey is reported when a provider is used without a key.
	ErrMissingAPIKey = errors.New("missing API key")
)

// Provider opens streams against one upstream chat completions API.
type Provider interface {
	// Name returns the canonical provider name (e.g., "openai", "groq").
	Name() string

	// Family returns how the provider's streams are consumed.
	Family() stream.Family

	// Stream issues a streaming chat completion. The context bounds the
	// whole upstream request, including reading the stream.
	Stream(ctx context.Context, req *llm.ChatRequest) (*stream.Transport, error)
}
