package llm

import (
	"net/http"
	"strings"
)

// Endpoint describes how to reach one provider and what it accepts. The
// provider layer builds one per configured provider; transports read it and
// never consult ambient configuration.
type Endpoint struct {
	// Name is the canonical provider name ("openai", "groq", ...).
	Name string

	BaseURL      string
	APIKey       string
	DefaultModel string

	// Defaults fill generation parameters the request leaves unset.
	Defaults Sampling

	// SupportsTopK and SupportsPenalties gate parameters some providers
	// reject; unsupported ones are dropped before sending.
	SupportsTopK      bool
	SupportsPenalties bool

	// HTTPClient is used for upstream calls. Nil means http.DefaultClient.
	HTTPClient *http.Client
}

// Resolve returns a copy of req with the endpoint's defaults applied and
// unsupported parameters removed.
func (e Endpoint) Resolve(req *ChatRequest) ChatRequest {
	out := ChatRequest{}
	if req != nil {
		out = *req
	}
	if out.Model == "" {
		out.Model = e.DefaultModel
	}

	out.Sampling = out.Sampling.Merge(e.Defaults)
	if out.MaxTokens != nil && *out.MaxTokens <= 0 {
		out.MaxTokens = nil
	}
	if !e.SupportsTopK {
		out.TopK = nil
	}
	if !e.SupportsPenalties {
		out.PresencePenalty = nil
		out.FrequencyPenalty = nil
	}
	return out
}

// ChatCompletionsURL returns the endpoint's chat completions URL.
func (e Endpoint) ChatCompletionsURL() string {
	return strings.TrimRight(e.BaseURL, "/") + "/chat/completions"
}

// Client returns the HTTP client for upstream calls.
func (e Endpoint) Client() *http.Client {
	if e.HTTPClient != nil {
		return e.HTTPClient
	}
	return http.DefaultClient
}
