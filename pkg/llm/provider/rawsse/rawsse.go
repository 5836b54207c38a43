// Package rawsse streams chat completions from OpenAI-compatible providers
// consumed as raw server-sent event bodies (Groq, Alibaba DashScope).
package rawsse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/papercomputeco/llmux/pkg/llm"
	"github.com/papercomputeco/llmux/pkg/stream"
)

// maxErrorBody bounds how much of a failed response is quoted in errors.
const maxErrorBody = 4 << 10

// Provider is a raw-SSE provider speaking the OpenAI chat completions wire
// format over plain HTTP.
type Provider struct {
	endpoint llm.Endpoint
	tee      io.Writer
}

// Option configures a Provider.
type Option func(*Provider)

// WithTee copies the raw upstream event stream to w.
func WithTee(w io.Writer) Option {
	return func(p *Provider) {
		p.tee = w
	}
}

// New creates a provider for endpoint.
func New(endpoint llm.Endpoint, opts ...Option) *Provider {
	p := &Provider{endpoint: endpoint}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string {
	return p.endpoint.Name
}

func (p *Provider) Family() stream.Family {
	return stream.FamilyRawSSE
}

// chatRequest is the OpenAI-compatible request body.
type chatRequest struct {
	Model            string        `json:"model"`
	Messages         []chatMessage `json:"messages"`
	Stream           bool          `json:"stream"`
	Temperature      *float64      `json:"temperature,omitempty"`
	TopP             *float64      `json:"top_p,omitempty"`
	TopK             *int          `json:"top_k,omitempty"`
	MaxTokens        *int          `json:"max_tokens,omitempty"`
	Stop             []string      `json:"stop,omitempty"`
	Seed             *int          `json:"seed,omitempty"`
	PresencePenalty  *float64      `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64      `json:"frequency_penalty,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Stream posts a streaming chat completion and returns the response body as
// a raw-SSE transport. Transport-level and HTTP status failures are returned
// as errors; the caller decides how to surface them.
func (p *Provider) Stream(ctx context.Context, req *llm.ChatRequest) (*stream.Transport, error) {
	resolved := p.endpoint.Resolve(req)

	body := chatRequest{
		Model:            resolved.Model,
		Messages:         make([]chatMessage, 0, len(resolved.Messages)),
		Stream:           true,
		Temperature:      resolved.Temperature,
		TopP:             resolved.TopP,
		TopK:             resolved.TopK,
		MaxTokens:        resolved.MaxTokens,
		Stop:             resolved.Stop,
		Seed:             resolved.Seed,
		PresencePenalty:  resolved.PresencePenalty,
		FrequencyPenalty: resolved.FrequencyPenalty,
	}
	for _, m := range resolved.Messages {
		body.Messages = append(body.Messages, chatMessage{Role: m.Role, Content: m.GetText()})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding %s request: %w", p.endpoint.Name, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint.ChatCompletionsURL(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating %s request: %w", p.endpoint.Name, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if p.endpoint.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.endpoint.APIKey)
	}

	resp, err := p.endpoint.Client().Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", p.endpoint.Name, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			Provider:   p.endpoint.Name,
			StatusCode: resp.StatusCode,
			Body:       string(bytes.TrimSpace(detail)),
		}
	}

	t := stream.RawSSE(resp.Body)
	if p.tee != nil {
		t.WithTee(p.tee)
	}
	return t, nil
}

// StatusError is returned when the upstream answers with an HTTP error.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s returned %d %s", e.Provider, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}
