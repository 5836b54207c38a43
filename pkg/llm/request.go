package llm

import (
	"errors"
	"fmt"
)

// ErrNoMessages is returned by Validate for a request without messages.
var ErrNoMessages = errors.New("chat request has no messages")

// ChatRequest represents a provider-agnostic chat completion request.
// Unset generation parameters fall back to the provider's defaults.
type ChatRequest struct {
	// Model name or alias (e.g., "gpt-4-turbo", "llama-3.1-8b").
	// Empty selects the provider's default model.
	Model string `json:"model,omitempty"`

	// Conversation messages
	Messages []Message `json:"messages"`

	// Generation parameters (unified across providers)
	Sampling

	Stop []string `json:"stop,omitempty"`
	Seed *int     `json:"seed,omitempty"`
}

// Sampling holds the optional generation parameters shared by requests and
// provider defaults.
type Sampling struct {
	MaxTokens        *int     `json:"max_tokens,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	TopK             *int     `json:"top_k,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
}

// Merge returns s with every unset field taken from defaults.
func (s Sampling) Merge(defaults Sampling) Sampling {
	if s.MaxTokens == nil {
		s.MaxTokens = defaults.MaxTokens
	}
	if s.Temperature == nil {
		s.Temperature = defaults.Temperature
	}
	if s.TopP == nil {
		s.TopP = defaults.TopP
	}
	if s.TopK == nil {
		s.TopK = defaults.TopK
	}
	if s.PresencePenalty == nil {
		s.PresencePenalty = defaults.PresencePenalty
	}
	if s.FrequencyPenalty == nil {
		s.FrequencyPenalty = defaults.FrequencyPenalty
	}
	return s
}

// NewPrompt builds a request from an optional system prompt and a user
// prompt.
func NewPrompt(system, user string) *ChatRequest {
	req := &ChatRequest{}
	if system != "" {
		req.Messages = append(req.Messages, NewTextMessage(RoleSystem, system))
	}
	req.Messages = append(req.Messages, NewTextMessage(RoleUser, user))
	return req
}

// Validate checks the request for values no provider accepts.
func (r *ChatRequest) Validate() error {
	if len(r.Messages) == 0 {
		return ErrNoMessages
	}
	for i, m := range r.Messages {
		switch m.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			return fmt.Errorf("message %d: unsupported role %q", i, m.Role)
		}
	}
	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 2) {
		return fmt.Errorf("temperature %v out of range [0, 2]", *r.Temperature)
	}
	if r.TopP != nil && (*r.TopP < 0 || *r.TopP > 1) {
		return fmt.Errorf("top_p %v out of range [0, 1]", *r.TopP)
	}
	if r.MaxTokens != nil && *r.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", *r.MaxTokens)
	}
	for name, p := range map[string]*float64{
		"presence_penalty":  r.PresencePenalty,
		"frequency_penalty": r.FrequencyPenalty,
	} {
		if p != nil && (*p < -2 || *p > 2) {
			return fmt.Errorf("%s %v out of range [-2, 2]", name, *p)
		}
	}
	return nil
}

// Float returns a pointer to v, for optional request fields.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v, for optional request fields.
func Int(v int) *int { return &v }
