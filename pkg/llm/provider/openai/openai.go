// Package openai streams chat completions from providers consumed through
// the OpenAI Go SDK: OpenAI itself and the OpenAI-compatible endpoints of
// Gemini and Perplexity.
package openai

import (
	"context"
	"encoding/json"
	"strings"

	openaigo "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"

	"github.com/papercomputeco/llmux/pkg/llm"
	"github.com/papercomputeco/llmux/pkg/stream"
)

// Provider is a typed-event provider backed by the OpenAI SDK client.
type Provider struct {
	endpoint llm.Endpoint
	client   *openaigo.Client
}

// New creates a provider for endpoint. Opts are appended to the SDK client
// options; the client never retries.
func New(endpoint llm.Endpoint, opts ...option.RequestOption) *Provider {
	clientOpts := []option.RequestOption{
		option.WithAPIKey(endpoint.APIKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(endpoint.Client()),
	}
	if endpoint.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(strings.TrimRight(endpoint.BaseURL, "/")+"/"))
	}
	clientOpts = append(clientOpts, opts...)

	return &Provider{
		endpoint: endpoint,
		client:   openaigo.NewClient(clientOpts...),
	}
}

func (p *Provider) Name() string {
	return p.endpoint.Name
}

func (p *Provider) Family() stream.Family {
	return stream.FamilyTypedEvent
}

// Stream opens a streaming chat completion. Request failures, including
// non-2xx responses, surface from the transport's first pull.
func (p *Provider) Stream(ctx context.Context, req *llm.ChatRequest) (*stream.Transport, error) {
	resolved := p.endpoint.Resolve(req)
	params, opts := buildParams(resolved)

	sdkStream := p.client.Chat.Completions.NewStreaming(ctx, params, opts...)
	return stream.TypedEvents(&eventSource{stream: sdkStream}), nil
}

func buildParams(req llm.ChatRequest) (openaigo.ChatCompletionNewParams, []option.RequestOption) {
	params := openaigo.ChatCompletionNewParams{
		Model:    openaigo.F(req.Model),
		Messages: openaigo.F(convertMessages(req.Messages)),
	}
	var opts []option.RequestOption

	if req.Temperature != nil {
		params.Temperature = openaigo.F(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = openaigo.F(*req.TopP)
	}
	if req.MaxTokens != nil {
		params.MaxTokens = openaigo.F(int64(*req.MaxTokens))
	}
	if req.Seed != nil {
		params.Seed = openaigo.F(int64(*req.Seed))
	}
	if req.PresencePenalty != nil {
		params.PresencePenalty = openaigo.F(*req.PresencePenalty)
	}
	if req.FrequencyPenalty != nil {
		params.FrequencyPenalty = openaigo.F(*req.FrequencyPenalty)
	}

	// Fields outside the SDK's parameter set are written into the body.
	if len(req.Stop) > 0 {
		opts = append(opts, option.WithJSONSet("stop", req.Stop))
	}
	if req.TopK != nil {
		opts = append(opts, option.WithJSONSet("top_k", *req.TopK))
	}
	return params, opts
}

func convertMessages(messages []llm.Message) []openaigo.ChatCompletionMessageParamUnion {
	out := make([]openaigo.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		text := m.GetText()
		switch m.Role {
		case llm.RoleSystem:
			out = append(out, openaigo.SystemMessage(text))
		case llm.RoleAssistant:
			out = append(out, openaigo.AssistantMessage(text))
		default:
			out = append(out, openaigo.UserMessage(text))
		}
	}
	return out
}

// eventSource adapts the SDK's chunk stream to stream.EventSource.
type eventSource struct {
	stream *ssestream.Stream[openaigo.ChatCompletionChunk]
}

func (s *eventSource) Next() bool   { return s.stream.Next() }
func (s *eventSource) Err() error   { return s.stream.Err() }
func (s *eventSource) Close() error { return s.stream.Close() }

func (s *eventSource) Event() stream.TypedEvent {
	return eventFromChunk(s.stream.Current())
}

// eventFromChunk is the typed extraction for SDK chunks. Chunks without
// choices (trailing usage reports) carry no content.
func eventFromChunk(chunk openaigo.ChatCompletionChunk) stream.TypedEvent {
	var ev stream.TypedEvent
	if len(chunk.Choices) > 0 {
		choice := chunk.Choices[0]
		ev.Content = choice.Delta.Content
		ev.FinishReason = string(choice.FinishReason)
	}

	if !chunk.JSON.Usage.IsNull() && !chunk.JSON.Usage.IsMissing() {
		ev.Usage = &stream.Usage{
			PromptTokens:     chunk.Usage.PromptTokens,
			CompletionTokens: chunk.Usage.CompletionTokens,
			TotalTokens:      chunk.Usage.TotalTokens,
		}
	}

	// Perplexity attaches search results as a field the SDK does not model.
	if field, ok := chunk.JSON.ExtraFields["search_results"]; ok {
		var results any
		if err := json.Unmarshal([]byte(field.Raw()), &results); err == nil && results != nil {
			ev.SearchResults = results
		}
	}
	return ev
}
