package server

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/llmux/pkg/llm"
)

var errMessageRequired = errors.New("message is required")

// streamRequest is the body accepted by the stream, complete and websocket
// endpoints. Either Message or Messages must be set.
type streamRequest struct {
	Provider string        `json:"provider,omitempty"`
	Model    string        `json:"model,omitempty"`
	System   string        `json:"system,omitempty"`
	Message  string        `json:"message,omitempty"`
	Messages []llm.Message `json:"messages,omitempty"`

	llm.Sampling

	Stop []string `json:"stop,omitempty"`
}

// chatRequest converts r to a provider-agnostic request.
func (r *streamRequest) chatRequest() (*llm.ChatRequest, error) {
	var req *llm.ChatRequest
	switch {
	case len(r.Messages) > 0:
		req = &llm.ChatRequest{Messages: r.Messages}
		if r.System != "" {
			req.Messages = append([]llm.Message{llm.NewTextMessage(llm.RoleSystem, r.System)}, req.Messages...)
		}
		if strings.TrimSpace(r.Message) != "" {
			req.Messages = append(req.Messages, llm.NewTextMessage(llm.RoleUser, r.Message))
		}
	case strings.TrimSpace(r.Message) != "":
		req = llm.NewPrompt(r.System, r.Message)
	default:
		return nil, errMessageRequired
	}

	req.Model = r.Model
	req.Sampling = r.Sampling
	req.Stop = r.Stop
	return req, nil
}

// parseStreamRequest reads a streamRequest from the JSON body of a POST or
// from the query string of a GET (message, provider, model, system,
// temperature, max_tokens).
func parseStreamRequest(c *fiber.Ctx) (*streamRequest, error) {
	var r streamRequest
	if c.Method() == fiber.MethodGet {
		r.Provider = c.Query("provider")
		r.Model = c.Query("model")
		r.System = c.Query("system")
		r.Message = c.Query("message")

		if v := c.Query("temperature"); v != "" {
			t, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, errors.New("temperature must be a number")
			}
			r.Temperature = &t
		}
		if v := c.Query("max_tokens"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, errors.New("max_tokens must be an integer")
			}
			r.MaxTokens = &n
		}
		return &r, nil
	}

	if err := json.Unmarshal(c.Body(), &r); err != nil {
		return nil, errors.New("invalid JSON body")
	}
	return &r, nil
}
