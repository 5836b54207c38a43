package server

import (
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/llmux/pkg/eventstream"
	"github.com/papercomputeco/llmux/pkg/llm/provider"
)

// errorResponse is the JSON body of every non-streaming error reply.
type errorResponse struct {
	Error string `json:"error"`
}

// providerEntry describes one provider in the GET /v1/providers reply.
type providerEntry struct {
	Name         string   `json:"name"`
	Family       string   `json:"family"`
	DefaultModel string   `json:"default_model"`
	Models       []string `json:"models"`
	Configured   bool     `json:"configured"`
}

func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.SendString("pong")
}

func (s *Server) handleProviders(c *fiber.Ctx) error {
	names := provider.SupportedProviders()
	entries := make([]providerEntry, 0, len(names))
	for _, name := range names {
		info, _ := provider.Lookup(name)
		p, ok := s.client.Provider(name)
		if !ok {
			continue
		}
		entries = append(entries, providerEntry{
			Name:         name,
			Family:       p.Family().String(),
			DefaultModel: info.DefaultModel,
			Models:       slices.Sorted(maps.Keys(provider.ModelAliases(name))),
			Configured:   s.client.Configured(name),
		})
	}

	return c.JSON(fiber.Map{
		"default_provider": s.client.DefaultProvider(),
		"providers":        entries,
	})
}

// handleStream serves a normalized stream as text/event-stream. Errors
// opening the upstream stream arrive as an error frame followed by [DONE], so
// once the request parses the reply is always 200.
func (s *Server) handleStream(c *fiber.Ctx) error {
	startTime := time.Now()

	in, err := parseStreamRequest(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: err.Error()})
	}
	req, err := in.chatRequest()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: err.Error()})
	}

	// fasthttp recycles the request context once the handler returns, so
	// anything the stream goroutine needs is copied out first.
	meta := eventstream.RequestMeta{
		Path:       strings.Clone(c.Path()),
		RemoteAddr: c.Context().RemoteAddr().String(),
		StartedAt:  startTime,
	}

	ctx, cancel := s.upstreamContext()
	resp := s.client.Stream(ctx, in.Provider, req)

	s.logger.Debug("streaming session",
		"session_id", resp.Session().ID(),
		"provider", resp.Session().Provider(),
		"model", req.Model,
	)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	// io.Pipe gives per-frame backpressure: pw.Write blocks until fasthttp's
	// chunked writer has consumed the frame and flushed it to the socket.
	pr, pw := io.Pipe()
	go func() {
		defer cancel()
		defer pw.Close()

		if err := resp.WriteEventStream(pw); err != nil {
			s.logger.Debug("client went away mid-stream",
				"session_id", resp.Session().ID(),
				"error", err,
			)
		}
		meta.CompletedAt = time.Now()
		meta.DurationMs = meta.CompletedAt.Sub(startTime).Milliseconds()
		s.publish(resp.Session(), sinkSSE, req.Model, meta)
	}()

	c.Context().Response.SetBodyStream(pr, -1)
	return nil
}

// handleComplete drains a stream and replies with the collected result.
// Upstream failures produce success=false with status 502.
func (s *Server) handleComplete(c *fiber.Ctx) error {
	startTime := time.Now()

	in, err := parseStreamRequest(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: err.Error()})
	}
	req, err := in.chatRequest()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: err.Error()})
	}

	ctx, cancel := s.upstreamContext()
	defer cancel()

	resp := s.client.Stream(ctx, in.Provider, req)
	result := resp.CollectFull()

	completed := time.Now()
	s.publish(resp.Session(), sinkCollect, req.Model, eventstream.RequestMeta{
		Path:        strings.Clone(c.Path()),
		RemoteAddr:  c.Context().RemoteAddr().String(),
		StartedAt:   startTime,
		CompletedAt: completed,
		DurationMs:  completed.Sub(startTime).Milliseconds(),
	})

	status := fiber.StatusOK
	if !result.Success {
		status = fiber.StatusBadGateway
	}
	return c.Status(status).JSON(result)
}
