package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	. "github.com/onsi/gomega"

	"github.com/papercomputeco/llmux/pkg/eventstream"
	"github.com/papercomputeco/llmux/pkg/llm/provider"
)

// groqFrames is a well-formed raw-SSE completion: two content deltas, a
// finish reason with usage, then the sentinel.
var groqFrames = []string{
	`data: {"id":"1","choices":[{"index":0,"delta":{"role":"assistant","content":"Hello"}}]}`,
	`data: {"id":"1","choices":[{"index":0,"delta":{"content":" world"}}]}`,
	`data: {"id":"1","choices":[{"index":0,"delta":{},"finish_reason":"stop"}],"x_groq":{"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}}`,
	`data: [DONE]`,
}

// upstream is a fake OpenAI-compatible endpoint that records the last
// request body it saw.
type upstream struct {
	*httptest.Server

	mu       sync.Mutex
	lastBody string
}

func newUpstream(status int, frames []string) *upstream {
	u := &upstream{}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		u.mu.Lock()
		u.lastBody = string(body)
		u.mu.Unlock()

		if status != http.StatusOK {
			w.WriteHeader(status)
			fmt.Fprint(w, `{"error":{"message":"slow down"}}`)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		for _, f := range frames {
			fmt.Fprint(w, f+"\n\n")
			if flusher != nil {
				flusher.Flush()
			}
		}
	}))
	return u
}

func (u *upstream) body() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.lastBody
}

// recordingPublisher collects published session events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.SessionCompletedEvent
}

func (r *recordingPublisher) PublishSession(_ context.Context, event *eventstream.SessionCompletedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func (r *recordingPublisher) published() []*eventstream.SessionCompletedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*eventstream.SessionCompletedEvent(nil), r.events...)
}

// newTestServer builds a server whose groq provider points at upstreamURL.
// openai is left without a key.
func newTestServer(upstreamURL string, pub eventstream.Publisher) *Server {
	client, err := provider.NewClient(map[string]provider.Config{
		provider.Groq: {APIKey: "gsk_test", BaseURL: upstreamURL},
	}, provider.WithDefaultProvider(provider.Groq))
	Expect(err).NotTo(HaveOccurred())

	s, err := New(Config{ListenAddr: ":0", Publisher: pub}, client, nil)
	Expect(err).NotTo(HaveOccurred())
	return s
}
