// Package server exposes normalized LLM streams over HTTP server-sent events,
// a collect-style JSON endpoint and websockets.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/papercomputeco/llmux/pkg/eventstream"
	"github.com/papercomputeco/llmux/pkg/eventstream/nop"
	"github.com/papercomputeco/llmux/pkg/llm/provider"
	"github.com/papercomputeco/llmux/pkg/logger"
	"github.com/papercomputeco/llmux/pkg/stream"
	"github.com/papercomputeco/llmux/server/worker"
)

const (
	sinkSSE       = "sse"
	sinkCollect   = "collect"
	sinkWebsocket = "websocket"
)

// Server streams completions from the configured providers to HTTP and
// websocket clients, publishing a summary of each finished session through
// its worker pool.
type Server struct {
	config     Config
	client     *provider.Client
	workerPool *worker.Pool
	logger     *slog.Logger
	app        *fiber.App
	ws         *http.Server
}

// New creates a new Server backed by client.
func New(config Config, client *provider.Client, log *slog.Logger) (*Server, error) {
	if client == nil {
		return nil, errors.New("provider client is required")
	}
	if log == nil {
		log = logger.Nop()
	}

	var publisher eventstream.Publisher = nop.NewPublisher()
	if config.Publisher != nil {
		publisher = config.Publisher
	}

	wp, err := worker.NewPool(&worker.Config{
		Publisher: publisher,
		Logger:    log,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create worker pool: %w", err)
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		AppName:               "llmux",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Cache-Control, Content-Type",
	}))

	s := &Server{
		config:     config,
		client:     client,
		workerPool: wp,
		logger:     log,
		app:        app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/v1/providers", s.handleProviders)
	app.Get("/v1/stream", s.handleStream)
	app.Post("/v1/stream", s.handleStream)
	app.Post("/v1/complete", s.handleComplete)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", s.handleWebsocket)
	s.ws = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// WebsocketHandler returns the handler served on the websocket listener.
func (s *Server) WebsocketHandler() http.Handler {
	return s.ws.Handler
}

// Run starts the HTTP server and, when configured, the websocket server. It
// returns when either stops.
func (s *Server) Run() error {
	httpLn, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.config.ListenAddr, err)
	}

	var wsLn net.Listener
	if s.config.WSListenAddr != "" {
		wsLn, err = net.Listen("tcp", s.config.WSListenAddr)
		if err != nil {
			httpLn.Close()
			return fmt.Errorf("listening on %s: %w", s.config.WSListenAddr, err)
		}
	}

	return s.RunWithListeners(httpLn, wsLn)
}

// RunWithListeners serves HTTP on httpLn and websockets on wsLn. A nil wsLn
// disables the websocket server.
func (s *Server) RunWithListeners(httpLn, wsLn net.Listener) error {
	errCh := make(chan error, 2)

	s.logger.Info("starting http server",
		"listen", httpLn.Addr().String(),
		"default_provider", s.client.DefaultProvider(),
	)
	go func() {
		errCh <- s.app.Listener(httpLn)
	}()

	if wsLn != nil {
		s.logger.Info("starting websocket server", "listen", wsLn.Addr().String())
		go func() {
			if err := s.ws.Serve(wsLn); !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
				return
			}
			errCh <- nil
		}()
	}

	return <-errCh
}

// Close gracefully shuts down both servers and waits for the worker pool to
// publish pending session events.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	errs := []error{
		s.app.ShutdownWithContext(ctx),
		s.ws.Shutdown(ctx),
		s.workerPool.Close(),
	}
	return errors.Join(errs...)
}

// upstreamContext returns the context for one upstream call. Streams outlive
// the fiber handler, so it is rooted at context.Background.
func (s *Server) upstreamContext() (context.Context, context.CancelFunc) {
	if s.config.RequestTimeout > 0 {
		return context.WithTimeout(context.Background(), s.config.RequestTimeout)
	}
	return context.WithCancel(context.Background())
}

// publish enqueues a summary of a finished session.
func (s *Server) publish(sess *stream.Session, sink, model string, meta eventstream.RequestMeta) {
	summary := sess.Summary()

	s.logger.Info("session completed",
		"session_id", summary.ID,
		"provider", summary.Provider,
		"sink", sink,
		"state", summary.State,
		"finish_reason", summary.FinishReason,
		"chunks", summary.ChunkCount,
		"duration", summary.Duration,
	)

	s.workerPool.Enqueue(worker.Job{
		Summary: summary,
		Source: eventstream.EventSource{
			Sink:     sink,
			Provider: summary.Provider,
			Model:    model,
		},
		Request: meta,
	})
}
