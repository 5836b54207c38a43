package server

import (
	"time"

	"github.com/papercomputeco/llmux/pkg/eventstream"
)

// Config is the server configuration.
type Config struct {
	// ListenAddr is the address the HTTP server listens on (e.g., ":8080").
	ListenAddr string

	// WSListenAddr is the address the websocket server listens on (e.g., ":8081").
	// Empty disables the websocket listener.
	WSListenAddr string

	// RequestTimeout bounds one upstream call. Zero disables the bound.
	RequestTimeout time.Duration

	// Publisher receives a session event for every completed stream.
	// Nil disables event publishing.
	Publisher eventstream.Publisher
}
