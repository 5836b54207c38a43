package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/papercomputeco/llmux/pkg/eventstream"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// wsInbound is a client message. Type "stream" (or empty) starts a stream,
// "ping" asks for a pong.
type wsInbound struct {
	Type string `json:"type"`
	streamRequest
}

// wsControl is a server message that is not a chunk.
type wsControl struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message,omitempty"`
}

// handleWebsocket serves the message-stream sink. Each stream request yields
// a "start" message, one chunk JSON message per chunk with content, an error
// or a finish reason, then a "end" message. One stream runs at a time per
// connection.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	writeCh := make(chan []byte, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(wsPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			case msg := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					cancel()
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					cancel()
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					cancel()
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	push := func(msg []byte) bool {
		select {
		case writeCh <- msg:
			return true
		case <-ctx.Done():
			return false
		}
	}
	pushControl := func(c wsControl) bool {
		b, _ := json.Marshal(c)
		return push(b)
	}

	var (
		mu     sync.Mutex
		busy   bool
		active sync.WaitGroup
	)
	remote := r.RemoteAddr

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var in wsInbound
		if err := json.Unmarshal(data, &in); err != nil {
			pushControl(wsControl{Type: "error", Message: "invalid JSON message"})
			continue
		}

		switch strings.ToLower(strings.TrimSpace(in.Type)) {
		case "ping":
			pushControl(wsControl{Type: "pong"})
			continue
		case "", "stream":
		default:
			pushControl(wsControl{Type: "error", Message: "unknown message type " + in.Type})
			continue
		}

		req, err := in.chatRequest()
		if err != nil {
			pushControl(wsControl{Type: "error", Message: err.Error()})
			continue
		}

		mu.Lock()
		if busy {
			mu.Unlock()
			pushControl(wsControl{Type: "error", Message: "a stream is already in progress"})
			continue
		}
		busy = true
		mu.Unlock()

		active.Add(1)
		go func() {
			defer active.Done()
			release := func() {
				mu.Lock()
				busy = false
				mu.Unlock()
			}

			startTime := time.Now()
			upCtx, upCancel := s.upstreamContext()
			defer upCancel()
			stop := context.AfterFunc(ctx, upCancel)
			defer stop()

			resp := s.client.Stream(upCtx, in.Provider, req)
			sess := resp.Session()
			if !pushControl(wsControl{Type: "start", SessionID: sess.ID()}) {
				sess.Close()
				release()
				return
			}

			for msg := range resp.MessageStream() {
				if !push([]byte(msg)) {
					break
				}
			}

			completed := time.Now()
			s.publish(sess, sinkWebsocket, req.Model, eventstream.RequestMeta{
				Path:        "/v1/ws",
				RemoteAddr:  remote,
				StartedAt:   startTime,
				CompletedAt: completed,
				DurationMs:  completed.Sub(startTime).Milliseconds(),
			})

			// The next request may arrive as soon as "end" is read.
			release()
			pushControl(wsControl{Type: "end", SessionID: sess.ID()})
		}()
	}

	cancel()
	active.Wait()
	<-writerDone
}
