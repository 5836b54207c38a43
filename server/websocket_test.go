package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/llmux/pkg/stream"
)

var _ = Describe("Websocket sink", func() {
	var (
		s    *Server
		up   *upstream
		pub  *recordingPublisher
		ws   *httptest.Server
		conn *websocket.Conn
	)

	// read returns the next text message with its "type" field, if any.
	read := func() (string, map[string]any) {
		GinkgoHelper()
		Expect(conn.SetReadDeadline(time.Now().Add(5 * time.Second))).To(Succeed())
		_, data, err := conn.ReadMessage()
		Expect(err).NotTo(HaveOccurred())

		var msg map[string]any
		Expect(json.Unmarshal(data, &msg)).To(Succeed())
		typ, _ := msg["type"].(string)
		return typ, msg
	}

	BeforeEach(func() {
		pub = &recordingPublisher{}
		up = newUpstream(http.StatusOK, groqFrames)
		s = newTestServer(up.URL, pub)
		ws = httptest.NewServer(s.WebsocketHandler())

		var err error
		conn, _, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ws.URL, "http")+"/v1/ws", nil)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		conn.Close()
		ws.Close()
		Expect(s.Close()).To(Succeed())
		up.Close()
	})

	It("answers ping messages", func() {
		Expect(conn.WriteJSON(map[string]string{"type": "ping"})).To(Succeed())
		typ, _ := read()
		Expect(typ).To(Equal("pong"))
	})

	It("streams one message per chunk between start and end", func() {
		Expect(conn.WriteJSON(map[string]string{"type": "stream", "message": "hi"})).To(Succeed())

		typ, start := read()
		Expect(typ).To(Equal("start"))
		Expect(start["session_id"]).NotTo(BeEmpty())

		kinds := []string{}
		content := ""
		for {
			typ, msg := read()
			if typ == "end" {
				Expect(msg["session_id"]).To(Equal(start["session_id"]))
				break
			}
			kinds = append(kinds, typ)
			if c, ok := msg["content"].(string); ok {
				content += c
			}
		}

		Expect(kinds).To(Equal([]string{string(stream.KindContent), string(stream.KindContent), string(stream.KindContent)}))
		Expect(content).To(Equal("Hello world"))
	})

	It("reports invalid requests without closing the connection", func() {
		Expect(conn.WriteMessage(websocket.TextMessage, []byte("{nope"))).To(Succeed())
		typ, msg := read()
		Expect(typ).To(Equal("error"))
		Expect(msg["message"]).To(Equal("invalid JSON message"))

		Expect(conn.WriteJSON(map[string]string{"type": "stream"})).To(Succeed())
		typ, msg = read()
		Expect(typ).To(Equal("error"))
		Expect(msg["message"]).To(Equal("message is required"))

		Expect(conn.WriteJSON(map[string]string{"type": "ping"})).To(Succeed())
		typ, _ = read()
		Expect(typ).To(Equal("pong"))
	})

	It("accepts a new stream after the previous one ends", func() {
		for range 2 {
			Expect(conn.WriteJSON(map[string]string{"message": "hi"})).To(Succeed())
			for {
				typ, _ := read()
				if typ == "end" {
					break
				}
				Expect(typ).NotTo(Equal("error"))
			}
		}

		conn.Close()
		ws.Close()
		Expect(s.Close()).To(Succeed())
		Expect(pub.published()).To(HaveLen(2))
	})
})
