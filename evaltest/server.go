// Package evaltest provides an in-process evaluator for tests. It speaks the
// evaluator's websocket protocol: it accepts text commands and lets the test
// push tagged frames back to every connected client.
package evaltest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Paranoid-AF/vlive"
)

// Responder computes the frames sent back for a received command.
type Responder func(cmd string) [][]byte

// Server is a fake evaluator listening on a local httptest server.
type Server struct {
	http     *httptest.Server
	upgrader websocket.Upgrader
	respond  Responder

	mu       sync.Mutex
	conns    map[*websocket.Conn]*sync.Mutex
	received []string
	notify   chan struct{}
}

// NewServer starts a fake evaluator. respond may be nil.
func NewServer(respond Responder) *Server {
	s := &Server{
		respond: respond,
		conns:   make(map[*websocket.Conn]*sync.Mutex),
		notify:  make(chan struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	s.http = httptest.NewServer(mux)
	return s
}

// URL returns the websocket endpoint.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.http.URL, "http") + "/ws"
}

// Close disconnects every client and shuts down the server.
func (s *Server) Close() {
	s.DropClients()
	s.http.Close()
}

// DropClients closes every client connection from the server side.
func (s *Server) DropClients() {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
		c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.Close()
	}
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Received returns every command received so far, in arrival order.
func (s *Server) Received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.received))
	copy(out, s.received)
	return out
}

// WaitReceived blocks until at least n commands have arrived.
func (s *Server) WaitReceived(ctx context.Context, n int) ([]string, error) {
	for {
		s.mu.Lock()
		if len(s.received) >= n {
			out := make([]string, len(s.received))
			copy(out, s.received)
			s.mu.Unlock()
			return out, nil
		}
		notify := s.notify
		s.mu.Unlock()

		select {
		case <-notify:
		case <-ctx.Done():
			return s.Received(), fmt.Errorf("waiting for %d commands: %w", n, ctx.Err())
		}
	}
}

// WaitClients blocks until n clients are connected.
func (s *Server) WaitClients(ctx context.Context, n int) error {
	for s.Clients() < n {
		select {
		case <-time.After(5 * time.Millisecond):
		case <-ctx.Done():
			return fmt.Errorf("waiting for %d clients: %w", n, ctx.Err())
		}
	}
	return nil
}

// Push sends a raw frame to every connected client.
func (s *Server) Push(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c, wmu := range s.conns {
		wmu.Lock()
		if err := c.WriteMessage(websocket.TextMessage, frame); err != nil {
			slog.Debug("evaltest: push failed", "error", err)
		}
		wmu.Unlock()
	}
}

// PushLog sends a log frame.
func (s *Server) PushLog(text string) {
	s.Push(LogFrame(text))
}

// PushEval sends an eval frame.
func (s *Server) PushEval(text, value string) {
	s.Push(EvalFrame(text, value))
}

// PushFreq sends a freq frame.
func (s *Server) PushFreq(value string) {
	s.Push(FreqFrame(value))
}

// LogFrame encodes a log frame.
func LogFrame(text string) []byte {
	return mustEncode(vlive.APILog, text)
}

// EvalFrame encodes an eval frame.
func EvalFrame(text, value string) []byte {
	return mustEncode(vlive.APIEval, vlive.EvalPayload{Text: text, Value: value})
}

// FreqFrame encodes a freq frame.
func FreqFrame(value string) []byte {
	return mustEncode(vlive.APIFreq, value)
}

func mustEncode(api vlive.API, val any) []byte {
	b, err := vlive.EncodeFrame(api, val)
	if err != nil {
		panic("evaltest: " + err.Error())
	}
	return b
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("evaltest: upgrade failed", "error", err)
		return
	}
	wmu := &sync.Mutex{}

	s.mu.Lock()
	s.conns[conn] = wmu
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		cmd := string(data)

		s.mu.Lock()
		s.received = append(s.received, cmd)
		close(s.notify)
		s.notify = make(chan struct{})
		s.mu.Unlock()

		if s.respond == nil {
			continue
		}
		for _, frame := range s.respond(cmd) {
			wmu.Lock()
			err := conn.WriteMessage(websocket.TextMessage, frame)
			wmu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Echo answers like a minimal evaluator: "freq:" yields a freq frame with
// freq, "eval:<src>" yields an eval result labeled and valued <src>, and
// anything else is ignored.
func Echo(freq string) Responder {
	return func(cmd string) [][]byte {
		api, val, _ := strings.Cut(cmd, ":")
		switch api {
		case "freq":
			return [][]byte{FreqFrame(freq)}
		case "eval":
			return [][]byte{EvalFrame(val, val)}
		}
		return nil
	}
}
