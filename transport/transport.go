// Package transport wraps a single websocket connection to a live evaluator.
//
// Inbound frames and lifecycle notices are delivered on one channel in the
// order they happen, so a notice is never reordered relative to the frames of
// the same connection. The package has no retry policy: after a connection is
// closed or fails, the caller decides whether to Open again.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrNotConnected is returned by Send when the connection is not open.
// Frames are never buffered across disconnects.
var ErrNotConnected = errors.New("transport: not connected")

// State is the lifecycle state of a connection.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Kind classifies a Message.
type Kind int

const (
	KindFrame Kind = iota
	KindOpened
	KindClosed
	KindErrored
)

func (k Kind) String() string {
	switch k {
	case KindFrame:
		return "frame"
	case KindOpened:
		return "opened"
	case KindClosed:
		return "closed"
	case KindErrored:
		return "errored"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Message is one item of the inbound stream.
type Message struct {
	Kind Kind
	// Text is the frame payload for KindFrame.
	Text string
	// Err is the cause for KindErrored.
	Err error
}

const defaultBufferSize = 256

// Conn is a websocket connection to one evaluator endpoint.
// All methods are safe for concurrent use.
type Conn struct {
	url          string
	dialer       *websocket.Dialer
	header       http.Header
	writeTimeout time.Duration
	messages     chan Message

	mu       sync.Mutex // guards the fields below
	state    State
	ws       *websocket.Conn
	stop     chan struct{}
	readDone chan struct{}

	writeMu sync.Mutex // serializes frame writes
}

// Option configures a Conn.
type Option func(*Conn)

// WithHandshakeTimeout bounds the websocket opening handshake.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Conn) { c.dialer.HandshakeTimeout = d }
}

// WithWriteTimeout sets a deadline on every frame write. Zero disables it.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Conn) { c.writeTimeout = d }
}

// WithOrigin sets the Origin header sent with the handshake.
func WithOrigin(origin string) Option {
	return func(c *Conn) {
		if origin != "" {
			c.header.Set("Origin", origin)
		}
	}
}

// WithBufferSize sets how many undelivered messages may queue before the
// reader waits for the consumer.
func WithBufferSize(n int) Option {
	return func(c *Conn) {
		if n > 0 {
			c.messages = make(chan Message, n)
		}
	}
}

// New returns an unopened connection to url.
func New(url string, opts ...Option) *Conn {
	c := &Conn{
		url: url,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 5 * time.Second,
		},
		header:   make(http.Header),
		messages: make(chan Message, defaultBufferSize),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the endpoint this connection dials.
func (c *Conn) URL() string {
	return c.url
}

// Messages returns the inbound stream. It is shared by every connection
// opened through c and is never closed.
func (c *Conn) Messages() <-chan Message {
	return c.messages
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Open dials the endpoint. It is a no-op while connecting or open.
// On success KindOpened is delivered before any frame.
func (c *Conn) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnecting || c.state == StateOpen {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.mu.Unlock()

	ws, _, err := c.dialer.DialContext(ctx, c.url, c.header)

	c.mu.Lock()
	if c.state != StateConnecting {
		// Closed while dialing.
		c.mu.Unlock()
		if ws != nil {
			ws.Close()
		}
		c.deliver(Message{Kind: KindClosed}, nil)
		return fmt.Errorf("dial %s: %w", c.url, ErrNotConnected)
	}
	if err != nil {
		c.state = StateErrored
		c.mu.Unlock()
		c.deliver(Message{Kind: KindErrored, Err: err}, nil)
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	stop := make(chan struct{})
	readDone := make(chan struct{})
	c.state = StateOpen
	c.ws = ws
	c.stop = stop
	c.readDone = readDone
	c.mu.Unlock()

	slog.Debug("connection open", "url", c.url)
	c.deliver(Message{Kind: KindOpened}, stop)
	go c.readLoop(ws, stop, readDone)
	return nil
}

// Send writes raw as one text frame. It fails with ErrNotConnected unless
// the connection is open.
func (c *Conn) Send(raw string) error {
	c.mu.Lock()
	if c.state != StateOpen {
		c.mu.Unlock()
		return ErrNotConnected
	}
	ws := c.ws
	c.mu.Unlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if err := ws.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
		if c.State() != StateOpen {
			return ErrNotConnected
		}
		// A failed write leaves the connection unusable; closing it makes
		// the reader report the failure.
		ws.Close()
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// Close closes the connection. KindClosed is delivered after any frame
// already read. Close is a no-op unless connecting or open.
func (c *Conn) Close() error {
	c.mu.Lock()
	switch c.state {
	case StateConnecting:
		// Open notices and reports the close once the dial returns.
		c.state = StateClosed
		c.mu.Unlock()
		return nil
	case StateOpen:
	default:
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosed
	ws, stop, readDone := c.ws, c.stop, c.readDone
	c.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		slog.Debug("close frame not sent", "error", err)
	}
	err := ws.Close()
	close(stop)
	<-readDone
	return err
}

func (c *Conn) readLoop(ws *websocket.Conn, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			c.finish(ws, err, stop)
			return
		}
		if mt != websocket.TextMessage {
			slog.Debug("ignoring non-text frame", "type", mt, "size", len(data))
			continue
		}
		c.deliver(Message{Kind: KindFrame, Text: string(data)}, stop)
	}
}

// finish records how the connection ended and delivers the matching notice.
func (c *Conn) finish(ws *websocket.Conn, err error, stop <-chan struct{}) {
	c.mu.Lock()
	var msg Message
	switch {
	case c.state == StateClosed:
		msg = Message{Kind: KindClosed}
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		c.state = StateClosed
		msg = Message{Kind: KindClosed}
	default:
		c.state = StateErrored
		msg = Message{Kind: KindErrored, Err: err}
	}
	c.mu.Unlock()

	ws.Close()
	if msg.Err != nil {
		slog.Warn("connection failed", "url", c.url, "error", msg.Err)
	} else {
		slog.Debug("connection closed", "url", c.url)
	}
	c.deliver(msg, stop)
}

// deliver queues m for the consumer. Once stop is closed, m is dropped
// rather than waited on if the queue is full.
func (c *Conn) deliver(m Message, stop <-chan struct{}) {
	select {
	case c.messages <- m:
		return
	default:
	}
	select {
	case c.messages <- m:
	case <-stop:
		slog.Debug("dropping message after close", "kind", m.Kind)
	}
}
