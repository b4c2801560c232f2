// Package session drives a live evaluator session: it routes inbound frames
// into the result list, log and status, sends user commands, and polls the
// evaluator while connected.
//
// All session state is owned by the goroutine running Run. Intents issued
// from other goroutines are queued to it and applied in order with inbound
// frames, so state changes and View callbacks never interleave.
package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Paranoid-AF/vlive/command"
	"github.com/Paranoid-AF/vlive/event"
	"github.com/Paranoid-AF/vlive/poll"
	"github.com/Paranoid-AF/vlive/results"
	"github.com/Paranoid-AF/vlive/status"
	"github.com/Paranoid-AF/vlive/transport"
)

// ErrClosed is returned by intents issued after the session stopped.
var ErrClosed = errors.New("session: closed")

// ErrRunning is returned when Run is called a second time.
var ErrRunning = errors.New("session: already running")

// Transport is the connection a session drives. *transport.Conn satisfies it.
type Transport interface {
	Open(ctx context.Context) error
	Send(raw string) error
	Close() error
	State() transport.State
	Messages() <-chan transport.Message
}

// intent is a unit of work executed on the event loop.
type intent struct {
	fn     func() error
	result chan error
}

// Session is a live session with one evaluator.
type Session struct {
	id     string
	conn   Transport
	view   View
	logger *slog.Logger

	cache  *results.Cache
	status *status.Tracker
	router *event.Router
	poller *poll.Scheduler

	snapshotPath string

	intents   chan intent
	closing   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	running   atomic.Bool
}

type options struct {
	pollInterval time.Duration
	staleAfter   time.Duration
	clock        poll.Clock
	snapshotPath string
	logger       *slog.Logger
}

// Option configures a Session.
type Option func(*options)

// WithPollInterval sets the cadence of the status and output polls.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) { o.pollInterval = d }
}

// WithStaleAfter sets how long a status value stays current.
func WithStaleAfter(d time.Duration) Option {
	return func(o *options) { o.staleAfter = d }
}

// WithClock replaces the poll clock, for tests.
func WithClock(c poll.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithSnapshot restores the result list from path when Run starts and
// saves it there when Run returns.
func WithSnapshot(path string) Option {
	return func(o *options) { o.snapshotPath = path }
}

// WithLogger sets the logger; the session id is added to every record.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New creates a session over conn. A nil view discards all callbacks.
// Nothing happens until Run is called.
func New(conn Transport, view View, opts ...Option) *Session {
	o := options{pollInterval: poll.DefaultInterval, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if view == nil {
		view = NopView{}
	}
	if o.staleAfter <= 0 {
		o.staleAfter = 3 * o.pollInterval
	}

	id := uuid.NewString()
	s := &Session{
		id:           id,
		conn:         conn,
		view:         view,
		logger:       o.logger.With("session", id),
		cache:        results.New(),
		snapshotPath: o.snapshotPath,
		intents:      make(chan intent),
		closing:      make(chan struct{}),
		done:         make(chan struct{}),
	}
	s.status = status.NewTracker(o.staleAfter, view.StatusChanged)
	s.router = &event.Router{
		Log:     logSink{view},
		Results: resultSink{s},
		Status:  s.status,
		Report:  s.report,
	}
	var pollOpts []poll.Option
	if o.clock != nil {
		pollOpts = append(pollOpts, poll.WithClock(o.clock))
	}
	s.poller = poll.New(conn, o.pollInterval, pollOpts...)
	return s
}

// ID returns the session id used in log records.
func (s *Session) ID() string {
	return s.id
}

// Run is the session's event loop. It returns when ctx is done or Close is
// called; connection failures never end it. On return the poller is
// stopped, the connection closed and the snapshot, if any, saved.
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer close(s.done)

	s.restore()
	defer s.shutdown()

	s.logger.Info("session started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.closing:
			return nil
		case m := <-s.conn.Messages():
			s.handle(m)
		case in := <-s.intents:
			in.result <- in.fn()
		}
	}
}

// Close stops the event loop and closes the connection. It waits for Run
// to return if Run was started.
func (s *Session) Close() error {
	s.closeOnce.Do(func() { close(s.closing) })
	if s.running.Load() {
		<-s.done
	}
	return s.conn.Close()
}

// Open connects to the evaluator. Polling starts once the connection
// reports open. Calling Open again after a disconnect reconnects.
func (s *Session) Open(ctx context.Context) error {
	if s.isDone() {
		return ErrClosed
	}
	if err := s.conn.Open(ctx); err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	return nil
}

// State returns the connection state.
func (s *Session) State() transport.State {
	return s.conn.State()
}

// SubmitEval sends src for evaluation. Unlike polls, a failed send is
// returned to the caller, including transport.ErrNotConnected.
func (s *Session) SubmitEval(src string) error {
	if err := s.conn.Send(command.Eval(src)); err != nil {
		return fmt.Errorf("submit eval: %w", err)
	}
	s.logger.Debug("submitted eval", "bytes", len(src))
	return nil
}

// SubmitDeclaration encodes decl and sends its commands in order. An
// invalid declaration is rejected before anything is sent.
func (s *Session) SubmitDeclaration(decl command.Declaration) error {
	cmds, err := decl.Commands()
	if err != nil {
		return err
	}
	for _, cmd := range cmds {
		if err := s.conn.Send(cmd); err != nil {
			return fmt.Errorf("submit declaration %s: %w", decl.ModuleName(), err)
		}
	}
	s.logger.Debug("submitted declaration", "module", decl.ModuleName(), "instantiate", decl.Instantiate)
	return nil
}

// Select makes ref the selected result.
func (s *Session) Select(ref results.Ref) error {
	return s.do(func() error {
		if err := s.cache.Select(ref); err != nil {
			return err
		}
		s.notifySelection()
		return nil
	})
}

// Remove drops the result ref from the list.
func (s *Session) Remove(ref results.Ref) error {
	return s.do(func() error {
		cur, hadSelection := s.cache.Current()
		if err := s.cache.Remove(ref); err != nil {
			return err
		}
		s.view.EntriesChanged(s.cache.Entries())
		if next, ok := s.cache.Current(); ok != hadSelection || next.Ref != cur.Ref {
			s.notifySelection()
		}
		return nil
	})
}

// ClearLog asks the view to empty the log. It is ordered with respect to
// log fragments that arrive before and after it.
func (s *Session) ClearLog() error {
	return s.do(func() error {
		s.view.LogCleared()
		return nil
	})
}

// Entries returns the result list.
func (s *Session) Entries() ([]results.Entry, error) {
	var entries []results.Entry
	err := s.do(func() error {
		entries = s.cache.Entries()
		return nil
	})
	return entries, err
}

// Current returns the selected result.
func (s *Session) Current() (results.Entry, bool, error) {
	var (
		entry results.Entry
		ok    bool
	)
	err := s.do(func() error {
		entry, ok = s.cache.Current()
		return nil
	})
	return entry, ok, err
}

// Status returns the latest status value and whether it is still fresh.
func (s *Session) Status() (string, bool) {
	return s.status.Latest()
}

// do runs fn on the event loop and returns its error. It blocks until Run
// picks the intent up.
func (s *Session) do(fn func() error) error {
	in := intent{fn: fn, result: make(chan error, 1)}
	select {
	case s.intents <- in:
	case <-s.done:
		return ErrClosed
	case <-s.closing:
		return ErrClosed
	}
	return <-in.result
}

func (s *Session) isDone() bool {
	select {
	case <-s.done:
		return true
	case <-s.closing:
		return true
	default:
		return false
	}
}

func (s *Session) handle(m transport.Message) {
	switch m.Kind {
	case transport.KindFrame:
		s.router.Route(m.Text)
	case transport.KindOpened:
		s.logger.Info("connected")
		s.poller.Start()
		s.view.ConnectionChanged(transport.StateOpen)
	case transport.KindClosed:
		s.logger.Info("disconnected")
		s.poller.Stop()
		s.view.ConnectionChanged(transport.StateClosed)
	case transport.KindErrored:
		s.logger.Warn("connection failed", "error", m.Err)
		s.poller.Stop()
		s.view.ConnectionChanged(transport.StateErrored)
		if m.Err != nil {
			s.view.Error(m.Err)
		}
	}
}

func (s *Session) report(err error) {
	s.logger.Warn("bad inbound frame", "error", err)
	s.view.Error(err)
}

func (s *Session) notifySelection() {
	cur, ok := s.cache.Current()
	s.view.SelectionChanged(cur, ok)
}

func (s *Session) restore() {
	if s.snapshotPath == "" {
		return
	}
	if err := s.cache.Load(s.snapshotPath); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("failed to load result snapshot", "path", s.snapshotPath, "error", err)
		}
		return
	}
	if s.cache.Len() > 0 {
		s.logger.Debug("restored results", "path", s.snapshotPath, "entries", s.cache.Len())
		s.view.EntriesChanged(s.cache.Entries())
		s.notifySelection()
	}
}

func (s *Session) shutdown() {
	s.poller.Stop()
	if err := s.conn.Close(); err != nil {
		s.logger.Debug("close connection", "error", err)
	}
	if s.snapshotPath != "" {
		if err := s.cache.Save(s.snapshotPath); err != nil {
			s.logger.Warn("failed to save result snapshot", "path", s.snapshotPath, "error", err)
		}
	}
	s.logger.Info("session stopped")
}

// logSink forwards log fragments to the view.
type logSink struct{ view View }

func (l logSink) AppendLog(text string) { l.view.LogAppended(text) }

// resultSink applies results to the cache and reports the changes.
type resultSink struct{ s *Session }

func (r resultSink) Upsert(displayText, value string) results.Ref {
	ref := r.s.cache.Upsert(displayText, value)
	r.s.view.EntriesChanged(r.s.cache.Entries())
	return ref
}

func (r resultSink) Select(ref results.Ref) error {
	if err := r.s.cache.Select(ref); err != nil {
		return err
	}
	r.s.notifySelection()
	return nil
}
