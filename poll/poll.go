// Package poll periodically asks the evaluator for status and buffered output.
package poll

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Paranoid-AF/vlive/command"
	"github.com/Paranoid-AF/vlive/transport"
)

// DefaultInterval is the cadence of both polls.
const DefaultInterval = time.Second

// Sender hands a command to the transport. *transport.Conn satisfies it.
type Sender interface {
	Send(raw string) error
}

// Ticker is the subset of *time.Ticker the scheduler uses.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock creates tickers.
type Clock interface {
	NewTicker(d time.Duration) Ticker
}

type realClock struct{}

type realTicker struct{ t *time.Ticker }

func (realClock) NewTicker(d time.Duration) Ticker { return realTicker{time.NewTicker(d)} }
func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop() { r.t.Stop() }

// Scheduler sends a frequency poll and a pull on independent tickers while
// started. Polls are fire-and-forget: their answers arrive as ordinary
// inbound frames.
type Scheduler struct {
	sender   Sender
	interval time.Duration
	clock    Clock

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock, for tests.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// New creates a stopped scheduler. A non-positive interval means DefaultInterval.
func New(sender Sender, interval time.Duration, opts ...Option) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	s := &Scheduler{sender: sender, interval: interval, clock: realClock{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Interval returns the poll cadence.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Running reports whether the scheduler is started.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil
}

// Start begins polling. It is a no-op if already started.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	// Tickers are created here so that ticks scheduled by a test clock
	// after Start returns are observed.
	freq := s.clock.NewTicker(s.interval)
	pull := s.clock.NewTicker(s.interval)
	go s.run(freq, pull, s.stop, s.done)
	slog.Debug("polling started", "interval", s.interval)
}

// Stop halts both tickers. When Stop returns no further poll is sent.
// It is a no-op if not started.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
	slog.Debug("polling stopped")
}

func (s *Scheduler) run(freq, pull Ticker, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer freq.Stop()
	defer pull.Stop()

	for {
		// Checked first so a pending tick never wins over a stop.
		select {
		case <-stop:
			return
		default:
		}

		select {
		case <-stop:
			return
		case <-freq.C():
			s.send(command.Frequency())
		case <-pull.C():
			s.send(command.Pull())
		}
	}
}

func (s *Scheduler) send(cmd string) {
	err := s.sender.Send(cmd)
	switch {
	case err == nil:
	case errors.Is(err, transport.ErrNotConnected):
		slog.Debug("poll skipped, not connected", "command", cmd)
	default:
		slog.Warn("poll failed", "command", cmd, "error", err)
	}
}
