package poll

import (
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/Paranoid-AF/vlive/transport"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeClock fires its tickers only when advanced.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

type fakeTicker struct {
	clock   *fakeClock
	c       chan time.Time
	period  time.Duration
	next    time.Time
	stopped bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.c }
func (t *fakeTicker) Stop() {
	t.clock.mu.Lock()
	t.stopped = true
	t.clock.mu.Unlock()
}

func (f *fakeClock) NewTicker(d time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTicker{clock: f, c: make(chan time.Time, 1), period: d, next: f.now.Add(d)}
	f.tickers = append(f.tickers, t)
	return t
}

// Advance moves time forward, firing every ticker whose deadline passes.
// Like time.Ticker, a tick is dropped if the previous one was not consumed.
func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
	for _, t := range f.tickers {
		if t.stopped {
			continue
		}
		for !t.next.After(f.now) {
			select {
			case t.c <- t.next:
			default:
			}
			t.next = t.next.Add(t.period)
		}
	}
}

// recorder is a Sender that records commands and can fail on demand.
type recorder struct {
	mu   sync.Mutex
	sent []string
	err  error
	ch   chan string
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan string, 100)}
}

func (r *recorder) Send(raw string) error {
	r.mu.Lock()
	err := r.err
	if err == nil {
		r.sent = append(r.sent, raw)
	}
	r.mu.Unlock()
	r.ch <- raw
	return err
}

func (r *recorder) setErr(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

func (r *recorder) Sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}

// waitAttempts waits for n send attempts and returns them sorted.
func (r *recorder) waitAttempts(t *testing.T, n int) []string {
	t.Helper()
	var got []string
	for len(got) < n {
		select {
		case cmd := <-r.ch:
			got = append(got, cmd)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out after %d of %d sends: %q", len(got), n, got)
		}
	}
	sort.Strings(got)
	return got
}

func TestSchedulerPollsBothCommandsEachInterval(t *testing.T) {
	clock := &fakeClock{}
	rec := newRecorder()
	s := New(rec, time.Second, WithClock(clock))
	s.Start()
	defer s.Stop()

	for i := 0; i < 3; i++ {
		clock.Advance(time.Second)
		got := rec.waitAttempts(t, 2)
		if got[0] != "freq:" || got[1] != "pull:" {
			t.Fatalf("interval %d: expected freq: and pull:, got %q", i, got)
		}
	}
	if n := len(rec.Sent()); n != 6 {
		t.Errorf("expected 6 sends, got %d", n)
	}
}

func TestSchedulerNothingBeforeFirstInterval(t *testing.T) {
	clock := &fakeClock{}
	rec := newRecorder()
	s := New(rec, time.Second, WithClock(clock))
	s.Start()
	clock.Advance(999 * time.Millisecond)
	s.Stop()
	if sent := rec.Sent(); len(sent) != 0 {
		t.Errorf("expected no sends before the first interval, got %q", sent)
	}
}

func TestSchedulerStopHaltsPolling(t *testing.T) {
	clock := &fakeClock{}
	rec := newRecorder()
	s := New(rec, time.Second, WithClock(clock))
	s.Start()

	clock.Advance(time.Second)
	rec.waitAttempts(t, 2)

	s.Stop()
	if s.Running() {
		t.Fatal("expected scheduler to be stopped")
	}
	for i := 0; i < 5; i++ {
		clock.Advance(time.Second)
	}
	time.Sleep(20 * time.Millisecond)
	if n := len(rec.Sent()); n != 2 {
		t.Errorf("expected no sends after Stop, got %d total", n)
	}
}

func TestSchedulerSwallowsNotConnected(t *testing.T) {
	clock := &fakeClock{}
	rec := newRecorder()
	rec.setErr(transport.ErrNotConnected)
	s := New(rec, time.Second, WithClock(clock))
	s.Start()
	defer s.Stop()

	clock.Advance(time.Second)
	rec.waitAttempts(t, 2)
	if !s.Running() {
		t.Fatal("scheduler stopped after a failed poll")
	}

	rec.setErr(nil)
	clock.Advance(time.Second)
	rec.waitAttempts(t, 2)
	if n := len(rec.Sent()); n != 2 {
		t.Errorf("expected polls to resume, got %d successful sends", n)
	}
}

func TestSchedulerContinuesAfterOtherErrors(t *testing.T) {
	clock := &fakeClock{}
	rec := newRecorder()
	rec.setErr(errors.New("write: broken pipe"))
	s := New(rec, time.Second, WithClock(clock))
	s.Start()
	defer s.Stop()

	clock.Advance(time.Second)
	rec.waitAttempts(t, 2)
	clock.Advance(time.Second)
	rec.waitAttempts(t, 2)
}

func TestSchedulerStartStopIdempotent(t *testing.T) {
	s := New(newRecorder(), 0, WithClock(&fakeClock{}))
	if s.Interval() != DefaultInterval {
		t.Errorf("expected default interval, got %v", s.Interval())
	}
	s.Stop()
	s.Start()
	s.Start()
	if !s.Running() {
		t.Fatal("expected running")
	}
	s.Stop()
	s.Stop()
	s.Start()
	s.Stop()
}
