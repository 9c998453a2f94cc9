package pipeline

import (
	"sync"
	"time"
)

// Ticker delivers the cadence of the control loop.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Scheduler supplies tickers, backoff timers and the wall clock.
type Scheduler interface {
	NewTicker(d time.Duration) Ticker
	After(d time.Duration) <-chan time.Time
	Now() time.Time
}

// RealScheduler is backed by the time package.
type RealScheduler struct{}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

func (RealScheduler) NewTicker(d time.Duration) Ticker {
	return realTicker{time.NewTicker(d)}
}

func (RealScheduler) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (RealScheduler) Now() time.Time                         { return time.Now() }

// ManualScheduler is driven by the caller. Its ticker holds at most one
// pending tick, like a time.Ticker whose reader fell behind.
type ManualScheduler struct {
	mu      sync.Mutex
	now     time.Time
	ticks   chan time.Time
	period  time.Duration
	waits   []time.Duration
	pending []chan time.Time
	stopped bool
}

func NewManualScheduler(start time.Time) *ManualScheduler {
	return &ManualScheduler{now: start, ticks: make(chan time.Time, 1)}
}

type manualTicker struct{ s *ManualScheduler }

func (m manualTicker) C() <-chan time.Time { return m.s.ticks }

func (m manualTicker) Stop() {
	m.s.mu.Lock()
	m.s.stopped = true
	m.s.mu.Unlock()
}

func (s *ManualScheduler) NewTicker(d time.Duration) Ticker {
	s.mu.Lock()
	s.period = d
	s.stopped = false
	s.mu.Unlock()
	return manualTicker{s}
}

// After records the requested wait; Release fires it.
func (s *ManualScheduler) After(d time.Duration) <-chan time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan time.Time, 1)
	s.waits = append(s.waits, d)
	s.pending = append(s.pending, ch)
	return ch
}

func (s *ManualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Tick advances the clock by one period and offers a tick. It reports
// false when the previous tick is still pending and this one was dropped.
func (s *ManualScheduler) Tick() bool {
	s.mu.Lock()
	s.now = s.now.Add(s.period)
	now := s.now
	s.mu.Unlock()

	select {
	case s.ticks <- now:
		return true
	default:
		return false
	}
}

// Release advances the clock past every pending wait and fires them.
func (s *ManualScheduler) Release() int {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	for _, d := range s.waits[len(s.waits)-len(pending):] {
		s.now = s.now.Add(d)
	}
	now := s.now
	s.mu.Unlock()

	for _, ch := range pending {
		ch <- now
	}
	return len(pending)
}

// Waits returns every duration passed to After so far.
func (s *ManualScheduler) Waits() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waits...)
}

// Pending returns the number of waits not yet released.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *ManualScheduler) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}
