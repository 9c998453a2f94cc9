// Package metrics summarizes a control session from its cycles.
package metrics

import (
	"sync"

	"github.com/san-kum/joydrive/internal/pipeline"
)

type Metric interface {
	Name() string
	Observe(f pipeline.Frame)
	Value() float64
	Reset()
}

// Session feeds every cycle to its metrics. It is a
// pipeline.CycleObserver and is safe for concurrent use.
type Session struct {
	mu      sync.Mutex
	metrics []Metric
}

func NewSession(ms ...Metric) *Session {
	return &Session{metrics: ms}
}

// DefaultSession tracks effort, rest ratio, reliability, click count and
// the slowest cycle.
func DefaultSession() *Session {
	return NewSession(
		NewControlEffort(),
		NewRestRatio(),
		NewReliability(),
		NewEventCount("click"),
		NewEventCount("neutralize"),
		NewPeakDuration(),
	)
}

func (s *Session) Add(m Metric) {
	s.mu.Lock()
	s.metrics = append(s.metrics, m)
	s.mu.Unlock()
}

func (s *Session) OnCycle(f pipeline.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.metrics {
		m.Observe(f)
	}
}

func (s *Session) Values() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]float64, len(s.metrics))
	for _, m := range s.metrics {
		out[m.Name()] = m.Value()
	}
	return out
}

func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.metrics {
		m.Reset()
	}
}
