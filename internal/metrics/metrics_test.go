package metrics

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/san-kum/joydrive/internal/control"
	"github.com/san-kum/joydrive/internal/normalize"
	"github.com/san-kum/joydrive/internal/pipeline"
)

func frames() []pipeline.Frame {
	return []pipeline.Frame{
		{X: normalize.Rest, Y: normalize.Rest, Duration: time.Millisecond},
		{
			X:        normalize.Signal{Value: -0.5},
			Y:        normalize.Signal{Value: 0.5},
			Events:   []control.Event{{Kind: control.Forward}, {Kind: control.SteerLeft}, {Kind: control.Click}},
			Duration: 3 * time.Millisecond,
		},
		{
			X:      normalize.Rest,
			Y:      normalize.Rest,
			Events: []control.Event{{Kind: control.Neutralize}, {Kind: control.Click}},
			Errs:   []error{errors.New("crc")},
		},
		{X: normalize.Rest, Y: normalize.Rest, Failed: true},
	}
}

func TestDefaultSession(t *testing.T) {
	s := DefaultSession()
	for _, f := range frames() {
		s.OnCycle(f)
	}

	tests := []struct {
		name     string
		expected float64
	}{
		{"control_effort", 0.25},
		{"rest_ratio", 0.75},
		{"reliability", 0.5},
		{"events.click", 2},
		{"events.neutralize", 1},
		{"cycle_ms_max", 3},
	}

	values := s.Values()
	for _, tt := range tests {
		got, ok := values[tt.name]
		if !ok {
			t.Errorf("missing metric %s", tt.name)
			continue
		}
		if math.Abs(got-tt.expected) > 1e-9 {
			t.Errorf("%s: expected %f, got %f", tt.name, tt.expected, got)
		}
	}
}

func TestSessionReset(t *testing.T) {
	s := DefaultSession()
	for _, f := range frames() {
		s.OnCycle(f)
	}
	s.Reset()

	values := s.Values()
	if values["control_effort"] != 0 || values["events.click"] != 0 {
		t.Errorf("expected zeroed metrics, got %v", values)
	}
	if values["reliability"] != 1.0 {
		t.Errorf("expected reliability 1 with no samples, got %f", values["reliability"])
	}
}

func TestSessionAdd(t *testing.T) {
	s := NewSession()
	s.Add(NewEventCount("forward"))
	for _, f := range frames() {
		s.OnCycle(f)
	}
	if v := s.Values()["events.forward"]; v != 1 {
		t.Errorf("expected 1 forward event, got %f", v)
	}
}
