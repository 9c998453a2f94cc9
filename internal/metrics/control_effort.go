package metrics

import (
	"math"
	"time"

	"github.com/san-kum/joydrive/internal/pipeline"
)

// ControlEffort is the mean of |x|+|y| over all cycles.
type ControlEffort struct {
	name    string
	sum     float64
	samples int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{
		name: "control_effort",
	}
}

func (c *ControlEffort) Name() string {
	return c.name
}

func (c *ControlEffort) Observe(f pipeline.Frame) {
	c.sum += math.Abs(f.X.Value) + math.Abs(f.Y.Value)
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.samples = 0
}

// RestRatio is the fraction of cycles with both axes at rest.
type RestRatio struct {
	rest    int
	samples int
}

func NewRestRatio() *RestRatio { return &RestRatio{} }

func (r *RestRatio) Name() string { return "rest_ratio" }

func (r *RestRatio) Observe(f pipeline.Frame) {
	if f.X.AtRest && f.Y.AtRest {
		r.rest++
	}
	r.samples++
}

func (r *RestRatio) Value() float64 {
	if r.samples == 0 {
		return 0
	}
	return float64(r.rest) / float64(r.samples)
}

func (r *RestRatio) Reset() { r.rest, r.samples = 0, 0 }

// EventCount counts events of one kind.
type EventCount struct {
	kind  string
	count int
}

func NewEventCount(kind string) *EventCount { return &EventCount{kind: kind} }

func (e *EventCount) Name() string { return "events." + e.kind }

func (e *EventCount) Observe(f pipeline.Frame) {
	for _, ev := range f.Events {
		if ev.Kind.String() == e.kind {
			e.count++
		}
	}
}

func (e *EventCount) Value() float64 { return float64(e.count) }
func (e *EventCount) Reset()         { e.count = 0 }

// PeakDuration is the slowest cycle in milliseconds.
type PeakDuration struct {
	peak time.Duration
}

func NewPeakDuration() *PeakDuration { return &PeakDuration{} }

func (p *PeakDuration) Name() string { return "cycle_ms_max" }

func (p *PeakDuration) Observe(f pipeline.Frame) {
	if f.Duration > p.peak {
		p.peak = f.Duration
	}
}

func (p *PeakDuration) Value() float64 { return float64(p.peak) / float64(time.Millisecond) }
func (p *PeakDuration) Reset()         { p.peak = 0 }
