package metrics

import (
	"github.com/san-kum/joydrive/internal/pipeline"
)

// Reliability is the fraction of cycles that read every channel without
// error. A session with no cycles is fully reliable.
type Reliability struct {
	name       string
	violations int
	samples    int
}

func NewReliability() *Reliability {
	return &Reliability{
		name: "reliability",
	}
}

func (r *Reliability) Name() string {
	return r.name
}

func (r *Reliability) Observe(f pipeline.Frame) {
	r.samples++
	if f.Failed || len(f.Errs) > 0 {
		r.violations++
	}
}

func (r *Reliability) Value() float64 {
	if r.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(r.violations)/float64(r.samples)
}

func (r *Reliability) Reset() {
	r.violations = 0
	r.samples = 0
}
