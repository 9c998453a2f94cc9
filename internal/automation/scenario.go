// Package automation drives a control pipeline from a scripted stick.
//
// A scenario is a YAML list of steps. Each step holds the stick at a
// position for a duration, optionally pressing the button or unplugging
// the transport:
//
//	name: slalom
//	seed: 7
//	steps:
//	  - {label: launch, vy: 0.8, duration_ms: 2000}
//	  - {label: left, vy: 0.6, vx: -0.7, duration_ms: 800, jitter: 4}
//	  - {label: jump, press: true, duration_ms: 300}
//	  - {label: unplugged, fail: true, duration_ms: 500}
//	  - {label: stop, duration_ms: 1000}
//
// Steps run cycle by cycle on a synthetic clock, so a scenario replays the
// same frames every time.
package automation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/joydrive/internal/adc"
	"github.com/san-kum/joydrive/internal/dynamo"
	"github.com/san-kum/joydrive/internal/normalize"
	"github.com/san-kum/joydrive/internal/pipeline"
)

// ErrUnplugged is the transport failure injected by a fail step.
var ErrUnplugged = errors.New("scripted transport failure")

// Scenario is a scripted driving session.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Seed        int64          `yaml:"seed"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep holds the stick at (Vx, Vy), in normalized units, for
// DurationMs.
type ScenarioStep struct {
	Label      string  `yaml:"label"`
	Vx         float64 `yaml:"vx"`
	Vy         float64 `yaml:"vy"`
	Press      bool    `yaml:"press"`
	Hold       bool    `yaml:"hold"`
	Fail       bool    `yaml:"fail"`
	Jitter     int     `yaml:"jitter"`
	DurationMs int     `yaml:"duration_ms"`
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", dynamo.ErrConfiguration, path, err)
	}
	if err := scenario.Validate(); err != nil {
		return nil, err
	}
	return &scenario, nil
}

func (s *Scenario) Validate() error {
	if len(s.Steps) == 0 {
		return dynamo.Configf("scenario.steps", "no steps")
	}
	for i, st := range s.Steps {
		field := fmt.Sprintf("scenario.steps[%d]", i)
		if st.DurationMs <= 0 {
			return dynamo.Configf(field, "duration_ms must be positive")
		}
		if st.Vx < -1 || st.Vx > 1 || st.Vy < -1 || st.Vy > 1 {
			return dynamo.Configf(field, "stick position (%.2f, %.2f) outside [-1,1]", st.Vx, st.Vy)
		}
		if st.Jitter < 0 {
			return dynamo.Configf(field, "jitter must not be negative")
		}
	}
	return nil
}

// Stepper advances a simulation by dt seconds. physics.World is one.
type Stepper interface {
	Step(dt float64) error
}

// Runner feeds a scenario into a pipeline through a fake transport.
type Runner struct {
	Loop       *pipeline.Loop
	Fake       *adc.Fake
	Vx, Vy     adc.Channel
	CalX, CalY normalize.Calibration
	ActiveHigh bool
	Interval   time.Duration
	// World, when set, is stepped by Interval after every cycle.
	World Stepper
	Start time.Time
	Log   zerolog.Logger
}

// StepResult summarizes the cycles of one step.
type StepResult struct {
	Label  string
	Cycles int
	Failed int
	Errors int
	Events map[string]int
	State  string
}

type Result struct {
	Name   string
	Cycles int
	Steps  []StepResult
}

// Run plays every step of sc. It stops early when ctx is done or the world
// fails to step.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Result, error) {
	if r.Interval <= 0 {
		return nil, dynamo.Configf("automation.interval", "must be positive")
	}
	rng := rand.New(rand.NewSource(sc.Seed))
	at := r.Start
	if at.IsZero() {
		at = time.Now()
	}

	// the detector's first poll only seeds the level
	r.Fake.SetButton(!r.ActiveHigh)

	res := &Result{Name: sc.Name, Steps: make([]StepResult, 0, len(sc.Steps))}
	for i, st := range sc.Steps {
		label := st.Label
		if label == "" {
			label = fmt.Sprintf("step %d", i+1)
		}
		sr := StepResult{Label: label, Events: make(map[string]int)}

		if st.Fail {
			r.Fake.FailAll(ErrUnplugged)
		}
		cycles := max(1, st.DurationMs*int(time.Millisecond)/int(r.Interval))
		for c := 0; c < cycles; c++ {
			if err := ctx.Err(); err != nil {
				r.Fake.FailAll(nil)
				return res, err
			}
			r.Fake.Set(r.Vx, r.CalX.Raw(st.Vx)+jitter(rng, st.Jitter))
			r.Fake.Set(r.Vy, r.CalY.Raw(st.Vy)+jitter(rng, st.Jitter))
			pressed := st.Hold || (st.Press && c == 0)
			r.Fake.SetButton(pressed == r.ActiveHigh)

			f := r.Loop.RunOnce(ctx, at)
			sr.Cycles++
			if f.Failed {
				sr.Failed++
			}
			sr.Errors += len(f.Errs)
			for _, ev := range f.Events {
				sr.Events[ev.Kind.String()]++
			}
			sr.State = f.State.String()

			if r.World != nil {
				if err := r.World.Step(r.Interval.Seconds()); err != nil {
					r.Fake.FailAll(nil)
					return res, fmt.Errorf("%s: %w", label, err)
				}
			}
			at = at.Add(r.Interval)
		}
		r.Fake.FailAll(nil)

		r.Log.Debug().
			Str("step", label).
			Int("cycles", sr.Cycles).
			Int("failed", sr.Failed).
			Interface("events", sr.Events).
			Msg("scenario step done")
		res.Steps = append(res.Steps, sr)
		res.Cycles += sr.Cycles
	}
	return res, nil
}

func jitter(rng *rand.Rand, n int) int {
	if n <= 0 {
		return 0
	}
	return rng.Intn(2*n+1) - n
}
