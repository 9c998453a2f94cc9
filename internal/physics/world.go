package physics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/san-kum/joydrive/internal/dynamo"
)

var ErrAlreadyAdded = errors.New("physics: object already in a world")

// World steps vehicles and bodies over a flat ground plane.
type World struct {
	Gravity float64
	GroundY float64

	mu       sync.Mutex
	vehicles []*Vehicle
	bodies   []*Body
	t        float64
	steps    uint64
	log      zerolog.Logger
}

func NewWorld(gravity, groundY float64, log zerolog.Logger) *World {
	return &World{
		Gravity: gravity,
		GroundY: groundY,
		log:     log.With().Str("component", "physics").Logger(),
	}
}

// NewTestWorld returns a world with the floor at y=-10 and a ball of
// radius 5 resting on it at the origin.
func NewTestWorld(gravity float64, log zerolog.Logger) *World {
	w := NewWorld(gravity, -10, log)
	ball := NewBody("ball", 0.5, 5, dynamo.Vec3{Y: -5})
	ball.RollingFriction = 1
	ball.Velocity = dynamo.Vec3{X: 0.2, Y: 0.2, Z: 0.2}
	w.AddBody(ball)
	return w
}

// Lock serializes actuator calls with Step.
func (w *World) Lock()   { w.mu.Lock() }
func (w *World) Unlock() { w.mu.Unlock() }

// AddVehicle puts v into the world. Build-time tuning of v is frozen from
// here on.
func (w *World) AddVehicle(v *Vehicle) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if v.inSim {
		return ErrAlreadyAdded
	}
	if len(v.wheels) == 0 {
		return dynamo.Configf("vehicle", "no wheels")
	}
	v.inSim = true
	v.gravity = w.Gravity
	v.groundY = w.GroundY
	w.vehicles = append(w.vehicles, v)
	w.log.Debug().Int("wheels", len(v.wheels)).Float64("mass", v.Mass).Msg("vehicle added")
	return nil
}

func (w *World) AddBody(b *Body) {
	w.mu.Lock()
	defer w.mu.Unlock()
	b.gravity = w.Gravity
	b.groundY = w.GroundY
	w.bodies = append(w.bodies, b)
}

// Step advances every object by dt seconds.
func (w *World) Step(dt float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i, v := range w.vehicles {
		if err := v.step(w.t, dt); err != nil {
			return &dynamo.SimulationError{Step: int(w.steps), Time: w.t, State: v.x.Clone(),
				Wrapped: fmt.Errorf("vehicle %d: %w", i, err)}
		}
	}
	for _, b := range w.bodies {
		if err := b.step(w.t, dt); err != nil {
			return &dynamo.SimulationError{Step: int(w.steps), Time: w.t,
				Wrapped: fmt.Errorf("body %s: %w", b.Name, err)}
		}
	}
	w.t += dt
	w.steps++
	return nil
}

// Run steps the world every dt until ctx is done or a step fails.
func (w *World) Run(ctx context.Context, dt time.Duration) error {
	ticker := time.NewTicker(dt)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.Step(dt.Seconds()); err != nil {
				w.log.Error().Err(err).Msg("physics step failed")
				return err
			}
		}
	}
}

// Time returns the simulated time in seconds.
func (w *World) Time() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.t
}

func (w *World) Steps() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.steps
}

// Snapshot returns the state of every vehicle, in insertion order.
func (w *World) Snapshot() []VehicleState {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]VehicleState, len(w.vehicles))
	for i, v := range w.vehicles {
		out[i] = v.snapshot()
	}
	return out
}

// Bodies returns copies of the bodies in the world.
func (w *World) Bodies() []Body {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Body, len(w.bodies))
	for i, b := range w.bodies {
		out[i] = *b
	}
	return out
}
