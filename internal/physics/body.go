package physics

import (
	"math"

	"github.com/san-kum/joydrive/internal/dynamo"
	"github.com/san-kum/joydrive/internal/integrators"
)

// Body is a sphere in the world. A Body with zero mass is static.
type Body struct {
	Name            string
	Mass            float64
	Radius          float64
	RollingFriction float64
	Restitution     float64

	Position dynamo.Vec3
	Velocity dynamo.Vec3

	gravity float64
	groundY float64
	integ   dynamo.Integrator
}

// NewBody returns a dynamic sphere at pos.
func NewBody(name string, mass, radius float64, pos dynamo.Vec3) *Body {
	return &Body{
		Name:        name,
		Mass:        mass,
		Radius:      radius,
		Restitution: 0.3,
		Position:    pos,
		integ:       integrators.NewEuler(),
	}
}

func (b *Body) Static() bool { return b.Mass == 0 }

// Gravity is the acceleration the body took from its world.
func (b *Body) Gravity() float64 { return b.gravity }

func (b *Body) StateDim() int   { return 6 }
func (b *Body) ControlDim() int { return 0 }

func (b *Body) onGround(py float64) bool {
	return py-b.Radius <= b.groundY+1e-6
}

// Derive implements dynamo.System over [px, py, pz, vx, vy, vz].
func (b *Body) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	ax, ay, az := 0.0, -b.gravity, 0.0
	if b.onGround(x[1]) {
		ay = math.Max(ay, 0)
		if h := math.Hypot(x[3], x[5]); h > 1e-9 {
			decel := b.RollingFriction * b.gravity
			ax = -decel * x[3] / h
			az = -decel * x[5] / h
		}
	}
	return dynamo.State{x[3], x[4], x[5], ax, ay, az}
}

func (b *Body) step(t, dt float64) error {
	if b.Static() {
		return nil
	}
	x := dynamo.State{b.Position.X, b.Position.Y, b.Position.Z, b.Velocity.X, b.Velocity.Y, b.Velocity.Z}
	next := b.integ.Step(b, x, nil, t, dt)
	if !next.IsValid() {
		return dynamo.ErrInvalidState
	}

	// Rolling friction stops the body rather than reversing it.
	if x[3]*next[3] < 0 {
		next[3] = 0
	}
	if x[5]*next[5] < 0 {
		next[5] = 0
	}
	if floor := b.groundY + b.Radius; next[1] < floor {
		next[1] = floor
		if next[4] < 0 {
			next[4] = -next[4] * b.Restitution
			if next[4] < 0.05 {
				next[4] = 0
			}
		}
	}
	b.Position = dynamo.Vec3{X: next[0], Y: next[1], Z: next[2]}
	b.Velocity = dynamo.Vec3{X: next[3], Y: next[4], Z: next[5]}
	return nil
}
