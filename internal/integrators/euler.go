package integrators

import "github.com/san-kum/joydrive/internal/dynamo"

// Euler is the explicit first-order stepper. Static bodies and the ball of
// the test world use it; the vehicle uses RK4.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	dx := dyn.Derive(x, u, t)
	next := make(dynamo.State, len(x))
	for i := range x {
		next[i] = x[i] + dt*dx[i]
	}
	return next
}
