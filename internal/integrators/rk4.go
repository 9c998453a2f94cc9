// Package integrators advances a dynamo.System by one fixed step.
package integrators

import (
	"strings"

	"github.com/san-kum/joydrive/internal/dynamo"
)

// RK4 is the classic fourth-order Runge-Kutta stepper. It keeps scratch
// buffers between calls and is not safe for concurrent use.
type RK4 struct {
	k       [4]dynamo.State
	scratch dynamo.State
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) ensureScratch(n int) {
	if len(r.scratch) == n {
		return
	}
	for i := range r.k {
		r.k[i] = make(dynamo.State, n)
	}
	r.scratch = make(dynamo.State, n)
}

// stage evaluates the derivative at x + h*slope.
func (r *RK4) stage(dst dynamo.State, dyn dynamo.System, x, slope dynamo.State, u dynamo.Control, t, h float64) {
	for i := range x {
		r.scratch[i] = x[i] + h*slope[i]
	}
	copy(dst, dyn.Derive(r.scratch, u, t))
}

func (r *RK4) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	n := len(x)
	r.ensureScratch(n)

	copy(r.k[0], dyn.Derive(x, u, t))
	r.stage(r.k[1], dyn, x, r.k[0], u, t+dt/2, dt/2)
	r.stage(r.k[2], dyn, x, r.k[1], u, t+dt/2, dt/2)
	r.stage(r.k[3], dyn, x, r.k[2], u, t+dt, dt)

	next := make(dynamo.State, n)
	dt6 := dt / 6
	for i := range x {
		next[i] = x[i] + dt6*(r.k[0][i]+2*r.k[1][i]+2*r.k[2][i]+r.k[3][i])
	}
	return next
}

// ByName returns a fresh integrator: "rk4" (default) or "euler".
func ByName(name string) (dynamo.Integrator, error) {
	switch strings.ToLower(name) {
	case "", "rk4":
		return NewRK4(), nil
	case "euler":
		return NewEuler(), nil
	}
	return nil, dynamo.Configf("physics.integrator", "unknown integrator %q", name)
}

