package integrators

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/joydrive/internal/dynamo"
)

// oscillator is x'' = -x.
type oscillator struct{}

func (oscillator) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{x[1], -x[0]}
}

func (oscillator) StateDim() int   { return 2 }
func (oscillator) ControlDim() int { return 0 }

// falling is a body under constant control acceleration.
type falling struct{}

func (falling) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{x[1], u[0]}
}

func (falling) StateDim() int   { return 2 }
func (falling) ControlDim() int { return 1 }

func TestRK4Accuracy(t *testing.T) {
	integ := NewRK4()
	x := dynamo.State{1.0, 0.0}
	dt := 0.01
	steps := 100

	for i := 0; i < steps; i++ {
		x = integ.Step(oscillator{}, x, nil, float64(i)*dt, dt)
	}

	expectedX := math.Cos(float64(steps) * dt)
	expectedV := -math.Sin(float64(steps) * dt)

	if math.Abs(x[0]-expectedX) > 1e-4 {
		t.Errorf("position error too large: got %.6f, expected %.6f", x[0], expectedX)
	}
	if math.Abs(x[1]-expectedV) > 1e-4 {
		t.Errorf("velocity error too large: got %.6f, expected %.6f", x[1], expectedV)
	}
}

func TestRK4ExactForConstantAcceleration(t *testing.T) {
	integ := NewRK4()
	x := dynamo.State{0, 0}
	u := dynamo.Control{-9.81}

	for i := 0; i < 10; i++ {
		x = integ.Step(falling{}, x, u, float64(i)*0.1, 0.1)
	}

	want := -0.5 * 9.81 * 1.0
	if math.Abs(x[0]-want) > 1e-9 {
		t.Errorf("expected %.6f, got %.6f", want, x[0])
	}
}

func TestEulerStep(t *testing.T) {
	x := NewEuler().Step(falling{}, dynamo.State{1, 2}, dynamo.Control{4}, 0, 0.5)
	if x[0] != 2 || x[1] != 4 {
		t.Errorf("expected [2 4], got %v", x)
	}
}

func TestByName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"", false},
		{"rk4", false},
		{"Euler", false},
		{"verlet", true},
	}

	for _, tt := range tests {
		integ, err := ByName(tt.name)
		if tt.wantErr {
			if !errors.Is(err, dynamo.ErrConfiguration) {
				t.Errorf("%q: expected configuration error, got %v", tt.name, err)
			}
			continue
		}
		if err != nil || integ == nil {
			t.Errorf("%q: unexpected error %v", tt.name, err)
		}
	}
}
