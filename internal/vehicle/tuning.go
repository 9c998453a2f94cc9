package vehicle

import (
	"errors"
	"math"

	"github.com/san-kum/joydrive/internal/dynamo"
)

// ErrAlreadyInSimulation is returned when tuning a vehicle that already
// joined the physics world.
var ErrAlreadyInSimulation = errors.New("vehicle: already added to the simulation")

// Suspension holds the spring parameters in their user-facing form.
// Compression and Damping are damping ratios; ConfigureSuspension turns
// them into coefficients relative to the critical damping of Stiffness.
type Suspension struct {
	Stiffness   float64 `yaml:"stiffness"`
	Compression float64 `yaml:"compression"`
	Damping     float64 `yaml:"damping"`
	MaxForce    float64 `yaml:"max_force"`
}

// DefaultSuspension is a soft road car. Compression stays below damping so
// the car rebounds slower than it compresses.
func DefaultSuspension() Suspension {
	return Suspension{
		Stiffness:   30,
		Compression: 0.5,
		Damping:     3,
		MaxForce:    math.Pow(2, 20),
	}
}

func (s Suspension) Validate() error {
	if s.Stiffness <= 0 {
		return dynamo.Configf("vehicle.suspension.stiffness", "must be positive, got %g", s.Stiffness)
	}
	if s.Compression < 0 || s.Damping < 0 {
		return dynamo.Configf("vehicle.suspension", "compression and damping must not be negative")
	}
	if s.MaxForce <= 0 {
		return dynamo.Configf("vehicle.suspension.max_force", "must be positive, got %g", s.MaxForce)
	}
	return nil
}

// Coefficients returns the compression and damping coefficients handed to
// the physics engine.
func (s Suspension) Coefficients() (compression, damping float64) {
	crit := 2 * math.Sqrt(s.Stiffness)
	return s.Compression * crit, s.Damping * crit
}

// ConfigureSuspension applies s to a vehicle that is not yet simulated.
func ConfigureSuspension(b Builder, s Suspension) error {
	if b.InSimulation() {
		return ErrAlreadyInSimulation
	}
	if err := s.Validate(); err != nil {
		return err
	}
	comp, damp := s.Coefficients()
	b.SetSuspensionCompression(comp)
	b.SetSuspensionDamping(damp)
	b.SetSuspensionStiffness(s.Stiffness)
	b.SetMaxSuspensionForce(s.MaxForce)
	return nil
}

// ConfigureWheelFriction sets the friction slip of every wheel added so
// far. Call it after the wheels are added.
func ConfigureWheelFriction(b Builder, slip float64) error {
	if b.InSimulation() {
		return ErrAlreadyInSimulation
	}
	if slip <= 0 {
		return dynamo.Configf("vehicle.friction_slip", "must be positive, got %g", slip)
	}
	for i := 0; i < b.NumWheels(); i++ {
		b.SetWheelFrictionSlip(i, slip)
	}
	return nil
}
