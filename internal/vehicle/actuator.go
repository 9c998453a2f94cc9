// Package vehicle translates driving events into calls on a physics-backed
// vehicle and applies its build-time tuning.
package vehicle

import "github.com/san-kum/joydrive/internal/dynamo"

// Actuator is the per-frame control surface of a simulated vehicle.
type Actuator interface {
	Accelerate(force float64)
	Brake(force float64)
	Steer(angle float64)
	ClearForces()
	ApplyImpulse(impulse, offset dynamo.Vec3)
}

// Builder is the build-time surface of a vehicle. Its setters only take
// effect before the vehicle joins a simulation.
type Builder interface {
	SetSuspensionStiffness(v float64)
	SetSuspensionCompression(v float64)
	SetSuspensionDamping(v float64)
	SetMaxSuspensionForce(v float64)
	AddWheel(w WheelSpec) int
	NumWheels() int
	SetWheelFrictionSlip(wheel int, slip float64)
	InSimulation() bool
}

// WheelSpec places a raycast wheel relative to the chassis.
type WheelSpec struct {
	Position   dynamo.Vec3
	Direction  dynamo.Vec3
	Axle       dynamo.Vec3
	RestLength float64
	Radius     float64
	Front      bool
}

// StandardWheels lays out four wheels around the chassis: track 4r to each
// side, wheelbase 6.5r fore and aft, front pair steerable.
func StandardWheels(radius, restLength float64) []WheelSpec {
	x, y, z := 4*radius, radius, 6.5*radius
	down := dynamo.Vec3{Y: -1}
	axle := dynamo.Vec3{X: -1}

	wheel := func(px, pz float64, front bool) WheelSpec {
		return WheelSpec{
			Position:   dynamo.Vec3{X: px, Y: y, Z: pz},
			Direction:  down,
			Axle:       axle,
			RestLength: restLength,
			Radius:     radius,
			Front:      front,
		}
	}
	return []WheelSpec{
		wheel(-x, z, true),
		wheel(x, z, true),
		wheel(-x, -z, false),
		wheel(x, -z, false),
	}
}
