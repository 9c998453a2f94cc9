package physics

import (
	"math"

	"github.com/san-kum/joydrive/internal/dynamo"
	"github.com/san-kum/joydrive/internal/integrators"
	"github.com/san-kum/joydrive/internal/vehicle"
)

const (
	DefaultGravity  = 9.81
	DefaultMaxSteer = 0.6
	DefaultDrag     = 0.8
)

// State layout of a Vehicle.
const (
	iPX = iota
	iPY
	iPZ
	iHeading
	iSpeed
	iVY
	vehicleDim
)

// Control layout of a Vehicle.
const (
	uEngine = iota
	uBrake
	uSteer
	vehicleControlDim
)

type wheel struct {
	spec vehicle.WheelSpec
	slip float64
}

// Vehicle is a chassis on raycast wheels. Its actuator methods are not
// synchronized; callers serialize them with World.Lock.
type Vehicle struct {
	Mass     float64
	MaxSteer float64
	Drag     float64

	stiffness   float64
	compression float64
	damping     float64
	maxForce    float64
	wheels      []wheel

	x       dynamo.State
	engine  float64
	brake   float64
	steer   float64
	force   dynamo.Vec3
	gravity float64
	groundY float64
	inSim   bool

	integ dynamo.Integrator
}

// NewVehicle returns a vehicle of the given mass at pos, facing +Z. Tune
// it through vehicle.Builder before adding it to a World.
func NewVehicle(mass float64, pos dynamo.Vec3) *Vehicle {
	v := &Vehicle{
		Mass:     mass,
		MaxSteer: DefaultMaxSteer,
		Drag:     DefaultDrag,
		gravity:  DefaultGravity,
		integ:    integrators.NewRK4(),
		x:        make(dynamo.State, vehicleDim),

		// raycast vehicle defaults
		stiffness:   5.88,
		compression: 0.83,
		damping:     0.88,
		maxForce:    6000,
	}
	v.x[iPX], v.x[iPY], v.x[iPZ] = pos.X, pos.Y, pos.Z
	return v
}

// DefaultVehicle builds the reference car: 600 kg spawned at (20, 5, 10)
// on four 0.5 m wheels with the default suspension and friction slip 20.
func DefaultVehicle() *Vehicle {
	v := NewVehicle(600, dynamo.Vec3{X: 20, Y: 5, Z: 10})
	for _, w := range vehicle.StandardWheels(0.5, 0.1) {
		v.AddWheel(w)
	}
	// Defaults are valid, errors are impossible on a fresh vehicle.
	_ = vehicle.ConfigureSuspension(v, vehicle.DefaultSuspension())
	_ = vehicle.ConfigureWheelFriction(v, 20)
	return v
}

func (v *Vehicle) StateDim() int   { return vehicleDim }
func (v *Vehicle) ControlDim() int { return vehicleControlDim }

func (v *Vehicle) SetSuspensionStiffness(k float64) {
	if !v.inSim {
		v.stiffness = k
	}
}

func (v *Vehicle) SetSuspensionCompression(c float64) {
	if !v.inSim {
		v.compression = c
	}
}

func (v *Vehicle) SetSuspensionDamping(d float64) {
	if !v.inSim {
		v.damping = d
	}
}

func (v *Vehicle) SetMaxSuspensionForce(f float64) {
	if !v.inSim {
		v.maxForce = f
	}
}

// AddWheel attaches a wheel and returns its index.
func (v *Vehicle) AddWheel(w vehicle.WheelSpec) int {
	v.wheels = append(v.wheels, wheel{spec: w, slip: 10.5})
	return len(v.wheels) - 1
}

func (v *Vehicle) NumWheels() int { return len(v.wheels) }

func (v *Vehicle) SetWheelFrictionSlip(i int, slip float64) {
	if i >= 0 && i < len(v.wheels) && !v.inSim {
		v.wheels[i].slip = slip
	}
}

func (v *Vehicle) InSimulation() bool { return v.inSim }

// SetIntegrator replaces the RK4 stepper.
func (v *Vehicle) SetIntegrator(integ dynamo.Integrator) {
	if integ != nil {
		v.integ = integ
	}
}

// Suspension returns the stiffness, compression and damping coefficients
// and the force cap in effect.
func (v *Vehicle) Suspension() (stiffness, compression, damping, maxForce float64) {
	return v.stiffness, v.compression, v.damping, v.maxForce
}

func (v *Vehicle) FrictionSlip(i int) float64 {
	return v.wheels[i].slip
}

// Accelerate sets the engine force of every wheel.
func (v *Vehicle) Accelerate(force float64) { v.engine = force }

// Brake sets the brake force of every wheel.
func (v *Vehicle) Brake(force float64) { v.brake = math.Abs(force) }

// Steer sets the steering angle of the front wheels, positive to the left.
func (v *Vehicle) Steer(angle float64) { v.steer = angle }

// ClearForces drops central forces applied since the last step.
func (v *Vehicle) ClearForces() { v.force = dynamo.Zero3 }

// ApplyForce adds a central force in the world frame until ClearForces.
func (v *Vehicle) ApplyForce(f dynamo.Vec3) { v.force = v.force.Add(f) }

// ApplyImpulse changes the chassis velocity at once. The offset is
// accepted for interface parity; the chassis does not pitch or roll.
func (v *Vehicle) ApplyImpulse(impulse, offset dynamo.Vec3) {
	dv := impulse.Scale(1 / v.Mass)
	sin, cos := math.Sincos(v.x[iHeading])
	v.x[iSpeed] += dv.X*sin + dv.Z*cos
	v.x[iVY] += dv.Y
}

// wheelCompression returns each wheel's suspension compression, zero when the
// wheel is off the ground.
func (v *Vehicle) wheelCompression(py float64) []float64 {
	out := make([]float64, len(v.wheels))
	for i, w := range v.wheels {
		reach := w.spec.RestLength + w.spec.Radius
		height := py + w.spec.Position.Y - v.groundY
		if c := reach - height; c > 0 {
			out[i] = math.Min(c, reach)
		}
	}
	return out
}

// Derive implements dynamo.System.
func (v *Vehicle) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	heading, speed, vy := x[iHeading], x[iSpeed], x[iVY]
	engine, brake, steer := u[uEngine], u[uBrake], u[uSteer]

	comp := v.wheelCompression(x[iPY])
	contacts := 0
	lift := 0.0
	grip := math.Inf(1)
	for i, c := range comp {
		if c == 0 {
			continue
		}
		contacts++
		grip = math.Min(grip, v.wheels[i].slip)
		coeff := v.damping
		if vy < 0 {
			coeff = v.compression
		}
		f := (v.stiffness*c - coeff*vy) * v.Mass
		lift += math.Max(0, math.Min(f, v.maxForce))
	}

	sin, cos := math.Sincos(heading)
	ay := lift/v.Mass - v.gravity + v.force.Y/v.Mass

	along := (v.force.X*sin + v.force.Z*cos) / v.Mass
	yawRate := 0.0
	if contacts > 0 {
		share := float64(contacts)
		along += engine * share / v.Mass
		along -= brake * share / v.Mass * math.Tanh(speed/0.5)

		delta := math.Max(-v.MaxSteer, math.Min(v.MaxSteer, steer))
		wheelbase := v.wheelbase()
		yawRate = speed * math.Tan(delta) / wheelbase
		if maxLat := grip * v.gravity; math.Abs(speed*yawRate) > maxLat && speed != 0 {
			yawRate = math.Copysign(maxLat/math.Abs(speed), yawRate)
		}
	}
	along -= v.Drag * speed * math.Abs(speed) / v.Mass

	return dynamo.State{
		speed * sin,
		vy,
		speed * cos,
		yawRate,
		along,
		ay,
	}
}

func (v *Vehicle) wheelbase() float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, w := range v.wheels {
		lo = math.Min(lo, w.spec.Position.Z)
		hi = math.Max(hi, w.spec.Position.Z)
	}
	if hi-lo <= 0 {
		return 1
	}
	return hi - lo
}

func (v *Vehicle) controls() dynamo.Control {
	return dynamo.Control{v.engine, v.brake, v.steer}
}

func (v *Vehicle) step(t, dt float64) error {
	next := v.integ.Step(v, v.x, v.controls(), t, dt)
	if !next.IsValid() {
		return dynamo.ErrInvalidState
	}
	// The chassis can not sink below its wheel hubs.
	if floor := v.groundY + v.minHubHeight(); next[iPY] < floor {
		next[iPY] = floor
		if next[iVY] < 0 {
			next[iVY] = 0
		}
	}
	v.x = next
	return nil
}

func (v *Vehicle) minHubHeight() float64 {
	h := 0.0
	for _, w := range v.wheels {
		h = math.Max(h, w.spec.Radius-w.spec.Position.Y)
	}
	return h
}

// VehicleState is a snapshot of a vehicle.
type VehicleState struct {
	Position      dynamo.Vec3
	Heading       float64
	Speed         float64
	VerticalSpeed float64
	Engine        float64
	Brake         float64
	Steer         float64
	Contacts      int
}

func (v *Vehicle) snapshot() VehicleState {
	contacts := 0
	for _, c := range v.wheelCompression(v.x[iPY]) {
		if c > 0 {
			contacts++
		}
	}
	return VehicleState{
		Position:      dynamo.Vec3{X: v.x[iPX], Y: v.x[iPY], Z: v.x[iPZ]},
		Heading:       v.x[iHeading],
		Speed:         v.x[iSpeed],
		VerticalSpeed: v.x[iVY],
		Engine:        v.engine,
		Brake:         v.brake,
		Steer:         v.steer,
		Contacts:      contacts,
	}
}
