package vehicle

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/san-kum/joydrive/internal/control"
	"github.com/san-kum/joydrive/internal/dynamo"
)

// Params are the fixed forces the adapter applies.
type Params struct {
	BrakeForce  float64     `yaml:"brake_force"`
	JumpImpulse dynamo.Vec3 `yaml:"jump_impulse"`
	JumpOffset  dynamo.Vec3 `yaml:"jump_offset"`
}

func DefaultParams() Params {
	return Params{
		BrakeForce:  300,
		JumpImpulse: dynamo.Vec3{Y: 2000},
	}
}

// Command is the last actuation the adapter issued.
type Command struct {
	Engine float64
	Brake  float64
	Steer  float64
	Jumps  uint64
}

// Adapter serializes actuator calls with the physics step through lock.
// It implements control.Subscriber.
type Adapter struct {
	act    Actuator
	lock   sync.Locker
	params Params
	log    zerolog.Logger

	cmd Command
}

// NewAdapter wraps act. lock must be the lock the physics world holds while
// stepping; nil gives the adapter a private mutex.
func NewAdapter(act Actuator, lock sync.Locker, p Params, log zerolog.Logger) *Adapter {
	if lock == nil {
		lock = &sync.Mutex{}
	}
	return &Adapter{
		act:    act,
		lock:   lock,
		params: p,
		log:    log.With().Str("component", "vehicle").Logger(),
	}
}

func (a *Adapter) Accelerate(force float64) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.act.Accelerate(force)
	a.cmd.Engine = force
}

func (a *Adapter) Steer(angle float64) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.act.Steer(angle)
	a.cmd.Steer = angle
}

func (a *Adapter) Brake(force float64) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.act.Brake(force)
	a.cmd.Brake = force
}

// ApplyJumpImpulse pushes the vehicle up once.
func (a *Adapter) ApplyJumpImpulse() {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.act.ApplyImpulse(a.params.JumpImpulse, a.params.JumpOffset)
	a.cmd.Jumps++
}

// Neutralize clears accumulated forces, brakes, and zeroes engine and
// steering as one step.
func (a *Adapter) Neutralize() {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.act.ClearForces()
	a.act.Brake(a.params.BrakeForce)
	a.act.Accelerate(0)
	a.act.Steer(0)
	a.cmd.Engine, a.cmd.Steer, a.cmd.Brake = 0, 0, a.params.BrakeForce
}

// Last returns the last commanded actuation.
func (a *Adapter) Last() Command {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.cmd
}

// HandleEvent routes a driving event to the matching actuator call.
// Backward events accelerate with the negated magnitude; a release event
// zeroes the channel it names.
func (a *Adapter) HandleEvent(ev control.Event) error {
	switch ev.Kind {
	case control.Forward:
		a.Accelerate(ev.Magnitude)
	case control.Backward:
		if ev.Release {
			a.Accelerate(0)
		} else {
			a.Accelerate(-ev.Magnitude)
		}
	case control.SteerRight, control.SteerLeft:
		a.Steer(ev.Angle)
	case control.Neutralize:
		a.Neutralize()
	case control.Click:
		a.ApplyJumpImpulse()
	default:
		return fmt.Errorf("vehicle: unhandled event %s", ev.Kind)
	}
	a.log.Trace().Stringer("event", ev).Uint64("cycle", ev.Cycle).Msg("actuated")
	return nil
}
