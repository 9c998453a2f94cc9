package control

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/san-kum/joydrive/internal/normalize"
	"github.com/san-kum/joydrive/internal/telemetry"
)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

func WithLogger(log zerolog.Logger) Option {
	return func(d *Dispatcher) {
		d.log = log.With().Str("component", "dispatcher").Logger()
	}
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// Dispatcher is the control state machine. Step and Click are safe for
// concurrent use, but the control loop is expected to be the only caller.
type Dispatcher struct {
	tuning  Tuning
	log     zerolog.Logger
	metrics *telemetry.Metrics

	mu    sync.Mutex
	state State
	cycle uint64
	vert  int8 // +1 forward, -1 backward, 0 idle
	horiz int8 // +1 right, -1 left, 0 idle
	lastV Event
	lastH Event
	hasV  bool
	hasH  bool

	subsMu sync.RWMutex
	subs   [numKinds][]Subscriber
}

func New(t Tuning, opts ...Option) (*Dispatcher, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	d := &Dispatcher{tuning: t, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func (d *Dispatcher) Tuning() Tuning {
	return d.tuning
}

// Subscribe registers s for events of kind. Subscribers of one kind are
// called in registration order.
func (d *Dispatcher) Subscribe(kind Kind, s Subscriber) {
	if kind >= numKinds {
		panic(fmt.Sprintf("control: subscribe to unknown kind %d", kind))
	}
	d.subsMu.Lock()
	d.subs[kind] = append(d.subs[kind], s)
	d.subsMu.Unlock()
}

// SubscribeAll registers s for every kind.
func (d *Dispatcher) SubscribeAll(s Subscriber) {
	for _, k := range Kinds() {
		d.Subscribe(k, s)
	}
}

// Subscribers returns the number of subscribers of kind.
func (d *Dispatcher) Subscribers(kind Kind) int {
	d.subsMu.RLock()
	defer d.subsMu.RUnlock()
	return len(d.subs[kind])
}

func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Cycle returns the number of Step calls so far.
func (d *Dispatcher) Cycle() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cycle
}

// Reset returns the state machine to None and forgets the last events.
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = None
	d.vert, d.horiz = 0, 0
	d.hasV, d.hasH = false, false
}

// axis resolves the action of one axis with hysteresis: an active action
// holds until the signal drops below threshold*ReleaseRatio.
func (d *Dispatcher) axis(prev int8, s normalize.Signal, pos, neg float64) int8 {
	if s.AtRest {
		return 0
	}
	r := d.tuning.ReleaseRatio
	switch {
	case prev > 0 && s.Value > pos*r:
		return 1
	case prev < 0 && s.Value < -neg*r:
		return -1
	case s.Value > pos:
		return 1
	case s.Value < -neg:
		return -1
	}
	return 0
}

// Step advances the state machine by one sample cycle and returns the
// events to deliver. Vy decides the state when both axes are active;
// steering events are still produced.
func (d *Dispatcher) Step(x, y normalize.Signal, at time.Time) []Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cycle++
	t := d.tuning
	vert := d.axis(d.vert, y, t.ForwardThreshold, t.BackwardThreshold)
	horiz := d.axis(d.horiz, x, t.RightThreshold, t.LeftThreshold)
	base := Event{X: x, Y: y, Cycle: d.cycle, At: at}

	if vert == 0 && horiz == 0 && x.AtRest && y.AtRest {
		d.vert, d.horiz = 0, 0
		d.hasV, d.hasH = false, false
		if d.state == Neutral {
			return nil
		}
		d.state = Neutral
		ev := base
		ev.Kind = Neutralize
		return []Event{ev}
	}

	var events []Event

	if ev, ok := d.verticalEvent(base, vert); ok {
		if !d.hasV || !ev.same(d.lastV) {
			events = append(events, ev)
		}
		d.lastV, d.hasV = ev, true
	}
	if ev, ok := d.horizontalEvent(base, horiz); ok {
		if !d.hasH || !ev.same(d.lastH) {
			events = append(events, ev)
		}
		d.lastH, d.hasH = ev, true
	}
	d.vert, d.horiz = vert, horiz

	switch {
	case vert > 0:
		d.state = AcceleratingForward
	case vert < 0:
		d.state = AcceleratingBackward
	case horiz > 0:
		d.state = SteeringRight
	case horiz < 0:
		d.state = SteeringLeft
	case d.state != Neutral:
		d.state = None
	}
	return events
}

func (d *Dispatcher) verticalEvent(base Event, vert int8) (Event, bool) {
	ev := base
	switch {
	case vert > 0:
		ev.Kind = Forward
		ev.Magnitude = d.tuning.ForwardMagnitude(base.Y.Value)
	case vert < 0:
		ev.Kind = Backward
		ev.Magnitude = d.tuning.ForwardMagnitude(base.Y.Value)
	case d.vert > 0:
		ev.Kind, ev.Release = Forward, true
	case d.vert < 0:
		ev.Kind, ev.Release = Backward, true
	default:
		return Event{}, false
	}
	return ev, true
}

func (d *Dispatcher) horizontalEvent(base Event, horiz int8) (Event, bool) {
	ev := base
	switch {
	case horiz > 0:
		ev.Kind = SteerRight
		ev.Angle = d.tuning.SteerAngle(base.X.Value)
	case horiz < 0:
		ev.Kind = SteerLeft
		ev.Angle = d.tuning.SteerAngle(base.X.Value)
	case d.horiz > 0:
		ev.Kind, ev.Release = SteerRight, true
	case d.horiz < 0:
		ev.Kind, ev.Release = SteerLeft, true
	default:
		return Event{}, false
	}
	return ev, true
}

// Click returns the event for one press of the joystick switch. It does
// not change the control state.
func (d *Dispatcher) Click(at time.Time) Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Event{Kind: Click, Cycle: d.cycle, At: at}
}

// Deliver hands each event to the subscribers of its kind. A failing or
// panicking subscriber is logged and reported; the remaining subscribers
// still run.
func (d *Dispatcher) Deliver(ctx context.Context, events []Event) []error {
	var errs []error
	for _, ev := range events {
		d.metrics.Event(ctx, ev.Kind.String())

		d.subsMu.RLock()
		subs := d.subs[ev.Kind]
		d.subsMu.RUnlock()

		for _, s := range subs {
			if err := invoke(s, ev); err != nil {
				herr := &HandlerError{Kind: ev.Kind, Cycle: ev.Cycle, Err: err}
				d.log.Error().Err(err).
					Stringer("kind", ev.Kind).
					Uint64("cycle", ev.Cycle).
					Msg("event handler failed")
				d.metrics.HandlerError(ctx, ev.Kind.String())
				errs = append(errs, herr)
			}
		}
	}
	return errs
}

// Dispatch runs Step and delivers its events.
func (d *Dispatcher) Dispatch(ctx context.Context, x, y normalize.Signal, at time.Time) ([]Event, []error) {
	events := d.Step(x, y, at)
	return events, d.Deliver(ctx, events)
}

func invoke(s Subscriber, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.HandleEvent(ev)
}
