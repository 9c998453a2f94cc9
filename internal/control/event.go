// Package control maps normalized joystick signals onto driving events.
//
// A [Dispatcher] keeps the control state between sample cycles. Each cycle
// it turns the pair of axis signals into zero or more [Event] values and
// delivers them to the [Subscriber] values registered for each [Kind].
package control

import (
	"fmt"
	"time"

	"github.com/san-kum/joydrive/internal/dynamo"
	"github.com/san-kum/joydrive/internal/normalize"
)

// Kind tags the variant of an Event.
type Kind uint8

const (
	Forward Kind = iota
	Backward
	SteerRight
	SteerLeft
	Neutralize
	Click

	numKinds
)

var kindNames = [numKinds]string{"forward", "backward", "steer_right", "steer_left", "neutralize", "click"}

func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Kinds lists every event kind in dispatch order.
func Kinds() []Kind {
	return []Kind{Forward, Backward, SteerRight, SteerLeft, Neutralize, Click}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown event kind: %q", s)
}

// State is the action the dispatcher currently considers active.
type State uint8

const (
	None State = iota
	AcceleratingForward
	AcceleratingBackward
	SteeringRight
	SteeringLeft
	Neutral
)

func (s State) String() string {
	switch s {
	case AcceleratingForward:
		return "accelerating_forward"
	case AcceleratingBackward:
		return "accelerating_backward"
	case SteeringRight:
		return "steering_right"
	case SteeringLeft:
		return "steering_left"
	case Neutral:
		return "neutral"
	default:
		return "none"
	}
}

// Event is one driving command.
//
// Forward and Backward carry a positive Magnitude; the actuator applies
// Backward as negative acceleration. SteerRight and SteerLeft carry a
// signed Angle, negative to the right. A Release event reports that the
// action of its kind ended while the other axis is still in use; its
// Magnitude and Angle are zero.
type Event struct {
	Kind      Kind
	Magnitude float64
	Angle     float64
	Release   bool

	X, Y  normalize.Signal
	Cycle uint64
	At    time.Time
}

func (e Event) String() string {
	switch {
	case e.Release:
		return fmt.Sprintf("%s(release)", e.Kind)
	case e.Kind == Forward || e.Kind == Backward:
		return fmt.Sprintf("%s(%.1f)", e.Kind, e.Magnitude)
	case e.Kind == SteerRight || e.Kind == SteerLeft:
		return fmt.Sprintf("%s(%.3f)", e.Kind, e.Angle)
	default:
		return e.Kind.String()
	}
}

// same reports whether e repeats prev as far as the actuator is concerned.
func (e Event) same(prev Event) bool {
	return e.Kind == prev.Kind && e.Release == prev.Release &&
		e.Magnitude == prev.Magnitude && e.Angle == prev.Angle
}

// Subscriber receives the events of the kinds it subscribed to.
type Subscriber interface {
	HandleEvent(Event) error
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(Event) error

func (f SubscriberFunc) HandleEvent(e Event) error { return f(e) }

// HandlerError reports a subscriber that failed or panicked.
type HandlerError struct {
	Kind  Kind
	Cycle uint64
	Err   error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("control: %s handler (cycle %d): %v", e.Kind, e.Cycle, e.Err)
}

func (e *HandlerError) Unwrap() []error {
	return []error{dynamo.ErrHandler, e.Err}
}
