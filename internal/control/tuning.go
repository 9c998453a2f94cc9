package control

import "github.com/san-kum/joydrive/internal/dynamo"

// Steering divisors of the reference vehicle. Right turns are four times
// less sensitive than left turns; the asymmetry is part of the vehicle's
// handling and is kept as tuning rather than corrected.
const (
	DefaultRightSteerDivisor = 80
	DefaultLeftSteerDivisor  = 20
)

// Tuning holds the thresholds and scales of the dispatcher.
//
// Thresholds are in normalized units. An action starts when its axis
// crosses the threshold and ends when the axis falls back below
// threshold*ReleaseRatio.
type Tuning struct {
	ForwardThreshold  float64 `yaml:"forward_threshold"`
	BackwardThreshold float64 `yaml:"backward_threshold"`
	RightThreshold    float64 `yaml:"right_threshold"`
	LeftThreshold     float64 `yaml:"left_threshold"`
	ReleaseRatio      float64 `yaml:"release_ratio"`

	// Magnitude = BaseForce + ForceScale*|Vy|.
	BaseForce  float64 `yaml:"base_force"`
	ForceScale float64 `yaml:"force_scale"`

	// Angle = ∓SteerScale*|Vx|/divisor.
	SteerScale        float64 `yaml:"steer_scale"`
	RightSteerDivisor float64 `yaml:"right_steer_divisor"`
	LeftSteerDivisor  float64 `yaml:"left_steer_divisor"`
}

func DefaultTuning() Tuning {
	return Tuning{
		ForwardThreshold:  0.1,
		BackwardThreshold: 0.1,
		RightThreshold:    0.1,
		LeftThreshold:     0.1,
		ReleaseRatio:      0.8,
		BaseForce:         2000,
		ForceScale:        512,
		SteerScale:        512,
		RightSteerDivisor: DefaultRightSteerDivisor,
		LeftSteerDivisor:  DefaultLeftSteerDivisor,
	}
}

func (t Tuning) Validate() error {
	thresholds := map[string]float64{
		"control.forward_threshold":  t.ForwardThreshold,
		"control.backward_threshold": t.BackwardThreshold,
		"control.right_threshold":    t.RightThreshold,
		"control.left_threshold":     t.LeftThreshold,
	}
	for field, v := range thresholds {
		if v <= 0 || v >= 1 {
			return dynamo.Configf(field, "%.3f not in (0,1)", v)
		}
	}
	if t.ReleaseRatio <= 0 || t.ReleaseRatio > 1 {
		return dynamo.Configf("control.release_ratio", "%.3f not in (0,1]", t.ReleaseRatio)
	}
	if t.RightSteerDivisor <= 0 || t.LeftSteerDivisor <= 0 {
		return dynamo.Configf("control.steer_divisor", "divisors must be positive")
	}
	if t.BaseForce < 0 || t.ForceScale < 0 || t.SteerScale < 0 {
		return dynamo.Configf("control", "forces and scales must not be negative")
	}
	return nil
}

// ForwardMagnitude returns the acceleration force for a vertical signal.
func (t Tuning) ForwardMagnitude(vy float64) float64 {
	return t.BaseForce + t.ForceScale*abs(vy)
}

// SteerAngle returns the steering angle for a horizontal signal: negative
// to the right, positive to the left.
func (t Tuning) SteerAngle(vx float64) float64 {
	if vx >= 0 {
		return -t.SteerScale * vx / t.RightSteerDivisor
	}
	return t.SteerScale * -vx / t.LeftSteerDivisor
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
