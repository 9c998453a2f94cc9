package dynamo

import (
	"errors"
	"fmt"
)

// Error taxonomy of the control pipeline.
var (
	// ErrDeviceInit indicates the input device could not be opened.
	// The control loop cannot begin.
	ErrDeviceInit = errors.New("dynamo: device initialization failed")

	// ErrTransport indicates a channel read from the ADC front end failed.
	ErrTransport = errors.New("dynamo: transport error")

	// ErrConfiguration indicates invalid setup, e.g. binding an axis to an
	// unregistered channel or registering past capacity.
	ErrConfiguration = errors.New("dynamo: configuration error")

	// ErrHandler indicates an event subscriber failed.
	ErrHandler = errors.New("dynamo: handler error")

	// ErrInvalidState indicates a state vector with NaN or Inf values.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")
)

// ConfigError describes a rejected setting.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfiguration
}

// Configf builds a ConfigError for field with a formatted reason.
func Configf(field, format string, args ...any) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// SimulationError wraps an error with physics step context.
type SimulationError struct {
	Step    int
	Time    float64
	State   State
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
