package adc

import (
	"errors"
	"fmt"

	"github.com/san-kum/joydrive/internal/dynamo"
)

var (
	// ErrUnavailable indicates the transport itself is gone (bus closed,
	// cable unplugged). A cycle where every read fails this way is a
	// failed cycle and triggers backoff.
	ErrUnavailable = errors.New("adc: transport unavailable")

	ErrNotInitialized = errors.New("adc: device not initialized")
	ErrInvalidChannel = errors.New("adc: invalid channel")
)

// DeviceInitError reports a transport that could not be opened.
type DeviceInitError struct {
	Device string
	Err    error
}

func (e *DeviceInitError) Error() string {
	return fmt.Sprintf("adc: init %s: %v", e.Device, e.Err)
}

func (e *DeviceInitError) Unwrap() []error {
	return []error{dynamo.ErrDeviceInit, e.Err}
}

// TransportError reports a failed read of one channel.
type TransportError struct {
	Channel Channel
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("adc: read %s: %v", e.Channel, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{dynamo.ErrTransport, e.Err}
}
