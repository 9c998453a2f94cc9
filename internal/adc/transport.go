// Package adc talks to the analog front end that samples the joystick.
//
// A [Transport] exposes raw channel readings and the level of the click
// switch. [Device] composes a [Converter] (MCP3008 over SPI, or a serial
// bridge) with a [ButtonLine] (a GPIO line). [Fake] is an in-memory
// transport for tests and the keyboard-driven simulator.
package adc

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Pull selects the bias of the button input line.
type Pull uint8

const (
	PullOff Pull = iota
	PullUp
	PullDown
)

func (p Pull) String() string {
	switch p {
	case PullUp:
		return "up"
	case PullDown:
		return "down"
	default:
		return "off"
	}
}

func ParsePull(s string) (Pull, error) {
	switch strings.ToLower(s) {
	case "", "off", "none":
		return PullOff, nil
	case "up":
		return PullUp, nil
	case "down":
		return PullDown, nil
	}
	return PullOff, fmt.Errorf("unknown pull: %q", s)
}

// InitOptions are handed to Transport.Init.
type InitOptions struct {
	PollInterval time.Duration
	InterruptPin int
	Pull         Pull
}

// Transport is the hardware boundary of the control loop.
type Transport interface {
	Init(opts InitOptions) error
	Initialized() bool
	ReadChannel(ch Channel) (int, error)
	ReadButton() (bool, error)
	Close() error
}

// Converter reads raw samples from an analog-to-digital converter.
type Converter interface {
	Open(opts InitOptions) error
	Read(ch Channel) (int, error)
	Close() error
}

// ButtonLine reads the level of the joystick click switch.
type ButtonLine interface {
	Open(pin int, pull Pull) error
	Level() (bool, error)
	Close() error
}

// Device combines a converter and an optional button line.
type Device struct {
	name   string
	conv   Converter
	button ButtonLine

	mu          sync.Mutex
	initialized bool
}

// NewDevice returns a Device. button may be nil when the joystick has no
// click switch wired; ReadButton then always reports released.
func NewDevice(name string, conv Converter, button ButtonLine) *Device {
	return &Device{name: name, conv: conv, button: button}
}

func (d *Device) Init(opts InitOptions) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.initialized {
		return nil
	}
	if err := d.conv.Open(opts); err != nil {
		return &DeviceInitError{Device: d.name, Err: err}
	}
	if d.button != nil {
		if err := d.button.Open(opts.InterruptPin, opts.Pull); err != nil {
			_ = d.conv.Close()
			return &DeviceInitError{Device: d.name + " button", Err: err}
		}
	}
	d.initialized = true
	return nil
}

func (d *Device) Initialized() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.initialized
}

func (d *Device) ReadChannel(ch Channel) (int, error) {
	if !ch.Valid() {
		return 0, &TransportError{Channel: ch, Err: ErrInvalidChannel}
	}
	if !d.Initialized() {
		return 0, &TransportError{Channel: ch, Err: ErrNotInitialized}
	}
	v, err := d.conv.Read(ch)
	if err != nil {
		return 0, &TransportError{Channel: ch, Err: err}
	}
	if v < 0 || v > MaxRaw {
		return 0, &TransportError{Channel: ch, Err: fmt.Errorf("reading %d out of range [0,%d]", v, MaxRaw)}
	}
	return v, nil
}

func (d *Device) ReadButton() (bool, error) {
	if d.button == nil {
		return false, nil
	}
	if !d.Initialized() {
		return false, ErrNotInitialized
	}
	return d.button.Level()
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.initialized {
		return nil
	}
	d.initialized = false

	var firstErr error
	if d.button != nil {
		firstErr = d.button.Close()
	}
	if err := d.conv.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
