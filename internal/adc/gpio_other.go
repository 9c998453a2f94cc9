//go:build !linux

package adc

import "errors"

var errNoGPIO = errors.New("adc: gpio character devices are only available on linux")

// GPIOLine is unavailable on this platform.
type GPIOLine struct {
	Chip string
}

func NewGPIOLine(chip string) *GPIOLine { return &GPIOLine{Chip: chip} }

func (g *GPIOLine) Open(int, Pull) error  { return errNoGPIO }
func (g *GPIOLine) Level() (bool, error) { return false, ErrUnavailable }
func (g *GPIOLine) Close() error         { return nil }
