//go:build linux

package adc

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// GPIOLine reads the click switch from a GPIO character device line.
type GPIOLine struct {
	Chip string

	mu   sync.Mutex
	line *gpiocdev.Line
}

// NewGPIOLine returns a button line on chip, e.g. "gpiochip0". The line
// offset is the interrupt pin handed to Open.
func NewGPIOLine(chip string) *GPIOLine {
	if chip == "" {
		chip = "gpiochip0"
	}
	return &GPIOLine{Chip: chip}
}

func (g *GPIOLine) Open(pin int, pull Pull) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	opts := []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithConsumer("joydrive")}
	switch pull {
	case PullUp:
		opts = append(opts, gpiocdev.WithPullUp)
	case PullDown:
		opts = append(opts, gpiocdev.WithPullDown)
	default:
		opts = append(opts, gpiocdev.WithBiasDisabled)
	}

	l, err := gpiocdev.RequestLine(g.Chip, pin, opts...)
	if err != nil {
		return fmt.Errorf("request %s:%d: %w", g.Chip, pin, err)
	}
	g.line = l
	return nil
}

func (g *GPIOLine) Level() (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.line == nil {
		return false, ErrUnavailable
	}
	v, err := g.line.Value()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func (g *GPIOLine) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.line == nil {
		return nil
	}
	err := g.line.Close()
	g.line = nil
	return err
}
