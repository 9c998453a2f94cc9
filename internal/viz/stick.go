package viz

import (
	"github.com/san-kum/joydrive/internal/adc"
	"github.com/san-kum/joydrive/internal/normalize"
)

const (
	stickStep    = 0.25
	holdTicks    = 6
	buttonTicks  = 8
	releaseTicks = 8
)

// VirtualStick turns key presses into joystick deflection and drives a
// fake transport with it.
type VirtualStick struct {
	X, Y   float64
	Button bool

	ActiveHigh bool
	cal        [2]normalize.Calibration

	holdX, holdY int
	buttonHold   int
	releaseHold  int
}

func NewVirtualStick(calX, calY normalize.Calibration, activeHigh bool) *VirtualStick {
	return &VirtualStick{cal: [2]normalize.Calibration{calX, calY}, ActiveHigh: activeHigh}
}

// Push deflects the stick by (dx, dy), clamped to [-1, 1].
func (s *VirtualStick) Push(dx, dy float64) {
	if dx != 0 {
		s.X = clampUnit(s.X + dx)
		s.holdX = holdTicks
	}
	if dy != 0 {
		s.Y = clampUnit(s.Y + dy)
		s.holdY = holdTicks
	}
}

// Click presses the switch for long enough to be seen by at least one
// poll, then keeps it released before it can be pressed again.
func (s *VirtualStick) Click() bool {
	if s.Button || s.releaseHold > 0 {
		return false
	}
	s.Button = true
	s.buttonHold = buttonTicks
	return true
}

func (s *VirtualStick) Center() {
	s.X, s.Y = 0, 0
	s.holdX, s.holdY = 0, 0
}

// Tick advances the spring-back timers by one dashboard frame.
func (s *VirtualStick) Tick() {
	if s.holdX > 0 {
		if s.holdX--; s.holdX == 0 {
			s.X = 0
		}
	}
	if s.holdY > 0 {
		if s.holdY--; s.holdY == 0 {
			s.Y = 0
		}
	}
	switch {
	case s.buttonHold > 0:
		if s.buttonHold--; s.buttonHold == 0 {
			s.Button = false
			s.releaseHold = releaseTicks
		}
	case s.releaseHold > 0:
		s.releaseHold--
	}
}

// Raw returns the converter readings of the current deflection.
func (s *VirtualStick) Raw() (vx, vy int) {
	return s.cal[0].Raw(s.X), s.cal[1].Raw(s.Y)
}

// Apply writes the stick into f on the given channels.
func (s *VirtualStick) Apply(f *adc.Fake, vx, vy adc.Channel) {
	rx, ry := s.Raw()
	f.Set(vx, rx)
	f.Set(vy, ry)
	f.SetButton(s.Button == s.ActiveHigh)
}

func clampUnit(v float64) float64 {
	return max(-1, min(1, v))
}
