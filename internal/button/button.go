// Package button turns the sampled level of the joystick switch into
// discrete click events.
package button

import (
	"sync"
	"time"
)

// ClickEvent is emitted once per press of the switch.
type ClickEvent struct {
	At    time.Time
	Count uint64
}

// Detector emits a click on each inactive-to-active transition of the
// polled level. Holding the switch across many polls yields one click.
type Detector struct {
	activeHigh bool

	mu     sync.Mutex
	seeded bool
	active bool
	count  uint64
}

// New returns a Detector. With activeHigh a high level means pressed, as
// with a pulled-down line; otherwise a low level means pressed.
func New(activeHigh bool) *Detector {
	return &Detector{activeHigh: activeHigh}
}

// Poll feeds the current line level. The first poll only records the
// level, so a switch held down at startup does not click.
func (d *Detector) Poll(level bool, at time.Time) (ClickEvent, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	active := level == d.activeHigh
	if !d.seeded {
		d.seeded = true
		d.active = active
		return ClickEvent{}, false
	}

	pressed := active && !d.active
	d.active = active
	if !pressed {
		return ClickEvent{}, false
	}
	d.count++
	return ClickEvent{At: at, Count: d.count}, true
}

// Active reports whether the switch was pressed at the last poll.
func (d *Detector) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Clicks returns the number of clicks emitted since the last Reset.
func (d *Detector) Clicks() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count
}

// Reset forgets the previous level and the click count.
func (d *Detector) Reset() {
	d.mu.Lock()
	d.seeded = false
	d.active = false
	d.count = 0
	d.mu.Unlock()
}
