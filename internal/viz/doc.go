// Package viz is the terminal dashboard of a driving session, built on
// Bubble Tea.
//
// The dashboard shows the vehicle's ground track on a Braille [Canvas],
// the stick position, the dispatcher state and the latest events. With a
// [VirtualStick] attached the keyboard stands in for the joystick:
//
//	↑/w ↓/s   throttle forward / backward
//	←/a →/d   steer left / right
//	space     click (jump)
//	c         center the stick
//	t         cycle color themes
//	?         help
//	q         quit
//
// Terminals report key presses but not releases, so a deflection springs
// back to center once its key stops repeating.
package viz
