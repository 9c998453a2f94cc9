// Package physics is a small rigid-body world for driving a vehicle
// without a full physics engine.
//
// A [Vehicle] is a chassis on four raycast wheels over flat ground. Its
// planar motion follows a kinematic bicycle model; its vertical motion is a
// heave model sprung by the wheel suspensions. The state is advanced by
// [integrators.RK4] as a [dynamo.System]:
//
//	x = [px, py, pz, heading, speed, vy]
//	u = [engine, brake, steer]
//
// A [Body] is a sphere that falls, bounces and rolls on the ground plane.
//
// [World] owns the stepping loop. Its Lock and Unlock make it a
// sync.Locker so actuator calls from the control loop never interleave
// with a step.
package physics


