// Package dynamo provides the primitives shared by the joystick control
// pipeline and the vehicle physics world.
//
// The package defines:
//
//   - [State] and [Control]: plain vectors integrated by the physics world
//   - [System]: interface for ODE systems (dX/dt = f(X, u, t))
//   - [Integrator]: numerical stepper interface
//   - [Vec3]: small 3D vector used for impulses and positions
//   - the error taxonomy of the pipeline ([ErrDeviceInit], [ErrTransport],
//     [ErrConfiguration], [ErrHandler])
//
// # Error taxonomy
//
// Startup errors (device init, configuration) are fatal and propagate to
// the caller. Transport and handler errors are recoverable: they are logged,
// the last-known value is held and the control loop continues.
package dynamo
