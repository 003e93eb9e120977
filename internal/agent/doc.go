// Package agent wires the device components together and runs the device
// loop.
//
// A single goroutine owns device.State. Each Tick runs, in order:
//
//  1. netattach.Controller.Tick
//  2. transport.Coordinator.Tick (channel events, remote retry)
//  3. queued commands through command.Dispatcher
//  4. a pending status report (periodic or requested)
//  5. actuator outputs
//
// Channel goroutines only post transport.Events to the shared inbox.
package agent
