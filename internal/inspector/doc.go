// Package inspector is the concurrency bridge between a debugging
// front-end and the running Lua engine.
//
// The package has four pieces:
//
//   - Agent is the top-level lifecycle controller. It binds to an
//     engine.Environment, owns the Bridge and the I/O runner, and exposes
//     the public control surface (start, stop, connect, dispatch,
//     disconnect, pause-loop entry, and cross-thread I/O-runner start
//     requests).
//   - Bridge owns the protocol engine handle, runs the pause/resume loop,
//     and manages execution-context lifecycle notifications. It owns at
//     most one Channel.
//   - Channel routes one connected session's messages between the
//     protocol engine and a front-end delegate.
//   - WakeupCoordinator forces a callback onto the main thread from any
//     goroutine by racing three redundant wake paths: the event-loop wake
//     handle, an engine interrupt, and a scheduled foreground task.
//
// Threading: all Agent, Bridge and Channel state is confined to the main
// thread (the goroutine owning the engine). The only cross-thread entry
// points are RequestIoThreadStart and the I/O runner's internal queues.
// Precondition violations (dispatching without a channel, connecting a
// second front-end, operating before Start) panic: they are caller
// contract bugs, not runtime conditions.
package inspector
