package inspector

import (
	"sync/atomic"

	"github.com/dshills/luascope/internal/engine"
	"github.com/dshills/luascope/internal/platform"
)

// MainThreadTrigger is one mechanism for forcing a callback onto the main
// thread. No single mechanism covers every main-thread activity, so the
// coordinator races several.
type MainThreadTrigger interface {
	RequestMainThreadCallback(fn func())
}

// WakeupState tracks the I/O runner lifecycle the coordinator is driving.
type WakeupState int32

const (
	// WakeupIdle: no runner; a request must drive a transition out.
	WakeupIdle WakeupState = iota
	// WakeupStarting: a start is in flight; reverts to Idle on failure.
	WakeupStarting
	// WakeupRunning: the runner is active; requests become no-ops at the
	// agent's already-running check.
	WakeupRunning
)

// WakeupCoordinator fires every registered trigger for each request. The
// triggers converge on the same callback; idempotency is enforced by the
// agent's already-running check, not here.
type WakeupCoordinator struct {
	state    atomic.Int32
	triggers []MainThreadTrigger
}

// NewWakeupCoordinator creates a coordinator over the given triggers.
func NewWakeupCoordinator(triggers ...MainThreadTrigger) *WakeupCoordinator {
	return &WakeupCoordinator{triggers: triggers}
}

// Request fires all trigger paths with the callback. Safe from any
// goroutine; duplicate and overlapping requests are expected.
func (w *WakeupCoordinator) Request(fn func()) {
	for _, t := range w.triggers {
		t.RequestMainThreadCallback(fn)
	}
}

// State returns the current lifecycle state.
func (w *WakeupCoordinator) State() WakeupState {
	return WakeupState(w.state.Load())
}

func (w *WakeupCoordinator) markStarting() { w.state.Store(int32(WakeupStarting)) }
func (w *WakeupCoordinator) markRunning()  { w.state.Store(int32(WakeupRunning)) }
func (w *WakeupCoordinator) markIdle()     { w.state.Store(int32(WakeupIdle)) }

// loopWakeTrigger wakes the embedder's event loop. The async handle is
// pre-bound to the converged callback, so Send alone delivers it; the
// handle fires whenever the main thread is idle in its loop.
type loopWakeTrigger struct {
	handle *platform.AsyncHandle
}

func (t loopWakeTrigger) RequestMainThreadCallback(fn func()) {
	t.handle.Send()
}

// interruptTrigger delivers through the engine's interrupt queue; it
// fires at the next safe point when the main thread is busy running
// script.
type interruptTrigger struct {
	env *engine.Environment
}

func (t interruptTrigger) RequestMainThreadCallback(fn func()) {
	t.env.RequestInterrupt(func(*engine.Environment) { fn() })
}

// foregroundTaskTrigger schedules onto the platform's foreground task
// queue; it runs at the next scheduler checkpoint.
type foregroundTaskTrigger struct {
	scheduler platform.Scheduler
}

func (t foregroundTaskTrigger) RequestMainThreadCallback(fn func()) {
	t.scheduler.CallOnForegroundThread(fn)
}
