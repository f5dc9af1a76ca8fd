package inspector

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/dshills/luascope/internal/engine"
	"github.com/dshills/luascope/internal/inspector/protocol"
	"github.com/dshills/luascope/internal/platform"
)

// contextGroupID associates the primary context with the single session.
const contextGroupID = 1

// pumpState makes the pause-loop reentrancy state explicit.
type pumpState int

const (
	pumpIdle pumpState = iota
	pumpActive
)

// timeBase anchors CurrentTimeMS to the monotonic clock.
var timeBase = time.Now()

// Bridge owns the protocol engine handle, the pause/resume loop, and the
// single channel slot. All state is main-thread confined.
type Bridge struct {
	env       *engine.Environment
	scheduler platform.Scheduler
	inspector *protocol.Inspector
	log       zerolog.Logger

	pump                 pumpState
	terminationRequested bool

	// Single-owner slot: at most one channel, explicit create/destroy.
	channel *Channel
}

func newBridge(env *engine.Environment, scheduler platform.Scheduler, log zerolog.Logger) *Bridge {
	b := &Bridge{
		env:       env,
		scheduler: scheduler,
		log:       log.With().Str("component", "bridge").Logger(),
	}
	b.inspector = protocol.New(env, b)
	return b
}

// RunMessageLoopOnPause pumps front-end messages while execution is
// halted. Reentrancy-guarded: invoked while already pumping, it returns
// immediately. Between message waits all pending foreground tasks are
// drained, so scheduled main-thread work keeps progressing while paused.
// Exits when termination is requested or the front-end disconnects; both
// flags reset on exit.
func (b *Bridge) RunMessageLoopOnPause(contextGroupID int) {
	b.env.CheckOwner()
	if b.channel == nil {
		panic("inspector: message loop on pause without a connected channel")
	}
	if b.pump == pumpActive {
		return
	}

	b.terminationRequested = false
	b.pump = pumpActive

	for !b.terminationRequested && b.channel.waitForFrontendMessage() {
		for b.scheduler.PumpMessageLoop() {
		}
	}

	b.terminationRequested = false
	b.pump = pumpIdle
}

// QuitMessageLoopOnPause requests pause-loop termination; consumed by the
// pump on its next iteration.
func (b *Bridge) QuitMessageLoopOnPause() {
	b.terminationRequested = true
}

// CurrentTimeMS returns a monotonic millisecond timestamp for protocol
// timing fields.
func (b *Bridge) CurrentTimeMS() float64 {
	return float64(time.Since(timeBase).Nanoseconds()) / float64(time.Millisecond)
}

// EnsureDefaultContext returns the context evaluations run in.
func (b *Bridge) EnsureDefaultContext(contextGroupID int) *engine.Context {
	return b.env.Context()
}

// ContextCreated registers an execution context under the fixed group id.
func (b *Bridge) ContextCreated(ctx *engine.Context, name string) {
	b.inspector.ContextCreated(protocol.ContextInfo{
		Context: ctx,
		GroupID: contextGroupID,
		Name:    name,
	})
}

// ContextDestroyed unregisters an execution context.
func (b *Bridge) ContextDestroyed(ctx *engine.Context) {
	b.inspector.ContextDestroyed(ctx)
}

// ConnectFrontend creates the channel for a newly attached front-end.
// At most one channel may exist; a second connect is a caller bug.
func (b *Bridge) ConnectFrontend(delegate SessionDelegate) {
	b.env.CheckOwner()
	if b.channel != nil {
		panic("inspector: frontend already connected")
	}
	b.channel = newChannel(b.inspector, delegate)
	b.log.Debug().Msg("frontend connected")
}

// DisconnectFrontend forces pause-loop termination, then destroys the
// channel.
func (b *Bridge) DisconnectFrontend() {
	b.env.CheckOwner()
	b.QuitMessageLoopOnPause()
	if b.channel != nil {
		b.channel.dispose()
		b.channel = nil
		b.log.Debug().Msg("frontend disconnected")
	}
}

// DispatchMessageFromFrontend routes a raw inbound message into the
// session. A missing channel is a caller bug, never a silent drop.
func (b *Bridge) DispatchMessageFromFrontend(message string) {
	if b.channel == nil {
		panic("inspector: dispatch without a connected channel")
	}
	b.channel.dispatchProtocolMessage(message)
}

// FatalException forwards an uncaught script error as a protocol
// exception report. When the top stack frame is the erroring script
// itself, the reported script id collapses to 0 to avoid duplicate
// self-referential location data.
func (b *Bridge) FatalException(serr *engine.ScriptError) {
	scriptID := serr.ScriptID
	if len(serr.Frames) > 0 && serr.Frames[0].ScriptID == scriptID {
		scriptID = 0
	}

	b.inspector.ExceptionThrown(
		contextGroupID,
		"Uncaught",
		serr.Message,
		serr.Resource,
		serr.Line,
		serr.Column,
		b.inspector.CreateStackTrace(serr.Frames),
		scriptID,
	)
}

// Channel returns the active channel, or nil.
func (b *Bridge) Channel() *Channel {
	return b.channel
}

// PumpState reports whether the pause loop is active.
func (b *Bridge) PumpState() bool {
	return b.pump == pumpActive
}
