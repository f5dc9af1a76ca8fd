package inspector

import (
	"fmt"

	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/luascope/internal/config"
	"github.com/dshills/luascope/internal/engine"
	"github.com/dshills/luascope/internal/platform"
)

// agentSlot is the environment data slot holding the Agent, so engine
// callbacks can find their way back.
const agentSlot = 0

// mainContextName tags the primary execution context in protocol
// notifications.
const mainContextName = "luascope main context"

// SessionDelegate is a connected front-end's contract. SendMessageToFrontend
// may be called from the main thread at any time; a false return from
// WaitForFrontendMessageWhilePaused is the sole disconnect signal the
// pause loop observes.
type SessionDelegate interface {
	SendMessageToFrontend(message string)
	WaitForFrontendMessageWhilePaused() bool
}

// IoRunner is the transport component owning the I/O thread. Start
// returning an error guarantees no resources were left allocated.
type IoRunner interface {
	Start() error
	Stop()
	IsConnected() bool
	WaitForDisconnect()
}

// IoRunnerFactory builds the I/O runner when the agent needs one. The
// waitForConnect flag asks the runner to block Start until a front-end
// attaches.
type IoRunnerFactory func(a *Agent, waitForConnect bool) (IoRunner, error)

// Option configures an Agent.
type Option func(*Agent)

// WithIoRunnerFactory wires the transport. Without it the agent runs in
// direct-connect mode: StartIoThread is a no-op and front-ends attach
// in-process through Connect.
func WithIoRunnerFactory(f IoRunnerFactory) Option {
	return func(a *Agent) { a.ioFactory = f }
}

// WithConfigOverride applies command-line overrides after the config
// file loads.
func WithConfigOverride(fn func(*config.Config)) Option {
	return func(a *Agent) { a.cfgOverride = fn }
}

// Agent is the debugger lifecycle controller, one per environment.
type Agent struct {
	log zerolog.Logger

	env         *engine.Environment
	scheduler   platform.Scheduler
	cfg         config.Config
	cfgOverride func(*config.Config)
	path        string

	bridge *Bridge

	// Single-owner slot: at most one runner, explicit create/destroy.
	io        IoRunner
	ioFactory IoRunnerFactory

	wakeup     *WakeupCoordinator
	wakeHandle *platform.AsyncHandle

	enabled bool
}

// New creates an unstarted Agent.
func New(log zerolog.Logger, opts ...Option) *Agent {
	a := &Agent{log: log.With().Str("component", "inspector").Logger()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start binds the agent to an execution environment: installs the
// callAndPauseOnStart global, creates the bridge, registers the primary
// context, and attempts to start the I/O runner synchronously. A bind
// failure is returned as an error and leaves the agent unusable until
// Start is retried.
func (a *Agent) Start(env *engine.Environment, scheduler platform.Scheduler, path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("inspector: %w", err)
	}
	if a.cfgOverride != nil {
		a.cfgOverride(&cfg)
	}

	a.env = env
	a.scheduler = scheduler
	a.cfg = cfg
	a.path = path

	env.SetSlot(agentSlot, a)
	env.InstallGlobal("callAndPauseOnStart", a.callAndPauseOnStart)

	a.bridge = newBridge(env, scheduler, a.log)
	a.bridge.ContextCreated(env.Context(), mainContextName)

	a.wakeHandle = platform.NewAsyncHandle(a.startIoFromWake)
	a.wakeup = NewWakeupCoordinator(
		loopWakeTrigger{handle: a.wakeHandle},
		interruptTrigger{env: env},
		foregroundTaskTrigger{scheduler: scheduler},
	)

	if !a.cfg.Enabled {
		return nil
	}
	return a.StartIoThread(a.cfg.BreakOnStart)
}

// StartIoThread starts the I/O runner. Idempotent: returns nil
// immediately when the runner is already active. On bind failure the
// bridge is destroyed and the error returned. Main thread only.
func (a *Agent) StartIoThread(waitForConnect bool) error {
	if a.io != nil {
		return nil
	}
	if a.bridge == nil {
		panic("inspector: StartIoThread called before Start")
	}
	if a.ioFactory == nil {
		// Direct-connect mode: no transport configured.
		return nil
	}

	a.enabled = true
	a.wakeup.markStarting()

	runner, err := a.ioFactory(a, waitForConnect)
	if err == nil {
		err = runner.Start()
	}
	if err != nil {
		a.bridge = nil
		a.wakeup.markIdle()
		return fmt.Errorf("inspector: starting io runner: %w", err)
	}

	a.io = runner
	a.wakeup.markRunning()
	a.log.Info().Str("addr", a.cfg.Addr()).Msg("io runner started")
	return nil
}

// Stop stops and releases the I/O runner, if any.
func (a *Agent) Stop() {
	if a.io == nil {
		return
	}
	a.io.Stop()
	a.io = nil
	a.wakeup.markIdle()
}

// Connect attaches an in-process front-end delegate directly, bypassing
// the I/O runner.
func (a *Agent) Connect(delegate SessionDelegate) {
	if a.bridge == nil {
		panic("inspector: Connect called before Start")
	}
	a.enabled = true
	a.bridge.ConnectFrontend(delegate)
}

// IsConnected reports whether the I/O runner exists and has an active
// front-end connection.
func (a *Agent) IsConnected() bool {
	return a.io != nil && a.io.IsConnected()
}

// IsStarted reports whether the bridge exists.
func (a *Agent) IsStarted() bool {
	return a.bridge != nil
}

// Enabled reports whether debugging was ever activated.
func (a *Agent) Enabled() bool {
	return a.enabled
}

// Dispatch forwards a raw inbound protocol message. The bridge must
// exist; violating that is a caller bug.
func (a *Agent) Dispatch(message string) {
	if a.bridge == nil {
		panic("inspector: Dispatch called before Start")
	}
	a.bridge.DispatchMessageFromFrontend(message)
}

// Disconnect tears down the active channel, breaking any pause loop.
func (a *Agent) Disconnect() {
	if a.bridge == nil {
		panic("inspector: Disconnect called before Start")
	}
	a.bridge.DisconnectFrontend()
}

// RunMessageLoop enters the pause/resume loop.
func (a *Agent) RunMessageLoop() {
	if a.bridge == nil {
		panic("inspector: RunMessageLoop called before Start")
	}
	a.bridge.RunMessageLoopOnPause(contextGroupID)
}

// Delegate returns the connected front-end delegate, or nil.
func (a *Agent) Delegate() SessionDelegate {
	if a.bridge == nil {
		panic("inspector: Delegate called before Start")
	}
	ch := a.bridge.Channel()
	if ch == nil {
		return nil
	}
	return ch.Delegate()
}

// WaitForDisconnect notifies the bridge that the context is being
// destroyed, then blocks until the front-end connection closes. There is
// no timeout: a paused or crashed process stays inspectable until the
// operator disconnects.
func (a *Agent) WaitForDisconnect() {
	if a.bridge == nil {
		panic("inspector: WaitForDisconnect called before Start")
	}
	a.bridge.ContextDestroyed(a.env.Context())
	if a.io != nil {
		a.io.WaitForDisconnect()
	}
}

// FatalException reports an uncaught script error to the front-end and
// blocks until disconnect so the failure can be inspected. A no-op when
// the agent was never started.
func (a *Agent) FatalException(serr *engine.ScriptError) {
	if !a.IsStarted() {
		return
	}
	a.bridge.FatalException(serr)
	a.WaitForDisconnect()
}

// FrontendReady reports whether a connected front-end has completed its
// setup handshake and asked for execution to begin.
func (a *Agent) FrontendReady() bool {
	if a.bridge == nil {
		return false
	}
	ch := a.bridge.Channel()
	return ch != nil && ch.runRequested()
}

// PauseOnNextJavascriptStatement schedules a pause at the next statement
// boundary if a front-end channel exists; no-op otherwise.
func (a *Agent) PauseOnNextJavascriptStatement(reason string) {
	if a.bridge == nil {
		return
	}
	ch := a.bridge.Channel()
	if ch == nil {
		return
	}
	ch.schedulePauseOnNextStatement(reason)
}

// RequestSafePointCallback queues fn to run on the main thread at the
// engine's next safe point. Callable from any goroutine. Interrupts
// drain before the safe point's pause checks, so a protocol message
// delivered this way can arm a pause that fires at that same safe
// point.
func (a *Agent) RequestSafePointCallback(fn func()) {
	if a.env == nil {
		return
	}
	a.env.RequestInterrupt(func(*engine.Environment) { fn() })
}

// RequestIoThreadStart asks for StartIoThread(false) to run on the main
// thread. Callable from any goroutine, including signal handlers: three
// redundant wake paths are raced and the already-running check keeps the
// result idempotent.
func (a *Agent) RequestIoThreadStart() {
	if a.wakeup == nil {
		return
	}
	a.wakeup.Request(a.startIoFromWake)
}

// startIoFromWake is the converged wakeup callback; it runs on the main
// thread.
func (a *Agent) startIoFromWake() {
	if err := a.StartIoThread(false); err != nil {
		a.log.Error().Err(err).Msg("io runner start from wakeup failed")
	}
}

// Close releases the agent at environment teardown: reports the primary
// context destroyed and stops the I/O runner. Safe after
// WaitForDisconnect already reported the destruction.
func (a *Agent) Close() {
	if a.bridge != nil {
		a.bridge.ContextDestroyed(a.env.Context())
	}
	a.Stop()
}

// WakeChan exposes the event-loop wake channel for the embedder's loop.
func (a *Agent) WakeChan() <-chan struct{} {
	if a.wakeHandle == nil {
		return nil
	}
	return a.wakeHandle.Chan()
}

// ServiceWake runs the pending wake callback; the embedder loop calls it
// after receiving from WakeChan.
func (a *Agent) ServiceWake() {
	if a.wakeHandle != nil {
		a.wakeHandle.Service()
	}
}

// Config returns the loaded agent configuration.
func (a *Agent) Config() config.Config {
	return a.cfg
}

// Scheduler returns the bound platform scheduler.
func (a *Agent) Scheduler() platform.Scheduler {
	return a.scheduler
}

// callAndPauseOnStart is the script-visible trigger installed into the
// global scope: it schedules a pause, then calls through to the wrapped
// function, which hits the pause at its first safe point.
func (a *Agent) callAndPauseOnStart(L *lua.LState) int {
	top := L.GetTop()
	if top < 1 || L.Get(1).Type() != lua.LTFunction {
		L.RaiseError("callAndPauseOnStart: first argument must be a function")
		return 0
	}

	fn := L.Get(1)
	args := make([]lua.LValue, 0, top-1)
	for i := 2; i <= top; i++ {
		args = append(args, L.Get(i))
	}

	a.PauseOnNextJavascriptStatement("Break on start")

	results, err := a.env.CallFunction(fn, args...)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	for _, r := range results {
		L.Push(r)
	}
	return len(results)
}
