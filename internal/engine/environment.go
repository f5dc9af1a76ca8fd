package engine

import (
	"fmt"
	"os"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// Options configures a new Environment.
type Options struct {
	// SkipOpenLibs creates the Lua state without the standard libraries.
	SkipOpenLibs bool
}

// Environment wraps a Lua state plus the bookkeeping the debugger needs:
// the primary execution context, per-environment data slots, the interrupt
// queue, safe-point hooks, and the script registry.
type Environment struct {
	L *lua.LState

	owner   uint64
	primary *Context

	// slots hold opaque per-environment data (the agent pointer lives in
	// slot 0). Owner-confined.
	slots map[int]any

	// interruptMu guards fns; RequestInterrupt is callable from any
	// goroutine while execution happens on the owner.
	interruptMu sync.Mutex
	interrupts  []func(*Environment)

	// Safe-point hooks, owner-confined.
	hooks []func()

	// Script registry: chunk name to script id. Owner-confined.
	scripts      map[string]int
	nextScriptID int

	// errHandler captures structured errors during protected calls.
	errHandler *lua.LFunction
	lastError  *ScriptError

	closed bool
}

// New creates an Environment owned by the calling goroutine.
func New(opts Options) *Environment {
	e := &Environment{
		L:            lua.NewState(lua.Options{SkipOpenLibs: opts.SkipOpenLibs}),
		owner:        curGoroutineID(),
		slots:        make(map[int]any),
		scripts:      make(map[string]int),
		nextScriptID: 1,
	}
	e.primary = &Context{id: 1, env: e}
	e.errHandler = e.L.NewFunction(e.captureError)
	return e
}

// Close tears down the Lua state. The primary context should be reported
// destroyed to any attached inspector before calling Close.
func (e *Environment) Close() {
	e.CheckOwner()
	if e.closed {
		return
	}
	e.closed = true
	e.L.Close()
}

// Context returns the primary execution context.
func (e *Environment) Context() *Context {
	return e.primary
}

// SetSlot stores opaque per-environment data under the given key.
func (e *Environment) SetSlot(key int, v any) {
	e.CheckOwner()
	e.slots[key] = v
}

// Slot returns the data stored under the given key, or nil.
func (e *Environment) Slot(key int) any {
	return e.slots[key]
}

// InstallGlobal installs a Go function into the global scope.
func (e *Environment) InstallGlobal(name string, fn lua.LGFunction) {
	e.CheckOwner()
	e.L.SetGlobal(name, e.L.NewFunction(fn))
}

// RequestInterrupt queues fn to run on the owning goroutine at the next
// safe point. Safe to call from any goroutine.
func (e *Environment) RequestInterrupt(fn func(*Environment)) {
	if fn == nil {
		return
	}
	e.interruptMu.Lock()
	e.interrupts = append(e.interrupts, fn)
	e.interruptMu.Unlock()
}

// AddSafePointHook registers a hook invoked at every safe point, after
// pending interrupts have run.
func (e *Environment) AddSafePointHook(fn func()) {
	e.CheckOwner()
	if fn != nil {
		e.hooks = append(e.hooks, fn)
	}
}

// CheckSafePoint drains pending interrupts and runs the safe-point hooks.
// Must be called on the owning goroutine.
func (e *Environment) CheckSafePoint() {
	e.CheckOwner()

	for {
		e.interruptMu.Lock()
		pending := e.interrupts
		e.interrupts = nil
		e.interruptMu.Unlock()

		if len(pending) == 0 {
			break
		}
		for _, fn := range pending {
			fn(e)
		}
	}

	for _, hook := range e.hooks {
		hook()
	}
}

// ScriptID returns the id assigned to a chunk name, or 0 if the chunk was
// never loaded.
func (e *Environment) ScriptID(name string) int {
	return e.scripts[name]
}

// registerScript assigns an id to a chunk name on first load.
func (e *Environment) registerScript(name string) int {
	if id, ok := e.scripts[name]; ok {
		return id
	}
	id := e.nextScriptID
	e.nextScriptID++
	e.scripts[name] = id
	return id
}

// RunScript compiles and runs source as a chunk with the given name.
// Errors are returned as *ScriptError with location and stack data.
func (e *Environment) RunScript(source, name string) error {
	e.CheckOwner()
	e.CheckSafePoint()

	e.registerScript(name)

	fn, err := e.L.Load(strings.NewReader(source), name)
	if err != nil {
		return e.compileError(err, name)
	}

	base := e.L.GetTop()
	e.L.Push(fn)
	err = e.protectedCall(0, lua.MultRet)
	e.L.SetTop(base)
	return err
}

// RunFile loads and runs a script file. The path doubles as the chunk
// name.
func (e *Environment) RunFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("engine: reading %s: %w", path, err)
	}
	return e.RunScript(string(data), path)
}

// CallFunction calls a Lua function in protected mode, checking the safe
// point first. Results are returned in call order.
func (e *Environment) CallFunction(fn lua.LValue, args ...lua.LValue) ([]lua.LValue, error) {
	e.CheckOwner()
	e.CheckSafePoint()

	base := e.L.GetTop()
	e.L.Push(fn)
	for _, arg := range args {
		e.L.Push(arg)
	}

	if err := e.protectedCall(len(args), lua.MultRet); err != nil {
		return nil, err
	}

	nret := e.L.GetTop() - base
	results := make([]lua.LValue, nret)
	for i := 0; i < nret; i++ {
		results[i] = e.L.Get(base + i + 1)
	}
	e.L.Pop(nret)
	return results, nil
}

// Evaluate runs an expression and returns its first result. Statements are
// accepted as well; they evaluate to nil.
func (e *Environment) Evaluate(expr string) (lua.LValue, error) {
	e.CheckOwner()

	fn, err := e.L.Load(strings.NewReader("return "+expr), exprChunkName)
	if err != nil {
		// Not an expression; retry as a statement block.
		fn, err = e.L.Load(strings.NewReader(expr), exprChunkName)
		if err != nil {
			return lua.LNil, e.compileError(err, exprChunkName)
		}
	}

	base := e.L.GetTop()
	e.L.Push(fn)
	if err := e.protectedCall(0, lua.MultRet); err != nil {
		return lua.LNil, err
	}

	nret := e.L.GetTop() - base
	var result lua.LValue = lua.LNil
	if nret > 0 {
		result = e.L.Get(base + 1)
	}
	e.L.Pop(nret)
	return result, nil
}

// exprChunkName names evaluation chunks; they share one registry entry.
const exprChunkName = "<eval>"

// protectedCall runs the pushed function through PCall with the capturing
// error handler. The function and nargs arguments must already be on the
// stack.
func (e *Environment) protectedCall(nargs, nret int) error {
	e.lastError = nil
	err := e.L.PCall(nargs, nret, e.errHandler)
	if err == nil {
		return nil
	}
	if e.lastError != nil {
		return e.lastError
	}
	// Runtime panic or error raised outside the handler's reach.
	return newScriptError(err.Error(), e)
}

// captureError is the PCall message handler. It runs before the Lua stack
// unwinds, which is the only moment the erroring frames are observable.
func (e *Environment) captureError(L *lua.LState) int {
	msg := L.Get(1)
	e.lastError = newScriptError(lua.LVAsString(msg), e)
	L.Push(msg)
	return 1
}

// compileError converts a Load failure into a *ScriptError.
func (e *Environment) compileError(err error, name string) *ScriptError {
	serr := parseErrorMessage(err.Error())
	if serr.Resource == "" {
		serr.Resource = name
	}
	serr.ScriptID = e.scripts[serr.Resource]
	return serr
}

// CheckOwner panics when called from a goroutine other than the owner.
// Bridge and channel state ride on this check as well.
func (e *Environment) CheckOwner() {
	if g := curGoroutineID(); g != e.owner {
		panic(fmt.Sprintf("engine: state owned by goroutine %d used from goroutine %d", e.owner, g))
	}
}
