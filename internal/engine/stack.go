package engine

import lua "github.com/yuin/gopher-lua"

// maxCapturedFrames bounds stack capture for error reports and pause
// notifications.
const maxCapturedFrames = 32

// StackFrame is one level of the Lua call stack.
type StackFrame struct {
	// FunctionName is the name of the running function, empty for
	// anonymous functions and main chunks.
	FunctionName string

	// Source is the chunk name of the frame.
	Source string

	// Line is the currently executing line.
	Line int

	// ScriptID is the registry id of the frame's chunk, 0 if unknown.
	ScriptID int
}

// CaptureStack returns up to limit frames of the current call stack,
// innermost first. Must be called on the owning goroutine while Lua
// frames are live (inside a call or an error handler).
func (e *Environment) CaptureStack(limit int) []StackFrame {
	e.CheckOwner()
	return e.captureStack(0, limit)
}

func (e *Environment) captureStack(start, limit int) []StackFrame {
	if limit <= 0 || limit > maxCapturedFrames {
		limit = maxCapturedFrames
	}

	var frames []StackFrame
	for level := start; len(frames) < limit; level++ {
		dbg, ok := e.L.GetStack(level)
		if !ok {
			break
		}
		if _, err := e.L.GetInfo("Sln", dbg, lua.LNil); err != nil {
			break
		}

		// Go-implemented functions carry no line information; they are
		// not useful in protocol stack traces.
		if dbg.CurrentLine <= 0 && e.scripts[dbg.Source] == 0 {
			continue
		}

		frames = append(frames, StackFrame{
			FunctionName: dbg.Name,
			Source:       dbg.Source,
			Line:         dbg.CurrentLine,
			ScriptID:     e.scripts[dbg.Source],
		})
	}
	return frames
}

// TopFrame returns the innermost live frame, if any.
func (e *Environment) TopFrame() (StackFrame, bool) {
	frames := e.CaptureStack(1)
	if len(frames) == 0 {
		return StackFrame{}, false
	}
	return frames[0], true
}
