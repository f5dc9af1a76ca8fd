package engine

import (
	"fmt"
	"regexp"
	"strconv"
)

// ScriptError is a script failure with the location and stack data needed
// for exception reporting. Compile errors carry no frames.
type ScriptError struct {
	// Message is the error text without the leading location prefix.
	Message string

	// Resource is the chunk name the error was raised in.
	Resource string

	// Line and Column locate the error; both default to 0 when the engine
	// could not provide them.
	Line   int
	Column int

	// ScriptID is the registry id of the erroring chunk, 0 if unknown.
	ScriptID int

	// Frames is the Lua stack at the moment the error was raised,
	// innermost first.
	Frames []StackFrame
}

// Error implements the error interface.
func (e *ScriptError) Error() string {
	if e.Resource != "" && e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Resource, e.Line, e.Message)
	}
	return e.Message
}

// errLocation matches the "chunk:line:" prefix Lua puts on error messages.
var errLocation = regexp.MustCompile(`^(.*?):(\d+):\s*(.*)$`)

// parseErrorMessage splits a Lua error string into location and text.
func parseErrorMessage(text string) *ScriptError {
	serr := &ScriptError{Message: text}

	m := errLocation.FindStringSubmatch(text)
	if m == nil {
		return serr
	}

	line, err := strconv.Atoi(m[2])
	if err != nil {
		return serr
	}

	serr.Resource = m[1]
	serr.Line = line
	serr.Message = m[3]
	return serr
}

// newScriptError builds a ScriptError from an error string, capturing the
// current stack. Must run while the erroring frames are still live.
func newScriptError(text string, e *Environment) *ScriptError {
	serr := parseErrorMessage(text)
	serr.ScriptID = e.scripts[serr.Resource]
	serr.Frames = e.captureStack(1, maxCapturedFrames)
	return serr
}
