package protocol

import (
	"strconv"

	"github.com/dshills/luascope/internal/engine"
)

// Location is a protocol source location. Line numbers are zero-based on
// the wire; the engine reports one-based lines.
type Location struct {
	ScriptID     string `json:"scriptId"`
	LineNumber   int    `json:"lineNumber"`
	ColumnNumber int    `json:"columnNumber,omitempty"`
}

// RemoteObject mirrors the protocol's value representation.
type RemoteObject struct {
	Type        string `json:"type"`
	Subtype     string `json:"subtype,omitempty"`
	Value       any    `json:"value,omitempty"`
	Description string `json:"description,omitempty"`
}

// CallFrame is a pause-time call frame.
type CallFrame struct {
	CallFrameID  string       `json:"callFrameId"`
	FunctionName string       `json:"functionName"`
	Location     Location     `json:"location"`
	URL          string       `json:"url"`
	ScopeChain   []Scope      `json:"scopeChain"`
	This         RemoteObject `json:"this"`
}

// Scope is one entry of a call frame's scope chain.
type Scope struct {
	Type   string       `json:"type"`
	Object RemoteObject `json:"object"`
}

// StackTrace is a captured stack for exception reports.
type StackTrace struct {
	Description string            `json:"description,omitempty"`
	CallFrames  []StackTraceFrame `json:"callFrames"`
}

// StackTraceFrame is one frame of a StackTrace.
type StackTraceFrame struct {
	FunctionName string `json:"functionName"`
	ScriptID     string `json:"scriptId"`
	URL          string `json:"url"`
	LineNumber   int    `json:"lineNumber"`
	ColumnNumber int    `json:"columnNumber"`
}

// ExceptionDetails describes a thrown exception.
type ExceptionDetails struct {
	ExceptionID  int           `json:"exceptionId"`
	Text         string        `json:"text"`
	LineNumber   int           `json:"lineNumber"`
	ColumnNumber int           `json:"columnNumber"`
	ScriptID     string        `json:"scriptId,omitempty"`
	URL          string        `json:"url,omitempty"`
	StackTrace   *StackTrace   `json:"stackTrace,omitempty"`
	Exception    *RemoteObject `json:"exception,omitempty"`
}

// ExecutionContextDescription announces a created context.
type ExecutionContextDescription struct {
	ID     int    `json:"id"`
	Origin string `json:"origin"`
	Name   string `json:"name"`
}

// scriptIDString renders an engine script id the way the wire expects.
// Id 0 means "no script" and renders as the empty string.
func scriptIDString(id int) string {
	if id == 0 {
		return ""
	}
	return strconv.Itoa(id)
}

// wireLine converts the engine's one-based line to the wire's zero-based.
func wireLine(line int) int {
	if line <= 0 {
		return 0
	}
	return line - 1
}

// frameLocation builds a Location from an engine frame.
func frameLocation(f engine.StackFrame) Location {
	return Location{
		ScriptID:   scriptIDString(f.ScriptID),
		LineNumber: wireLine(f.Line),
	}
}
