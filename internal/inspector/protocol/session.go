package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/dshills/luascope/internal/engine"
)

// Protocol error codes (JSON-RPC conventions the protocol follows).
const (
	errParse          = -32700
	errMethodNotFound = -32601
	errInvalidParams  = -32602
)

// Session is one connected front-end's view of the protocol engine. All
// methods run on the main thread.
type Session struct {
	insp      *Inspector
	groupID   int
	transport ChannelTransport

	debuggerEnabled bool
	runtimeEnabled  bool

	// Pause scheduling state. paused is true while the client sits in
	// the pause loop on our behalf.
	pausePending bool
	pauseReason  string
	pauseDetail  string
	paused       bool

	pauseOnExceptions string

	// runRequested flips when the front-end signals it has finished
	// setup and execution may begin (Runtime.runIfWaitingForDebugger).
	runRequested bool

	breakpoints map[string]*breakpoint
	nextBPID    int

	disposed bool
}

// breakpoint is a line breakpoint keyed by chunk name. Lines are stored
// one-based (engine convention).
type breakpoint struct {
	id   string
	url  string
	line int
}

func newSession(insp *Inspector, groupID int, transport ChannelTransport) *Session {
	return &Session{
		insp:              insp,
		groupID:           groupID,
		transport:         transport,
		pauseOnExceptions: "none",
		breakpoints:       make(map[string]*breakpoint),
	}
}

// Dispose tears the session down. If the client is currently pumping the
// pause loop for this session, termination is requested first.
func (s *Session) Dispose() {
	if s.disposed {
		return
	}
	s.disposed = true
	if s.paused {
		s.insp.client.QuitMessageLoopOnPause()
	}
	s.insp.disconnect(s)
}

// DispatchProtocolMessage routes one raw inbound message.
func (s *Session) DispatchProtocolMessage(message string) {
	if s.disposed {
		return
	}
	if !gjson.Valid(message) {
		s.sendError(0, errParse, "Message must be a valid JSON")
		return
	}

	id := int(gjson.Get(message, "id").Int())
	method := gjson.Get(message, "method").String()
	params := gjson.Get(message, "params")

	switch method {
	case "Debugger.enable":
		s.debuggerEnabled = true
		s.sendResult(id, map[string]any{"debuggerId": "(luascope-debugger)"})
	case "Debugger.disable":
		s.debuggerEnabled = false
		s.sendResult(id, emptyResult{})
	case "Debugger.pause":
		s.SchedulePauseOnNextStatement("other", "")
		s.sendResult(id, emptyResult{})
	case "Debugger.resume":
		s.sendResult(id, emptyResult{})
		if s.paused {
			s.insp.client.QuitMessageLoopOnPause()
		}
	case "Debugger.setBreakpointByUrl":
		s.setBreakpointByURL(id, params)
	case "Debugger.removeBreakpoint":
		s.removeBreakpoint(id, params)
	case "Debugger.setPauseOnExceptions":
		s.pauseOnExceptions = params.Get("state").String()
		s.sendResult(id, emptyResult{})
	case "Runtime.enable":
		s.runtimeEnabled = true
		s.sendResult(id, emptyResult{})
		for _, info := range s.insp.contexts[s.groupID] {
			s.notifyContextCreated(info)
		}
	case "Runtime.disable":
		s.runtimeEnabled = false
		s.sendResult(id, emptyResult{})
	case "Runtime.evaluate":
		s.evaluate(id, params)
	case "Runtime.runIfWaitingForDebugger":
		s.runRequested = true
		s.sendResult(id, emptyResult{})
	default:
		s.sendError(id, errMethodNotFound, fmt.Sprintf("'%s' wasn't found", method))
	}
}

// RunRequested reports whether the front-end has asked for execution to
// begin.
func (s *Session) RunRequested() bool {
	return s.runRequested
}

// SchedulePauseOnNextStatement arms a pause at the next safe point.
func (s *Session) SchedulePauseOnNextStatement(reason, detail string) {
	if s.disposed || s.paused {
		return
	}
	s.pausePending = true
	s.pauseReason = reason
	s.pauseDetail = detail
}

// checkPause runs at engine safe points: an armed pause or a matching
// breakpoint suspends execution here.
func (s *Session) checkPause() {
	if s.disposed || s.paused || !s.debuggerEnabled {
		return
	}

	if s.pausePending {
		reason := s.pauseReason
		if reason == "" {
			reason = "other"
		}
		s.doPause(reason, s.pauseDetail, nil)
		return
	}

	if len(s.breakpoints) == 0 {
		return
	}
	frame, ok := s.env().TopFrame()
	if !ok {
		return
	}
	for _, bp := range s.breakpoints {
		if bp.url == frame.Source && bp.line == frame.Line {
			s.doPause("other", "", []string{bp.id})
			return
		}
	}
}

// doPause emits Debugger.paused, hands the main thread to the client's
// pause loop, and emits Debugger.resumed when the loop unwinds.
func (s *Session) doPause(reason, detail string, hitBreakpoints []string) {
	s.paused = true
	s.pausePending = false
	s.pauseReason = ""
	s.pauseDetail = ""

	params := map[string]any{
		"callFrames": s.currentCallFrames(),
		"reason":     reason,
	}
	if detail != "" {
		params["data"] = map[string]any{"details": detail}
	}
	if len(hitBreakpoints) > 0 {
		params["hitBreakpoints"] = hitBreakpoints
	}
	s.sendNotification("Debugger.paused", params)

	s.insp.client.RunMessageLoopOnPause(s.groupID)

	s.paused = false
	if !s.disposed {
		s.sendNotification("Debugger.resumed", emptyResult{})
	}
}

// currentCallFrames captures the live stack as protocol call frames.
func (s *Session) currentCallFrames() []CallFrame {
	frames := s.env().CaptureStack(0)
	out := make([]CallFrame, len(frames))
	for n, f := range frames {
		out[n] = CallFrame{
			CallFrameID:  fmt.Sprintf("frame:%d", n),
			FunctionName: f.FunctionName,
			Location:     frameLocation(f),
			URL:          f.Source,
			ScopeChain:   []Scope{},
			This:         RemoteObject{Type: "undefined"},
		}
	}
	return out
}

func (s *Session) setBreakpointByURL(id int, params gjson.Result) {
	url := params.Get("url").String()
	if url == "" {
		s.sendError(id, errInvalidParams, "url is required")
		return
	}
	line := int(params.Get("lineNumber").Int()) + 1

	s.nextBPID++
	bp := &breakpoint{
		id:   fmt.Sprintf("%d:%s:%d", s.nextBPID, url, line),
		url:  url,
		line: line,
	}
	s.breakpoints[bp.id] = bp

	s.sendResult(id, map[string]any{
		"breakpointId": bp.id,
		"locations": []Location{{
			ScriptID:   scriptIDString(s.env().ScriptID(url)),
			LineNumber: wireLine(line),
		}},
	})
}

func (s *Session) removeBreakpoint(id int, params gjson.Result) {
	bpID := params.Get("breakpointId").String()
	if _, ok := s.breakpoints[bpID]; !ok {
		s.sendError(id, errInvalidParams, "breakpoint not found")
		return
	}
	delete(s.breakpoints, bpID)
	s.sendResult(id, emptyResult{})
}

func (s *Session) evaluate(id int, params gjson.Result) {
	expr := params.Get("expression").String()
	ctx := s.insp.client.EnsureDefaultContext(s.groupID)
	value, err := ctx.Environment().Evaluate(expr)
	if err != nil {
		s.sendResult(id, map[string]any{
			"result": RemoteObject{Type: "undefined"},
			"exceptionDetails": ExceptionDetails{
				Text: err.Error(),
			},
		})
		return
	}
	s.sendResult(id, map[string]any{"result": toRemoteObject(value)})
}

func (s *Session) env() *engine.Environment {
	return s.insp.env
}

// Notifications.

func (s *Session) notifyContextCreated(info ContextInfo) {
	if !s.runtimeEnabled {
		return
	}
	s.sendNotification("Runtime.executionContextCreated", map[string]any{
		"context": ExecutionContextDescription{
			ID:   info.Context.ID(),
			Name: info.Name,
		},
	})
}

func (s *Session) notifyContextDestroyed(ctx *engine.Context) {
	if !s.runtimeEnabled {
		return
	}
	s.sendNotification("Runtime.executionContextDestroyed", map[string]any{
		"executionContextId": ctx.ID(),
	})
}

func (s *Session) notifyExceptionThrown(timestamp float64, details ExceptionDetails) {
	s.sendNotification("Runtime.exceptionThrown", map[string]any{
		"timestamp":        timestamp,
		"exceptionDetails": details,
	})
}

// Outbound encoding.

// emptyResult marshals to {}.
type emptyResult struct{}

func (s *Session) sendResult(id int, result any) {
	raw, err := json.Marshal(result)
	if err != nil {
		raw = []byte("{}")
	}
	msg, _ := sjson.Set(`{}`, "id", id)
	msg, _ = sjson.SetRaw(msg, "result", string(raw))
	s.transport.SendResponse(id, msg)
}

func (s *Session) sendError(id, code int, text string) {
	msg, _ := sjson.Set(`{}`, "id", id)
	msg, _ = sjson.Set(msg, "error.code", code)
	msg, _ = sjson.Set(msg, "error.message", text)
	s.transport.SendResponse(id, msg)
}

func (s *Session) sendNotification(method string, params any) {
	raw, err := json.Marshal(params)
	if err != nil {
		raw = []byte("{}")
	}
	msg, _ := sjson.Set(`{}`, "method", method)
	msg, _ = sjson.SetRaw(msg, "params", string(raw))
	s.transport.SendNotification(msg)
	s.transport.FlushProtocolNotifications()
}
