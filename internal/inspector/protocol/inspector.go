package protocol

import (
	"github.com/dshills/luascope/internal/engine"
)

// Client is the embedder-side hook set the protocol engine calls into.
// The method set is fixed; one concrete implementation (the inspector
// bridge) exists.
type Client interface {
	// RunMessageLoopOnPause blocks the main thread in the pause loop
	// until the front-end resumes or disconnects.
	RunMessageLoopOnPause(contextGroupID int)

	// QuitMessageLoopOnPause requests pause-loop termination.
	QuitMessageLoopOnPause()

	// CurrentTimeMS supplies monotonic timestamps for protocol fields.
	CurrentTimeMS() float64

	// EnsureDefaultContext returns the context evaluations run in.
	EnsureDefaultContext(contextGroupID int) *engine.Context
}

// ChannelTransport is the front-end side hook set: how a session's
// outbound messages leave the protocol engine.
type ChannelTransport interface {
	SendResponse(callID int, message string)
	SendNotification(message string)
	FlushProtocolNotifications()
}

// ContextInfo registers an execution context with the inspector.
type ContextInfo struct {
	Context *engine.Context
	GroupID int
	Name    string
}

// Inspector is the top-level protocol engine handle. It owns the sessions
// and the context registry, and hooks the engine's safe points to drive
// pause checks.
type Inspector struct {
	env    *engine.Environment
	client Client

	contexts map[int][]ContextInfo
	sessions map[int]*Session

	nextExceptionID int
}

// New creates an Inspector over the environment, bound to the given
// client. The pause check is registered on the engine's safe points.
func New(env *engine.Environment, client Client) *Inspector {
	i := &Inspector{
		env:      env,
		client:   client,
		contexts: make(map[int][]ContextInfo),
		sessions: make(map[int]*Session),
	}
	env.AddSafePointHook(i.checkPause)
	return i
}

// Connect opens a session for a context group. At most one session per
// group may exist; a second concurrent connect is a caller bug.
func (i *Inspector) Connect(groupID int, transport ChannelTransport) *Session {
	if _, exists := i.sessions[groupID]; exists {
		panic("protocol: session already connected for context group")
	}
	s := newSession(i, groupID, transport)
	i.sessions[groupID] = s
	return s
}

// ContextCreated registers an execution context and announces it to an
// interested session.
func (i *Inspector) ContextCreated(info ContextInfo) {
	i.contexts[info.GroupID] = append(i.contexts[info.GroupID], info)
	if s := i.sessions[info.GroupID]; s != nil {
		s.notifyContextCreated(info)
	}
}

// ContextDestroyed unregisters a context and announces the destruction.
func (i *Inspector) ContextDestroyed(ctx *engine.Context) {
	for groupID, infos := range i.contexts {
		for n, info := range infos {
			if info.Context != ctx {
				continue
			}
			i.contexts[groupID] = append(infos[:n], infos[n+1:]...)
			if s := i.sessions[groupID]; s != nil {
				s.notifyContextDestroyed(ctx)
			}
			return
		}
	}
}

// ExceptionThrown reports an exception to the group's session as a
// Runtime.exceptionThrown notification. Without a session the report is
// dropped; exception delivery is best effort.
func (i *Inspector) ExceptionThrown(groupID int, text, message, url string, line, col int, stack *StackTrace, scriptID int) {
	s := i.sessions[groupID]
	if s == nil {
		return
	}

	i.nextExceptionID++
	details := ExceptionDetails{
		ExceptionID:  i.nextExceptionID,
		Text:         text,
		LineNumber:   wireLine(line),
		ColumnNumber: col,
		ScriptID:     scriptIDString(scriptID),
		URL:          url,
		StackTrace:   stack,
		Exception: &RemoteObject{
			Type:        "object",
			Subtype:     "error",
			Description: message,
		},
	}
	s.notifyExceptionThrown(i.client.CurrentTimeMS(), details)
}

// CreateStackTrace converts engine frames into a protocol stack trace.
func (i *Inspector) CreateStackTrace(frames []engine.StackFrame) *StackTrace {
	if len(frames) == 0 {
		return nil
	}

	st := &StackTrace{CallFrames: make([]StackTraceFrame, len(frames))}
	for n, f := range frames {
		st.CallFrames[n] = StackTraceFrame{
			FunctionName: f.FunctionName,
			ScriptID:     scriptIDString(f.ScriptID),
			URL:          f.Source,
			LineNumber:   wireLine(f.Line),
		}
	}
	return st
}

// checkPause runs at every engine safe point.
func (i *Inspector) checkPause() {
	for _, s := range i.sessions {
		s.checkPause()
	}
}

// disconnect removes a disposed session.
func (i *Inspector) disconnect(s *Session) {
	delete(i.sessions, s.groupID)
}
