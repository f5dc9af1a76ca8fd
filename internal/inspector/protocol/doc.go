// Package protocol implements the inspector protocol engine: session
// creation, execution-context registration, exception reporting and stack
// trace capture for a debugged Lua environment.
//
// The package mirrors the split the inspector architecture expects:
//
//   - Client is implemented by the embedder-side bridge. The protocol
//     engine calls it to enter and leave the pause loop and to obtain
//     timestamps and the default context.
//   - ChannelTransport is implemented by the per-session channel. The
//     protocol engine calls it to deliver responses and notifications to
//     the front-end.
//
// Sessions speak a DevTools-style JSON protocol: messages are routed by
// their "method" field and answered by "id". Only the Debugger and Runtime
// methods a minimal front-end needs are implemented; unknown methods get a
// method-not-found error response. The callers of this package never
// interpret message content themselves.
package protocol
