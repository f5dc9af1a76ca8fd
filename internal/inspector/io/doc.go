// Package io is the inspector's WebSocket transport. It owns the HTTP
// discovery endpoints and the single debugger connection, and shuttles
// raw protocol messages between the socket goroutines and the main
// thread.
//
// Threading: the Runner's reader and writer goroutines never touch agent
// state directly. Inbound messages land in a queue that is drained on the
// main thread, either by a scheduled foreground task or by the pause
// loop's blocking wait. Outbound messages are queued to the writer
// goroutine from the main thread.
package io
