// Package engine wraps a gopher-lua state as the execution environment the
// debugger agent attaches to.
//
// An Environment is owned by exactly one goroutine, the main thread. All
// script execution and all engine-visible debugger state live on that
// goroutine; gopher-lua's LState is not goroutine-safe, so the ownership is
// enforced with debug-time checks rather than locks.
//
// Cross-goroutine interaction happens through two narrow surfaces:
//
//   - RequestInterrupt queues a callback from any goroutine; it runs on the
//     owner at the next safe point.
//   - Safe points are explicit: before each compiled chunk, before each
//     protected call, and wherever the embedder calls CheckSafePoint.
//     Registered safe-point hooks (the inspector's pause check) run there.
//
// The Environment also keeps a script registry assigning each loaded chunk a
// numeric script id, and captures structured errors (resource, line, stack
// frames) before the Lua stack unwinds so exception reports can carry full
// location data.
package engine
