package platform

// AsyncHandle wakes an event loop from any goroutine and runs a bound
// callback on the loop's goroutine. Multiple Send calls between services
// coalesce into a single pending wake, so the callback runs at most once
// per wake regardless of how many senders raced.
type AsyncHandle struct {
	wake     chan struct{}
	callback func()
}

// NewAsyncHandle binds a callback to a fresh handle. The callback runs on
// whichever goroutine services the handle, never on the sender.
func NewAsyncHandle(callback func()) *AsyncHandle {
	return &AsyncHandle{
		wake:     make(chan struct{}, 1),
		callback: callback,
	}
}

// Send requests a wake. Safe to call from any goroutine, including
// signal handlers. Never blocks.
func (h *AsyncHandle) Send() {
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// Chan returns the wake channel for the owning loop to select on.
func (h *AsyncHandle) Chan() <-chan struct{} {
	return h.wake
}

// Service runs the bound callback. The owning loop calls this after
// receiving from Chan.
func (h *AsyncHandle) Service() {
	if h.callback != nil {
		h.callback()
	}
}
