package io

// sessionDelegate bridges one socket connection into the agent. Its
// methods run on the main thread.
type sessionDelegate struct {
	runner *Runner
	conn   *connection
}

// SendMessageToFrontend queues a message to the writer goroutine. Sends
// racing a disconnect are dropped.
func (d *sessionDelegate) SendMessageToFrontend(message string) {
	select {
	case d.conn.outbound <- message:
	case <-d.conn.done:
	}
}

// WaitForFrontendMessageWhilePaused blocks until front-end traffic
// arrives, dispatches everything pending, and reports whether the
// connection is still alive. A false return ends the pause loop.
func (d *sessionDelegate) WaitForFrontendMessageWhilePaused() bool {
	q := d.conn.inbound
	for {
		dispatched := false
		for {
			msg, ok := q.pop()
			if !ok {
				break
			}
			d.runner.agent.Dispatch(msg)
			dispatched = true
		}
		if dispatched {
			return true
		}
		if q.isClosed() {
			return false
		}
		select {
		case <-q.wake:
		case <-d.conn.done:
		}
	}
}
