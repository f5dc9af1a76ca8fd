package io

import "sync"

// messageQueue is a closable FIFO with a coalescing wake channel. Pushes
// come from socket goroutines; pops happen on the main thread.
type messageQueue struct {
	mu     sync.Mutex
	items  []string
	wake   chan struct{}
	closed bool
}

func newMessageQueue() *messageQueue {
	return &messageQueue{wake: make(chan struct{}, 1)}
}

// push appends a message and signals the wake channel. Messages pushed
// after close are dropped.
func (q *messageQueue) push(msg string) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, msg)
	q.mu.Unlock()
	q.signal()
}

// pop removes and returns the oldest message.
func (q *messageQueue) pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return "", false
	}
	msg := q.items[0]
	q.items = q.items[1:]
	return msg, true
}

// drain removes and returns all pending messages.
func (q *messageQueue) drain() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// close marks the queue closed and wakes any waiter so it can observe
// the closure.
func (q *messageQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.items = nil
	q.mu.Unlock()
	q.signal()
}

func (q *messageQueue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *messageQueue) hasItems() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) > 0
}

// signal sets the wake channel without blocking; repeated signals
// coalesce into one.
func (q *messageQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
