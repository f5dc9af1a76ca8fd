package io

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueuePushPop(t *testing.T) {
	q := newMessageQueue()

	q.push("a")
	q.push("b")

	msg, ok := q.pop()
	assert.True(t, ok)
	assert.Equal(t, "a", msg)

	msg, ok = q.pop()
	assert.True(t, ok)
	assert.Equal(t, "b", msg)

	_, ok = q.pop()
	assert.False(t, ok)
}

func TestQueueDrain(t *testing.T) {
	q := newMessageQueue()
	q.push("a")
	q.push("b")

	assert.Equal(t, []string{"a", "b"}, q.drain())
	assert.False(t, q.hasItems())
}

func TestQueueWakeCoalesces(t *testing.T) {
	q := newMessageQueue()
	q.push("a")
	q.push("b")

	<-q.wake
	select {
	case <-q.wake:
		t.Fatal("expected coalesced wake signals")
	default:
	}
}

func TestQueueCloseDropsAndWakes(t *testing.T) {
	q := newMessageQueue()
	q.push("a")

	q.close()
	assert.True(t, q.isClosed())
	assert.False(t, q.hasItems())

	q.push("late")
	assert.False(t, q.hasItems(), "pushes after close must drop")

	select {
	case <-q.wake:
	default:
		t.Fatal("close must signal the wake channel")
	}
}
