package inspector

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dshills/luascope/internal/engine"
	"github.com/dshills/luascope/internal/platform"
)

type recordingTrigger struct {
	fired int
	last  func()
}

func (r *recordingTrigger) RequestMainThreadCallback(fn func()) {
	r.fired++
	r.last = fn
}

func TestRequestFiresAllTriggers(t *testing.T) {
	a := &recordingTrigger{}
	b := &recordingTrigger{}
	c := &recordingTrigger{}
	w := NewWakeupCoordinator(a, b, c)

	var calls int
	w.Request(func() { calls++ })

	assert.Equal(t, 1, a.fired)
	assert.Equal(t, 1, b.fired)
	assert.Equal(t, 1, c.fired)

	// All paths carry the same callback.
	a.last()
	b.last()
	c.last()
	assert.Equal(t, 3, calls)
}

func TestStateTransitions(t *testing.T) {
	w := NewWakeupCoordinator()

	assert.Equal(t, WakeupIdle, w.State())
	w.markStarting()
	assert.Equal(t, WakeupStarting, w.State())
	w.markRunning()
	assert.Equal(t, WakeupRunning, w.State())
	w.markIdle()
	assert.Equal(t, WakeupIdle, w.State())
}

func TestLoopWakeTriggerDelivers(t *testing.T) {
	var fired bool
	handle := platform.NewAsyncHandle(func() { fired = true })
	trig := loopWakeTrigger{handle: handle}

	// The handle is pre-bound; the passed callback rides on its own.
	trig.RequestMainThreadCallback(func() {})

	select {
	case <-handle.Chan():
	default:
		t.Fatal("expected a wake signal")
	}
	handle.Service()
	assert.True(t, fired)
}

func TestInterruptTriggerDelivers(t *testing.T) {
	env := engine.New(engine.Options{})
	defer env.Close()

	var fired bool
	trig := interruptTrigger{env: env}
	trig.RequestMainThreadCallback(func() { fired = true })

	assert.False(t, fired, "interrupt must wait for a safe point")
	env.CheckSafePoint()
	assert.True(t, fired)
}

func TestForegroundTaskTriggerDelivers(t *testing.T) {
	pump := platform.NewTaskPump()

	var fired bool
	trig := foregroundTaskTrigger{scheduler: pump}
	trig.RequestMainThreadCallback(func() { fired = true })

	assert.False(t, fired, "task must wait for a pump")
	for pump.PumpMessageLoop() {
	}
	assert.True(t, fired)
}
