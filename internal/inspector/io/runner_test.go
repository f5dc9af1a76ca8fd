package io

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/luascope/internal/config"
	"github.com/dshills/luascope/internal/engine"
	"github.com/dshills/luascope/internal/inspector"
	"github.com/dshills/luascope/internal/platform"
)

func newTestRunner(t *testing.T) (*Runner, *inspector.Agent, *engine.Environment, *platform.TaskPump) {
	t.Helper()

	env := engine.New(engine.Options{})
	t.Cleanup(env.Close)

	pump := platform.NewTaskPump()
	a := inspector.New(zerolog.Nop(),
		inspector.WithConfigOverride(func(c *config.Config) { c.Port = 0 }))
	require.NoError(t, a.Start(env, pump, ""))

	r := NewRunner(a, zerolog.Nop(), false)
	require.NoError(t, r.Start())
	t.Cleanup(r.Stop)

	return r, a, env, pump
}

// pumpUntil services foreground work on the main thread until cond holds.
func pumpUntil(t *testing.T, pump *platform.TaskPump, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for pump.PumpMessageLoop() {
		}
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func dialRunner(t *testing.T, r *Runner) (*websocket.Conn, chan string) {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("ws://%s/%s", r.Addr(), r.TargetID()), nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })

	msgs := make(chan string, 16)
	go func() {
		defer close(msgs)
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			msgs <- string(data)
		}
	}()
	return ws, msgs
}

func TestStartBindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	env := engine.New(engine.Options{})
	defer env.Close()
	pump := platform.NewTaskPump()

	a := inspector.New(zerolog.Nop(),
		inspector.WithConfigOverride(func(c *config.Config) { c.Port = port }))
	require.NoError(t, a.Start(env, pump, ""))

	r := NewRunner(a, zerolog.Nop(), false)
	err = r.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listening on")
}

func TestDiscoveryEndpoints(t *testing.T) {
	r, _, _, _ := newTestRunner(t)

	resp, err := http.Get(fmt.Sprintf("http://%s/json/list", r.Addr()))
	require.NoError(t, err)
	defer resp.Body.Close()

	var targets []map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&targets))
	require.Len(t, targets, 1)
	assert.Equal(t, r.TargetID(), targets[0]["id"])
	assert.True(t, strings.HasSuffix(targets[0]["webSocketDebuggerUrl"], r.TargetID()))

	vresp, err := http.Get(fmt.Sprintf("http://%s/json/version", r.Addr()))
	require.NoError(t, err)
	defer vresp.Body.Close()

	var version map[string]string
	require.NoError(t, json.NewDecoder(vresp.Body).Decode(&version))
	assert.True(t, strings.HasPrefix(version["Browser"], "luascope/"))
	assert.Equal(t, "1.1", version["Protocol-Version"])
}

func TestWebSocketRoundtrip(t *testing.T) {
	r, a, _, pump := newTestRunner(t)

	ws, msgs := dialRunner(t, r)

	pumpUntil(t, pump, func() bool { return a.Delegate() != nil })
	assert.True(t, r.IsConnected())

	require.NoError(t, ws.WriteMessage(websocket.TextMessage,
		[]byte(`{"id":1,"method":"Debugger.enable"}`)))

	var got string
	pumpUntil(t, pump, func() bool {
		select {
		case m := <-msgs:
			got = m
			return true
		default:
			return false
		}
	})
	assert.Equal(t, int64(1), gjson.Get(got, "id").Int())
	assert.NotEmpty(t, gjson.Get(got, "result.debuggerId").String())
}

func TestDisconnectDetaches(t *testing.T) {
	r, a, _, pump := newTestRunner(t)

	ws, _ := dialRunner(t, r)
	pumpUntil(t, pump, func() bool { return a.Delegate() != nil })

	ws.Close()
	pumpUntil(t, pump, func() bool { return !r.IsConnected() && a.Delegate() == nil })
}

func TestReconnectAfterDisconnect(t *testing.T) {
	r, a, _, pump := newTestRunner(t)

	ws, _ := dialRunner(t, r)
	pumpUntil(t, pump, func() bool { return a.Delegate() != nil })

	ws.Close()
	pumpUntil(t, pump, func() bool { return a.Delegate() == nil })

	_, _ = dialRunner(t, r)
	pumpUntil(t, pump, func() bool { return a.Delegate() != nil })
}

func TestSecondConnectionRejected(t *testing.T) {
	r, a, _, pump := newTestRunner(t)

	_, _ = dialRunner(t, r)
	pumpUntil(t, pump, func() bool { return a.Delegate() != nil })

	_, second := dialRunner(t, r)

	select {
	case _, open := <-second:
		assert.False(t, open, "second connection should be closed by the runner")
	case <-time.After(2 * time.Second):
		t.Fatal("second connection was not rejected")
	}
}

func TestPauseDeliveredDuringScript(t *testing.T) {
	r, a, env, pump := newTestRunner(t)

	ws, msgs := dialRunner(t, r)
	pumpUntil(t, pump, func() bool { return a.Delegate() != nil })

	enabled := make(chan struct{}, 1)
	var sawPause atomic.Bool
	go func() {
		for m := range msgs {
			switch {
			case gjson.Get(m, "id").Int() == 1:
				enabled <- struct{}{}
			case gjson.Get(m, "method").String() == "Debugger.paused":
				sawPause.Store(true)
				ws.WriteMessage(websocket.TextMessage,
					[]byte(`{"id":3,"method":"Debugger.resume"}`))
			}
		}
	}()

	require.NoError(t, ws.WriteMessage(websocket.TextMessage,
		[]byte(`{"id":1,"method":"Debugger.enable"}`)))
	pumpUntil(t, pump, func() bool {
		select {
		case <-enabled:
			return true
		default:
			return false
		}
	})

	// The pause request lands while the script below runs. Nothing pumps
	// the foreground queue during the run, so only the engine interrupt
	// path can deliver it before the script finishes.
	require.NoError(t, ws.WriteMessage(websocket.TextMessage,
		[]byte(`{"id":2,"method":"Debugger.pause"}`)))

	env.InstallGlobal("tick", func(L *lua.LState) int {
		env.CheckSafePoint()
		time.Sleep(time.Millisecond)
		return 0
	})
	require.NoError(t, env.RunScript("for i = 1, 500 do tick() end", "busy.lua"))

	assert.True(t, sawPause.Load(), "pause should fire while the script is still running")
}

// gateScheduler parks one scheduled call so a reconnect can race the
// teardown that is mid-flight.
type gateScheduler struct {
	*platform.TaskPump
	gate  chan struct{}
	armed atomic.Bool
}

func (g *gateScheduler) CallOnForegroundThread(task platform.Task) {
	if g.armed.CompareAndSwap(true, false) {
		<-g.gate
	}
	g.TaskPump.CallOnForegroundThread(task)
}

func TestReconnectDuringTeardownKeepsDisconnectFirst(t *testing.T) {
	env := engine.New(engine.Options{})
	t.Cleanup(env.Close)

	sched := &gateScheduler{TaskPump: platform.NewTaskPump(), gate: make(chan struct{})}
	a := inspector.New(zerolog.Nop(),
		inspector.WithConfigOverride(func(c *config.Config) { c.Port = 0 }))
	require.NoError(t, a.Start(env, sched, ""))

	r := NewRunner(a, zerolog.Nop(), false)
	require.NoError(t, r.Start())
	t.Cleanup(r.Stop)

	ws, _ := dialRunner(t, r)
	pumpUntil(t, sched.TaskPump, func() bool { return a.Delegate() != nil })
	old := a.Delegate()

	// Park the teardown at the moment it schedules the disconnect, then
	// attach a new front-end into that window.
	sched.armed.Store(true)
	ws.Close()
	require.Eventually(t, func() bool { return !sched.armed.Load() },
		2*time.Second, time.Millisecond, "teardown never reached the scheduler")

	_, _ = dialRunner(t, r)
	time.Sleep(50 * time.Millisecond)
	require.Zero(t, sched.Pending(),
		"nothing may be queued ahead of the old front-end's disconnect")

	close(sched.gate)
	pumpUntil(t, sched.TaskPump, func() bool {
		d := a.Delegate()
		return d != nil && d != old
	})
}

func TestWaitForDisconnectWithoutConnection(t *testing.T) {
	r, _, _, _ := newTestRunner(t)

	done := make(chan struct{})
	go func() {
		r.WaitForDisconnect()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitForDisconnect should return immediately when nothing is attached")
	}
}
