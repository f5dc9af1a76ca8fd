package io

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/dshills/luascope/internal/inspector"
	"github.com/dshills/luascope/internal/version"
)

// maxMessageSize caps inbound protocol messages.
const maxMessageSize = 16 * 1024 * 1024

// Runner serves the discovery endpoints and the debugger WebSocket. It
// implements inspector.IoRunner.
type Runner struct {
	agent          *inspector.Agent
	log            zerolog.Logger
	targetID       string
	waitForConnect bool

	httpServer *http.Server
	listener   net.Listener
	upgrader   websocket.Upgrader

	mu   sync.Mutex
	conn *connection

	connected     chan struct{}
	connectedOnce sync.Once
}

// connection is one attached front-end socket and its queues.
type connection struct {
	ws       *websocket.Conn
	inbound  *messageQueue
	outbound chan string
	done     chan struct{}
	downOnce sync.Once
}

// NewRunner creates an unstarted runner bound to the agent. With
// waitForConnect, Start blocks until a front-end attaches.
func NewRunner(a *inspector.Agent, log zerolog.Logger, waitForConnect bool) *Runner {
	return &Runner{
		agent:          a,
		log:            log.With().Str("component", "io").Logger(),
		targetID:       uuid.New().String(),
		waitForConnect: waitForConnect,
		connected:      make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The endpoint is loopback debugging, not a browser surface.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Factory adapts NewRunner to the agent's injection point.
func Factory(log zerolog.Logger) inspector.IoRunnerFactory {
	return func(a *inspector.Agent, waitForConnect bool) (inspector.IoRunner, error) {
		return NewRunner(a, log, waitForConnect), nil
	}
}

// Start binds the listener and begins serving. A bind failure returns an
// error with nothing left allocated. With waitForConnect set, Start does
// not return until a front-end attaches.
func (r *Runner) Start() error {
	addr := r.agent.Config().Addr()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("io: listening on %s: %w", addr, err)
	}
	r.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/json", r.handleList)
	mux.HandleFunc("/json/list", r.handleList)
	mux.HandleFunc("/json/version", r.handleVersion)
	mux.HandleFunc("/"+r.targetID, r.handleWebSocket)

	r.httpServer = &http.Server{
		Handler:     mux,
		ReadTimeout: 30 * time.Second,
	}

	go func() {
		if err := r.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			r.log.Error().Err(err).Msg("http serve ended")
		}
	}()

	r.log.Info().Str("url", r.wsURL()).Msg("debugger listening")

	if r.waitForConnect {
		r.log.Info().Msg("waiting for front-end to connect")
		<-r.connected
	}
	return nil
}

// Stop closes the server and tears down the active connection.
func (r *Runner) Stop() {
	if r.httpServer != nil {
		r.httpServer.Close()
	}

	r.mu.Lock()
	c := r.conn
	r.mu.Unlock()
	if c != nil {
		r.teardown(c)
	}
}

// IsConnected reports whether a front-end socket is attached.
func (r *Runner) IsConnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conn != nil
}

// WaitForDisconnect blocks until the attached front-end goes away.
// Returns immediately when nothing is attached. No timeout: the process
// stays inspectable until the operator closes the session.
func (r *Runner) WaitForDisconnect() {
	r.mu.Lock()
	c := r.conn
	r.mu.Unlock()
	if c == nil {
		return
	}
	r.log.Info().Msg("waiting for front-end to disconnect")
	<-c.done
}

// Addr returns the bound listen address.
func (r *Runner) Addr() string {
	if r.listener == nil {
		return ""
	}
	return r.listener.Addr().String()
}

// TargetID returns the discovery target id, which is also the WebSocket
// path.
func (r *Runner) TargetID() string {
	return r.targetID
}

func (r *Runner) wsURL() string {
	return fmt.Sprintf("ws://%s/%s", r.Addr(), r.targetID)
}

// targetInfo mirrors the DevTools discovery target shape.
type targetInfo struct {
	Description          string `json:"description"`
	DevtoolsFrontendURL  string `json:"devtoolsFrontendUrl"`
	ID                   string `json:"id"`
	Title                string `json:"title"`
	Type                 string `json:"type"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

func (r *Runner) handleList(w http.ResponseWriter, req *http.Request) {
	targets := []targetInfo{{
		Description:          "luascope instance",
		DevtoolsFrontendURL:  fmt.Sprintf("devtools://devtools/bundled/inspector.html?ws=%s/%s", r.Addr(), r.targetID),
		ID:                   r.targetID,
		Title:                "luascope",
		Type:                 "node",
		URL:                  "file://",
		WebSocketDebuggerURL: r.wsURL(),
	}}
	writeJSON(w, targets)
}

func (r *Runner) handleVersion(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, map[string]string{
		"Browser":          "luascope/" + version.Version,
		"Protocol-Version": "1.1",
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// handleWebSocket upgrades the debugger socket. One front-end at a time:
// a second attach attempt is refused while a connection is live.
func (r *Runner) handleWebSocket(w http.ResponseWriter, req *http.Request) {
	ws, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	ws.SetReadLimit(maxMessageSize)

	c := &connection{
		ws:       ws,
		inbound:  newMessageQueue(),
		outbound: make(chan string, 128),
		done:     make(chan struct{}),
	}

	r.mu.Lock()
	if r.conn != nil {
		r.mu.Unlock()
		r.log.Warn().Str("remote", req.RemoteAddr).Msg("rejecting second front-end connection")
		ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "another client is already connected"))
		ws.Close()
		return
	}
	r.conn = c
	r.mu.Unlock()

	r.connectedOnce.Do(func() { close(r.connected) })
	r.log.Info().Str("remote", req.RemoteAddr).Msg("front-end connected")

	delegate := &sessionDelegate{runner: r, conn: c}
	r.agent.Scheduler().CallOnForegroundThread(func() {
		r.agent.Connect(delegate)
	})

	go c.writeLoop(r.log)
	r.readLoop(c)
}

// readLoop runs on the socket goroutine until the connection drops.
// Each inbound message lands in the queue; the main thread drains it
// either from a scheduled foreground task or, while paused, from the
// pause loop's wait.
func (r *Runner) readLoop(c *connection) {
	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				r.log.Debug().Msg("front-end closed connection")
			} else {
				r.log.Warn().Err(err).Msg("read error")
			}
			r.teardown(c)
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		c.inbound.push(string(data))
		// Two delivery paths: the foreground task covers the idle event
		// loop, the engine interrupt covers safe points inside a running
		// script, so a pause request lands mid-execution.
		r.agent.Scheduler().CallOnForegroundThread(r.drainInbound)
		r.agent.RequestSafePointCallback(r.drainInbound)
	}
}

// drainInbound dispatches queued messages on the main thread.
func (r *Runner) drainInbound() {
	r.mu.Lock()
	c := r.conn
	r.mu.Unlock()
	if c == nil {
		return
	}
	if r.agent.Delegate() == nil {
		// The attach task has not run yet; messages stay queued.
		return
	}
	for {
		msg, ok := c.inbound.pop()
		if !ok {
			return
		}
		r.agent.Dispatch(msg)
	}
}

// teardown detaches the connection: closes its queues, wakes any paused
// waiter, and schedules the main-thread disconnect.
func (r *Runner) teardown(c *connection) {
	c.downOnce.Do(func() {
		c.inbound.close()
		close(c.done)
		c.ws.Close()

		r.mu.Lock()
		if r.conn == c {
			// Queue the disconnect before publishing the slot as free: a
			// racing attach must enqueue its connect behind it.
			r.agent.Scheduler().CallOnForegroundThread(func() {
				if r.agent.IsStarted() {
					r.agent.Disconnect()
				}
			})
			r.conn = nil
		}
		r.mu.Unlock()

		r.log.Info().Msg("front-end disconnected")
	})
}

func (c *connection) writeLoop(log zerolog.Logger) {
	for {
		select {
		case msg := <-c.outbound:
			if err := c.ws.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				log.Warn().Err(err).Msg("write error")
				return
			}
		case <-c.done:
			return
		}
	}
}
