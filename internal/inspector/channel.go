package inspector

import (
	"github.com/dshills/luascope/internal/inspector/protocol"
)

// Channel routes one connected session's messages. It owns the protocol
// session and references, without owning, the front-end delegate.
type Channel struct {
	session  *protocol.Session
	delegate SessionDelegate
}

// newChannel opens a protocol session bound to the fixed context group.
func newChannel(insp *protocol.Inspector, delegate SessionDelegate) *Channel {
	c := &Channel{delegate: delegate}
	c.session = insp.Connect(contextGroupID, c)
	return c
}

// dispatchProtocolMessage routes an inbound raw message into the session.
func (c *Channel) dispatchProtocolMessage(message string) {
	c.session.DispatchProtocolMessage(message)
}

// SendResponse delivers a call response to the front-end.
func (c *Channel) SendResponse(callID int, message string) {
	c.sendMessageToFrontend(message)
}

// SendNotification delivers a protocol event to the front-end.
func (c *Channel) SendNotification(message string) {
	c.sendMessageToFrontend(message)
}

// FlushProtocolNotifications is a no-op: messages are never batched.
func (c *Channel) FlushProtocolNotifications() {}

func (c *Channel) sendMessageToFrontend(message string) {
	c.delegate.SendMessageToFrontend(message)
}

// schedulePauseOnNextStatement forwards reason as both the pause reason
// and its detail string.
func (c *Channel) schedulePauseOnNextStatement(reason string) {
	c.session.SchedulePauseOnNextStatement(reason, reason)
}

// runRequested reports whether the front-end finished its setup
// handshake.
func (c *Channel) runRequested() bool {
	return c.session.RunRequested()
}

// waitForFrontendMessage blocks for front-end traffic while paused. A
// false return means the connection is gone and must break the enclosing
// pause loop.
func (c *Channel) waitForFrontendMessage() bool {
	return c.delegate.WaitForFrontendMessageWhilePaused()
}

// Delegate returns the bound session delegate.
func (c *Channel) Delegate() SessionDelegate {
	return c.delegate
}

// dispose closes the protocol session.
func (c *Channel) dispose() {
	c.session.Dispose()
}
