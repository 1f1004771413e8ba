package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fitpulse.app/coach/common/id"
)

// connState is the per-connection lifecycle:
// Connecting -> Authenticating -> Authenticated -> Closed,
// with Authenticating -> Closed on timeout or auth failure.
type connState int

const (
	stateAuthenticating connState = iota
	stateAuthenticated
	stateClosed
)

// socket is the transport slice of *websocket.Conn the connection uses,
// narrowed so tests can run the full handshake over an in-memory fake.
type socket interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
	Close() error
}

const sendBuffer = 32

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// connection owns one client socket. All writes go through a single writer
// goroutine; a slow or dead socket never blocks the registry or other
// connections.
type connection struct {
	id   string
	sock socket

	sendCh chan outbound
	done   chan struct{}

	// wmu serializes socket writes: gorilla/websocket allows one
	// concurrent writer, and the timeout path writes off-goroutine.
	wmu sync.Mutex

	mu        sync.Mutex
	state     connState
	userID    int64
	authTimer *time.Timer

	closeOnce sync.Once
}

func newConnection(sock socket) *connection {
	return &connection{
		id:     fmt.Sprintf("conn-%d", id.New()),
		sock:   sock,
		sendCh: make(chan outbound, sendBuffer),
		done:   make(chan struct{}),
	}
}

func (c *connection) ID() string {
	return c.id
}

// Send queues an event for the writer goroutine. If the buffer is full the
// event is dropped: the persisted chat message remains pollable, so losing
// a push to a stalled socket is acceptable.
func (c *connection) Send(event string, data any) {
	select {
	case c.sendCh <- outbound{Event: event, Data: data}:
	case <-c.done:
	default:
		slog.Warn("dropping event for slow connection",
			"connection_id", c.id,
			"event", event)
	}
}

func (c *connection) writeLoop(ctx context.Context) {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.sendCh:
			if err := c.write(msg); err != nil {
				slog.DebugContext(ctx, "write failed, closing connection",
					"connection_id", c.id,
					"error", err)
				c.close()
				return
			}
		}
	}
}

func (c *connection) readEnvelope() (Envelope, error) {
	var env Envelope
	if err := c.sock.ReadJSON(&env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// sendNow writes synchronously, bypassing the queue. Used for the final
// event before a close so it is not lost in a buffered channel.
func (c *connection) sendNow(event string, data any) {
	_ = c.write(outbound{Event: event, Data: data})
}

func (c *connection) write(msg outbound) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.sock.WriteJSON(msg)
}

func (c *connection) close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state = stateClosed
		if c.authTimer != nil {
			c.authTimer.Stop()
		}
		c.mu.Unlock()

		close(c.done)
		_ = c.sock.Close()
	})
}

// authenticated returns the user id if the handshake has completed.
func (c *connection) authenticated() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == stateAuthenticated {
		return c.userID, true
	}
	return 0, false
}

// beginAuth arms the authentication deadline. The callback runs if the
// deadline elapses before markAuthenticated stops the timer.
func (c *connection) beginAuth(timeout time.Duration, onTimeout func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = stateAuthenticating
	c.authTimer = time.AfterFunc(timeout, onTimeout)
}

// markAuthenticated transitions Authenticating -> Authenticated, cancelling
// the deadline. Returns false if the connection already timed out or closed,
// in which case the caller must not register it.
func (c *connection) markAuthenticated(userID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != stateAuthenticating {
		return false
	}
	if c.authTimer != nil && !c.authTimer.Stop() {
		// Timer already fired; the timeout path owns this connection.
		return false
	}

	c.state = stateAuthenticated
	c.userID = userID
	return true
}

// expireAuth transitions Authenticating -> Closed on deadline. Returns
// false if authentication won the race.
func (c *connection) expireAuth() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != stateAuthenticating {
		return false
	}
	c.state = stateClosed
	return true
}

func (c *connection) marshalDebug(data json.RawMessage) json.RawMessage {
	if len(data) == 0 {
		return json.RawMessage("null")
	}
	return data
}
