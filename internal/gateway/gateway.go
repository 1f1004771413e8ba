package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"fitpulse.app/coach/common/logger"
	"fitpulse.app/coach/core/config"
	"fitpulse.app/coach/internal/backend"
	"fitpulse.app/coach/internal/bus"
)

// Gateway terminates websocket connections, runs the authentication
// handshake against the profile backend, and fans bus payloads out to the
// registered connections of each user.
type Gateway struct {
	registry    *Registry
	profiles    backend.ProfileClient
	authTimeout time.Duration
	upgrader    websocket.Upgrader
}

func New(registry *Registry, profiles backend.ProfileClient, cfg config.GatewayConfig) *Gateway {
	return &Gateway{
		registry:    registry,
		profiles:    profiles,
		authTimeout: cfg.AuthTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Token auth happens in-band after the upgrade, not via
			// cookies, so cross-origin upgrades are fine.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// StatusPublisher adapts a bus publisher into the registry's presence
// callback. Publish failures are logged and swallowed: presence notices are
// best effort and must never tear down a connection.
func StatusPublisher(publisher bus.Publisher) StatusNotifier {
	return func(ctx context.Context, userID int64, online bool) {
		status := bus.StatusOffline
		if online {
			status = bus.StatusOnline
		}
		if err := publisher.PublishStatus(ctx, bus.StatusNotice{
			UserID:    userID,
			Status:    status,
			Timestamp: time.Now().UTC(),
		}); err != nil {
			slog.ErrorContext(ctx, "failed to publish status notice",
				"error", err,
				"user_id", userID,
				"status", status)
		}
	}
}

// HandleWS upgrades the HTTP request and serves the connection until the
// client disconnects.
func (g *Gateway) HandleWS(c *gin.Context) {
	ws, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "websocket upgrade failed", "error", err)
		return
	}

	// The request context dies with the HTTP handler; the connection
	// outlives it.
	g.serve(context.Background(), ws)
}

// serve runs a single connection's lifecycle: arm the auth deadline, pump
// reads, and clean up registry state on exit. Split from HandleWS so tests
// can drive it over an in-memory socket.
func (g *Gateway) serve(ctx context.Context, sock socket) {
	conn := newConnection(sock)
	connID := conn.ID()
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ConnectionID: &connID,
		Component:    "coach.gateway",
	})

	slog.InfoContext(ctx, "connection opened")

	go conn.writeLoop(ctx)
	conn.beginAuth(g.authTimeout, func() {
		g.onAuthTimeout(ctx, conn)
	})

	g.readLoop(ctx, conn)

	// Capture auth state before close flips it to Closed.
	userID, wasAuthenticated := conn.authenticated()
	conn.close()
	if wasAuthenticated {
		g.registry.Unregister(ctx, userID, conn)
	}

	slog.InfoContext(ctx, "connection closed",
		"was_authenticated", wasAuthenticated)
}

func (g *Gateway) readLoop(ctx context.Context, conn *connection) {
	for {
		env, err := conn.readEnvelope()
		if err != nil {
			slog.DebugContext(ctx, "read loop ended", "error", err)
			return
		}

		switch env.Event {
		case EventAuthenticate:
			if !g.handleAuthenticate(ctx, conn, env.Data) {
				return
			}
		case EventPing:
			// Ping works in any pre-close state and does not touch the
			// auth deadline.
			conn.Send(EventPong, pongPayload{ServerTime: time.Now().UTC()})
		case EventDebug:
			g.handleDebug(conn, env.Data)
		default:
			slog.DebugContext(ctx, "ignoring unknown event", "event", env.Event)
		}
	}
}

// handleAuthenticate validates the token with the profile backend and, on
// success, registers the connection. Returns false when the connection must
// be torn down.
func (g *Gateway) handleAuthenticate(ctx context.Context, conn *connection, data json.RawMessage) bool {
	var payload authenticatePayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.Token == "" {
		conn.sendNow(EventAuthError, errorPayload{Message: "missing or malformed token"})
		return false
	}

	user, err := g.profiles.ValidateToken(ctx, payload.Token)
	if err != nil {
		slog.WarnContext(ctx, "token validation failed", "error", err)
		conn.sendNow(EventAuthError, errorPayload{Message: "invalid token"})
		return false
	}

	if !conn.markAuthenticated(user.ID) {
		// The deadline fired while we were validating; the timeout path
		// already sent its event and is closing the socket.
		return false
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{UserID: &user.ID})
	g.registry.Register(ctx, user.ID, conn)

	conn.Send(EventAuthenticated, authenticatedPayload{
		User: authenticatedUser{
			ID:    user.ID,
			Name:  user.Name,
			Email: user.Email,
		},
	})

	slog.InfoContext(ctx, "connection authenticated")
	return true
}

func (g *Gateway) handleDebug(conn *connection, data json.RawMessage) {
	userID, isAuthenticated := conn.authenticated()
	var userIDPtr *int64
	if isAuthenticated {
		userIDPtr = &userID
	}
	conn.Send(EventDebugResponse, debugResponsePayload{
		Received:        conn.marshalDebug(data),
		ServerTime:      time.Now().UTC(),
		IsAuthenticated: isAuthenticated,
		UserID:          userIDPtr,
	})
}

func (g *Gateway) onAuthTimeout(ctx context.Context, conn *connection) {
	if !conn.expireAuth() {
		return
	}

	slog.InfoContext(ctx, "authentication deadline elapsed, closing connection")
	conn.sendNow(EventAuthTimeout, errorPayload{Message: "authentication timed out"})
	conn.close()
}

// HandleChatMessage is the bus handler: it delivers a completed (or failed)
// chat message to every live connection of the addressed user. A user with
// no connections is a silent drop; the row is still pollable over HTTP.
func (g *Gateway) HandleChatMessage(ctx context.Context, payload bus.ChatMessagePayload) {
	conns := g.registry.ConnectionsFor(payload.UserID)
	if len(conns) == 0 {
		return
	}

	for _, c := range conns {
		c.Send(EventChatResponse, payload)
	}

	slog.DebugContext(ctx, "delivered chat response",
		"chat_message_id", payload.ID,
		"user_id", payload.UserID,
		"connections", len(conns))
}
