package api

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/example/support-chat-relay/modules/relay"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	localUserID = "userID"

	// maxFrameSize bounds one inbound frame; a full-length message is at most
	// four bytes per rune plus the JSON envelope.
	maxFrameSize = 32 * 1024
)

// handshake validates the upgrade request before any frame is exchanged.
func (m *Module) handshake(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	if m.liveRelay() == nil {
		return relayUnavailable(c)
	}

	userID := strings.TrimSpace(c.Query("userId"))
	if userID == "" {
		return badRequest(c, "userId is required")
	}

	if m.verifier != nil {
		token := c.Query("token")
		if token == "" {
			if h := c.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
				token = strings.TrimPrefix(h, "Bearer ")
			}
		}
		if err := m.verifier.Verify(token, userID); err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: err.Error(),
			})
		}
	}

	c.Locals(localUserID, userID)
	return c.Next()
}

// handleWebSocket runs one connection: register, read loop, cleanup.
func (m *Module) handleWebSocket(c *websocket.Conn) {
	userID, _ := c.Locals(localUserID).(string)
	logger := m.logger.With("userID", userID, "connID", uuid.New().String())
	rl := m.liveRelay()

	ch := newWSChannel(c, m.cfg.WSWriteTimeout)
	if err := rl.Connect(userID, ch); err != nil {
		logger.Warn("Connection rejected", "error", err)
		_ = ch.Close(relay.CloseInternal, "registration failed")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		rl.Disconnect(context.Background(), userID, ch)
		_ = ch.Close(relay.CloseNormal, "")
	}()

	pongWait := m.cfg.WSPongWait
	c.SetReadLimit(maxFrameSize)
	_ = c.SetReadDeadline(time.Now().Add(pongWait))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(pongWait))
	})
	go ch.keepalive(ctx, (pongWait*9)/10)

	for {
		_, frame, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("WebSocket read error", "error", err)
			}
			return
		}

		err = rl.Dispatch(ctx, relay.Sender{UserID: userID, Channel: ch}, frame)
		if errors.Is(err, relay.ErrChannelClosed) {
			logger.Info("Connection closed with its room")
			return
		}
		if err != nil {
			logger.Error("Dispatch failed, closing connection", "error", err)
			_ = ch.Close(relay.CloseInternal, "internal error")
			return
		}
	}
}

// wsChannel adapts a WebSocket connection to relay.Channel. Writes are
// serialized; the underlying connection allows one concurrent writer.
type wsChannel struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	mu           sync.Mutex
	closed       bool
}

func newWSChannel(conn *websocket.Conn, writeTimeout time.Duration) *wsChannel {
	return &wsChannel{
		conn:         conn,
		writeTimeout: writeTimeout,
	}
}

// Send writes one text frame, bounded by the write timeout or ctx deadline.
func (w *wsChannel) Send(ctx context.Context, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("channel closed")
	}

	deadline := time.Now().Add(w.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := w.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame with code and reason, then closes the connection.
// Only the first call has any effect.
func (w *wsChannel) Close(code int, reason string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	_ = w.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(w.writeTimeout),
	)
	return w.conn.Close()
}

// IsOpen reports whether Close has not been called yet.
func (w *wsChannel) IsOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.closed
}

// keepalive pings the peer every period until ctx is done or a ping fails.
func (w *wsChannel) keepalive(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.mu.Lock()
			if w.closed {
				w.mu.Unlock()
				return
			}
			err := w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(w.writeTimeout))
			w.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
