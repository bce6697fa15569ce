package ws

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mcoot/poisonedglass/internal/dependencies/clock"
	"github.com/mcoot/poisonedglass/internal/model"
	"github.com/mcoot/poisonedglass/internal/transport/wire"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	sendBufferSize = 256
)

// Connection is one websocket endpoint attached to a session
type Connection struct {
	id       model.ConnectionID
	username string
	conn     *websocket.Conn
	session  Session
	clock    clock.Clock
	logger   *slog.Logger

	send   chan wire.Envelope
	ctx    context.Context
	cancel context.CancelFunc

	// Events delivered before the snapshot is queued wait in backlog
	mu      sync.Mutex
	live    bool
	backlog []wire.Envelope
}

func newConnection(conn *websocket.Conn, sess Session, username string, clk clock.Clock, logger *slog.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	id := model.ConnectionID(uuid.NewString())
	return &Connection{
		id:       id,
		username: username,
		conn:     conn,
		session:  sess,
		clock:    clk,
		logger: logger.With(
			slog.String("session", string(sess.Code())),
			slog.String("connection_id", string(id))),
		send:   make(chan wire.Envelope, sendBufferSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// ID returns the connection id
func (c *Connection) ID() model.ConnectionID {
	return c.id
}

// Close stops the connection. The write pump sends a close frame and
// releases the socket, which in turn ends the read pump.
func (c *Connection) Close() {
	c.cancel()
}

// OnEvent queues a session event for the client. It runs on the session
// goroutine and never blocks.
func (c *Connection) OnEvent(event model.Event) {
	env, err := wire.FromEvent(event)
	if err != nil {
		c.logger.Error("failed to encode event",
			slog.String("type", string(event.Type)),
			slog.Any("error", err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.live {
		c.backlog = append(c.backlog, env)
		return
	}
	c.enqueue(env)
}

// goLive queues first, then anything that arrived while it was being built
func (c *Connection) goLive(first wire.Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enqueue(first)
	for _, env := range c.backlog {
		c.enqueue(env)
	}
	c.backlog = nil
	c.live = true
}

// sendMessage queues an authority message for the client
func (c *Connection) sendMessage(t wire.MessageType, data any) {
	env, err := wire.NewEnvelope(t, data, c.clock.Now())
	if err != nil {
		c.logger.Error("failed to encode message", slog.Any("error", err))
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enqueue(env)
}

func (c *Connection) sendError(code, message string) {
	c.sendMessage(wire.TypeError, wire.ErrorData{Code: code, Message: message})
}

// enqueue must be called with mu held
func (c *Connection) enqueue(env wire.Envelope) {
	select {
	case c.send <- env:
	case <-c.ctx.Done():
	default:
		c.logger.Warn("connection send buffer full, closing connection")
		c.Close()
	}
}

// readPump handles incoming messages until the peer goes away
func (c *Connection) readPump() {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env wire.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error", slog.Any("error", err))
			}
			return
		}
		c.handleMessage(env)
	}
}

// writePump delivers queued messages and keeps the connection alive
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.cancel()
		_ = c.conn.Close()
	}()

	for {
		select {
		case env := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(env); err != nil {
				c.logger.Debug("failed to write message", slog.Any("error", err))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
