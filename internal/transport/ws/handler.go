// Package ws is the websocket messaging substrate between clients and the
// session authority.
package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/mcoot/poisonedglass/internal/dependencies/clock"
	"github.com/mcoot/poisonedglass/internal/model"
	"github.com/mcoot/poisonedglass/internal/services/broadcast"
	"github.com/mcoot/poisonedglass/internal/services/roster"
	"github.com/mcoot/poisonedglass/internal/services/session"
	"github.com/mcoot/poisonedglass/internal/transport/wire"
)

// Session is the authority a connection talks to
type Session interface {
	Code() model.SessionCode
	Join(ctx context.Context, connectionID model.ConnectionID, displayName, username string) (roster.JoinResult, error)
	Leave(ctx context.Context, connectionID model.ConnectionID, reason string) (bool, error)
	Submit(ctx context.Context, connectionID model.ConnectionID, action model.Action) (session.SubmitResult, error)
	Subscribe(ctx context.Context, l broadcast.Listener) (model.SessionView, func(), error)
	Done() <-chan struct{}
}

// Handler upgrades HTTP requests into session connections
type Handler struct {
	upgrader websocket.Upgrader
	clock    clock.Clock
	logger   *slog.Logger
}

// NewHandler creates a Handler. Origins are not checked: clients
// authenticate with a bearer token rather than cookies alone.
func NewHandler(clk clock.Clock, logger *slog.Logger) *Handler {
	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clock:  clk,
		logger: logger.With(slog.String("component", "ws")),
	}
}

// Serve upgrades the request and runs the connection until either side
// goes away. A closed connection leaves the session.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request, sess Session, username string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error
		h.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	c := newConnection(conn, sess, username, h.clock, h.logger)
	go c.writePump()

	c.sendMessage(wire.TypeWelcome, wire.WelcomeData{
		ConnectionID: string(c.id),
		Session:      string(sess.Code()),
	})

	view, unsubscribe, err := sess.Subscribe(r.Context(), c)
	if err != nil {
		c.sendError(errorCode(err), err.Error())
		c.Close()
		return
	}
	snapshot, err := wire.NewEnvelope(wire.TypeSnapshot, wire.FromView(view), h.clock.Now())
	if err != nil {
		h.logger.Error("failed to encode snapshot", slog.Any("error", err))
		unsubscribe()
		c.Close()
		return
	}
	c.goLive(snapshot)
	c.logger.Info("websocket connected", slog.String("username", username))

	go func() {
		select {
		case <-sess.Done():
			c.Close()
		case <-c.ctx.Done():
		}
	}()

	c.readPump()

	unsubscribe()
	c.Close()
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if _, err := sess.Leave(ctx, c.id, "disconnected"); err != nil && !errors.Is(err, model.ErrSessionClosed) {
		c.logger.Error("failed to leave session on disconnect", slog.Any("error", err))
	}
	c.logger.Info("websocket disconnected")
}
