package ws

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mcoot/poisonedglass/internal/model"
	"github.com/mcoot/poisonedglass/internal/transport/wire"
)

// origin is the side of the connection allowed to send a message type
type origin int

const (
	fromClient origin = iota
	fromAuthority
)

type route struct {
	from   origin
	handle func(c *Connection, env wire.Envelope)
}

// routes lists every message type and who may send it. Authority types
// arriving from a client are refused without touching the session.
var routes = map[wire.MessageType]route{
	wire.TypeJoin:   {from: fromClient, handle: (*Connection).handleJoin},
	wire.TypeAction: {from: fromClient, handle: (*Connection).handleAction},
	wire.TypeLeave:  {from: fromClient, handle: (*Connection).handleLeave},

	wire.TypeWelcome:      {from: fromAuthority},
	wire.TypeSnapshot:     {from: fromAuthority},
	wire.TypeRoster:       {from: fromAuthority},
	wire.TypeSessionReady: {from: fromAuthority},
	wire.TypeSessionReset: {from: fromAuthority},
	wire.TypeRoundStarted: {from: fromAuthority},
	wire.TypeTurnResolved: {from: fromAuthority},
	wire.TypeRoundEnded:   {from: fromAuthority},
	wire.TypeRoundAborted: {from: fromAuthority},
	wire.TypeError:        {from: fromAuthority},
}

// requestTimeout bounds a single call into the session
const requestTimeout = 5 * time.Second

func (c *Connection) handleMessage(env wire.Envelope) {
	c.logger.Debug("received message", slog.String("type", string(env.Type)))

	r, ok := routes[env.Type]
	switch {
	case !ok:
		c.sendError(wire.CodeUnknownType, "unknown message type "+string(env.Type))
	case r.from != fromClient:
		c.logger.Warn("client sent authority message", slog.String("type", string(env.Type)))
		c.sendError(wire.CodeForbidden, string(env.Type)+" may only be sent by the server")
	default:
		r.handle(c, env)
	}
}

func (c *Connection) handleJoin(env wire.Envelope) {
	var data wire.JoinData
	if err := env.Decode(&data); err != nil {
		c.sendError(wire.CodeInvalidMessage, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(c.ctx, requestTimeout)
	defer cancel()
	if _, err := c.session.Join(ctx, c.id, data.DisplayName, c.username); err != nil {
		c.sendError(errorCode(err), err.Error())
	}
}

func (c *Connection) handleAction(env wire.Envelope) {
	var data wire.ActionData
	if err := env.Decode(&data); err != nil {
		c.sendError(wire.CodeInvalidMessage, err.Error())
		return
	}
	action, err := model.ParseAction(data.Action)
	if err != nil {
		c.sendError(wire.CodeInvalidAction, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(c.ctx, requestTimeout)
	defer cancel()
	// Out-of-turn submissions are dropped without a reply
	if _, err := c.session.Submit(ctx, c.id, action); err != nil {
		c.sendError(errorCode(err), err.Error())
	}
}

func (c *Connection) handleLeave(wire.Envelope) {
	ctx, cancel := context.WithTimeout(c.ctx, requestTimeout)
	defer cancel()
	left, err := c.session.Leave(ctx, c.id, "left")
	if err != nil {
		c.sendError(errorCode(err), err.Error())
		return
	}
	if !left {
		c.sendError(wire.CodeNotJoined, model.ErrNotInSession.Error())
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, model.ErrInvalidName):
		return wire.CodeInvalidName
	case errors.Is(err, model.ErrNameTaken):
		return wire.CodeNameTaken
	case errors.Is(err, model.ErrSessionFull):
		return wire.CodeSessionFull
	case errors.Is(err, model.ErrSessionClosed):
		return wire.CodeSessionClosed
	case errors.Is(err, model.ErrInvalidAction):
		return wire.CodeInvalidAction
	case errors.Is(err, model.ErrNotInSession):
		return wire.CodeNotJoined
	default:
		return wire.CodeInternal
	}
}
