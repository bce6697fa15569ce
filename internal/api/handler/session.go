package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/mcoot/poisonedglass/internal/api/middleware"
	"github.com/mcoot/poisonedglass/internal/api/request"
	"github.com/mcoot/poisonedglass/internal/api/response"
	"github.com/mcoot/poisonedglass/internal/model"
	"github.com/mcoot/poisonedglass/internal/services/session"
	"github.com/mcoot/poisonedglass/internal/transport/sse"
	"github.com/mcoot/poisonedglass/internal/transport/wire"
	"github.com/mcoot/poisonedglass/internal/transport/ws"
)

// SessionHandler handles game session endpoints
type SessionHandler struct {
	registry  *session.Registry
	hubs      *sse.HubManager
	websocket *ws.Handler
	logger    *slog.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(registry *session.Registry, hubs *sse.HubManager, websocket *ws.Handler, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		registry:  registry,
		hubs:      hubs,
		websocket: websocket,
		logger:    logger,
	}
}

// connectionID is the identity a REST caller acts under in a session
func connectionID(username string) model.ConnectionID {
	return model.ConnectionID("api:" + username)
}

// sessionFromRequest resolves the {code} path variable
func (h *SessionHandler) sessionFromRequest(r *http.Request) (*session.Session, error) {
	code := model.SessionCode(strings.ToUpper(mux.Vars(r)["code"]))
	return h.registry.Get(code)
}

// Create handles POST /api/v1/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess, err := h.registry.Create(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	view, err := sess.Snapshot(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	h.logger.Info("session created",
		slog.String("session", string(sess.Code())),
		slog.String("username", middleware.MustGetSession(r.Context()).Username))
	response.JSON(w, http.StatusCreated, wire.FromView(view))
}

// List handles GET /api/v1/sessions
func (h *SessionHandler) List(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, response.SessionListFromCodes(h.registry.List()))
}

// Get handles GET /api/v1/sessions/{code}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessionFromRequest(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	view, err := sess.Snapshot(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, wire.FromView(view))
}

// Join handles POST /api/v1/sessions/{code}/join
func (h *SessionHandler) Join(w http.ResponseWriter, r *http.Request) {
	auth := middleware.MustGetSession(r.Context())

	var req request.JoinSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if req.DisplayName == "" {
		req.DisplayName = auth.Username
	}

	sess, err := h.sessionFromRequest(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	id := connectionID(auth.Username)
	result, err := sess.Join(r.Context(), id, req.DisplayName, auth.Username)
	if err != nil {
		WriteError(w, err)
		return
	}

	view, err := sess.Snapshot(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.JoinResponse{
		ConnectionID: string(id),
		Slot:         result.Slot,
		Changed:      result.Changed,
		Session:      wire.FromView(view),
	})
}

// Leave handles POST /api/v1/sessions/{code}/leave
func (h *SessionHandler) Leave(w http.ResponseWriter, r *http.Request) {
	auth := middleware.MustGetSession(r.Context())

	sess, err := h.sessionFromRequest(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	left, err := sess.Leave(r.Context(), connectionID(auth.Username), "left")
	if err != nil {
		WriteError(w, err)
		return
	}
	if !left {
		WriteError(w, model.ErrNotInSession)
		return
	}

	response.NoContent(w)
}

// Submit handles POST /api/v1/sessions/{code}/actions. The response is 202
// whether or not the submission was in turn: out-of-turn moves are dropped
// silently and the outcome is only observable through events.
func (h *SessionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	auth := middleware.MustGetSession(r.Context())

	var req request.ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	action, err := model.ParseAction(req.Action)
	if err != nil {
		WriteError(w, err)
		return
	}

	sess, err := h.sessionFromRequest(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	if _, err := sess.Submit(r.Context(), connectionID(auth.Username), action); err != nil {
		WriteError(w, err)
		return
	}

	response.Accepted(w)
}

// Events handles GET /api/v1/sessions/{code}/events
func (h *SessionHandler) Events(w http.ResponseWriter, r *http.Request) {
	auth := middleware.MustGetSession(r.Context())

	sess, err := h.sessionFromRequest(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	sse.ServeSSE(w, r, h.hubs, sess, auth.Username, h.logger)
}

// Connect handles GET /api/v1/sessions/{code}/ws
func (h *SessionHandler) Connect(w http.ResponseWriter, r *http.Request) {
	auth := middleware.MustGetSession(r.Context())

	sess, err := h.sessionFromRequest(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	h.websocket.Serve(w, r, sess, auth.Username)
}
