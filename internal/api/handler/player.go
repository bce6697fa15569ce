package handler

import (
	"encoding/json"
	"net/http"

	"github.com/mcoot/poisonedglass/internal/api/middleware"
	"github.com/mcoot/poisonedglass/internal/api/request"
	"github.com/mcoot/poisonedglass/internal/api/response"
	"github.com/mcoot/poisonedglass/internal/services/auth"
)

// PlayerHandler handles account endpoints
type PlayerHandler struct {
	authService *auth.Service
}

// NewPlayerHandler creates a new player handler
func NewPlayerHandler(authService *auth.Service) *PlayerHandler {
	return &PlayerHandler{
		authService: authService,
	}
}

// Register handles POST /api/v1/players/register
func (h *PlayerHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req request.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	session, err := h.authService.Register(r.Context(), auth.RegisterRequest{
		Username:       req.Username,
		Password:       req.Password,
		RepeatPassword: req.RepeatPassword,
		Email:          req.Email,
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.AuthResponseFromSession(session))
}

// Login handles POST /api/v1/players/login
func (h *PlayerHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req request.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	if req.Username == "" {
		WriteError(w, NewInvalidRequestError("username is required"))
		return
	}
	if req.Password == "" {
		WriteError(w, NewInvalidRequestError("password is required"))
		return
	}

	result, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.AuthResponseFromLogin(result))
}

// Delete handles POST /api/v1/players/delete
func (h *PlayerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req request.DeleteAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	if req.Username == "" || req.Password == "" {
		WriteError(w, NewInvalidRequestError("username and password are required"))
		return
	}

	if err := h.authService.Delete(r.Context(), req.Username, req.Password); err != nil {
		WriteError(w, err)
		return
	}

	response.NoContent(w)
}

// List handles GET /api/v1/players
func (h *PlayerHandler) List(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.authService.List(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	resp := response.ProfileList{Profiles: make([]response.Profile, 0, len(profiles))}
	for _, p := range profiles {
		resp.Profiles = append(resp.Profiles, response.PublicProfile(p))
	}
	response.JSON(w, http.StatusOK, resp)
}

// GetMe handles GET /api/v1/players/me
func (h *PlayerHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	session := middleware.MustGetSession(r.Context())

	profile, err := h.authService.Profile(r.Context(), session.Username)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.ProfileFromModel(profile))
}

// Logout handles POST /api/v1/players/logout
func (h *PlayerHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session := middleware.MustGetSession(r.Context())
	h.authService.InvalidateSession(session.Token)
	response.NoContent(w)
}
