package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/poisonedglass/internal/api/apierr"
	"github.com/mcoot/poisonedglass/internal/api/handler"
	"github.com/mcoot/poisonedglass/internal/api/middleware"
	httpmw "github.com/mcoot/poisonedglass/internal/middleware"
	"github.com/mcoot/poisonedglass/internal/services/auth"
	"github.com/mcoot/poisonedglass/internal/services/session"
	"github.com/mcoot/poisonedglass/internal/transport/sse"
	"github.com/mcoot/poisonedglass/internal/transport/ws"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger      *slog.Logger
	AuthService *auth.Service
	Registry    *session.Registry
	HubManager  *sse.HubManager
	WebSocket   *ws.Handler
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(notFoundHandler)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowedHandler)

	// Create handlers
	playerHandler := handler.NewPlayerHandler(cfg.AuthService)
	sessionHandler := handler.NewSessionHandler(cfg.Registry, cfg.HubManager, cfg.WebSocket, cfg.Logger)

	// Create middleware
	authMiddleware := middleware.Auth(cfg.AuthService)
	streamAuthMiddleware := middleware.StreamAuth(cfg.AuthService)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Recovery(cfg.Logger))
	api.Use(httpmw.Logging(cfg.Logger))

	// Health check endpoint (no auth)
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	// Account routes that authenticate with credentials rather than a token
	api.HandleFunc("/players/register", playerHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/players/login", playerHandler.Login).Methods(http.MethodPost)
	api.HandleFunc("/players/delete", playerHandler.Delete).Methods(http.MethodPost)
	api.HandleFunc("/players", playerHandler.List).Methods(http.MethodGet)

	// Protected player routes
	playerProtected := api.PathPrefix("/players").Subrouter()
	playerProtected.Use(authMiddleware)
	playerProtected.HandleFunc("/me", playerHandler.GetMe).Methods(http.MethodGet)
	playerProtected.HandleFunc("/logout", playerHandler.Logout).Methods(http.MethodPost)

	// Streaming routes accept the token as a query parameter too
	streams := api.PathPrefix("/sessions/{code}").Subrouter()
	streams.Use(streamAuthMiddleware)
	streams.HandleFunc("/events", sessionHandler.Events).Methods(http.MethodGet)
	streams.HandleFunc("/ws", sessionHandler.Connect).Methods(http.MethodGet)

	// Session routes (all require auth)
	sessions := api.PathPrefix("/sessions").Subrouter()
	sessions.Use(authMiddleware)
	sessions.HandleFunc("", sessionHandler.Create).Methods(http.MethodPost)
	sessions.HandleFunc("", sessionHandler.List).Methods(http.MethodGet)
	sessions.HandleFunc("/{code}", sessionHandler.Get).Methods(http.MethodGet)
	sessions.HandleFunc("/{code}/join", sessionHandler.Join).Methods(http.MethodPost)
	sessions.HandleFunc("/{code}/leave", sessionHandler.Leave).Methods(http.MethodPost)
	sessions.HandleFunc("/{code}/actions", sessionHandler.Submit).Methods(http.MethodPost)

	// Nested subrouters lose mux's method mismatch, so known paths get explicit 405s
	methodFallback(api, "/health", "/players/register", "/players/login", "/players/delete", "/players")
	methodFallback(playerProtected, "/me", "/logout")
	methodFallback(streams, "/events", "/ws")
	methodFallback(sessions, "", "/{code}", "/{code}/join", "/{code}/leave", "/{code}/actions")

	return r
}

// methodFallback answers 405 for any method not registered earlier on paths
func methodFallback(r *mux.Router, paths ...string) {
	for _, path := range paths {
		r.HandleFunc(path, methodNotAllowedHandler)
	}
}

func notFoundHandler(w http.ResponseWriter, _ *http.Request) {
	apierr.WriteError(w, apierr.NewNotFoundError())
}

func methodNotAllowedHandler(w http.ResponseWriter, _ *http.Request) {
	apierr.WriteError(w, apierr.NewMethodNotAllowedError())
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
