package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mcoot/poisonedglass/internal/api/apierr"
	"github.com/mcoot/poisonedglass/internal/services/auth"
)

type contextKey string

const sessionContextKey contextKey = "session"

// SessionCookie is the cookie a browser may carry its token in
const SessionCookie = "session"

// Auth creates authentication middleware
func Auth(authService *auth.Service) func(http.Handler) http.Handler {
	return authenticate(authService, extractToken)
}

// StreamAuth is Auth that also accepts a token query parameter, for clients
// such as browsers that cannot set headers on websocket or EventSource
// requests
func StreamAuth(authService *auth.Service) func(http.Handler) http.Handler {
	return authenticate(authService, func(r *http.Request) string {
		if token := extractToken(r); token != "" {
			return token
		}
		return r.URL.Query().Get("token")
	})
}

func authenticate(authService *auth.Service, tokenFrom func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFrom(r)
			if token == "" {
				apierr.WriteError(w, apierr.NewUnauthorizedError())
				return
			}

			session, err := authService.ValidateSession(token)
			if err != nil {
				apierr.WriteError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractToken extracts the session token from the request
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	cookie, err := r.Cookie(SessionCookie)
	if err == nil {
		return cookie.Value
	}

	return ""
}

// GetSession returns the session from the request context
func GetSession(ctx context.Context) *auth.Session {
	session, _ := ctx.Value(sessionContextKey).(*auth.Session)
	return session
}

// MustGetSession returns the authenticated session or panics
func MustGetSession(ctx context.Context) *auth.Session {
	session := GetSession(ctx)
	if session == nil {
		panic("no session in context - auth middleware not applied?")
	}
	return session
}
