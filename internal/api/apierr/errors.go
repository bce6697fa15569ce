package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/poisonedglass/internal/model"
	"github.com/mcoot/poisonedglass/internal/services/auth"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeInvalidAction      = "INVALID_ACTION"
	CodeInvalidName        = "INVALID_NAME"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeSessionNotFound    = "SESSION_NOT_FOUND"
	CodeSessionFull        = "SESSION_FULL"
	CodeSessionClosed      = "SESSION_CLOSED"
	CodeNameTaken          = "NAME_TAKEN"
	CodeNotInSession       = "NOT_IN_SESSION"
	CodeSessionUnavailable = "SESSION_UNAVAILABLE"
	CodeProfileNotFound    = "PROFILE_NOT_FOUND"
	CodeProfileConflict    = "PROFILE_CONFLICT"
	CodeUsernameExists     = "USERNAME_EXISTS"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeMissingFields      = "MISSING_FIELDS"
	CodePasswordMismatch   = "PASSWORD_MISMATCH"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// Status returns the HTTP status an error maps to
func Status(err error) int {
	return toHTTPError(err).status
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	switch {
	// Session errors
	case errors.Is(err, model.ErrSessionNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeSessionNotFound, "Session not found"}}
	case errors.Is(err, model.ErrSessionFull):
		return &httpError{http.StatusConflict, APIError{CodeSessionFull, "Session already has two participants"}}
	case errors.Is(err, model.ErrSessionClosed):
		return &httpError{http.StatusGone, APIError{CodeSessionClosed, "Session is closed"}}
	case errors.Is(err, model.ErrNameTaken):
		return &httpError{http.StatusConflict, APIError{CodeNameTaken, "Display name is already taken"}}
	case errors.Is(err, model.ErrInvalidName):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidName, "Display name is required"}}
	case errors.Is(err, model.ErrNotInSession):
		return &httpError{http.StatusNotFound, APIError{CodeNotInSession, "Not in this session"}}
	case errors.Is(err, model.ErrInvalidAction):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidAction, "Action must be self_drink or make_other_drink"}}
	case errors.Is(err, model.ErrCodeExhausted):
		return &httpError{http.StatusServiceUnavailable, APIError{CodeSessionUnavailable, "No session code available, try again"}}

	// Profile errors
	case errors.Is(err, model.ErrProfileNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeProfileNotFound, "Profile not found"}}
	case errors.Is(err, model.ErrProfileConflict):
		return &httpError{http.StatusConflict, APIError{CodeProfileConflict, "Profile was modified concurrently, try again"}}

	// Auth errors
	case errors.Is(err, auth.ErrInvalidCredentials):
		return &httpError{http.StatusUnauthorized, APIError{CodeInvalidCredentials, "Invalid username or password"}}
	case errors.Is(err, auth.ErrInvalidSession):
		return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Invalid or expired session"}}
	case errors.Is(err, auth.ErrUsernameExists), errors.Is(err, model.ErrProfileExists):
		return &httpError{http.StatusConflict, APIError{CodeUsernameExists, "Username already exists"}}
	case errors.Is(err, auth.ErrMissingFields):
		return &httpError{http.StatusBadRequest, APIError{CodeMissingFields, "Username, password, repeated password and email are required"}}
	case errors.Is(err, auth.ErrPasswordMismatch):
		return &httpError{http.StatusBadRequest, APIError{CodePasswordMismatch, "Passwords do not match"}}

	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Authentication required"}}
}

// NewNotFoundError creates an error for a path no route serves
func NewNotFoundError() error {
	return &httpError{http.StatusNotFound, APIError{CodeNotFound, "Not found"}}
}

// NewMethodNotAllowedError creates an error for a known path requested with the wrong method
func NewMethodNotAllowedError() error {
	return &httpError{http.StatusMethodNotAllowed, APIError{CodeMethodNotAllowed, "Method not allowed"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
