package model

import "errors"

// Common errors used across the application
var (
	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionFull     = errors.New("session is full")
	ErrSessionClosed   = errors.New("session is closed")
	ErrSessionNotReady = errors.New("session is not ready")
	ErrNameTaken       = errors.New("display name is already taken")
	ErrInvalidName     = errors.New("display name is required")
	ErrNotInSession    = errors.New("connection is not in session")
	ErrCodeExhausted   = errors.New("failed to generate unique session code")

	// Turn errors
	ErrInvalidAction            = errors.New("invalid action")
	ErrInsufficientParticipants = errors.New("two distinct participants are required")

	// Profile errors
	ErrProfileNotFound = errors.New("profile not found")
	ErrProfileExists   = errors.New("profile already exists")
	ErrProfileConflict = errors.New("profile was modified concurrently")
)
