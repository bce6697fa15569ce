package model

import "time"

// ConnectionID identifies one endpoint attached to a session
type ConnectionID string

// SessionCode is a short human-readable identifier for joining sessions
type SessionCode string

// Participant is a connection that has claimed a display name in a session
type Participant struct {
	ConnectionID ConnectionID
	DisplayName  string
	Username     string // empty for anonymous connections
	JoinedAt     time.Time
}
