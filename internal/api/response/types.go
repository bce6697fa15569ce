package response

import (
	"time"

	"github.com/mcoot/poisonedglass/internal/model"
	"github.com/mcoot/poisonedglass/internal/services/auth"
	"github.com/mcoot/poisonedglass/internal/transport/wire"
)

// Profile represents an account in API responses
type Profile struct {
	Username    string    `json:"username"`
	Email       string    `json:"email,omitempty"`
	Score       int       `json:"score"`
	Wins        int       `json:"wins"`
	Losses      int       `json:"losses"`
	WinRate     float64   `json:"win_rate"`
	LastSeen    string    `json:"last_seen"`
	CreatedAt   time.Time `json:"created_at"`
	LastLoginAt time.Time `json:"last_login_at,omitzero"`
}

// ProfileFromModel converts a model.ProfileSummary to a response Profile
func ProfileFromModel(p model.ProfileSummary) Profile {
	return Profile{
		Username:    p.Username,
		Email:       p.Email,
		Score:       p.Score,
		Wins:        p.Wins,
		Losses:      p.Losses,
		WinRate:     p.WinRate,
		LastSeen:    p.LastSeen,
		CreatedAt:   p.CreatedAt,
		LastLoginAt: p.LastLoginAt,
	}
}

// PublicProfile drops the email address for listings
func PublicProfile(p model.ProfileSummary) Profile {
	out := ProfileFromModel(p)
	out.Email = ""
	return out
}

// ProfileList is the response for listing accounts
type ProfileList struct {
	Profiles []Profile `json:"profiles"`
}

// AuthResponse is the response for authentication endpoints
type AuthResponse struct {
	Username     string    `json:"username"`
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	// Profile as it stood before this login
	Profile *Profile `json:"profile,omitempty"`
}

// AuthResponseFromSession creates an AuthResponse from a session
func AuthResponseFromSession(s *auth.Session) AuthResponse {
	return AuthResponse{
		Username:     s.Username,
		SessionToken: s.Token,
		ExpiresAt:    s.ExpiresAt,
	}
}

// AuthResponseFromLogin creates an AuthResponse including the previous visit
func AuthResponseFromLogin(r *auth.LoginResult) AuthResponse {
	resp := AuthResponseFromSession(r.Session)
	profile := ProfileFromModel(r.Profile)
	resp.Profile = &profile
	return resp
}

// SessionList is the response for listing live sessions
type SessionList struct {
	Sessions []string `json:"sessions"`
}

// SessionListFromCodes converts session codes
func SessionListFromCodes(codes []model.SessionCode) SessionList {
	out := SessionList{Sessions: make([]string, 0, len(codes))}
	for _, c := range codes {
		out.Sessions = append(out.Sessions, string(c))
	}
	return out
}

// JoinResponse is the response for joining a session
type JoinResponse struct {
	ConnectionID string           `json:"connection_id"`
	Slot         int              `json:"slot"`
	Changed      bool             `json:"changed"`
	Session      wire.SessionData `json:"session"`
}
