package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/poisonedglass/internal/dependencies/clock"
	"github.com/mcoot/poisonedglass/internal/model"
	"github.com/mcoot/poisonedglass/internal/storage"
)

// Errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSession     = errors.New("invalid or expired session")
	ErrUsernameExists     = errors.New("username already exists")
	ErrMissingFields      = errors.New("username, password, repeated password and email are required")
	ErrPasswordMismatch   = errors.New("passwords do not match")
)

// Session represents an authenticated session
type Session struct {
	Token     string
	Username  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// RegisterRequest holds the fields of a new account
type RegisterRequest struct {
	Username       string
	Password       string
	RepeatPassword string
	Email          string
}

// LoginResult is a new session plus the profile as it stood before this login
type LoginResult struct {
	Session *Session
	Profile model.ProfileSummary
}

// Service handles accounts and session management
type Service struct {
	storage storage.Storage
	clock   clock.Clock

	mu       sync.RWMutex
	sessions map[string]*Session

	sessionDuration time.Duration
	bcryptCost      int
}

// Config holds configuration for the auth service
type Config struct {
	SessionDuration time.Duration
	BcryptCost      int
}

// DefaultConfig returns default auth configuration
func DefaultConfig() Config {
	return Config{
		SessionDuration: 24 * time.Hour,
		BcryptCost:      bcrypt.DefaultCost,
	}
}

// New creates a new auth Service
func New(storage storage.Storage, clock clock.Clock, cfg Config) *Service {
	defaults := DefaultConfig()
	if cfg.SessionDuration == 0 {
		cfg.SessionDuration = defaults.SessionDuration
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = defaults.BcryptCost
	}
	return &Service{
		storage:         storage,
		clock:           clock,
		sessions:        make(map[string]*Session),
		sessionDuration: cfg.SessionDuration,
		bcryptCost:      cfg.BcryptCost,
	}
}

// Register creates an account and logs it in
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(req.Email)
	if username == "" || req.Password == "" || req.RepeatPassword == "" || email == "" {
		return nil, ErrMissingFields
	}
	if req.Password != req.RepeatPassword {
		return nil, ErrPasswordMismatch
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, err
	}

	now := s.now()
	profile := &model.Profile{
		Username:     username,
		PasswordHash: string(hash),
		Email:        email,
		CreatedAt:    now,
		LastLoginAt:  now,
	}
	if err := s.storage.CreateProfile(ctx, profile); err != nil {
		if errors.Is(err, model.ErrProfileExists) {
			return nil, ErrUsernameExists
		}
		return nil, err
	}

	return s.createSession(username), nil
}

// Login checks credentials, stamps the login time and creates a session.
// The returned profile describes the previous login.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	profile, err := s.authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	summary := profile.Summarize(now)

	if _, err := s.storage.UpdateProfile(ctx, profile.Username, func(p *model.Profile) error {
		p.LastLoginAt = now
		return nil
	}); err != nil {
		return nil, err
	}

	return &LoginResult{
		Session: s.createSession(profile.Username),
		Profile: summary,
	}, nil
}

// Delete removes an account after checking its credentials, and ends its sessions
func (s *Service) Delete(ctx context.Context, username, password string) error {
	profile, err := s.authenticate(ctx, username, password)
	if err != nil {
		return err
	}
	if err := s.storage.DeleteProfile(ctx, profile.Username); err != nil {
		return err
	}

	s.mu.Lock()
	for token, session := range s.sessions {
		if session.Username == profile.Username {
			delete(s.sessions, token)
		}
	}
	s.mu.Unlock()
	return nil
}

// Profile returns the summary of one account
func (s *Service) Profile(ctx context.Context, username string) (model.ProfileSummary, error) {
	p, err := s.storage.LoadProfile(ctx, username)
	if err != nil {
		return model.ProfileSummary{}, err
	}
	return p.Summarize(s.now()), nil
}

// List returns a summary of every account, ordered by username
func (s *Service) List(ctx context.Context) ([]model.ProfileSummary, error) {
	profiles, err := s.storage.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]model.ProfileSummary, len(profiles))
	for i, p := range profiles {
		out[i] = p.Summarize(now)
	}
	return out, nil
}

// ValidateSession checks if a session token is valid and returns the session
func (s *Service) ValidateSession(token string) (*Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[token]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrInvalidSession
	}

	if s.clock.Now().After(session.ExpiresAt) {
		s.mu.Lock()
		delete(s.sessions, token)
		s.mu.Unlock()
		return nil, ErrInvalidSession
	}

	return session, nil
}

// InvalidateSession removes a session
func (s *Service) InvalidateSession(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// CleanExpiredSessions removes expired sessions (call periodically)
func (s *Service) CleanExpiredSessions() int {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for token, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed
}

func (s *Service) authenticate(ctx context.Context, username, password string) (*model.Profile, error) {
	profile, err := s.storage.LoadProfile(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, model.ErrProfileNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return profile, nil
}

// createSession creates a new session for an account
func (s *Service) createSession(username string) *Session {
	now := s.clock.Now()
	session := &Session{
		Token:     generateID("sess_"),
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionDuration),
	}

	s.mu.Lock()
	s.sessions[session.Token] = session
	s.mu.Unlock()

	return session
}

func (s *Service) now() time.Time {
	return s.clock.Now().UTC()
}

// generateID generates a random ID with a prefix
func generateID(prefix string) string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return prefix + base64.RawURLEncoding.EncodeToString(b)
}
