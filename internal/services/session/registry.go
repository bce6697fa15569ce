package session

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/mcoot/poisonedglass/internal/dependencies/clock"
	"github.com/mcoot/poisonedglass/internal/dependencies/random"
	"github.com/mcoot/poisonedglass/internal/model"
	"github.com/mcoot/poisonedglass/internal/services/broadcast"
)

const (
	// CodeLength is the length of generated session codes
	CodeLength = 6
	// CodeAlphabet is the characters used in session codes (avoid confusing chars)
	CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	maxCodeAttempts = 100

	sessionRequestTimeout = 5 * time.Second
)

// Registry owns every live session in the process
type Registry struct {
	cfg    GameConfig
	clock  clock.Clock
	random random.Random // session codes
	source random.Source // per-session poison draws
	logger *slog.Logger

	mu        sync.RWMutex
	sessions  map[model.SessionCode]*Session
	listeners []broadcast.Listener
	closed    bool
}

// NewRegistry creates an empty Registry
func NewRegistry(cfg GameConfig, clk clock.Clock, rnd random.Random, source random.Source, logger *slog.Logger) *Registry {
	return &Registry{
		cfg:      cfg,
		clock:    clk,
		random:   rnd,
		source:   source,
		logger:   logger,
		sessions: make(map[model.SessionCode]*Session),
	}
}

// AddListener attaches l to every session created afterwards
func (r *Registry) AddListener(l broadcast.Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

// Create starts a new empty session under a fresh code
func (r *Registry) Create(ctx context.Context) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, model.ErrSessionClosed
	}

	var code model.SessionCode
	for attempt := 0; ; attempt++ {
		if attempt >= maxCodeAttempts {
			return nil, model.ErrCodeExhausted
		}
		code = model.SessionCode(r.random.String(CodeLength, CodeAlphabet))
		if _, exists := r.sessions[code]; code != "" && !exists {
			break
		}
	}

	s := New(Options{
		Code:    code,
		Config:  r.cfg,
		Clock:   r.clock,
		Random:  r.source.Next(),
		Logger:  r.logger,
		OnEmpty: r.removeIfEmpty,
	})
	for _, l := range r.listeners {
		// default listeners live as long as the session
		if _, _, err := s.Subscribe(ctx, l); err != nil {
			s.Close()
			return nil, err
		}
	}
	r.sessions[code] = s

	r.logger.Info("session created", slog.String("session", string(code)))
	return s, nil
}

// Get returns the session for a code
func (r *Registry) Get(code model.SessionCode) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[code]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	return s, nil
}

// Remove closes and forgets a session. Unknown codes are ignored.
func (r *Registry) Remove(code model.SessionCode) {
	r.mu.Lock()
	s, ok := r.sessions[code]
	delete(r.sessions, code)
	r.mu.Unlock()

	if ok {
		s.Close()
		r.logger.Info("session removed", slog.String("session", string(code)))
	}
}

func (r *Registry) removeIfEmpty(code model.SessionCode) {
	s, err := r.Get(code)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sessionRequestTimeout)
	defer cancel()
	if closed, err := s.CloseIfEmpty(ctx); err == nil && closed {
		r.forget(s)
	}
}

// forget drops a stopped session from the map unless the code was reused
func (r *Registry) forget(s *Session) {
	r.mu.Lock()
	current, ok := r.sessions[s.Code()]
	removed := ok && current == s
	if removed {
		delete(r.sessions, s.Code())
	}
	r.mu.Unlock()

	if removed {
		r.logger.Info("session removed", slog.String("session", string(s.Code())))
	}
}

// PruneIdle removes sessions that have had nobody seated since they were
// created at least idleFor ago. It returns how many were removed.
func (r *Registry) PruneIdle(ctx context.Context, idleFor time.Duration) int {
	cutoff := r.clock.Now().Add(-idleFor)

	r.mu.RLock()
	var candidates []*Session
	for _, s := range r.sessions {
		if !s.CreatedAt().After(cutoff) {
			candidates = append(candidates, s)
		}
	}
	r.mu.RUnlock()

	removed := 0
	for _, s := range candidates {
		closed, err := s.CloseIfEmpty(ctx)
		if err != nil || !closed {
			continue
		}
		r.forget(s)
		removed++
	}
	if removed > 0 {
		r.logger.Info("idle sessions pruned", slog.Int("removed", removed))
	}
	return removed
}

// List returns the codes of all live sessions, sorted
func (r *Registry) List() []model.SessionCode {
	r.mu.RLock()
	codes := make([]model.SessionCode, 0, len(r.sessions))
	for code := range r.sessions {
		codes = append(codes, code)
	}
	r.mu.RUnlock()
	slices.Sort(codes)
	return codes
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close stops every session. Later calls to Create fail.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	sessions := r.sessions
	r.sessions = make(map[model.SessionCode]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
