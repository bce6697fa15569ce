package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/mcoot/poisonedglass/internal/model"
	"github.com/mcoot/poisonedglass/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu       sync.RWMutex
	profiles map[string]model.Profile
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		profiles: make(map[string]model.Profile),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func (s *Storage) CreateProfile(ctx context.Context, profile *model.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[profile.Username]; ok {
		return model.ErrProfileExists
	}
	s.profiles[profile.Username] = *profile
	return nil
}

func (s *Storage) SaveProfile(ctx context.Context, profile *model.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.Username] = *profile
	return nil
}

func (s *Storage) LoadProfile(ctx context.Context, username string) (*model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[username]
	if !ok {
		return nil, model.ErrProfileNotFound
	}
	return &p, nil
}

func (s *Storage) UpdateProfile(ctx context.Context, username string, fn storage.UpdateFunc) (*model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[username]
	if !ok {
		return nil, model.ErrProfileNotFound
	}
	if err := fn(&p); err != nil {
		return nil, err
	}
	s.profiles[username] = p
	return &p, nil
}

func (s *Storage) ProfileExists(ctx context.Context, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.profiles[username]
	return ok, nil
}

func (s *Storage) DeleteProfile(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, username)
	return nil
}

func (s *Storage) ListProfiles(ctx context.Context) ([]*model.Profile, error) {
	s.mu.RLock()
	out := make([]*model.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, &p)
	}
	s.mu.RUnlock()
	slices.SortFunc(out, func(a, b *model.Profile) int {
		return strings.Compare(a.Username, b.Username)
	})
	return out, nil
}
