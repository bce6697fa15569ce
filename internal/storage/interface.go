package storage

import (
	"context"

	"github.com/mcoot/poisonedglass/internal/model"
)

// UpdateFunc mutates a loaded profile in place. Returning an error aborts
// the update without saving.
type UpdateFunc func(p *model.Profile) error

// Storage defines the interface for profile persistence
type Storage interface {
	// CreateProfile saves a new profile, failing with model.ErrProfileExists
	// if the username is taken
	CreateProfile(ctx context.Context, profile *model.Profile) error

	// SaveProfile writes a profile unconditionally
	SaveProfile(ctx context.Context, profile *model.Profile) error

	// LoadProfile returns model.ErrProfileNotFound for unknown usernames
	LoadProfile(ctx context.Context, username string) (*model.Profile, error)

	// UpdateProfile applies fn to the stored profile atomically with respect
	// to other updates of the same username
	UpdateProfile(ctx context.Context, username string, fn UpdateFunc) (*model.Profile, error)

	ProfileExists(ctx context.Context, username string) (bool, error)
	DeleteProfile(ctx context.Context, username string) error

	// ListProfiles returns every profile ordered by username
	ListProfiles(ctx context.Context) ([]*model.Profile, error)
}
