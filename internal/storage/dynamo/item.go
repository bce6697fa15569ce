package dynamo

import (
	"fmt"
	"time"

	"github.com/mcoot/poisonedglass/internal/model"
)

const (
	profileItemType = "Profile"
	profileSortKey  = "PROFILE"
)

// profileItem is the stored shape of a profile
type profileItem struct {
	PK           string
	SK           string
	Type         string
	Username     string
	PasswordHash string
	Email        string
	Score        int
	Wins         int
	Losses       int
	CreatedAt    time.Time
	LastLoginAt  time.Time
	// Version is bumped on every write and guards UpdateProfile
	Version int
}

func profilePK(username string) string {
	return fmt.Sprintf("PROFILE#%s", username)
}

func itemFromProfile(p *model.Profile, version int) *profileItem {
	return &profileItem{
		PK:           profilePK(p.Username),
		SK:           profileSortKey,
		Type:         profileItemType,
		Username:     p.Username,
		PasswordHash: p.PasswordHash,
		Email:        p.Email,
		Score:        p.Score,
		Wins:         p.Wins,
		Losses:       p.Losses,
		CreatedAt:    p.CreatedAt.UTC(),
		LastLoginAt:  p.LastLoginAt.UTC(),
		Version:      version,
	}
}

func (i *profileItem) profile() *model.Profile {
	return &model.Profile{
		Username:     i.Username,
		PasswordHash: i.PasswordHash,
		Email:        i.Email,
		Score:        i.Score,
		Wins:         i.Wins,
		Losses:       i.Losses,
		CreatedAt:    i.CreatedAt,
		LastLoginAt:  i.LastLoginAt,
	}
}
