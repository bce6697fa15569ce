package session

import (
	"time"

	"github.com/mcoot/poisonedglass/internal/services/resolver"
	"github.com/mcoot/poisonedglass/internal/services/round"
)

// GameConfig holds the rules applied to every session
type GameConfig struct {
	// PoisonProbability is the chance that any single glass is poisoned
	PoisonProbability float64
	// Cooldown is the pause between a round ending and the next starting
	Cooldown time.Duration
	// ForfeitOnLeave awards an in-progress round to the remaining participant
	// instead of aborting it when the other leaves
	ForfeitOnLeave bool
	// Seed makes every session's poison draws reproducible; 0 seeds from entropy
	Seed int64
}

// DefaultGameConfig returns the standard rules
func DefaultGameConfig() GameConfig {
	return GameConfig{
		PoisonProbability: resolver.DefaultPoisonProbability,
		Cooldown:          round.DefaultCooldown,
	}
}
