// Package resolver decides what a submitted action does to the round.
package resolver

import (
	"github.com/mcoot/poisonedglass/internal/dependencies/random"
	"github.com/mcoot/poisonedglass/internal/model"
)

// DefaultPoisonProbability is the chance that any single glass is poisoned
const DefaultPoisonProbability = 0.25

// Role names one side of the current turn
type Role string

const (
	RoleActor Role = "actor"
	RoleOther Role = "other"
)

// Decision is the resolved effect of an action
type Decision struct {
	Result     model.ResultKind
	Eliminated Role // set only for ResultEliminate
}

// Decide maps an action and poison draw to its effect. It is pure.
func Decide(action model.Action, poisoned bool) Decision {
	switch {
	case action == model.ActionSelfDrink && poisoned:
		return Decision{Result: model.ResultEliminate, Eliminated: RoleActor}
	case action == model.ActionSelfDrink:
		return Decision{Result: model.ResultContinue}
	case poisoned:
		return Decision{Result: model.ResultEliminate, Eliminated: RoleOther}
	default:
		return Decision{Result: model.ResultSwap}
	}
}

// Resolver draws the poison for each submission and applies Decide
type Resolver struct {
	random      random.Random
	probability float64
}

// New creates a Resolver. Probabilities outside [0, 1] are clamped.
func New(rnd random.Random, probability float64) *Resolver {
	return &Resolver{
		random:      rnd,
		probability: min(max(probability, 0), 1),
	}
}

// Probability returns the configured poison probability
func (r *Resolver) Probability() float64 {
	return r.probability
}

// Draw reports whether the next glass is poisoned
func (r *Resolver) Draw() bool {
	return r.random.Float64() < r.probability
}

// Resolve draws once and decides the effect of action
func (r *Resolver) Resolve(action model.Action) (Decision, bool) {
	poisoned := r.Draw()
	return Decide(action, poisoned), poisoned
}
