// Package turn enforces whose turn it is in a two-party round.
package turn

import (
	"github.com/mcoot/poisonedglass/internal/model"
	"github.com/mcoot/poisonedglass/internal/services/resolver"
)

// Resolver evaluates a submitted action
type Resolver interface {
	Resolve(action model.Action) (resolver.Decision, bool)
}

// Coordinator is the turn state machine for one session.
// It is not safe for concurrent use; the owning session serializes access.
type Coordinator struct {
	resolver Resolver
	state    model.TurnState
}

// NewCoordinator creates an idle Coordinator
func NewCoordinator(r Resolver) *Coordinator {
	return &Coordinator{
		resolver: r,
		state:    model.TurnState{Stage: model.TurnStageIdle},
	}
}

// State returns the current turn state
func (c *Coordinator) State() model.TurnState {
	return c.state
}

// Initialize starts turn-taking with pair[0] as the first actor
func (c *Coordinator) Initialize(pair [2]model.ConnectionID) error {
	if pair[0] == "" || pair[1] == "" || pair[0] == pair[1] {
		return model.ErrInsufficientParticipants
	}
	c.state = model.TurnState{
		Stage: model.TurnStageAwaitingTurn,
		Actor: pair[0],
		Other: pair[1],
	}
	return nil
}

// Submit processes an action from connectionID. It returns false, with no
// state change, unless the coordinator is awaiting a turn from that actor.
func (c *Coordinator) Submit(connectionID model.ConnectionID, action model.Action) (model.OutcomeRecord, bool) {
	if c.state.Stage != model.TurnStageAwaitingTurn || connectionID != c.state.Actor {
		return model.OutcomeRecord{}, false
	}
	if action != model.ActionSelfDrink && action != model.ActionMakeOtherDrink {
		return model.OutcomeRecord{}, false
	}

	c.state.Stage = model.TurnStageResolving
	decision, poisoned := c.resolver.Resolve(action)

	outcome := model.OutcomeRecord{
		Action:    action,
		Actor:     c.state.Actor,
		Poisoned:  poisoned,
		Result:    decision.Result,
		Continues: decision.Result != model.ResultEliminate,
	}

	switch decision.Result {
	case model.ResultContinue:
		c.state.Stage = model.TurnStageAwaitingTurn
	case model.ResultSwap:
		c.state.Actor, c.state.Other = c.state.Other, c.state.Actor
		c.state.Stage = model.TurnStageAwaitingTurn
	case model.ResultEliminate:
		if decision.Eliminated == resolver.RoleActor {
			outcome.LoserID, outcome.WinnerID = c.state.Actor, c.state.Other
		} else {
			outcome.LoserID, outcome.WinnerID = c.state.Other, c.state.Actor
		}
		c.state.Stage = model.TurnStageRoundEnded
	}

	return outcome, true
}

// NextRound re-enters turn-taking after a round ended, keeping the current
// actor and other. It returns false outside round_ended.
func (c *Coordinator) NextRound() bool {
	if c.state.Stage != model.TurnStageRoundEnded {
		return false
	}
	c.state.Stage = model.TurnStageAwaitingTurn
	return true
}

// Reset returns to idle and forgets both participants
func (c *Coordinator) Reset() {
	c.state = model.TurnState{Stage: model.TurnStageIdle}
}
