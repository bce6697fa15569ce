package model

import "fmt"

// Action is a move a participant may submit on their turn
type Action string

const (
	ActionSelfDrink      Action = "self_drink"       // actor drinks the glass
	ActionMakeOtherDrink Action = "make_other_drink" // actor hands the glass to the opponent
)

// ParseAction converts a wire string into an Action
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionSelfDrink, ActionMakeOtherDrink:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
	}
}

// TurnStage is the state of the turn coordinator
type TurnStage string

const (
	TurnStageIdle         TurnStage = "idle"
	TurnStageAwaitingTurn TurnStage = "awaiting_turn"
	TurnStageResolving    TurnStage = "resolving"
	TurnStageRoundEnded   TurnStage = "round_ended"
)

// TurnState tracks whose turn it is. Actor and Other are empty while idle.
type TurnState struct {
	Stage TurnStage
	Actor ConnectionID
	Other ConnectionID
}

// ResultKind is what a resolved action did to the round
type ResultKind string

const (
	ResultContinue  ResultKind = "continue"
	ResultSwap      ResultKind = "swap"
	ResultEliminate ResultKind = "eliminate"
)

// OutcomeRecord describes one resolved submission
type OutcomeRecord struct {
	Action    Action
	Actor     ConnectionID
	Poisoned  bool
	Result    ResultKind
	Continues bool
	LoserID   ConnectionID // set only when the round ended
	WinnerID  ConnectionID
	IsDraw    bool
}
