package model

// RoundStage is the lifecycle position of the current round
type RoundStage string

const (
	RoundStageWaiting    RoundStage = "waiting"     // fewer than two participants
	RoundStageInProgress RoundStage = "in_progress" // turns are being taken
	RoundStageCooldown   RoundStage = "cooldown"    // round ended, next one pending
)

// SessionView is a point-in-time copy of a session's state
type SessionView struct {
	Code         SessionCode
	Participants []Participant
	Ready        bool
	Turn         TurnState
	Round        int
	Stage        RoundStage
	LastOutcome  *OutcomeRecord
}

// Participant returns the participant with the given connection, or nil
func (v *SessionView) Participant(id ConnectionID) *Participant {
	for i := range v.Participants {
		if v.Participants[i].ConnectionID == id {
			return &v.Participants[i]
		}
	}
	return nil
}

// DisplayName returns the name for a connection, or the raw id if unknown
func (v *SessionView) DisplayName(id ConnectionID) string {
	if p := v.Participant(id); p != nil {
		return p.DisplayName
	}
	return string(id)
}
