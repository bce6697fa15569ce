package model

import "time"

// EventType identifies the type of event
type EventType string

const (
	// Roster events
	EventRosterUpdated EventType = "roster_updated"
	EventSessionReady  EventType = "session_ready"
	EventSessionReset  EventType = "session_reset"

	// Round events
	EventRoundStarted EventType = "round_started"
	EventTurnResolved EventType = "turn_resolved"
	EventRoundEnded   EventType = "round_ended"
	EventRoundAborted EventType = "round_aborted"
)

// Event is the base structure for all events
type Event struct {
	Type        EventType
	Timestamp   time.Time
	SessionCode SessionCode
	Payload     any // Type-specific data
}

// RosterPayload carries the full ordered list of display names
type RosterPayload struct {
	Names []string
}

// RoundStartedPayload contains data for round started events
type RoundStartedPayload struct {
	Round     int
	Actor     ConnectionID
	ActorName string
}

// TurnResolvedPayload contains data for turn resolved events
type TurnResolvedPayload struct {
	Round     int
	Outcome   OutcomeRecord
	ActorName string
	NextActor ConnectionID // empty once the round has ended
}

// RoundEndedPayload contains data for round ended events
type RoundEndedPayload struct {
	Round      int
	Winner     ConnectionID
	Loser      ConnectionID
	WinnerName string
	LoserName  string
	// Usernames of the linked profiles, empty for anonymous participants
	WinnerUsername string
	LoserUsername  string
	IsDraw         bool
	Forfeit        bool
}

// RoundAbortedPayload contains data for round aborted events
type RoundAbortedPayload struct {
	Round  int
	Leaver string
	Reason string
}
