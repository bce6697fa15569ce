// Package wire defines the JSON messages exchanged with clients over the
// websocket and SSE transports.
package wire

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcoot/poisonedglass/internal/model"
)

// MessageType names an envelope's payload
type MessageType string

// Client to authority
const (
	TypeJoin   MessageType = "join"
	TypeAction MessageType = "action"
	TypeLeave  MessageType = "leave"
)

// Authority to client
const (
	TypeWelcome      MessageType = "welcome"
	TypeSnapshot     MessageType = "snapshot"
	TypeRoster       MessageType = "roster"
	TypeSessionReady MessageType = "session_ready"
	TypeSessionReset MessageType = "session_reset"
	TypeRoundStarted MessageType = "round_started"
	TypeTurnResolved MessageType = "turn_resolved"
	TypeRoundEnded   MessageType = "round_ended"
	TypeRoundAborted MessageType = "round_aborted"
	TypeError        MessageType = "error"
)

// Error codes carried in error envelopes
const (
	CodeForbidden      = "forbidden"
	CodeUnknownType    = "unknown_type"
	CodeInvalidMessage = "invalid_message"
	CodeInvalidAction  = "invalid_action"
	CodeInvalidName    = "invalid_name"
	CodeNameTaken      = "name_taken"
	CodeSessionFull    = "session_full"
	CodeSessionClosed  = "session_closed"
	CodeNotJoined      = "not_joined"
	CodeInternal       = "internal_error"
)

// Envelope wraps every message on the wire
type Envelope struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// JoinData asks to be seated under a display name
type JoinData struct {
	DisplayName string `json:"display_name"`
}

// ActionData submits a move
type ActionData struct {
	Action string `json:"action"`
}

// WelcomeData tells a client its connection id
type WelcomeData struct {
	ConnectionID string `json:"connection_id"`
	Session      string `json:"session"`
}

// ErrorData reports a rejected message
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RosterData lists display names in seat order
type RosterData struct {
	Names []string `json:"names"`
}

// RoundStartedData announces the first actor of a round
type RoundStartedData struct {
	Round     int    `json:"round"`
	Actor     string `json:"actor"`
	ActorName string `json:"actor_name"`
}

// TurnResolvedData describes one resolved submission
type TurnResolvedData struct {
	Round     int    `json:"round"`
	Actor     string `json:"actor"`
	ActorName string `json:"actor_name"`
	Action    string `json:"action"`
	Poisoned  bool   `json:"poisoned"`
	Result    string `json:"result"`
	Continues bool   `json:"continues"`
	NextActor string `json:"next_actor,omitempty"`
}

// RoundEndedData announces the winner and loser of a round
type RoundEndedData struct {
	Round      int    `json:"round"`
	Winner     string `json:"winner"`
	Loser      string `json:"loser"`
	WinnerName string `json:"winner_name"`
	LoserName  string `json:"loser_name"`
	IsDraw     bool   `json:"is_draw"`
	Forfeit    bool   `json:"forfeit,omitempty"`
}

// RoundAbortedData announces a round cut short by a departure
type RoundAbortedData struct {
	Round  int    `json:"round"`
	Leaver string `json:"leaver"`
	Reason string `json:"reason"`
}

// ParticipantData is one seated participant
type ParticipantData struct {
	ConnectionID string    `json:"connection_id"`
	DisplayName  string    `json:"display_name"`
	Username     string    `json:"username,omitempty"`
	JoinedAt     time.Time `json:"joined_at"`
}

// OutcomeData is the last resolved submission of a session
type OutcomeData struct {
	Actor     string `json:"actor"`
	Action    string `json:"action"`
	Poisoned  bool   `json:"poisoned"`
	Result    string `json:"result"`
	Continues bool   `json:"continues"`
	Loser     string `json:"loser,omitempty"`
	Winner    string `json:"winner,omitempty"`
	IsDraw    bool   `json:"is_draw"`
}

// SessionData is a snapshot of a session
type SessionData struct {
	Code         string            `json:"code"`
	Participants []ParticipantData `json:"participants"`
	Ready        bool              `json:"ready"`
	Stage        string            `json:"stage"`
	Round        int               `json:"round"`
	TurnStage    string            `json:"turn_stage"`
	Actor        string            `json:"actor,omitempty"`
	ActorName    string            `json:"actor_name,omitempty"`
	LastOutcome  *OutcomeData      `json:"last_outcome,omitempty"`
}

// NewEnvelope marshals data into an envelope of the given type
func NewEnvelope(t MessageType, data any, ts time.Time) (Envelope, error) {
	env := Envelope{Type: t, Timestamp: ts}
	if data == nil {
		return env, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s: %w", t, err)
	}
	env.Data = raw
	return env, nil
}

// Decode unmarshals an envelope's data into v
func (e Envelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s: missing data", e.Type)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%s: %w", e.Type, err)
	}
	return nil
}

// FromEvent converts a session event into its wire envelope
func FromEvent(event model.Event) (Envelope, error) {
	t, data, err := eventData(event)
	if err != nil {
		return Envelope{}, err
	}
	return NewEnvelope(t, data, event.Timestamp)
}

// EventName returns the message type an event is sent as
func EventName(event model.Event) MessageType {
	t, _, _ := eventData(event)
	return t
}

func eventData(event model.Event) (MessageType, any, error) {
	switch p := event.Payload.(type) {
	case model.RosterPayload:
		t := TypeRoster
		if event.Type == model.EventSessionReady {
			t = TypeSessionReady
		}
		return t, RosterData{Names: nonNil(p.Names)}, nil
	case model.RoundStartedPayload:
		return TypeRoundStarted, RoundStartedData{
			Round:     p.Round,
			Actor:     string(p.Actor),
			ActorName: p.ActorName,
		}, nil
	case model.TurnResolvedPayload:
		return TypeTurnResolved, TurnResolvedData{
			Round:     p.Round,
			Actor:     string(p.Outcome.Actor),
			ActorName: p.ActorName,
			Action:    string(p.Outcome.Action),
			Poisoned:  p.Outcome.Poisoned,
			Result:    string(p.Outcome.Result),
			Continues: p.Outcome.Continues,
			NextActor: string(p.NextActor),
		}, nil
	case model.RoundEndedPayload:
		return TypeRoundEnded, RoundEndedData{
			Round:      p.Round,
			Winner:     string(p.Winner),
			Loser:      string(p.Loser),
			WinnerName: p.WinnerName,
			LoserName:  p.LoserName,
			IsDraw:     p.IsDraw,
			Forfeit:    p.Forfeit,
		}, nil
	case model.RoundAbortedPayload:
		return TypeRoundAborted, RoundAbortedData{Round: p.Round, Leaver: p.Leaver, Reason: p.Reason}, nil
	case nil:
		if event.Type == model.EventSessionReset {
			return TypeSessionReset, struct{}{}, nil
		}
	}
	return "", nil, fmt.Errorf("no wire form for event %s", event.Type)
}

// FromView converts a session snapshot into its wire form
func FromView(v model.SessionView) SessionData {
	data := SessionData{
		Code:         string(v.Code),
		Participants: make([]ParticipantData, 0, len(v.Participants)),
		Ready:        v.Ready,
		Stage:        string(v.Stage),
		Round:        v.Round,
		TurnStage:    string(v.Turn.Stage),
		Actor:        string(v.Turn.Actor),
	}
	for _, p := range v.Participants {
		data.Participants = append(data.Participants, ParticipantData{
			ConnectionID: string(p.ConnectionID),
			DisplayName:  p.DisplayName,
			Username:     p.Username,
			JoinedAt:     p.JoinedAt,
		})
	}
	if v.Turn.Actor != "" {
		data.ActorName = v.DisplayName(v.Turn.Actor)
	}
	if o := v.LastOutcome; o != nil {
		data.LastOutcome = &OutcomeData{
			Actor:     string(o.Actor),
			Action:    string(o.Action),
			Poisoned:  o.Poisoned,
			Result:    string(o.Result),
			Continues: o.Continues,
			Loser:     string(o.LoserID),
			Winner:    string(o.WinnerID),
			IsDraw:    o.IsDraw,
		}
	}
	return data
}

func nonNil(names []string) []string {
	if names == nil {
		return []string{}
	}
	return names
}
