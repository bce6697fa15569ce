package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mcoot/poisonedglass/internal/api/response"
	"github.com/mcoot/poisonedglass/internal/transport/wire"
)

// Output handles formatting output based on the configured format
type Output struct {
	w      io.Writer
	format string
}

// NewOutput creates a new Output formatter
func NewOutput(w io.Writer, format string) *Output {
	return &Output{w: w, format: format}
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		_, _ = fmt.Fprintln(o.w, string(data))
	} else {
		_, _ = fmt.Fprintln(o.w, msg)
	}
}

// PrintEnvelope outputs one pushed session message
func (o *Output) PrintEnvelope(env wire.Envelope) {
	if o.format == "json" {
		data, _ := json.Marshal(env)
		_, _ = fmt.Fprintln(o.w, string(data))
		return
	}
	ts := env.Timestamp.Local().Format("15:04:05")
	_, _ = fmt.Fprintf(o.w, "[%s] %s\n", ts, describeEnvelope(env))
}

func (o *Output) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(o.w, format, args...)
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case response.Profile:
		o.printProfile(v)
	case response.AuthResponse:
		o.printAuth(v)
	case response.ProfileList:
		o.printProfileList(v)
	case response.SessionList:
		o.printSessionList(v)
	case wire.SessionData:
		o.printSession(v)
	case response.JoinResponse:
		o.printJoin(v)
	case HealthResult:
		o.printf("Status: %s\n", v.Status)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

func (o *Output) printProfile(p response.Profile) {
	o.printf("Player: %s\n", p.Username)
	if p.Email != "" {
		o.printf("Email: %s\n", p.Email)
	}
	o.printf("Score: %d (%d wins, %d losses, %.0f%% win rate)\n", p.Score, p.Wins, p.Losses, p.WinRate)
	o.printf("Last seen: %s\n", p.LastSeen)
}

func (o *Output) printAuth(a response.AuthResponse) {
	o.printf("Logged in as %s\n", a.Username)
	if a.Profile != nil {
		o.printf("Last seen: %s\n", a.Profile.LastSeen)
	}
	o.printf("Token: %s\n", a.SessionToken)
}

func (o *Output) printProfileList(l response.ProfileList) {
	if len(l.Profiles) == 0 {
		o.printf("No players\n")
		return
	}
	for _, p := range l.Profiles {
		o.printf("  %-20s %5d  %d-%d  %s\n", p.Username, p.Score, p.Wins, p.Losses, p.LastSeen)
	}
}

func (o *Output) printSessionList(l response.SessionList) {
	if len(l.Sessions) == 0 {
		o.printf("No sessions\n")
		return
	}
	for _, code := range l.Sessions {
		o.printf("  %s\n", code)
	}
}

func (o *Output) printSession(s wire.SessionData) {
	o.printf("Session: %s\n", s.Code)
	o.printf("Stage: %s (round %d)\n", s.Stage, s.Round)
	if s.ActorName != "" {
		o.printf("Turn: %s\n", s.ActorName)
	}
	o.printf("Participants (%d/2):\n", len(s.Participants))
	for _, p := range s.Participants {
		marker := ""
		if p.ConnectionID == s.Actor {
			marker = " *"
		}
		o.printf("  - %s%s\n", p.DisplayName, marker)
	}
	if out := s.LastOutcome; out != nil {
		o.printf("Last turn: %s, %s\n", out.Action, out.Result)
	}
}

func (o *Output) printJoin(j response.JoinResponse) {
	if j.Changed {
		o.printf("Joined %s in seat %d\n", j.Session.Code, j.Slot+1)
	} else {
		o.printf("Already seated in %s\n", j.Session.Code)
	}
	o.printSession(j.Session)
}

// describeEnvelope renders a pushed message as one line of text
func describeEnvelope(env wire.Envelope) string {
	switch env.Type {
	case wire.TypeRoster:
		var d wire.RosterData
		if env.Decode(&d) == nil {
			if len(d.Names) == 0 {
				return "roster: (empty)"
			}
			return "roster: " + strings.Join(d.Names, ", ")
		}
	case wire.TypeRoundStarted:
		var d wire.RoundStartedData
		if env.Decode(&d) == nil {
			return fmt.Sprintf("round %d started, %s to act", d.Round, d.ActorName)
		}
	case wire.TypeTurnResolved:
		var d wire.TurnResolvedData
		if env.Decode(&d) == nil {
			glass := "clean"
			if d.Poisoned {
				glass = "poisoned"
			}
			return fmt.Sprintf("%s chose %s, the glass was %s (%s)", d.ActorName, d.Action, glass, d.Result)
		}
	case wire.TypeRoundEnded:
		var d wire.RoundEndedData
		if env.Decode(&d) == nil {
			if d.Forfeit {
				return fmt.Sprintf("round %d ended, %s wins by forfeit", d.Round, d.WinnerName)
			}
			return fmt.Sprintf("round %d ended, %s wins and %s loses", d.Round, d.WinnerName, d.LoserName)
		}
	case wire.TypeRoundAborted:
		var d wire.RoundAbortedData
		if env.Decode(&d) == nil {
			return fmt.Sprintf("round %d aborted: %s", d.Round, d.Reason)
		}
	case wire.TypeSessionReady:
		return "both seats taken"
	case wire.TypeSessionReset:
		return "session reset, waiting for players"
	case wire.TypeError:
		var d wire.ErrorData
		if env.Decode(&d) == nil {
			return fmt.Sprintf("error: %s (%s)", d.Message, d.Code)
		}
	case wire.TypeWelcome:
		var d wire.WelcomeData
		if env.Decode(&d) == nil {
			return fmt.Sprintf("connected to %s as %s", d.Session, d.ConnectionID)
		}
	case wire.TypeSnapshot:
		var d wire.SessionData
		if env.Decode(&d) == nil {
			return fmt.Sprintf("session %s: %s, %d seated", d.Code, d.Stage, len(d.Participants))
		}
	}
	return fmt.Sprintf("%s %s", env.Type, string(env.Data))
}
