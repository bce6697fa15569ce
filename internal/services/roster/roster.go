// Package roster tracks who is seated in a two-party session.
package roster

import (
	"strings"
	"time"

	"github.com/mcoot/poisonedglass/internal/model"
)

// Capacity is the number of participants a session seats
const Capacity = 2

// JoinResult reports the outcome of a join attempt
type JoinResult struct {
	Accepted bool
	Slot     int  // 0-based seat, valid when Accepted
	Changed  bool // roster contents differ from before the call
}

// Roster holds the participants of one session in seat order.
// It is not safe for concurrent use; the owning session serializes access.
type Roster struct {
	participants []model.Participant
}

// New creates an empty Roster
func New() *Roster {
	return &Roster{participants: make([]model.Participant, 0, Capacity)}
}

// Join seats connectionID under displayName, or updates the name of an
// already seated connection. Once the roster is ready a seated connection
// keeps its name and the call is accepted without change.
func (r *Roster) Join(connectionID model.ConnectionID, displayName, username string, now time.Time) (JoinResult, error) {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return JoinResult{}, model.ErrInvalidName
	}

	slot := r.slotOf(connectionID)
	if slot >= 0 && r.IsReady() {
		return JoinResult{Accepted: true, Slot: slot}, nil
	}

	for i, p := range r.participants {
		if i != slot && p.DisplayName == name {
			return JoinResult{}, model.ErrNameTaken
		}
	}

	if slot >= 0 {
		p := &r.participants[slot]
		if p.DisplayName == name {
			return JoinResult{Accepted: true, Slot: slot}, nil
		}
		p.DisplayName = name
		return JoinResult{Accepted: true, Slot: slot, Changed: true}, nil
	}

	if len(r.participants) >= Capacity {
		return JoinResult{}, model.ErrSessionFull
	}

	r.participants = append(r.participants, model.Participant{
		ConnectionID: connectionID,
		DisplayName:  name,
		Username:     username,
		JoinedAt:     now,
	})
	return JoinResult{Accepted: true, Slot: len(r.participants) - 1, Changed: true}, nil
}

// Leave removes a participant, returning it if it was seated
func (r *Roster) Leave(connectionID model.ConnectionID) (model.Participant, bool) {
	slot := r.slotOf(connectionID)
	if slot < 0 {
		return model.Participant{}, false
	}
	p := r.participants[slot]
	r.participants = append(r.participants[:slot], r.participants[slot+1:]...)
	return p, true
}

// IsReady reports whether exactly two distinct participants are seated
func (r *Roster) IsReady() bool {
	return len(r.participants) == Capacity
}

// Len returns the number of seated participants
func (r *Roster) Len() int {
	return len(r.participants)
}

// Names returns display names in seat order
func (r *Roster) Names() []string {
	names := make([]string, len(r.participants))
	for i, p := range r.participants {
		names[i] = p.DisplayName
	}
	return names
}

// Pair returns both seated connections in seat order, if ready
func (r *Roster) Pair() ([2]model.ConnectionID, bool) {
	if !r.IsReady() {
		return [2]model.ConnectionID{}, false
	}
	return [2]model.ConnectionID{r.participants[0].ConnectionID, r.participants[1].ConnectionID}, true
}

// Get returns the participant for a connection
func (r *Roster) Get(connectionID model.ConnectionID) (model.Participant, bool) {
	slot := r.slotOf(connectionID)
	if slot < 0 {
		return model.Participant{}, false
	}
	return r.participants[slot], true
}

// Participants returns a copy of the seated participants
func (r *Roster) Participants() []model.Participant {
	out := make([]model.Participant, len(r.participants))
	copy(out, r.participants)
	return out
}

func (r *Roster) slotOf(connectionID model.ConnectionID) int {
	for i, p := range r.participants {
		if p.ConnectionID == connectionID {
			return i
		}
	}
	return -1
}
