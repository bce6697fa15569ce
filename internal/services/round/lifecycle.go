// Package round drives rounds from start through cooldown to the next start.
package round

import (
	"log/slog"
	"time"

	"github.com/coder/quartz"

	"github.com/mcoot/poisonedglass/internal/dependencies/clock"
	"github.com/mcoot/poisonedglass/internal/model"
	"github.com/mcoot/poisonedglass/internal/services/broadcast"
	"github.com/mcoot/poisonedglass/internal/services/turn"
)

// DefaultCooldown is the pause between a round ending and the next starting
const DefaultCooldown = 3 * time.Second

// Seats looks up the participants of the session
type Seats interface {
	Pair() ([2]model.ConnectionID, bool)
	Get(connectionID model.ConnectionID) (model.Participant, bool)
}

// Dispatcher runs fn on the goroutine that owns the lifecycle
type Dispatcher func(fn func())

// Lifecycle sequences rounds for one session.
// Apart from timer callbacks, which go through the Dispatcher, it is only
// touched from the owning session's goroutine.
type Lifecycle struct {
	seats       Seats
	coordinator *turn.Coordinator
	broadcaster *broadcast.Broadcaster
	clock       clock.Clock
	dispatch    Dispatcher
	cooldown    time.Duration
	logger      *slog.Logger

	stage       model.RoundStage
	round       int
	generation  uint64
	timer       *quartz.Timer
	lastOutcome *model.OutcomeRecord
}

// Config holds the collaborators of a Lifecycle
type Config struct {
	Seats       Seats
	Coordinator *turn.Coordinator
	Broadcaster *broadcast.Broadcaster
	Clock       clock.Clock
	Dispatch    Dispatcher
	Cooldown    time.Duration
	Logger      *slog.Logger
}

// New creates a Lifecycle waiting for its first round
func New(cfg Config) *Lifecycle {
	return &Lifecycle{
		seats:       cfg.Seats,
		coordinator: cfg.Coordinator,
		broadcaster: cfg.Broadcaster,
		clock:       cfg.Clock,
		dispatch:    cfg.Dispatch,
		cooldown:    cfg.Cooldown,
		logger:      cfg.Logger,
		stage:       model.RoundStageWaiting,
	}
}

// Stage returns the current round stage
func (l *Lifecycle) Stage() model.RoundStage {
	return l.stage
}

// Round returns the number of the current or most recent round
func (l *Lifecycle) Round() int {
	return l.round
}

// LastOutcome returns the most recent resolved submission, if any
func (l *Lifecycle) LastOutcome() *model.OutcomeRecord {
	if l.lastOutcome == nil {
		return nil
	}
	out := *l.lastOutcome
	return &out
}

// StartRound begins a round with the seated pair. The first seat acts first.
func (l *Lifecycle) StartRound() error {
	if l.stage != model.RoundStageWaiting {
		return nil
	}
	pair, ok := l.seats.Pair()
	if !ok {
		return model.ErrSessionNotReady
	}
	if err := l.coordinator.Initialize(pair); err != nil {
		return err
	}
	l.lastOutcome = nil
	l.begin()
	return nil
}

func (l *Lifecycle) begin() {
	l.round++
	l.stage = model.RoundStageInProgress
	actor := l.coordinator.State().Actor
	l.logger.Info("round started",
		slog.Int("round", l.round),
		slog.String("actor", string(actor)))
	l.broadcaster.AnnounceRoundStarted(model.RoundStartedPayload{
		Round:     l.round,
		Actor:     actor,
		ActorName: l.name(actor),
	})
}

// Submit forwards an action to the turn coordinator. Submissions outside an
// in-progress round, or from the wrong participant, are dropped.
func (l *Lifecycle) Submit(connectionID model.ConnectionID, action model.Action) (model.OutcomeRecord, bool) {
	if l.stage != model.RoundStageInProgress {
		return model.OutcomeRecord{}, false
	}
	outcome, ok := l.coordinator.Submit(connectionID, action)
	if !ok {
		return model.OutcomeRecord{}, false
	}
	l.lastOutcome = &outcome

	resolved := model.TurnResolvedPayload{
		Round:     l.round,
		Outcome:   outcome,
		ActorName: l.name(outcome.Actor),
	}
	if outcome.Continues {
		resolved.NextActor = l.coordinator.State().Actor
	}
	l.broadcaster.AnnounceTurnResolved(resolved)

	if !outcome.Continues {
		l.end(outcome.WinnerID, outcome.LoserID, false)
	}
	return outcome, true
}

func (l *Lifecycle) end(winner, loser model.ConnectionID, forfeit bool) {
	w, _ := l.seats.Get(winner)
	lo, _ := l.seats.Get(loser)
	l.logger.Info("round ended",
		slog.Int("round", l.round),
		slog.String("winner", w.DisplayName),
		slog.String("loser", lo.DisplayName),
		slog.Bool("forfeit", forfeit))
	l.broadcaster.AnnounceRoundEnded(model.RoundEndedPayload{
		Round:          l.round,
		Winner:         winner,
		Loser:          loser,
		WinnerName:     w.DisplayName,
		LoserName:      lo.DisplayName,
		WinnerUsername: w.Username,
		LoserUsername:  lo.Username,
		IsDraw:         false,
		Forfeit:        forfeit,
	})
	if forfeit {
		return
	}
	l.stage = model.RoundStageCooldown
	l.armCooldown()
}

func (l *Lifecycle) armCooldown() {
	l.stopTimer()
	gen := l.generation
	l.timer = l.clock.AfterFunc(l.cooldown, func() {
		l.dispatch(func() { l.cooldownExpired(gen) })
	}, "round", "cooldown")
}

func (l *Lifecycle) cooldownExpired(gen uint64) {
	if gen != l.generation || l.stage != model.RoundStageCooldown {
		return
	}
	l.timer = nil
	if !l.coordinator.NextRound() {
		return
	}
	l.begin()
}

// Interrupt handles a participant leaving. An in-progress round is aborted,
// or forfeited to the remaining participant when forfeit is set. Any pending
// cooldown is cancelled and the lifecycle waits for a new pair.
func (l *Lifecycle) Interrupt(leaver model.Participant, reason string, forfeit bool) {
	inProgress := l.stage == model.RoundStageInProgress
	state := l.coordinator.State()

	l.Cancel()

	if inProgress {
		if forfeit {
			winner := state.Actor
			if winner == leaver.ConnectionID {
				winner = state.Other
			}
			l.end(winner, leaver.ConnectionID, true)
		} else {
			l.logger.Info("round aborted",
				slog.Int("round", l.round),
				slog.String("leaver", leaver.DisplayName),
				slog.String("reason", reason))
			l.broadcaster.AnnounceRoundAborted(model.RoundAbortedPayload{
				Round:  l.round,
				Leaver: leaver.DisplayName,
				Reason: reason,
			})
		}
	}

	l.coordinator.Reset()
	l.stage = model.RoundStageWaiting
}

// Cancel stops any pending cooldown. A timer that already fired is ignored.
func (l *Lifecycle) Cancel() {
	l.generation++
	l.stopTimer()
}

func (l *Lifecycle) stopTimer() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}

func (l *Lifecycle) name(id model.ConnectionID) string {
	if p, ok := l.seats.Get(id); ok {
		return p.DisplayName
	}
	return string(id)
}
