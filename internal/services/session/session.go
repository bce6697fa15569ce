// Package session runs each two-party session on its own goroutine and keeps
// a process-wide registry of live sessions.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/poisonedglass/internal/dependencies/clock"
	"github.com/mcoot/poisonedglass/internal/dependencies/random"
	"github.com/mcoot/poisonedglass/internal/model"
	"github.com/mcoot/poisonedglass/internal/services/broadcast"
	"github.com/mcoot/poisonedglass/internal/services/resolver"
	"github.com/mcoot/poisonedglass/internal/services/roster"
	"github.com/mcoot/poisonedglass/internal/services/round"
	"github.com/mcoot/poisonedglass/internal/services/turn"
)

const inboxSize = 64

// Session is the single authority for one game. Every request is processed
// in arrival order on the session goroutine.
type Session struct {
	code      model.SessionCode
	createdAt time.Time
	cfg       GameConfig
	clock     clock.Clock
	logger    *slog.Logger

	roster      *roster.Roster
	coordinator *turn.Coordinator
	lifecycle   *round.Lifecycle
	broadcaster *broadcast.Broadcaster

	// onEmpty is called, off the session goroutine, when the last
	// participant leaves
	onEmpty func(model.SessionCode)

	inbox     chan msg
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// Options holds the dependencies of a Session
type Options struct {
	Code    model.SessionCode
	Config  GameConfig
	Clock   clock.Clock
	Random  random.Random
	Logger  *slog.Logger
	OnEmpty func(model.SessionCode)
}

// New creates a Session and starts its goroutine
func New(opts Options) *Session {
	logger := opts.Logger.With(slog.String("session", string(opts.Code)))
	s := &Session{
		code:        opts.Code,
		createdAt:   opts.Clock.Now(),
		cfg:         opts.Config,
		clock:       opts.Clock,
		logger:      logger,
		roster:      roster.New(),
		coordinator: turn.NewCoordinator(resolver.New(opts.Random, opts.Config.PoisonProbability)),
		broadcaster: broadcast.New(opts.Code, opts.Clock, opts.Logger),
		onEmpty:     opts.OnEmpty,
		inbox:       make(chan msg, inboxSize),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	s.lifecycle = round.New(round.Config{
		Seats:       s.roster,
		Coordinator: s.coordinator,
		Broadcaster: s.broadcaster,
		Clock:       opts.Clock,
		Dispatch:    s.dispatch,
		Cooldown:    opts.Config.Cooldown,
		Logger:      logger,
	})

	go s.loop()
	return s
}

// Code returns the session code
func (s *Session) Code() model.SessionCode {
	return s.code
}

// CreatedAt returns when the session was started
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// Done is closed once the session goroutine has exited
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Join seats a connection under a display name. A third distinct connection
// is refused with model.ErrSessionFull.
func (s *Session) Join(ctx context.Context, connectionID model.ConnectionID, displayName, username string) (roster.JoinResult, error) {
	reply := make(chan joinReply, 1)
	m := joinMsg{connectionID: connectionID, displayName: displayName, username: username, reply: reply}
	r, err := request(ctx, s, m, reply)
	if err != nil {
		return roster.JoinResult{}, err
	}
	return r.result, r.err
}

// Leave removes a connection. It returns false if it was not seated.
func (s *Session) Leave(ctx context.Context, connectionID model.ConnectionID, reason string) (bool, error) {
	reply := make(chan bool, 1)
	return request(ctx, s, leaveMsg{connectionID: connectionID, reason: reason, reply: reply}, reply)
}

// Submit offers an action on behalf of a connection. Out-of-turn submissions
// are dropped: the result is not accepted and no event is emitted.
func (s *Session) Submit(ctx context.Context, connectionID model.ConnectionID, action model.Action) (SubmitResult, error) {
	reply := make(chan SubmitResult, 1)
	return request(ctx, s, submitMsg{connectionID: connectionID, action: action, reply: reply}, reply)
}

// Snapshot returns a copy of the session state
func (s *Session) Snapshot(ctx context.Context) (model.SessionView, error) {
	reply := make(chan model.SessionView, 1)
	return request(ctx, s, snapshotMsg{reply: reply}, reply)
}

// Subscribe registers a listener and returns the state it starts from.
// No event is missed or duplicated between the snapshot and the first
// delivered event.
func (s *Session) Subscribe(ctx context.Context, l broadcast.Listener) (model.SessionView, func(), error) {
	reply := make(chan subscribeReply, 1)
	r, err := request(ctx, s, subscribeMsg{listener: l, reply: reply}, reply)
	if err != nil {
		return model.SessionView{}, nil, err
	}
	return r.view, r.unsubscribe, nil
}

// CloseIfEmpty stops the session if nobody is seated and reports whether it
// is stopped. The check and the stop happen in one step, so a join queued
// behind it gets model.ErrSessionClosed rather than a seat in a dead session.
func (s *Session) CloseIfEmpty(ctx context.Context) (bool, error) {
	reply := make(chan bool, 1)
	closed, err := request(ctx, s, closeIfEmptyMsg{reply: reply}, reply)
	if errors.Is(err, model.ErrSessionClosed) {
		return true, nil
	}
	return closed, err
}

// Close stops the session goroutine and waits for it to exit
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.stop) })
	<-s.done
}

func request[T any](ctx context.Context, s *Session, m msg, reply chan T) (T, error) {
	var zero T
	select {
	case s.inbox <- m:
	case <-s.done:
		return zero, model.ErrSessionClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	select {
	case r := <-reply:
		return r, nil
	case <-s.done:
		return zero, model.ErrSessionClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// dispatch queues fn to run on the session goroutine. It is used by timer
// callbacks and must not be called from the session goroutine itself.
func (s *Session) dispatch(fn func()) {
	select {
	case s.inbox <- timerMsg{fn: fn}:
	case <-s.done:
	}
}

func (s *Session) loop() {
	defer close(s.done)
	s.logger.Info("session started")
	for {
		select {
		case <-s.stop:
			s.lifecycle.Cancel()
			s.logger.Info("session stopped")
			return

		case m := <-s.inbox:
			if stop := s.handle(m); stop {
				s.lifecycle.Cancel()
				s.logger.Info("session stopped", slog.String("reason", "empty"))
				return
			}
		}
	}
}

// handle processes one message and reports whether the session should stop
func (s *Session) handle(m msg) bool {
	switch m := m.(type) {
	case joinMsg:
		result, err := s.join(m)
		m.reply <- joinReply{result: result, err: err}

	case leaveMsg:
		m.reply <- s.leave(m.connectionID, m.reason)

	case submitMsg:
		outcome, ok := s.lifecycle.Submit(m.connectionID, m.action)
		if !ok {
			s.logger.Debug("submission dropped",
				slog.String("connection_id", string(m.connectionID)),
				slog.String("action", string(m.action)))
		}
		m.reply <- SubmitResult{Accepted: ok, Outcome: outcome}

	case snapshotMsg:
		m.reply <- s.view()

	case subscribeMsg:
		m.reply <- subscribeReply{
			view:        s.view(),
			unsubscribe: s.broadcaster.Subscribe(m.listener),
		}

	case closeIfEmptyMsg:
		empty := s.roster.Len() == 0
		m.reply <- empty
		return empty

	case timerMsg:
		m.fn()
	}
	return false
}

func (s *Session) join(m joinMsg) (roster.JoinResult, error) {
	result, err := s.roster.Join(m.connectionID, m.displayName, m.username, s.clock.Now())
	if err != nil {
		s.logger.Info("join refused",
			slog.String("connection_id", string(m.connectionID)),
			slog.String("display_name", m.displayName),
			slog.Any("error", err))
		return result, err
	}
	if !result.Changed {
		return result, nil
	}

	s.logger.Info("participant joined",
		slog.String("connection_id", string(m.connectionID)),
		slog.String("display_name", m.displayName),
		slog.Int("slot", result.Slot))

	names := s.roster.Names()
	s.broadcaster.AnnounceRoster(names)

	if s.roster.IsReady() && s.lifecycle.Stage() == model.RoundStageWaiting {
		s.broadcaster.AnnounceReady(names)
		if err := s.lifecycle.StartRound(); err != nil {
			s.logger.Error("failed to start round", slog.Any("error", err))
		}
	}
	return result, nil
}

func (s *Session) leave(connectionID model.ConnectionID, reason string) bool {
	p, ok := s.roster.Get(connectionID)
	if !ok {
		return false
	}
	wasReady := s.roster.IsReady()

	s.lifecycle.Interrupt(p, reason, s.cfg.ForfeitOnLeave)
	s.roster.Leave(connectionID)

	s.logger.Info("participant left",
		slog.String("connection_id", string(connectionID)),
		slog.String("display_name", p.DisplayName),
		slog.String("reason", reason))

	if wasReady {
		s.broadcaster.AnnounceReset()
	}
	s.broadcaster.AnnounceRoster(s.roster.Names())

	if s.roster.Len() == 0 && s.onEmpty != nil {
		go s.onEmpty(s.code)
	}
	return true
}

func (s *Session) view() model.SessionView {
	return model.SessionView{
		Code:         s.code,
		Participants: s.roster.Participants(),
		Ready:        s.roster.IsReady(),
		Turn:         s.coordinator.State(),
		Round:        s.lifecycle.Round(),
		Stage:        s.lifecycle.Stage(),
		LastOutcome:  s.lifecycle.LastOutcome(),
	}
}
