package session

import (
	"context"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/poisonedglass/internal/dependencies/mocks"
	"github.com/mcoot/poisonedglass/internal/model"
	"github.com/mcoot/poisonedglass/internal/services/broadcast"
	"github.com/mcoot/poisonedglass/internal/testutil"
)

type SessionSuite struct {
	suite.Suite
	clock    *quartz.Mock
	random   *mocks.MockRandom
	session  *Session
	recorder *broadcast.Recorder
	ctx      context.Context
}

func TestSessionSuite(t *testing.T) {
	suite.Run(t, new(SessionSuite))
}

func (s *SessionSuite) SetupTest() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	s.T().Cleanup(cancel)
	s.ctx = ctx

	s.clock = quartz.NewMock(s.T())
	s.random = mocks.NewMockRandom()
	s.session = s.newSession(DefaultGameConfig())
}

func (s *SessionSuite) TearDownTest() {
	s.session.Close()
}

func (s *SessionSuite) newSession(cfg GameConfig) *Session {
	sess := New(Options{
		Code:   "GAME01",
		Config: cfg,
		Clock:  s.clock,
		Random: s.random,
		Logger: testutil.NopLogger(),
	})
	s.recorder = broadcast.NewRecorder()
	_, _, err := sess.Subscribe(s.ctx, s.recorder)
	s.Require().NoError(err)
	return sess
}

func (s *SessionSuite) seatBoth() {
	_, err := s.session.Join(s.ctx, "p1", "Alice", "alice")
	s.Require().NoError(err)
	_, err = s.session.Join(s.ctx, "p2", "Bob", "bob")
	s.Require().NoError(err)
}

func (s *SessionSuite) snapshot() model.SessionView {
	view, err := s.session.Snapshot(s.ctx)
	s.Require().NoError(err)
	return view
}

func (s *SessionSuite) TestJoinAndStart() {
	s.seatBoth()

	rosters := s.recorder.OfType(model.EventRosterUpdated)
	s.Require().Len(rosters, 2)
	s.Equal([]string{"Alice", "Bob"}, rosters[1].Payload.(model.RosterPayload).Names)

	s.Len(s.recorder.OfType(model.EventSessionReady), 1)
	started := s.recorder.OfType(model.EventRoundStarted)
	s.Require().Len(started, 1)
	s.Equal(model.ConnectionID("p1"), started[0].Payload.(model.RoundStartedPayload).Actor)

	view := s.snapshot()
	s.True(view.Ready)
	s.Equal(model.RoundStageInProgress, view.Stage)
	s.Equal(model.ConnectionID("p1"), view.Turn.Actor)
	s.Equal(1, view.Round)
	s.Equal("Alice", view.DisplayName("p1"))
}

func (s *SessionSuite) TestSafeMakeOtherDrinkSwaps() {
	s.seatBoth()
	s.random.QueueFloat64(0.9)

	res, err := s.session.Submit(s.ctx, "p1", model.ActionMakeOtherDrink)
	s.Require().NoError(err)
	s.True(res.Accepted)
	s.Equal(model.ResultSwap, res.Outcome.Result)

	s.Equal(model.ConnectionID("p2"), s.snapshot().Turn.Actor)
	s.Len(s.recorder.OfType(model.EventTurnResolved), 1)
}

func (s *SessionSuite) TestPoisonedSelfDrinkEndsRound() {
	s.seatBoth()
	s.random.QueueFloat64(0.9, 0.1)

	_, err := s.session.Submit(s.ctx, "p1", model.ActionMakeOtherDrink)
	s.Require().NoError(err)
	res, err := s.session.Submit(s.ctx, "p2", model.ActionSelfDrink)
	s.Require().NoError(err)
	s.True(res.Accepted)
	s.False(res.Outcome.Continues)

	ended := s.recorder.OfType(model.EventRoundEnded)
	s.Require().Len(ended, 1)
	payload := ended[0].Payload.(model.RoundEndedPayload)
	s.Equal(model.ConnectionID("p1"), payload.Winner)
	s.Equal(model.ConnectionID("p2"), payload.Loser)
	s.Equal("alice", payload.WinnerUsername)
	s.False(payload.IsDraw)

	view := s.snapshot()
	s.Equal(model.RoundStageCooldown, view.Stage)
	s.Require().NotNil(view.LastOutcome)
	s.True(view.LastOutcome.Poisoned)
}

func (s *SessionSuite) TestOutOfTurnSubmissionDropped() {
	s.seatBoth()
	before := s.snapshot()
	s.recorder.Reset()

	res, err := s.session.Submit(s.ctx, "p2", model.ActionSelfDrink)
	s.Require().NoError(err)
	s.False(res.Accepted)

	s.Empty(s.recorder.Events())
	s.Equal(before.Turn, s.snapshot().Turn)
}

func (s *SessionSuite) TestSubmitBeforeReadyDropped() {
	_, err := s.session.Join(s.ctx, "p1", "Alice", "")
	s.Require().NoError(err)

	res, err := s.session.Submit(s.ctx, "p1", model.ActionSelfDrink)
	s.Require().NoError(err)
	s.False(res.Accepted)
	s.Empty(s.recorder.OfType(model.EventTurnResolved))
}

func (s *SessionSuite) TestThirdJoinRefused() {
	s.seatBoth()

	_, err := s.session.Join(s.ctx, "p3", "Carol", "")
	s.ErrorIs(err, model.ErrSessionFull)
	s.Len(s.snapshot().Participants, 2)
}

func (s *SessionSuite) TestCooldownStartsNextRound() {
	s.seatBoth()
	s.random.QueueFloat64(0.1)
	_, err := s.session.Submit(s.ctx, "p1", model.ActionSelfDrink)
	s.Require().NoError(err)

	s.clock.Advance(DefaultGameConfig().Cooldown).MustWait(s.ctx)

	view := s.snapshot()
	s.Equal(model.RoundStageInProgress, view.Stage)
	s.Equal(2, view.Round)
	s.Equal(model.ConnectionID("p1"), view.Turn.Actor, "turn order persists between rounds")
	s.Len(s.recorder.OfType(model.EventRoundStarted), 2)
}

func (s *SessionSuite) TestLeaveMidRoundAborts() {
	s.seatBoth()
	s.recorder.Reset()

	left, err := s.session.Leave(s.ctx, "p2", "disconnected")
	s.Require().NoError(err)
	s.True(left)

	s.Equal([]model.EventType{
		model.EventRoundAborted,
		model.EventSessionReset,
		model.EventRosterUpdated,
	}, s.recorder.Types())

	view := s.snapshot()
	s.False(view.Ready)
	s.Equal(model.RoundStageWaiting, view.Stage)
	s.Equal(model.TurnStageIdle, view.Turn.Stage)

	left, err = s.session.Leave(s.ctx, "p2", "again")
	s.Require().NoError(err)
	s.False(left)
}

func (s *SessionSuite) TestLeaveMidRoundForfeits() {
	s.session.Close()
	cfg := DefaultGameConfig()
	cfg.ForfeitOnLeave = true
	s.session = s.newSession(cfg)
	s.seatBoth()

	_, err := s.session.Leave(s.ctx, "p1", "left")
	s.Require().NoError(err)

	ended := s.recorder.OfType(model.EventRoundEnded)
	s.Require().Len(ended, 1)
	payload := ended[0].Payload.(model.RoundEndedPayload)
	s.Equal(model.ConnectionID("p2"), payload.Winner)
	s.True(payload.Forfeit)
	s.Empty(s.recorder.OfType(model.EventRoundAborted))
}

func (s *SessionSuite) TestLeaveDuringCooldownCancelsTimer() {
	s.seatBoth()
	s.random.QueueFloat64(0.1)
	_, err := s.session.Submit(s.ctx, "p1", model.ActionSelfDrink)
	s.Require().NoError(err)

	_, err = s.session.Leave(s.ctx, "p1", "left")
	s.Require().NoError(err)

	s.clock.Advance(DefaultGameConfig().Cooldown).MustWait(s.ctx)
	view := s.snapshot()
	s.Equal(model.RoundStageWaiting, view.Stage)
	s.Len(s.recorder.OfType(model.EventRoundStarted), 1)
}

func (s *SessionSuite) TestRefillAfterLeaveStartsNewRound() {
	s.seatBoth()
	_, err := s.session.Leave(s.ctx, "p1", "left")
	s.Require().NoError(err)

	_, err = s.session.Join(s.ctx, "p3", "Carol", "")
	s.Require().NoError(err)

	view := s.snapshot()
	s.True(view.Ready)
	s.Equal(model.ConnectionID("p2"), view.Turn.Actor)
	s.Len(s.recorder.OfType(model.EventSessionReady), 2)
}

func (s *SessionSuite) TestSubscribeReturnsSnapshot() {
	s.seatBoth()

	rec := broadcast.NewRecorder()
	view, unsubscribe, err := s.session.Subscribe(s.ctx, rec)
	s.Require().NoError(err)
	s.True(view.Ready)
	s.Empty(rec.Events())

	s.random.QueueFloat64(0.9)
	_, _ = s.session.Submit(s.ctx, "p1", model.ActionSelfDrink)
	s.Len(rec.Events(), 1)

	unsubscribe()
	_, _ = s.session.Submit(s.ctx, "p1", model.ActionSelfDrink)
	s.Len(rec.Events(), 1)
}

func (s *SessionSuite) TestClosedSessionRejectsRequests() {
	s.session.Close()

	_, err := s.session.Join(s.ctx, "p1", "Alice", "")
	s.ErrorIs(err, model.ErrSessionClosed)
	_, err = s.session.Snapshot(s.ctx)
	s.ErrorIs(err, model.ErrSessionClosed)

	select {
	case <-s.session.Done():
	default:
		s.Fail("session goroutine still running")
	}
}
