package broadcast

import (
	"testing"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/poisonedglass/internal/model"
	"github.com/mcoot/poisonedglass/internal/testutil"
)

type BroadcasterSuite struct {
	suite.Suite
	clock       *quartz.Mock
	broadcaster *Broadcaster
}

func TestBroadcasterSuite(t *testing.T) {
	suite.Run(t, new(BroadcasterSuite))
}

func (s *BroadcasterSuite) SetupTest() {
	s.clock = quartz.NewMock(s.T())
	s.broadcaster = New("ABC123", s.clock, testutil.NopLogger())
}

func (s *BroadcasterSuite) TestDeliversToAllListenersInOrder() {
	var order []string
	s.broadcaster.Subscribe(ListenerFunc(func(model.Event) { order = append(order, "first") }))
	s.broadcaster.Subscribe(ListenerFunc(func(model.Event) { order = append(order, "second") }))

	s.broadcaster.AnnounceRoster([]string{"Alice"})

	s.Equal([]string{"first", "second"}, order)
}

func (s *BroadcasterSuite) TestEventFields() {
	rec := NewRecorder()
	s.broadcaster.Subscribe(rec)

	s.broadcaster.AnnounceRoster([]string{"Alice", "Bob"})

	events := rec.Events()
	s.Require().Len(events, 1)
	s.Equal(model.EventRosterUpdated, events[0].Type)
	s.Equal(model.SessionCode("ABC123"), events[0].SessionCode)
	s.Equal(s.clock.Now(), events[0].Timestamp)
	s.Equal(model.RosterPayload{Names: []string{"Alice", "Bob"}}, events[0].Payload)
}

func (s *BroadcasterSuite) TestUnsubscribe() {
	rec := NewRecorder()
	unsubscribe := s.broadcaster.Subscribe(rec)
	s.Equal(1, s.broadcaster.ListenerCount())

	unsubscribe()
	unsubscribe()
	s.Equal(0, s.broadcaster.ListenerCount())

	s.broadcaster.AnnounceReset()
	s.Empty(rec.Events())
}

func (s *BroadcasterSuite) TestPanickingListenerDoesNotStopDelivery() {
	rec := NewRecorder()
	s.broadcaster.Subscribe(ListenerFunc(func(model.Event) { panic("boom") }))
	s.broadcaster.Subscribe(rec)

	s.NotPanics(func() {
		s.broadcaster.AnnounceRoundEnded(model.RoundEndedPayload{Winner: "a", Loser: "b"})
	})
	s.Equal([]model.EventType{model.EventRoundEnded}, rec.Types())
}

func (s *BroadcasterSuite) TestAnnounceHelpers() {
	rec := NewRecorder()
	s.broadcaster.Subscribe(rec)

	s.broadcaster.AnnounceReady([]string{"Alice", "Bob"})
	s.broadcaster.AnnounceRoundStarted(model.RoundStartedPayload{Round: 1, Actor: "a"})
	s.broadcaster.AnnounceTurnResolved(model.TurnResolvedPayload{Round: 1})
	s.broadcaster.AnnounceRoundEnded(model.RoundEndedPayload{Round: 1})
	s.broadcaster.AnnounceRoundAborted(model.RoundAbortedPayload{Round: 2})
	s.broadcaster.AnnounceReset()

	s.Equal([]model.EventType{
		model.EventSessionReady,
		model.EventRoundStarted,
		model.EventTurnResolved,
		model.EventRoundEnded,
		model.EventRoundAborted,
		model.EventSessionReset,
	}, rec.Types())
	s.Len(rec.OfType(model.EventRoundEnded), 1)
}
