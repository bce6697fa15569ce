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

type RegistrySuite struct {
	suite.Suite
	clock    *quartz.Mock
	random   *mocks.MockRandom
	registry *Registry
	ctx      context.Context
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	s.T().Cleanup(cancel)
	s.ctx = ctx

	s.clock = quartz.NewMock(s.T())
	s.random = mocks.NewMockRandom()
	s.registry = NewRegistry(
		DefaultGameConfig(),
		s.clock,
		s.random,
		mocks.NewMockSource(mocks.NewMockRandom()),
		testutil.NopLogger(),
	)
}

func (s *RegistrySuite) TearDownTest() {
	s.registry.Close()
}

func (s *RegistrySuite) TestCreateAndGet() {
	s.random.QueueString("ABC234")

	sess, err := s.registry.Create(s.ctx)
	s.Require().NoError(err)
	s.Equal(model.SessionCode("ABC234"), sess.Code())

	got, err := s.registry.Get("ABC234")
	s.Require().NoError(err)
	s.Same(sess, got)
	s.Equal([]model.SessionCode{"ABC234"}, s.registry.List())
}

func (s *RegistrySuite) TestGetUnknown() {
	_, err := s.registry.Get("NOPE99")
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *RegistrySuite) TestCreateRetriesOnCollision() {
	s.random.QueueString("AAAAAA", "AAAAAA", "BBBBBB")

	_, err := s.registry.Create(s.ctx)
	s.Require().NoError(err)
	sess, err := s.registry.Create(s.ctx)
	s.Require().NoError(err)

	s.Equal(model.SessionCode("BBBBBB"), sess.Code())
	s.Equal(2, s.registry.Len())
}

func (s *RegistrySuite) TestCreateGivesUpWhenCodesExhausted() {
	_, err := s.registry.Create(s.ctx)
	s.ErrorIs(err, model.ErrCodeExhausted)
}

func (s *RegistrySuite) TestDefaultListenerAttached() {
	rec := broadcast.NewRecorder()
	s.registry.AddListener(rec)
	s.random.QueueString("LSTN22")

	sess, err := s.registry.Create(s.ctx)
	s.Require().NoError(err)
	_, err = sess.Join(s.ctx, "c1", "Alice", "")
	s.Require().NoError(err)

	s.Equal([]model.EventType{model.EventRosterUpdated}, rec.Types())
}

func (s *RegistrySuite) TestEmptySessionRemoved() {
	s.random.QueueString("EMPTY2")
	sess, err := s.registry.Create(s.ctx)
	s.Require().NoError(err)

	_, err = sess.Join(s.ctx, "c1", "Alice", "")
	s.Require().NoError(err)
	_, err = sess.Leave(s.ctx, "c1", "left")
	s.Require().NoError(err)

	s.Eventually(func() bool {
		_, err := s.registry.Get("EMPTY2")
		return err != nil
	}, time.Second, 10*time.Millisecond)

	select {
	case <-sess.Done():
	case <-time.After(time.Second):
		s.Fail("removed session was not closed")
	}
}

func (s *RegistrySuite) TestRemoveAndClose() {
	s.random.QueueString("RMV222", "CLS222")
	a, err := s.registry.Create(s.ctx)
	s.Require().NoError(err)
	b, err := s.registry.Create(s.ctx)
	s.Require().NoError(err)

	s.registry.Remove(a.Code())
	s.registry.Remove("UNKNWN")
	s.Equal([]model.SessionCode{"CLS222"}, s.registry.List())

	s.registry.Close()
	<-b.Done()
	s.Equal(0, s.registry.Len())

	_, err = s.registry.Create(s.ctx)
	s.ErrorIs(err, model.ErrSessionClosed)
}

func (s *RegistrySuite) TestPruneIdle() {
	s.random.QueueString("OLD222", "SEAT22")
	old, err := s.registry.Create(s.ctx)
	s.Require().NoError(err)
	seated, err := s.registry.Create(s.ctx)
	s.Require().NoError(err)
	_, err = seated.Join(s.ctx, "c1", "Alice", "")
	s.Require().NoError(err)

	s.Equal(0, s.registry.PruneIdle(s.ctx, 10*time.Minute), "nothing is old enough yet")

	s.clock.Advance(10 * time.Minute).MustWait(s.ctx)
	s.random.QueueString("NEW222")
	_, err = s.registry.Create(s.ctx)
	s.Require().NoError(err)

	s.Equal(1, s.registry.PruneIdle(s.ctx, 10*time.Minute))
	s.Equal([]model.SessionCode{"NEW222", "SEAT22"}, s.registry.List())
	<-old.Done()
}

func (s *RegistrySuite) TestCloseIfEmptyKeepsSeatedSession() {
	s.random.QueueString("KEEP22")
	sess, err := s.registry.Create(s.ctx)
	s.Require().NoError(err)
	_, err = sess.Join(s.ctx, "c1", "Alice", "")
	s.Require().NoError(err)

	closed, err := sess.CloseIfEmpty(s.ctx)
	s.Require().NoError(err)
	s.False(closed)

	_, err = sess.Join(s.ctx, "c2", "Bob", "")
	s.Require().NoError(err)
	s.Equal([]model.SessionCode{"KEEP22"}, s.registry.List())
}

func (s *RegistrySuite) TestJoinAfterEmptyCloseRefused() {
	s.random.QueueString("GONE22")
	sess, err := s.registry.Create(s.ctx)
	s.Require().NoError(err)

	closed, err := sess.CloseIfEmpty(s.ctx)
	s.Require().NoError(err)
	s.True(closed)
	<-sess.Done()

	_, err = sess.Join(s.ctx, "c1", "Alice", "")
	s.ErrorIs(err, model.ErrSessionClosed)

	closed, err = sess.CloseIfEmpty(s.ctx)
	s.Require().NoError(err)
	s.True(closed, "already stopped")
}

func (s *RegistrySuite) TestJoinRacingEmptyCloseNeverSeatsInStoppedSession() {
	for i := 0; i < 50; i++ {
		sess := New(Options{
			Code:   "RACE22",
			Config: DefaultGameConfig(),
			Clock:  s.clock,
			Random: mocks.NewMockRandom(),
			Logger: testutil.NopLogger(),
		})

		joined := make(chan error, 1)
		go func() {
			_, err := sess.Join(s.ctx, "c1", "Alice", "")
			joined <- err
		}()
		closed, err := sess.CloseIfEmpty(s.ctx)
		s.Require().NoError(err)
		joinErr := <-joined

		if closed {
			s.ErrorIs(joinErr, model.ErrSessionClosed)
		} else {
			s.Require().NoError(joinErr)
			view, err := sess.Snapshot(s.ctx)
			s.Require().NoError(err)
			s.Len(view.Participants, 1)
		}
		sess.Close()
	}
}
