package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/poisonedglass/internal/model"
	"github.com/mcoot/poisonedglass/internal/storage"
	"github.com/mcoot/poisonedglass/internal/storage/memory"
	"github.com/mcoot/poisonedglass/internal/testutil"
)

type RecorderSuite struct {
	suite.Suite
	storage  *memory.Storage
	recorder *Recorder
	ctx      context.Context
}

func TestRecorderSuite(t *testing.T) {
	suite.Run(t, new(RecorderSuite))
}

func (s *RecorderSuite) SetupTest() {
	s.storage = memory.New()
	s.recorder = New(s.storage, testutil.NopLogger())
	s.ctx = context.Background()

	for _, name := range []string{"alice", "bob"} {
		s.Require().NoError(s.storage.CreateProfile(s.ctx, &model.Profile{Username: name}))
	}
}

func (s *RecorderSuite) load(username string) *model.Profile {
	p, err := s.storage.LoadProfile(s.ctx, username)
	s.Require().NoError(err)
	return p
}

func (s *RecorderSuite) TestRecordAppliesWinAndFlooredLoss() {
	s.Require().NoError(s.recorder.Record(s.ctx, "alice", "bob"))

	alice := s.load("alice")
	s.Equal(1, alice.Wins)
	s.Equal(1, alice.Score)

	bob := s.load("bob")
	s.Equal(1, bob.Losses)
	s.Equal(0, bob.Score)
	s.InDelta(0.0, bob.WinRate(), 0.001)

	s.Require().NoError(s.recorder.Record(s.ctx, "bob", "alice"))
	alice = s.load("alice")
	s.Equal(0, alice.Score)
	s.InDelta(50.0, alice.WinRate(), 0.001)
}

func (s *RecorderSuite) TestRecordSkipsAnonymousAndMissing() {
	s.NoError(s.recorder.Record(s.ctx, "", "ghost"))
	s.NoError(s.recorder.Record(s.ctx, "alice", ""))
	s.Equal(1, s.load("alice").Wins)
}

func (s *RecorderSuite) TestRecordReturnsStorageErrors() {
	failing := New(failingStorage{Storage: s.storage}, testutil.NopLogger())
	err := failing.Record(s.ctx, "alice", "bob")
	s.ErrorIs(err, errUnavailable)
}

func (s *RecorderSuite) TestOnEventIgnoresOtherEvents() {
	s.recorder.OnEvent(model.Event{Type: model.EventRoundStarted})
	s.recorder.OnEvent(model.Event{
		Type:    model.EventRoundEnded,
		Payload: model.RoundEndedPayload{WinnerUsername: "alice", IsDraw: true},
	})
	s.Empty(s.recorder.queue)
}

func (s *RecorderSuite) TestRunDrainsQueue() {
	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan error, 1)
	go func() { done <- s.recorder.Run(ctx) }()

	s.recorder.OnEvent(model.Event{
		Type: model.EventRoundEnded,
		Payload: model.RoundEndedPayload{
			Round:          1,
			WinnerUsername: "bob",
			LoserUsername:  "alice",
		},
	})

	s.Eventually(func() bool {
		bob, err := s.storage.LoadProfile(s.ctx, "bob")
		if err != nil {
			return false
		}
		alice, err := s.storage.LoadProfile(s.ctx, "alice")
		return err == nil && bob.Wins == 1 && alice.Losses == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	s.NoError(<-done)
}

var errUnavailable = errors.New("storage unavailable")

type failingStorage struct {
	storage.Storage
}

func (failingStorage) UpdateProfile(context.Context, string, storage.UpdateFunc) (*model.Profile, error) {
	return nil, errUnavailable
}
