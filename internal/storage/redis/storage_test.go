package redis

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/poisonedglass/internal/model"
	"github.com/mcoot/poisonedglass/internal/storage"
	"github.com/mcoot/poisonedglass/internal/storage/storagetest"
)

type StorageSuite struct {
	storagetest.Suite
	mini    *miniredis.Miniredis
	storage *Storage
}

func TestStorageSuite(t *testing.T) {
	s := new(StorageSuite)
	s.NewStorage = func() storage.Storage {
		s.mini = miniredis.RunT(s.T())
		client := redis.NewClient(&redis.Options{
			Addr: s.mini.Addr(),
		})
		s.storage = NewWithClient(client, DefaultConfig())
		return s.storage
	}
	suite.Run(t, s)
}

func (s *StorageSuite) TearDownTest() {
	if s.storage != nil {
		_ = s.storage.Close()
	}
	if s.mini != nil {
		s.mini.Close()
	}
}

func (s *StorageSuite) TestKeyLayout() {
	p := &model.Profile{Username: "alice", Wins: 2}
	s.Require().NoError(s.storage.CreateProfile(s.Ctx, p))

	s.True(s.mini.Exists("pglass:profile:alice"))
	members, err := s.mini.Members("pglass:idx:profiles")
	s.Require().NoError(err)
	s.Equal([]string{"alice"}, members)

	raw, err := s.mini.Get("pglass:profile:alice")
	s.Require().NoError(err)
	var stored model.Profile
	s.Require().NoError(json.Unmarshal([]byte(raw), &stored))
	s.Equal(2, stored.Wins)
}

func (s *StorageSuite) TestDeleteRemovesIndexEntry() {
	s.Require().NoError(s.storage.CreateProfile(s.Ctx, &model.Profile{Username: "bob"}))
	s.Require().NoError(s.storage.DeleteProfile(s.Ctx, "bob"))

	s.False(s.mini.Exists("pglass:profile:bob"))
	members, _ := s.mini.Members("pglass:idx:profiles")
	s.Empty(members)
}

func (s *StorageSuite) TestListSkipsDanglingIndexEntries() {
	s.Require().NoError(s.storage.CreateProfile(s.Ctx, &model.Profile{Username: "carol"}))
	_, err := s.mini.SAdd("pglass:idx:profiles", "ghost")
	s.Require().NoError(err)

	list, err := s.storage.ListProfiles(s.Ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal("carol", list[0].Username)
}

func (s *StorageSuite) TestNewRejectsBadURL() {
	_, err := New(Config{URL: "not-a-url"})
	s.Error(err)
}

func (s *StorageSuite) TestNewConnects() {
	cfg := DefaultConfig()
	cfg.URL = "redis://" + s.mini.Addr()

	st, err := New(cfg)
	s.Require().NoError(err)
	defer st.Close()

	_, err = st.LoadProfile(context.Background(), "nobody")
	s.ErrorIs(err, model.ErrProfileNotFound)
}
