// Package storagetest holds behaviour shared by every storage backend.
package storagetest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/poisonedglass/internal/model"
	"github.com/mcoot/poisonedglass/internal/storage"
)

// Suite exercises a storage.Storage. Backends embed it and set NewStorage.
type Suite struct {
	suite.Suite

	// NewStorage returns an empty store; it is called before each test
	NewStorage func() storage.Storage

	Store storage.Storage
	Ctx   context.Context
}

func (s *Suite) SetupTest() {
	s.Store = s.NewStorage()
	s.Ctx = context.Background()
}

func profile(username string) *model.Profile {
	created := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	return &model.Profile{
		Username:     username,
		PasswordHash: "$2a$10$hash",
		Email:        username + "@example.com",
		Score:        3,
		Wins:         4,
		Losses:       1,
		CreatedAt:    created,
		LastLoginAt:  created.Add(time.Hour),
	}
}

func (s *Suite) TestCreateAndLoad() {
	p := profile("alice")
	s.Require().NoError(s.Store.CreateProfile(s.Ctx, p))

	loaded, err := s.Store.LoadProfile(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal(p.Username, loaded.Username)
	s.Equal(p.PasswordHash, loaded.PasswordHash)
	s.Equal(p.Email, loaded.Email)
	s.Equal(p.Score, loaded.Score)
	s.Equal(p.Wins, loaded.Wins)
	s.Equal(p.Losses, loaded.Losses)
	s.True(p.CreatedAt.Equal(loaded.CreatedAt))
	s.True(p.LastLoginAt.Equal(loaded.LastLoginAt))
}

func (s *Suite) TestCreateDuplicate() {
	s.Require().NoError(s.Store.CreateProfile(s.Ctx, profile("alice")))

	err := s.Store.CreateProfile(s.Ctx, profile("alice"))
	s.ErrorIs(err, model.ErrProfileExists)
}

func (s *Suite) TestLoadNotFound() {
	_, err := s.Store.LoadProfile(s.Ctx, "ghost")
	s.ErrorIs(err, model.ErrProfileNotFound)
}

func (s *Suite) TestSaveOverwrites() {
	p := profile("bob")
	s.Require().NoError(s.Store.CreateProfile(s.Ctx, p))

	p.Score = 10
	s.Require().NoError(s.Store.SaveProfile(s.Ctx, p))

	loaded, err := s.Store.LoadProfile(s.Ctx, "bob")
	s.Require().NoError(err)
	s.Equal(10, loaded.Score)
}

func (s *Suite) TestExistsAndDelete() {
	exists, err := s.Store.ProfileExists(s.Ctx, "carol")
	s.Require().NoError(err)
	s.False(exists)

	s.Require().NoError(s.Store.CreateProfile(s.Ctx, profile("carol")))
	exists, err = s.Store.ProfileExists(s.Ctx, "carol")
	s.Require().NoError(err)
	s.True(exists)

	s.Require().NoError(s.Store.DeleteProfile(s.Ctx, "carol"))
	exists, err = s.Store.ProfileExists(s.Ctx, "carol")
	s.Require().NoError(err)
	s.False(exists)

	// deleting again is not an error
	s.NoError(s.Store.DeleteProfile(s.Ctx, "carol"))
}

func (s *Suite) TestListSortedByUsername() {
	for _, name := range []string{"zed", "amy", "max"} {
		s.Require().NoError(s.Store.CreateProfile(s.Ctx, profile(name)))
	}

	list, err := s.Store.ListProfiles(s.Ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 3)
	s.Equal("amy", list[0].Username)
	s.Equal("max", list[1].Username)
	s.Equal("zed", list[2].Username)
}

func (s *Suite) TestListEmpty() {
	list, err := s.Store.ListProfiles(s.Ctx)
	s.Require().NoError(err)
	s.Empty(list)
}

func (s *Suite) TestUpdate() {
	s.Require().NoError(s.Store.CreateProfile(s.Ctx, profile("dave")))

	updated, err := s.Store.UpdateProfile(s.Ctx, "dave", func(p *model.Profile) error {
		p.ApplyWin()
		return nil
	})
	s.Require().NoError(err)
	s.Equal(5, updated.Wins)

	loaded, err := s.Store.LoadProfile(s.Ctx, "dave")
	s.Require().NoError(err)
	s.Equal(5, loaded.Wins)
	s.Equal(4, loaded.Score)
}

func (s *Suite) TestUpdateAbortedByCallback() {
	s.Require().NoError(s.Store.CreateProfile(s.Ctx, profile("erin")))
	errStop := errors.New("stop")

	_, err := s.Store.UpdateProfile(s.Ctx, "erin", func(p *model.Profile) error {
		p.Wins = 100
		return errStop
	})
	s.ErrorIs(err, errStop)

	loaded, err := s.Store.LoadProfile(s.Ctx, "erin")
	s.Require().NoError(err)
	s.Equal(4, loaded.Wins)
}

func (s *Suite) TestUpdateNotFound() {
	_, err := s.Store.UpdateProfile(s.Ctx, "ghost", func(*model.Profile) error { return nil })
	s.ErrorIs(err, model.ErrProfileNotFound)
}

func (s *Suite) TestConcurrentUpdatesAreNotLost() {
	s.Require().NoError(s.Store.CreateProfile(s.Ctx, profile("frank")))

	const workers = 8
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Store.UpdateProfile(s.Ctx, "frank", func(p *model.Profile) error {
				p.Losses++
				return nil
			})
			s.NoError(err)
		}()
	}
	wg.Wait()

	loaded, err := s.Store.LoadProfile(s.Ctx, "frank")
	s.Require().NoError(err)
	s.Equal(1+workers, loaded.Losses)
}
