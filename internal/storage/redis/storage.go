package redis

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/poisonedglass/internal/model"
	"github.com/mcoot/poisonedglass/internal/storage"
)

// maxUpdateRetries bounds optimistic-lock retries in UpdateProfile
const maxUpdateRetries = 16

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func (s *Storage) CreateProfile(ctx context.Context, profile *model.Profile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}

	created, err := s.client.SetNX(ctx, profileKey(profile.Username), data, 0).Result()
	if err != nil {
		return err
	}
	if !created {
		return model.ErrProfileExists
	}
	return s.client.SAdd(ctx, profilesIndexKey(), profile.Username).Err()
}

func (s *Storage) SaveProfile(ctx context.Context, profile *model.Profile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}

	// Use pipeline for atomic save + index update
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, profileKey(profile.Username), data, 0)
	pipe.SAdd(ctx, profilesIndexKey(), profile.Username)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) LoadProfile(ctx context.Context, username string) (*model.Profile, error) {
	data, err := s.client.Get(ctx, profileKey(username)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrProfileNotFound
		}
		return nil, err
	}
	return decodeProfile(data)
}

func (s *Storage) UpdateProfile(ctx context.Context, username string, fn storage.UpdateFunc) (*model.Profile, error) {
	key := profileKey(username)

	for range maxUpdateRetries {
		var updated *model.Profile
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return model.ErrProfileNotFound
				}
				return err
			}
			p, err := decodeProfile(data)
			if err != nil {
				return err
			}
			if err := fn(p); err != nil {
				return err
			}
			out, err := json.Marshal(p)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, out, 0)
				return nil
			})
			updated = p
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, model.ErrProfileConflict
}

func (s *Storage) ProfileExists(ctx context.Context, username string) (bool, error) {
	n, err := s.client.Exists(ctx, profileKey(username)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Storage) DeleteProfile(ctx context.Context, username string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, profileKey(username))
	pipe.SRem(ctx, profilesIndexKey(), username)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Storage) ListProfiles(ctx context.Context) ([]*model.Profile, error) {
	usernames, err := s.client.SMembers(ctx, profilesIndexKey()).Result()
	if err != nil {
		return nil, err
	}
	if len(usernames) == 0 {
		return []*model.Profile{}, nil
	}

	keys := make([]string, len(usernames))
	for i, u := range usernames {
		keys[i] = profileKey(u)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	profiles := make([]*model.Profile, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			// index entry without a profile
			continue
		}
		p, err := decodeProfile([]byte(str))
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	slices.SortFunc(profiles, func(a, b *model.Profile) int {
		return strings.Compare(a.Username, b.Username)
	})
	return profiles, nil
}

func decodeProfile(data []byte) (*model.Profile, error) {
	var p model.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
