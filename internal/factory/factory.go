package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mcoot/poisonedglass/internal/api"
	"github.com/mcoot/poisonedglass/internal/dependencies/clock"
	"github.com/mcoot/poisonedglass/internal/dependencies/random"
	"github.com/mcoot/poisonedglass/internal/services/auth"
	"github.com/mcoot/poisonedglass/internal/services/session"
	"github.com/mcoot/poisonedglass/internal/services/stats"
	"github.com/mcoot/poisonedglass/internal/storage"
	dynamostorage "github.com/mcoot/poisonedglass/internal/storage/dynamo"
	"github.com/mcoot/poisonedglass/internal/storage/memory"
	redisstorage "github.com/mcoot/poisonedglass/internal/storage/redis"
	"github.com/mcoot/poisonedglass/internal/transport/sse"
	"github.com/mcoot/poisonedglass/internal/transport/ws"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
	StorageTypeDynamo = "dynamo"
)

// Maintenance defaults
const (
	DefaultMaintenanceInterval = time.Minute
	DefaultIdleSessionTTL      = 10 * time.Minute
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random
	Source random.Source

	// Services
	AuthService *auth.Service
	Registry    *session.Registry
	Stats       *stats.Recorder
	HubManager  *sse.HubManager
	WebSocket   *ws.Handler

	Logger *slog.Logger

	maintenanceInterval time.Duration
	idleSessionTTL      time.Duration
	closeStorage        func() error
}

// Config holds configuration for the application factory
type Config struct {
	// AuthConfig holds configuration for the auth service (optional)
	// If zero value, defaults to auth.DefaultConfig()
	AuthConfig auth.Config
	// GameConfig holds the rules every session is created with (optional)
	// If zero value, defaults to session.DefaultGameConfig()
	GameConfig session.GameConfig
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "redis" or "dynamo")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// DynamoConfig holds DynamoDB settings (required if StorageType is "dynamo")
	DynamoConfig *dynamostorage.Config
	// MaintenanceInterval is how often expired tokens, idle sessions and
	// empty event hubs are swept. Defaults to DefaultMaintenanceInterval.
	MaintenanceInterval time.Duration
	// IdleSessionTTL is how long a session may sit with nobody seated
	// before it is removed. Defaults to DefaultIdleSessionTTL.
	IdleSessionTTL time.Duration
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	store, closeStorage, err := newStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// Use default configs if not provided
	authCfg := cfg.AuthConfig
	if authCfg.SessionDuration == 0 {
		authCfg = auth.DefaultConfig()
	}
	gameCfg := cfg.GameConfig
	if gameCfg == (session.GameConfig{}) {
		gameCfg = session.DefaultGameConfig()
	}

	// Seed 0 draws the per-session streams from entropy
	app := newWithDependencies(store, clock.New(), random.New(), random.NewSource(gameCfg.Seed), authCfg, gameCfg, logger)
	app.closeStorage = closeStorage
	if cfg.MaintenanceInterval > 0 {
		app.maintenanceInterval = cfg.MaintenanceInterval
	}
	if cfg.IdleSessionTTL > 0 {
		app.idleSessionTTL = cfg.IdleSessionTTL
	}
	return app, nil
}

func newStorage(ctx context.Context, cfg Config) (storage.Storage, func() error, error) {
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		return memory.New(), nil, nil
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, nil, err
		}
		return redisStore, redisStore.Close, nil
	case StorageTypeDynamo:
		if cfg.DynamoConfig == nil {
			return nil, nil, errors.New("DynamoConfig required when StorageType is dynamo")
		}
		dynamoStore, err := dynamostorage.New(ctx, *cfg.DynamoConfig)
		if err != nil {
			return nil, nil, err
		}
		return dynamoStore, nil, nil
	default:
		return nil, nil, fmt.Errorf("invalid StorageType %q: must be 'memory', 'redis' or 'dynamo'", storageType)
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	clk clock.Clock,
	rnd random.Random,
	source random.Source,
	authCfg auth.Config,
	gameCfg session.GameConfig,
	logger *slog.Logger,
) *App {
	authService := auth.New(store, clk, authCfg)
	recorder := stats.New(store, logger)

	registry := session.NewRegistry(gameCfg, clk, rnd, source, logger)
	registry.AddListener(recorder)

	return &App{
		Storage:             store,
		Clock:               clk,
		Random:              rnd,
		Source:              source,
		AuthService:         authService,
		Registry:            registry,
		Stats:               recorder,
		HubManager:          sse.NewHubManager(logger),
		WebSocket:           ws.NewHandler(clk, logger),
		Logger:              logger,
		maintenanceInterval: DefaultMaintenanceInterval,
		idleSessionTTL:      DefaultIdleSessionTTL,
	}
}

// Handler returns the HTTP API for the app
func (a *App) Handler() http.Handler {
	return api.NewRouter(api.RouterConfig{
		Logger:      a.Logger,
		AuthService: a.AuthService,
		Registry:    a.Registry,
		HubManager:  a.HubManager,
		WebSocket:   a.WebSocket,
	})
}

// Run runs the background workers until ctx is cancelled
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.Stats.Run(ctx)
	})

	g.Go(func() error {
		ticker := time.NewTicker(a.maintenanceInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				a.Maintain(ctx)
			}
		}
	})

	return g.Wait()
}

// Maintain runs one sweep of expired auth tokens, idle sessions and empty
// event hubs
func (a *App) Maintain(ctx context.Context) {
	tokens := a.AuthService.CleanExpiredSessions()
	sessions := a.Registry.PruneIdle(ctx, a.idleSessionTTL)
	hubs := a.HubManager.CleanupEmptyHubs()
	a.Logger.Debug("maintenance complete",
		slog.Int("expired_tokens", tokens),
		slog.Int("idle_sessions", sessions),
		slog.Int("empty_hubs", hubs))
}

// Close stops every session and releases storage
func (a *App) Close() error {
	a.Registry.Close()
	a.HubManager.Close()
	if a.closeStorage != nil {
		return a.closeStorage()
	}
	return nil
}
