package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mcoot/poisonedglass/internal/factory"
	"github.com/mcoot/poisonedglass/internal/services/auth"
	"github.com/mcoot/poisonedglass/internal/services/resolver"
	"github.com/mcoot/poisonedglass/internal/services/round"
	"github.com/mcoot/poisonedglass/internal/services/session"
	dynamostorage "github.com/mcoot/poisonedglass/internal/storage/dynamo"
	redisstorage "github.com/mcoot/poisonedglass/internal/storage/redis"
)

// Config holds server settings from flags and PGLASS_* environment variables
type Config struct {
	host string
	port int

	storage           string
	redisURL          string
	dynamoTable       string
	dynamoRegion      string
	dynamoEndpoint    string
	dynamoCreateTable bool

	poisonProbability float64
	cooldown          time.Duration
	forfeitOnLeave    bool
	seed              int64

	sessionDuration     time.Duration
	idleSessionTTL      time.Duration
	maintenanceInterval time.Duration

	logFormat string
	logLevel  string
}

func (c *Config) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	switch c.storage {
	case factory.StorageTypeMemory, factory.StorageTypeDynamo:
	case factory.StorageTypeRedis:
		if c.redisURL == "" {
			return errors.New("--redis-url is required when --storage=redis")
		}
	default:
		return fmt.Errorf("invalid storage %q: must be memory, redis or dynamo", c.storage)
	}
	if c.poisonProbability <= 0 || c.poisonProbability > 1 {
		return fmt.Errorf("invalid poison probability (must be in (0, 1]): %g", c.poisonProbability)
	}
	if c.cooldown < 0 {
		return fmt.Errorf("invalid cooldown: %s", c.cooldown)
	}
	if c.sessionDuration <= 0 {
		return fmt.Errorf("invalid session duration: %s", c.sessionDuration)
	}
	if c.logFormat != "json" && c.logFormat != "text" {
		return fmt.Errorf("invalid log format %q: must be json or text", c.logFormat)
	}
	if _, err := log.ParseLevel(c.logLevel); err != nil {
		return fmt.Errorf("invalid log level %q", c.logLevel)
	}
	return nil
}

func (c *Config) addr() string {
	return fmt.Sprintf("%s:%d", c.host, c.port)
}

func (c *Config) factoryConfig(logger *slog.Logger) factory.Config {
	cfg := factory.Config{
		AuthConfig: auth.Config{SessionDuration: c.sessionDuration},
		GameConfig: session.GameConfig{
			PoisonProbability: c.poisonProbability,
			Cooldown:          c.cooldown,
			ForfeitOnLeave:    c.forfeitOnLeave,
			Seed:              c.seed,
		},
		Logger:              logger,
		StorageType:         c.storage,
		MaintenanceInterval: c.maintenanceInterval,
		IdleSessionTTL:      c.idleSessionTTL,
	}

	switch c.storage {
	case factory.StorageTypeRedis:
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = c.redisURL
		cfg.RedisConfig = &redisCfg
	case factory.StorageTypeDynamo:
		dynamoCfg := dynamostorage.DefaultConfig()
		dynamoCfg.TableName = c.dynamoTable
		dynamoCfg.Region = c.dynamoRegion
		dynamoCfg.Endpoint = c.dynamoEndpoint
		dynamoCfg.CreateTable = c.dynamoCreateTable
		cfg.DynamoConfig = &dynamoCfg
	}
	return cfg
}

// newLogger builds the application logger. Text output goes through
// charmbracelet/log so it reads well in a terminal.
func (c *Config) newLogger(w io.Writer) *slog.Logger {
	level, err := log.ParseLevel(c.logLevel)
	if err != nil {
		level = log.InfoLevel
	}

	if c.logFormat == "text" {
		handler := log.NewWithOptions(w, log.Options{
			Level:           level,
			ReportTimestamp: true,
			TimeFormat:      time.TimeOnly,
		})
		return slog.New(handler)
	}

	// charmbracelet levels share slog's numbering
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.Level(level),
	}))
}

func newCmd(cfg *Config, run func(cmd *cobra.Command) error) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("PGLASS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "pglass-server",
		Short: "Authoritative server for two-player poisoned glass sessions",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return run(cmd)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	defaults := dynamostorage.DefaultConfig()

	fs.StringVar(&cfg.host, "host", "", "address to bind to (env: PGLASS_HOST)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: PGLASS_PORT)")
	fs.StringVar(&cfg.storage, "storage", factory.StorageTypeMemory, "storage backend: memory, redis or dynamo (env: PGLASS_STORAGE)")
	fs.StringVar(&cfg.redisURL, "redis-url", "", "redis connection URL (env: PGLASS_REDIS_URL)")
	fs.StringVar(&cfg.dynamoTable, "dynamo-table", defaults.TableName, "DynamoDB table name (env: PGLASS_DYNAMO_TABLE)")
	fs.StringVar(&cfg.dynamoRegion, "dynamo-region", defaults.Region, "DynamoDB region (env: PGLASS_DYNAMO_REGION)")
	fs.StringVar(&cfg.dynamoEndpoint, "dynamo-endpoint", "", "DynamoDB endpoint override (env: PGLASS_DYNAMO_ENDPOINT)")
	fs.BoolVar(&cfg.dynamoCreateTable, "dynamo-create-table", false, "create the DynamoDB table if missing (env: PGLASS_DYNAMO_CREATE_TABLE)")
	fs.Float64Var(&cfg.poisonProbability, "poison-probability", resolver.DefaultPoisonProbability, "chance that any glass is poisoned (env: PGLASS_POISON_PROBABILITY)")
	fs.DurationVar(&cfg.cooldown, "cooldown", round.DefaultCooldown, "pause between rounds (env: PGLASS_COOLDOWN)")
	fs.BoolVar(&cfg.forfeitOnLeave, "forfeit-on-leave", false, "award a round to the remaining player when the other leaves (env: PGLASS_FORFEIT_ON_LEAVE)")
	fs.Int64Var(&cfg.seed, "seed", 0, "seed for reproducible poison draws, 0 for random (env: PGLASS_SEED)")
	fs.DurationVar(&cfg.sessionDuration, "session-duration", auth.DefaultConfig().SessionDuration, "login token lifetime (env: PGLASS_SESSION_DURATION)")
	fs.DurationVar(&cfg.idleSessionTTL, "idle-session-ttl", factory.DefaultIdleSessionTTL, "time before an empty session is removed (env: PGLASS_IDLE_SESSION_TTL)")
	fs.DurationVar(&cfg.maintenanceInterval, "maintenance-interval", factory.DefaultMaintenanceInterval, "how often expired state is swept (env: PGLASS_MAINTENANCE_INTERVAL)")
	fs.StringVar(&cfg.logFormat, "log-format", "json", "log output: json or text (env: PGLASS_LOG_FORMAT)")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "log level: debug, info, warn or error (env: PGLASS_LOG_LEVEL)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
