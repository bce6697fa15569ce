package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mcoot/poisonedglass/internal/api"
	"github.com/mcoot/poisonedglass/internal/factory"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := &Config{}
	cmd := newCmd(cfg, func(cmd *cobra.Command) error {
		return serve(cmd.Context(), cfg)
	})

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *Config) error {
	logger := cfg.newLogger(os.Stderr)
	slog.SetDefault(logger)

	app, err := factory.New(ctx, cfg.factoryConfig(logger))
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("failed to close storage", slog.Any("error", err))
		}
	}()

	serverConfig := api.DefaultServerConfig()
	serverConfig.Host = cfg.host
	serverConfig.Port = cfg.port
	server := api.NewServer(app.Handler(), serverConfig, logger)

	// Ending every session closes the hijacked websocket connections
	server.OnShutdown(app.Registry.Close)

	logger.Info("server starting",
		slog.String("addr", cfg.addr()),
		slog.String("storage", cfg.storage),
		slog.Float64("poison_probability", cfg.poisonProbability),
		slog.Duration("cooldown", cfg.cooldown),
		slog.Bool("forfeit_on_leave", cfg.forfeitOnLeave))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(ctx)
	})
	g.Go(func() error {
		return app.Run(ctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
