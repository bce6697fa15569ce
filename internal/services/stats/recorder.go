// Package stats keeps per-profile win/loss records in step with round results.
package stats

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mcoot/poisonedglass/internal/model"
	"github.com/mcoot/poisonedglass/internal/services/broadcast"
	"github.com/mcoot/poisonedglass/internal/storage"
)

const queueSize = 256

// Recorder listens for round results and writes them to storage on its own
// goroutine, so sessions never wait on persistence.
type Recorder struct {
	storage storage.Storage
	logger  *slog.Logger
	queue   chan model.RoundEndedPayload
}

var _ broadcast.Listener = (*Recorder)(nil)

// New creates a Recorder. Run must be started for results to be written.
func New(storage storage.Storage, logger *slog.Logger) *Recorder {
	return &Recorder{
		storage: storage,
		logger:  logger.With(slog.String("component", "stats")),
		queue:   make(chan model.RoundEndedPayload, queueSize),
	}
}

// OnEvent queues round results. Other events are ignored.
func (r *Recorder) OnEvent(event model.Event) {
	if event.Type != model.EventRoundEnded {
		return
	}
	payload, ok := event.Payload.(model.RoundEndedPayload)
	if !ok || payload.IsDraw {
		return
	}
	select {
	case r.queue <- payload:
	default:
		r.logger.Warn("stats queue full, result dropped",
			slog.String("session", string(event.SessionCode)),
			slog.Int("round", payload.Round))
	}
}

// Run writes queued results until ctx is cancelled
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case result := <-r.queue:
			if err := r.Record(ctx, result.WinnerUsername, result.LoserUsername); err != nil {
				r.logger.Error("failed to record result",
					slog.String("winner", result.WinnerUsername),
					slog.String("loser", result.LoserUsername),
					slog.Any("error", err))
			}
		}
	}
}

// Record applies one round result. Empty usernames (anonymous participants)
// and accounts that no longer exist are skipped.
func (r *Recorder) Record(ctx context.Context, winner, loser string) error {
	var errs []error
	if winner != "" {
		errs = append(errs, r.apply(ctx, winner, (*model.Profile).ApplyWin))
	}
	if loser != "" {
		errs = append(errs, r.apply(ctx, loser, (*model.Profile).ApplyLoss))
	}
	return errors.Join(errs...)
}

func (r *Recorder) apply(ctx context.Context, username string, fn func(*model.Profile)) error {
	p, err := r.storage.UpdateProfile(ctx, username, func(p *model.Profile) error {
		fn(p)
		return nil
	})
	if errors.Is(err, model.ErrProfileNotFound) {
		r.logger.Debug("no profile for result", slog.String("username", username))
		return nil
	}
	if err != nil {
		return err
	}
	r.logger.Info("stats updated",
		slog.String("username", username),
		slog.Int("score", p.Score),
		slog.Int("wins", p.Wins),
		slog.Int("losses", p.Losses))
	return nil
}
