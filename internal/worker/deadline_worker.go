package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/invigil/proctor-backend/internal/service"
)

// DeadlineWorker is the deadline/expiry monitor: a periodic sweep that
// reconciles wall-clock time against startedAt + exam duration and
// force-submits overdue attempts with submitted_at pinned to the deadline.
//
// The sweep is idempotent (the store-level CAS makes re-closing a no-op),
// so running it redundantly across instances is safe and no leader
// election is needed.
type DeadlineWorker struct {
	attempts *service.AttemptService
	interval time.Duration
	log      zerolog.Logger
}

// NewDeadlineWorker creates a new DeadlineWorker.
func NewDeadlineWorker(attempts *service.AttemptService, interval time.Duration, log zerolog.Logger) *DeadlineWorker {
	return &DeadlineWorker{
		attempts: attempts,
		interval: interval,
		log:      log.With().Str("component", "deadline_worker").Logger(),
	}
}

// Start begins the sweep loop. Call in a goroutine; returns when ctx is
// cancelled. One sweep runs immediately at startup so attempts stranded by
// a restart are closed without waiting a full interval.
func (w *DeadlineWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("DeadlineWorker started")

	w.sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("DeadlineWorker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *DeadlineWorker) sweep(ctx context.Context) {
	expired, err := w.attempts.SweepExpired(ctx, time.Now())
	if err != nil {
		w.log.Error().Err(err).Msg("Sweep failed")
		return
	}
	if expired > 0 {
		w.log.Info().Int("expired", expired).Msg("Sweep closed overdue attempts")
	}
}
