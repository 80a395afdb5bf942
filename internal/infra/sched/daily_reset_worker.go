package sched

import (
	"context"
	"errors"
	"time"

	"son1k-dispatch/internal/domain"
	"son1k-dispatch/internal/usecase"

	"github.com/rs/zerolog"
)

const dailyResetLockKey = "sched:daily_reset"

// Locker mirrors the redis locker so the worker stays testable without a
// live Redis.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// DailyResetWorker rolls usage_today back to zero on every interval. The
// lock makes the rollover run once across replicas; losers skip the tick.
type DailyResetWorker struct {
	interval time.Duration
	store    *usecase.AccountStore
	locker   Locker
	log      *zerolog.Logger
}

func NewDailyResetWorker(interval time.Duration, store *usecase.AccountStore, locker Locker, logger *zerolog.Logger) *DailyResetWorker {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	compLog := logger.With().Str("component", "DailyResetWorker").Logger()
	return &DailyResetWorker{
		interval: interval,
		store:    store,
		locker:   locker,
		log:      &compLog,
	}
}

func (w *DailyResetWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting daily reset worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping daily reset worker")
			return ctx.Err()
		case <-ticker.C:
			w.runReset(ctx)
		}
	}
}

func (w *DailyResetWorker) runReset(ctx context.Context) {
	if w.locker != nil {
		token, err := w.locker.TryLock(ctx, dailyResetLockKey, w.interval/2)
		if err != nil {
			if !errors.Is(err, domain.ErrLockNotAcquired) {
				w.log.Error().Err(err).Msg("reset lock error")
			}
			return // another replica owns this rollover
		}
		defer func() {
			if uerr := w.locker.Unlock(ctx, dailyResetLockKey, token); uerr != nil {
				w.log.Warn().Err(uerr).Msg("reset lock release failed")
			}
		}()
	}

	w.store.ResetDailyUsage(ctx)
	w.log.Info().Msg("daily usage reset complete")
}
