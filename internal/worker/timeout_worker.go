package worker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/marcinucieklak/examhub/internal/cache"
	"github.com/rs/zerolog"
)

const (
	// FullSweepEvery is how many ticks pass between database sweeps.
	FullSweepEvery = 12
	// ExpireTimeout bounds one tick's work so a slow store cannot stall the loop.
	ExpireTimeout = 30 * time.Second
)

// DeadlineQueue is the due-session index shared by every replica.
type DeadlineQueue interface {
	Due(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	AcquireSweepLock(ctx context.Context, holder string, ttl time.Duration) (func(), error)
}

// Expirer finalises overdue sessions.
type Expirer interface {
	ExpireOverdue(ctx context.Context, sessionID uuid.UUID) (bool, error)
	SweepOverdue(ctx context.Context, limit int) (int, error)
}

// TimeoutWorker expires sessions whose deadline passed without a finish.
// Each tick drains the Redis deadline index; every FullSweepEvery ticks it
// also sweeps the database to catch deadlines Redis never saw.
type TimeoutWorker struct {
	queue     DeadlineQueue
	sessions  Expirer
	interval  time.Duration
	batchSize int
	holder    string
	log       zerolog.Logger
	now       func() time.Time
}

func NewTimeoutWorker(queue DeadlineQueue, sessions Expirer, interval time.Duration, batchSize int, log zerolog.Logger) *TimeoutWorker {
	return &TimeoutWorker{
		queue:     queue,
		sessions:  sessions,
		interval:  interval,
		batchSize: batchSize,
		holder:    uuid.NewString(),
		log:       log.With().Str("component", "timeout_worker").Logger(),
		now:       time.Now,
	}
}

// Start runs until ctx is cancelled, sweeping the database once up front.
func (w *TimeoutWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("TimeoutWorker started")

	w.tick(ctx, true)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for n := 1; ; n++ {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("TimeoutWorker stopped")
			return
		case <-ticker.C:
			w.tick(ctx, n%FullSweepEvery == 0)
		}
	}
}

// tick runs one pass under the sweep lock. Only one replica sweeps at a time.
func (w *TimeoutWorker) tick(parent context.Context, fullSweep bool) {
	ctx, cancel := context.WithTimeout(parent, ExpireTimeout)
	defer cancel()

	release, err := w.queue.AcquireSweepLock(ctx, w.holder, w.interval*2)
	if errors.Is(err, cache.ErrLockHeld) {
		return
	}
	if err != nil {
		w.log.Warn().Err(err).Msg("Acquire sweep lock failed")
		return
	}
	defer release()

	expired := w.drainDue(ctx)

	if fullSweep {
		n, err := w.sessions.SweepOverdue(ctx, w.batchSize)
		if err != nil {
			w.log.Error().Err(err).Msg("Database sweep failed")
		}
		expired += n
	}

	if expired > 0 {
		w.log.Info().Int("expired", expired).Bool("full_sweep", fullSweep).Msg("Expired overdue sessions")
	}
}

// drainDue expires indexed sessions whose deadline passed, one batch at a time.
func (w *TimeoutWorker) drainDue(ctx context.Context) int {
	expired := 0
	for ctx.Err() == nil {
		ids, err := w.queue.Due(ctx, w.now(), w.batchSize)
		if err != nil {
			w.log.Error().Err(err).Msg("Read due deadlines failed")
			return expired
		}
		batch := 0
		for _, id := range ids {
			ok, err := w.sessions.ExpireOverdue(ctx, id)
			if err != nil {
				w.log.Error().Err(err).Str("session_id", id.String()).Msg("Expire session failed")
				continue
			}
			if ok {
				batch++
			}
		}
		expired += batch
		// A short batch means the index is drained. A batch that expired
		// nothing was only failures, drops or reschedules; leave the rest
		// for the next tick.
		if len(ids) < w.batchSize || batch == 0 {
			return expired
		}
	}
	return expired
}
