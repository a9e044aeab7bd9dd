package repository

import (
	"context"
	"sync/atomic"
	"time"

	"eventplace/internal/domain"

	"github.com/rs/zerolog"
)

const recoveryProbeInterval = time.Minute

// FailoverConfirmationLocker prefers the primary locker and switches to the
// fallback while the primary is failing, probing it again once a minute.
type FailoverConfirmationLocker struct {
	primary   domain.ConfirmationLocker
	fallback  domain.ConfirmationLocker
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverConfirmationLocker(primary, fallback domain.ConfirmationLocker, logger *zerolog.Logger) *FailoverConfirmationLocker {
	return &FailoverConfirmationLocker{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverConfirmationLocker) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary confirmation locker failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck.Store(time.Now().UnixNano())
}

func (r *FailoverConfirmationLocker) shouldProbe() bool {
	return time.Since(time.Unix(0, r.lastCheck.Load())) > recoveryProbeInterval
}

func (r *FailoverConfirmationLocker) Acquire(ctx context.Context, bookingID string, ttl time.Duration) (bool, error) {
	if !r.isDown.Load() {
		ok, err := r.primary.Acquire(ctx, bookingID, ttl)
		if err == nil {
			return ok, nil
		}
		r.markDown(err)
	} else if r.shouldProbe() {
		ok, err := r.primary.Acquire(ctx, bookingID, ttl)
		if err == nil {
			r.isDown.Store(false)
			r.logger.Info().Msg("Primary confirmation locker recovered")
			return ok, nil
		}
		r.lastCheck.Store(time.Now().UnixNano())
	}

	return r.fallback.Acquire(ctx, bookingID, ttl)
}

// Release frees the lock in both lockers; the fallback may hold it if acquired during an outage.
func (r *FailoverConfirmationLocker) Release(ctx context.Context, bookingID string) error {
	if !r.isDown.Load() {
		if err := r.primary.Release(ctx, bookingID); err != nil {
			r.markDown(err)
		}
	}
	return r.fallback.Release(ctx, bookingID)
}
