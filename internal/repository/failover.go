package repository

import (
	"context"
	"sync/atomic"
	"time"

	"staysync/internal/domain"

	"github.com/rs/zerolog"
)

// FailoverSyncStateRepository prefers the primary (redis) repository and
// falls back to the in-memory one when it errors, probing the primary again
// after a minute.
type FailoverSyncStateRepository struct {
	primary   domain.SyncStateRepository
	fallback  domain.SyncStateRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverSyncStateRepository(primary, fallback domain.SyncStateRepository, logger *zerolog.Logger) *FailoverSyncStateRepository {
	return &FailoverSyncStateRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverSyncStateRepository) GetLastSync(ctx context.Context, hostID string) (*time.Time, error) {
	if r.tryPrimary() {
		t, err := r.primary.GetLastSync(ctx, hostID)
		if err == nil {
			r.markUp()
			return t, nil
		}
		r.markDown(err)
	}
	return r.fallback.GetLastSync(ctx, hostID)
}

func (r *FailoverSyncStateRepository) SetLastSync(ctx context.Context, hostID string, at time.Time) error {
	if r.tryPrimary() {
		err := r.primary.SetLastSync(ctx, hostID, at)
		if err == nil {
			r.markUp()
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.SetLastSync(ctx, hostID, at)
}

func (r *FailoverSyncStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.tryPrimary() {
		ok, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			r.markUp()
			return ok, nil
		}
		r.markDown(err)
	}
	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}

// tryPrimary reports whether the primary should be attempted: it is either
// believed healthy or due for a recovery probe.
func (r *FailoverSyncStateRepository) tryPrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	last := time.Unix(0, r.lastCheck.Load())
	return time.Since(last) > time.Minute
}

func (r *FailoverSyncStateRepository) markUp() {
	if r.isDown.Load() {
		r.isDown.Store(false)
		r.logger.Info().Msg("primary sync-state repository recovered")
	}
}

func (r *FailoverSyncStateRepository) markDown(err error) {
	if !r.isDown.Load() {
		r.logger.Error().Err(err).Msg("primary sync-state repository failed, falling back to memory")
	}
	r.isDown.Store(true)
	r.lastCheck.Store(time.Now().UnixNano())
}
