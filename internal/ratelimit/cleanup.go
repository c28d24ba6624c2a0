package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Cleaner deletes hit records past their retention horizon. Blocks and
// violations have their own retention policies and are never touched here.
//
// Cleaner does not schedule itself and does not retry; the external trigger
// owns both, including making sure runs never overlap.
type Cleaner struct {
	store  Store
	clock  Clock
	logger *zap.Logger
}

// NewCleaner creates a cleaner on top of the given store.
func NewCleaner(store Store, clock Clock, logger *zap.Logger) *Cleaner {
	return &Cleaner{
		store:  store,
		clock:  clock,
		logger: logger,
	}
}

// CleanupOldRecords deletes all hits older than the retention period and
// returns how many were deleted. Running it twice with no new hits in between
// deletes zero the second time.
func (c *Cleaner) CleanupOldRecords(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, &ValidationError{Field: "retention", Reason: "must be positive"}
	}

	cutoff := c.clock.Now().Add(-retention)

	deleted, err := c.store.DeleteHitsOlderThan(ctx, cutoff)
	if err != nil {
		return 0, &StoreError{Op: "cleanup", Err: err}
	}

	c.logger.Info("rate limit cleanup finished",
		zap.Int64("deleted", deleted),
		zap.Time("cutoff", cutoff),
	)

	return deleted, nil
}
