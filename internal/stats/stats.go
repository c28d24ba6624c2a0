// Package stats maintains a cached snapshot of rate limit aggregates so that
// dashboards never hit the hot tables directly. The cache is refreshed by an
// external cron through the service in this package.
package stats

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by cache reads when no snapshot has been stored yet.
var ErrCacheMiss = errors.New("stats cache: no snapshot")

// Counts are the aggregates exposed to operators.
type Counts struct {
	TotalHits       int64 `json:"totalHits"`
	ActiveBlocks    int64 `json:"activeBlocks"`
	TotalViolations int64 `json:"totalViolations"`
}

// Snapshot is one cached refresh result.
type Snapshot struct {
	Counts    Counts
	UpdatedAt time.Time
}

// Source produces aggregate counts from the system of record.
type Source interface {
	AggregateCounts(ctx context.Context, now time.Time) (Counts, error)
}

// Cache stores the latest snapshot.
type Cache interface {
	// Exists reports whether a snapshot has ever been written.
	Exists(ctx context.Context) (bool, error)

	// LastUpdated returns the timestamp of the cached snapshot.
	// Returns ErrCacheMiss when the cache is empty.
	LastUpdated(ctx context.Context) (time.Time, error)

	// Put replaces the cached snapshot.
	Put(ctx context.Context, snap Snapshot) error

	// Get returns the cached snapshot, or ErrCacheMiss.
	Get(ctx context.Context) (Snapshot, error)
}

// Clock matches ratelimit.Clock; redeclared to keep this package free of the
// core's types.
type Clock interface {
	Now() time.Time
}

// Service refreshes the cache from the source.
type Service struct {
	source Source
	cache  Cache
	clock  Clock
}

// NewService creates a stats refresh service.
func NewService(source Source, cache Cache, clock Clock) *Service {
	return &Service{
		source: source,
		cache:  cache,
		clock:  clock,
	}
}

// Exists reports whether the cache holds a snapshot.
func (s *Service) Exists(ctx context.Context) (bool, error) {
	return s.cache.Exists(ctx)
}

// LastUpdated returns when the cache was last refreshed.
func (s *Service) LastUpdated(ctx context.Context) (time.Time, error) {
	return s.cache.LastUpdated(ctx)
}

// Refresh pulls fresh aggregates from the source and stores them in the
// cache, returning the new snapshot.
func (s *Service) Refresh(ctx context.Context) (Snapshot, error) {
	now := s.clock.Now()

	counts, err := s.source.AggregateCounts(ctx, now)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{Counts: counts, UpdatedAt: now}

	if err := s.cache.Put(ctx, snap); err != nil {
		return Snapshot{}, err
	}

	return snap, nil
}
