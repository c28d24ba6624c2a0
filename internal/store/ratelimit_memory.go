package store

import (
	"context"
	"sync"
	"time"

	"github.com/casevault/rateguard/internal/ratelimit"
	"github.com/casevault/rateguard/internal/stats"
)

type pair struct {
	key    string
	action string
}

// RateLimitMemoryStore is an in-memory implementation of ratelimit.Store for
// tests and single-process deployments. A single mutex covers all pairs,
// which trivially satisfies the per-pair atomicity contract.
type RateLimitMemoryStore struct {
	mu         sync.Mutex
	hits       map[pair][]time.Time
	blocks     map[pair]ratelimit.Block
	violations []ratelimit.Violation
}

// NewRateLimitMemoryStore creates an empty in-memory rate limit store.
func NewRateLimitMemoryStore() *RateLimitMemoryStore {
	return &RateLimitMemoryStore{
		hits:   make(map[pair][]time.Time),
		blocks: make(map[pair]ratelimit.Block),
	}
}

func (s *RateLimitMemoryStore) CountHitsSince(_ context.Context, key, action string, since time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.countHitsSince(key, action, since), nil
}

func (s *RateLimitMemoryStore) InsertHit(_ context.Context, key, action string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.insertHit(key, action, at)

	return nil
}

func (s *RateLimitMemoryStore) GetActiveBlock(_ context.Context, key, action string, now time.Time) (*ratelimit.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getActiveBlock(key, action, now), nil
}

func (s *RateLimitMemoryStore) GetBlock(_ context.Context, key, action string) (*ratelimit.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getBlock(key, action), nil
}

func (s *RateLimitMemoryStore) UpsertBlock(_ context.Context, block *ratelimit.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.upsertBlock(block)

	return nil
}

func (s *RateLimitMemoryStore) InsertViolation(_ context.Context, v *ratelimit.Violation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.insertViolation(v)

	return nil
}

// RunAtomic holds the store lock for the duration of fn. On error the pair's
// hit and block state and the violation log are restored, so a failed unit
// leaves no partial writes behind.
func (s *RateLimitMemoryStore) RunAtomic(_ context.Context, key, action string, fn func(tx ratelimit.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := pair{key: key, action: action}

	savedHits := append([]time.Time(nil), s.hits[p]...)
	savedBlock, hadBlock := s.blocks[p]
	savedViolations := len(s.violations)

	if err := fn(&memTx{s: s}); err != nil {
		s.hits[p] = savedHits

		if hadBlock {
			s.blocks[p] = savedBlock
		} else {
			delete(s.blocks, p)
		}

		s.violations = s.violations[:savedViolations]

		return err
	}

	return nil
}

func (s *RateLimitMemoryStore) DeleteHitsOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64

	for p, stamps := range s.hits {
		kept := stamps[:0]

		for _, at := range stamps {
			if at.Before(cutoff) {
				deleted++
			} else {
				kept = append(kept, at)
			}
		}

		if len(kept) == 0 {
			delete(s.hits, p)
		} else {
			s.hits[p] = kept
		}
	}

	return deleted, nil
}

func (s *RateLimitMemoryStore) ResetPair(_ context.Context, key, action string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := pair{key: key, action: action}
	delete(s.hits, p)
	delete(s.blocks, p)

	return nil
}

// AggregateCounts implements stats.Source.
func (s *RateLimitMemoryStore) AggregateCounts(_ context.Context, now time.Time) (stats.Counts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var counts stats.Counts

	for _, stamps := range s.hits {
		counts.TotalHits += int64(len(stamps))
	}

	for _, block := range s.blocks {
		if block.BlockedUntil.After(now) {
			counts.ActiveBlocks++
		}
	}

	counts.TotalViolations = int64(len(s.violations))

	return counts, nil
}

// Violations returns a copy of the violation log, oldest first.
func (s *RateLimitMemoryStore) Violations() []ratelimit.Violation {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]ratelimit.Violation(nil), s.violations...)
}

// memTx runs record operations without re-acquiring the store lock; it only
// exists inside RunAtomic, where the lock is already held.
type memTx struct {
	s *RateLimitMemoryStore
}

func (t *memTx) CountHitsSince(_ context.Context, key, action string, since time.Time) (int64, error) {
	return t.s.countHitsSince(key, action, since), nil
}

func (t *memTx) InsertHit(_ context.Context, key, action string, at time.Time) error {
	t.s.insertHit(key, action, at)

	return nil
}

func (t *memTx) GetActiveBlock(_ context.Context, key, action string, now time.Time) (*ratelimit.Block, error) {
	return t.s.getActiveBlock(key, action, now), nil
}

func (t *memTx) GetBlock(_ context.Context, key, action string) (*ratelimit.Block, error) {
	return t.s.getBlock(key, action), nil
}

func (t *memTx) UpsertBlock(_ context.Context, block *ratelimit.Block) error {
	t.s.upsertBlock(block)

	return nil
}

func (t *memTx) InsertViolation(_ context.Context, v *ratelimit.Violation) error {
	t.s.insertViolation(v)

	return nil
}

// Unlocked internals shared by the store methods and memTx.

func (s *RateLimitMemoryStore) countHitsSince(key, action string, since time.Time) int64 {
	var count int64

	for _, at := range s.hits[pair{key: key, action: action}] {
		if !at.Before(since) {
			count++
		}
	}

	return count
}

func (s *RateLimitMemoryStore) insertHit(key, action string, at time.Time) {
	p := pair{key: key, action: action}
	s.hits[p] = append(s.hits[p], at)
}

func (s *RateLimitMemoryStore) getActiveBlock(key, action string, now time.Time) *ratelimit.Block {
	block := s.getBlock(key, action)
	if block == nil || !block.BlockedUntil.After(now) {
		return nil
	}

	return block
}

func (s *RateLimitMemoryStore) getBlock(key, action string) *ratelimit.Block {
	block, ok := s.blocks[pair{key: key, action: action}]
	if !ok {
		return nil
	}

	copied := block

	return &copied
}

func (s *RateLimitMemoryStore) upsertBlock(block *ratelimit.Block) {
	s.blocks[pair{key: block.Key, action: block.Action}] = *block
}

func (s *RateLimitMemoryStore) insertViolation(v *ratelimit.Violation) {
	s.violations = append(s.violations, *v)
}

// Compile-time checks.
var (
	_ ratelimit.Store = (*RateLimitMemoryStore)(nil)
	_ stats.Source    = (*RateLimitMemoryStore)(nil)
)
