package ratelimit

import (
	"context"
	"time"
)

// Hit is one recorded request for a (key, action) pair. Hits are immutable:
// they are only ever counted or deleted by cleanup.
type Hit struct {
	Key    string
	Action string
	At     time.Time
}

// Block is a temporary deny-all state for a (key, action) pair. At most one
// block exists per pair; repeat violations update it in place. A block whose
// BlockedUntil has passed is inactive but may still be present in storage.
type Block struct {
	Key            string
	Action         string
	BlockedUntil   time.Time
	ViolationCount int64
	Reason         string
}

// Violation is an append-only audit record written whenever a threshold is
// crossed. The core never mutates or deletes violations.
type Violation struct {
	ID       string
	Key      string
	Action   string
	At       time.Time
	HitCount int64
	Details  string
}

// Tx is the set of record operations available both standalone and inside an
// atomic unit.
type Tx interface {
	// CountHitsSince counts hits for the pair with At >= since.
	CountHitsSince(ctx context.Context, key, action string, since time.Time) (int64, error)

	// InsertHit appends a hit record.
	InsertHit(ctx context.Context, key, action string, at time.Time) error

	// GetActiveBlock returns the pair's block only while BlockedUntil > now,
	// and nil when the pair is not blocked.
	GetActiveBlock(ctx context.Context, key, action string, now time.Time) (*Block, error)

	// GetBlock returns the pair's block row regardless of expiry, or nil.
	// Needed to apply escalation against an expired block.
	GetBlock(ctx context.Context, key, action string) (*Block, error)

	// UpsertBlock creates the pair's block or replaces its fields.
	UpsertBlock(ctx context.Context, block *Block) error

	// InsertViolation appends a violation record.
	InsertViolation(ctx context.Context, v *Violation) error
}

// Store is the persistence contract consumed by the limiter and the cleaner.
// Implementations must tolerate multiple processes sharing the same backing
// storage; RunAtomic is the only mutual-exclusion primitive the core relies on.
type Store interface {
	Tx

	// RunAtomic executes fn as one atomic unit serialized against other
	// RunAtomic calls for the same (key, action) pair. Different pairs do
	// not contend. A failure of any step inside fn rolls back the unit.
	RunAtomic(ctx context.Context, key, action string, fn func(tx Tx) error) error

	// DeleteHitsOlderThan removes hits with At < cutoff across all pairs
	// and returns how many were removed.
	DeleteHitsOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// ResetPair removes the hits and block for one pair. Operator escape
	// hatch; violations are kept.
	ResetPair(ctx context.Context, key, action string) error
}
