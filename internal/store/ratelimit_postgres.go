package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/casevault/rateguard/internal/ratelimit"
	"github.com/casevault/rateguard/internal/stats"
)

// RateLimitPostgresStore is the PostgreSQL implementation of ratelimit.Store.
//
// Expected schema:
//
//	CREATE TABLE rate_limit_hits (
//	    key    text        NOT NULL,
//	    action text        NOT NULL,
//	    at     timestamptz NOT NULL
//	);
//	CREATE INDEX rate_limit_hits_pair_at_idx ON rate_limit_hits (key, action, at);
//	CREATE INDEX rate_limit_hits_at_idx ON rate_limit_hits (at);
//
//	CREATE TABLE rate_limit_blocks (
//	    key             text        NOT NULL,
//	    action          text        NOT NULL,
//	    blocked_until   timestamptz NOT NULL,
//	    violation_count bigint      NOT NULL DEFAULT 0,
//	    reason          text        NOT NULL DEFAULT '',
//	    PRIMARY KEY (key, action)
//	);
//
//	CREATE TABLE rate_limit_violations (
//	    id        uuid        PRIMARY KEY,
//	    key       text        NOT NULL,
//	    action    text        NOT NULL,
//	    at        timestamptz NOT NULL,
//	    hit_count bigint      NOT NULL,
//	    details   text        NOT NULL DEFAULT ''
//	);
type RateLimitPostgresStore struct {
	pool *pgxpool.Pool
	pgOps
}

// NewRateLimitPostgresStore creates a PostgreSQL-backed rate limit store.
func NewRateLimitPostgresStore(pool *pgxpool.Pool) *RateLimitPostgresStore {
	return &RateLimitPostgresStore{
		pool:  pool,
		pgOps: pgOps{q: pool},
	}
}

// RunAtomic runs fn inside a transaction holding a transaction-scoped
// advisory lock derived from the pair, so concurrent checks for the same
// (key, action) serialize while other pairs proceed unimpeded. Any error
// from fn rolls the transaction back.
func (s *RateLimitPostgresStore) RunAtomic(ctx context.Context, key, action string, fn func(tx ratelimit.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() { _ = tx.Rollback(ctx) }()

	// NUL cannot appear in either field, so the joined form is unambiguous.
	_, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key+"\x00"+action)
	if err != nil {
		return err
	}

	if err := fn(&pgOps{q: tx}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *RateLimitPostgresStore) DeleteHitsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM rate_limit_hits WHERE at < $1`, cutoff)
	if err != nil {
		return 0, err
	}

	return tag.RowsAffected(), nil
}

func (s *RateLimitPostgresStore) ResetPair(ctx context.Context, key, action string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `DELETE FROM rate_limit_hits WHERE key = $1 AND action = $2`, key, action)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `DELETE FROM rate_limit_blocks WHERE key = $1 AND action = $2`, key, action)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// AggregateCounts implements stats.Source.
func (s *RateLimitPostgresStore) AggregateCounts(ctx context.Context, now time.Time) (stats.Counts, error) {
	var counts stats.Counts

	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM rate_limit_hits`).Scan(&counts.TotalHits)
	if err != nil {
		return stats.Counts{}, err
	}

	err = s.pool.QueryRow(ctx, `SELECT count(*) FROM rate_limit_blocks WHERE blocked_until > $1`, now).
		Scan(&counts.ActiveBlocks)
	if err != nil {
		return stats.Counts{}, err
	}

	err = s.pool.QueryRow(ctx, `SELECT count(*) FROM rate_limit_violations`).Scan(&counts.TotalViolations)
	if err != nil {
		return stats.Counts{}, err
	}

	return counts, nil
}

// pgQuerier is the subset of pgx shared by pgxpool.Pool and pgx.Tx.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pgOps implements ratelimit.Tx against either the pool or a transaction.
type pgOps struct {
	q pgQuerier
}

func (o *pgOps) CountHitsSince(ctx context.Context, key, action string, since time.Time) (int64, error) {
	var count int64

	err := o.q.QueryRow(ctx,
		`SELECT count(*) FROM rate_limit_hits WHERE key = $1 AND action = $2 AND at >= $3`,
		key, action, since,
	).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

func (o *pgOps) InsertHit(ctx context.Context, key, action string, at time.Time) error {
	_, err := o.q.Exec(ctx,
		`INSERT INTO rate_limit_hits (key, action, at) VALUES ($1, $2, $3)`,
		key, action, at,
	)

	return err
}

func (o *pgOps) GetActiveBlock(ctx context.Context, key, action string, now time.Time) (*ratelimit.Block, error) {
	return o.scanBlock(o.q.QueryRow(ctx,
		`SELECT blocked_until, violation_count, reason
		 FROM rate_limit_blocks
		 WHERE key = $1 AND action = $2 AND blocked_until > $3`,
		key, action, now,
	), key, action)
}

func (o *pgOps) GetBlock(ctx context.Context, key, action string) (*ratelimit.Block, error) {
	return o.scanBlock(o.q.QueryRow(ctx,
		`SELECT blocked_until, violation_count, reason
		 FROM rate_limit_blocks
		 WHERE key = $1 AND action = $2`,
		key, action,
	), key, action)
}

func (o *pgOps) scanBlock(row pgx.Row, key, action string) (*ratelimit.Block, error) {
	block := ratelimit.Block{Key: key, Action: action}

	err := row.Scan(&block.BlockedUntil, &block.ViolationCount, &block.Reason)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, err
	}

	return &block, nil
}

func (o *pgOps) UpsertBlock(ctx context.Context, block *ratelimit.Block) error {
	_, err := o.q.Exec(ctx,
		`INSERT INTO rate_limit_blocks (key, action, blocked_until, violation_count, reason)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (key, action) DO UPDATE SET
		     blocked_until   = EXCLUDED.blocked_until,
		     violation_count = EXCLUDED.violation_count,
		     reason          = EXCLUDED.reason`,
		block.Key, block.Action, block.BlockedUntil, block.ViolationCount, block.Reason,
	)

	return err
}

func (o *pgOps) InsertViolation(ctx context.Context, v *ratelimit.Violation) error {
	_, err := o.q.Exec(ctx,
		`INSERT INTO rate_limit_violations (id, key, action, at, hit_count, details)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		v.ID, v.Key, v.Action, v.At, v.HitCount, v.Details,
	)

	return err
}

// Compile-time checks.
var (
	_ ratelimit.Store = (*RateLimitPostgresStore)(nil)
	_ stats.Source    = (*RateLimitPostgresStore)(nil)
)
