package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Limiter is the rate limit decision engine. It counts hits over a sliding
// window per (key, action) pair, escalates threshold breaches to blocks and
// records a violation for every breach.
//
// All state lives in the Store; a Limiter holds no mutable state of its own
// and any number of processes may run Check against the same store.
type Limiter struct {
	store  Store
	clock  Clock
	sink   ViolationSink
	logger *zap.Logger
}

// ViolationSink receives each violation after it has been durably recorded,
// outside the atomic unit. Used to fan violations out to the event stream;
// may be nil.
type ViolationSink func(v *Violation)

// NewLimiter creates a limiter on top of the given store.
func NewLimiter(store Store, clock Clock, sink ViolationSink, logger *zap.Logger) *Limiter {
	return &Limiter{
		store:  store,
		clock:  clock,
		sink:   sink,
		logger: logger,
	}
}

// Check decides whether a request identified by (key, action) may proceed
// under cfg, recording the hit and any block/violation side effects.
//
// Input validation failures return a *ValidationError before any store
// access. Store failures return a *StoreError together with the decision
// selected by cfg.FailOpen, so callers can enforce their outage policy
// without losing the error.
func (l *Limiter) Check(ctx context.Context, key, action string, cfg Config) (Decision, error) {
	if key == "" {
		return Decision{Outcome: Denied}, &ValidationError{Field: "key", Reason: "must not be empty"}
	}

	if action == "" {
		return Decision{Outcome: Denied}, &ValidationError{Field: "action", Reason: "must not be empty"}
	}

	if err := cfg.Validate(); err != nil {
		return Decision{Outcome: Denied}, err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.checkTimeout())
	defer cancel()

	now := l.clock.Now()

	var (
		decision  Decision
		violation *Violation
	)

	err := l.store.RunAtomic(ctx, key, action, func(tx Tx) error {
		var err error

		decision, violation, err = l.decide(ctx, tx, key, action, cfg, now)

		return err
	})
	if err != nil {
		storeErr := &StoreError{Op: "check", Err: err}

		var inner *StoreError
		if errors.As(err, &inner) {
			storeErr = inner
		}

		return l.failDecision(cfg), storeErr
	}

	// Fan out only after the atomic unit committed, so the stream never
	// carries a violation the store rolled back.
	if violation != nil && l.sink != nil {
		l.sink(violation)
	}

	return decision, nil
}

// decide runs the read-count / write-hit / conditional-block sequence inside
// one atomic unit.
func (l *Limiter) decide(ctx context.Context, tx Tx, key, action string, cfg Config, now time.Time) (Decision, *Violation, error) {
	// An already-blocked caller is denied without recording a hit, so
	// hammering a block never inflates the window count.
	block, err := tx.GetActiveBlock(ctx, key, action, now)
	if err != nil {
		return Decision{}, nil, err
	}

	if block != nil {
		return Decision{
			Outcome:    Denied,
			RetryAfter: block.BlockedUntil.Sub(now),
		}, nil, nil
	}

	if err := tx.InsertHit(ctx, key, action, now); err != nil {
		return Decision{}, nil, err
	}

	count, err := tx.CountHitsSince(ctx, key, action, now.Add(-cfg.Window))
	if err != nil {
		return Decision{}, nil, err
	}

	// The MaxHits-th hit passes; only the one after crosses the line.
	if count <= cfg.MaxHits {
		remaining := cfg.MaxHits - count

		outcome := Allowed
		if cfg.WarnWithin > 0 && remaining <= cfg.WarnWithin {
			outcome = AllowedWithWarning
		}

		return Decision{Outcome: outcome, Remaining: remaining}, nil, nil
	}

	return l.block(ctx, tx, key, action, cfg, now, count)
}

// block upserts the pair's block and appends the violation audit record.
func (l *Limiter) block(ctx context.Context, tx Tx, key, action string, cfg Config, now time.Time, count int64) (Decision, *Violation, error) {
	prior, err := tx.GetBlock(ctx, key, action)
	if err != nil {
		return Decision{}, nil, err
	}

	var (
		priorViolations int64
		lastUntil       time.Time
	)

	if prior != nil {
		priorViolations = prior.ViolationCount
		lastUntil = prior.BlockedUntil
	}

	duration := cfg.blockDurationFor(priorViolations, lastUntil, now)
	until := now.Add(duration)

	err = tx.UpsertBlock(ctx, &Block{
		Key:            key,
		Action:         action,
		BlockedUntil:   until,
		ViolationCount: priorViolations + 1,
		Reason:         fmt.Sprintf("%d hits in %s exceeded limit of %d", count, cfg.Window, cfg.MaxHits),
	})
	if err != nil {
		return Decision{}, nil, err
	}

	violation := &Violation{
		ID:       uuid.NewString(),
		Key:      key,
		Action:   action,
		At:       now,
		HitCount: count,
		Details:  fmt.Sprintf("blocked for %s after %d hits (limit %d per %s)", duration, count, cfg.MaxHits, cfg.Window),
	}

	if err := tx.InsertViolation(ctx, violation); err != nil {
		return Decision{}, nil, err
	}

	l.logger.Warn("rate limit violation",
		zap.String("key", key),
		zap.String("action", action),
		zap.Int64("hits", count),
		zap.Int64("limit", cfg.MaxHits),
		zap.Duration("blocked_for", duration),
	)

	return Decision{Outcome: Denied, RetryAfter: duration}, violation, nil
}

// failDecision is returned alongside a StoreError: allow on fail-open
// configs, deny otherwise.
func (l *Limiter) failDecision(cfg Config) Decision {
	if cfg.FailOpen {
		return Decision{Outcome: Allowed, Remaining: -1}
	}

	return Decision{Outcome: Denied}
}
