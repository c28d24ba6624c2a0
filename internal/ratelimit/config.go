package ratelimit

import "time"

// DefaultCheckTimeout bounds store access for a single Check call when the
// config does not set its own timeout.
const DefaultCheckTimeout = 5 * time.Second

// Escalation controls how repeat offenders are treated. When enabled, a new
// violation within Window of the previous block multiplies the block duration
// by Factor for every prior violation, capped at MaxBlock.
type Escalation struct {
	Enabled  bool
	Factor   float64
	Window   time.Duration
	MaxBlock time.Duration
}

// Config defines the limits for one action.
type Config struct {
	// Window is the sliding window over which hits are counted.
	Window time.Duration

	// MaxHits is the number of hits allowed within Window. The MaxHits-th
	// hit is still allowed; the next one triggers a block.
	MaxHits int64

	// BlockDuration is how long a (key, action) pair is denied after
	// crossing MaxHits, before any escalation applies.
	BlockDuration time.Duration

	// WarnWithin marks allowed responses as warnings when the remaining
	// budget drops to this value or below. Zero disables warnings.
	WarnWithin int64

	// FailOpen selects the decision returned alongside a StoreError.
	// Default (false) is fail-closed: deny when the store is unreachable.
	FailOpen bool

	// CheckTimeout bounds the store work of a single Check call.
	// Zero means DefaultCheckTimeout.
	CheckTimeout time.Duration

	Escalation Escalation
}

// Validate reports whether the config can be enforced.
func (c Config) Validate() error {
	if c.Window <= 0 {
		return &ValidationError{Field: "window", Reason: "must be positive"}
	}

	if c.MaxHits <= 0 {
		return &ValidationError{Field: "maxHits", Reason: "must be positive"}
	}

	if c.BlockDuration <= 0 {
		return &ValidationError{Field: "blockDuration", Reason: "must be positive"}
	}

	if c.Escalation.Enabled && c.Escalation.Factor < 1 {
		return &ValidationError{Field: "escalation.factor", Reason: "must be >= 1"}
	}

	return nil
}

func (c Config) checkTimeout() time.Duration {
	if c.CheckTimeout > 0 {
		return c.CheckTimeout
	}

	return DefaultCheckTimeout
}

// blockDurationFor computes the block duration given the number of prior
// violations for the pair and the instant of the previous block, applying the
// escalation policy when it is enabled and the new violation falls within the
// escalation window.
func (c Config) blockDurationFor(priorViolations int64, lastBlockedUntil time.Time, now time.Time) time.Duration {
	d := c.BlockDuration

	esc := c.Escalation
	if !esc.Enabled || priorViolations <= 0 {
		return d
	}

	if esc.Window > 0 && now.Sub(lastBlockedUntil) > esc.Window {
		// Previous offence is too old to escalate on.
		return d
	}

	for range priorViolations {
		d = time.Duration(float64(d) * esc.Factor)

		if esc.MaxBlock > 0 && d >= esc.MaxBlock {
			return esc.MaxBlock
		}
	}

	return d
}
