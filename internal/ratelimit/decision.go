package ratelimit

import "time"

// Outcome classifies the result of a Check call.
type Outcome string

const (
	// Allowed means the hit was recorded and is within limits.
	Allowed Outcome = "allowed"
	// AllowedWithWarning means the hit was recorded but the remaining
	// budget is within the configured warning margin.
	AllowedWithWarning Outcome = "allowed_with_warning"
	// Denied means the hit was rejected, either by an active block or
	// because it crossed the threshold.
	Denied Outcome = "denied"
)

// Decision is the result of a rate limit check.
type Decision struct {
	Outcome Outcome

	// Remaining is the hit budget left in the current window.
	// Meaningful for allowed outcomes only.
	Remaining int64

	// RetryAfter is how long the caller must wait before the block
	// expires. Meaningful for denied outcomes only.
	RetryAfter time.Duration
}

// Allowed reports whether the request may proceed.
func (d Decision) Allowed() bool {
	return d.Outcome != Denied
}
