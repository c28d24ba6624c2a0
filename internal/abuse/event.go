package abuse

import "time"

// TopicViolation is the message topic for rate limit violations.
const TopicViolation = "ratelimit.violation"

// ViolationEvent is emitted whenever the limiter records a violation, so
// alerting and aggregation can happen outside the request path. The database
// row written by the limiter stays the system of record; this stream is
// best-effort.
type ViolationEvent struct {
	ID         string    `json:"id"`
	Key        string    `json:"key"`
	Action     string    `json:"action"`
	HitCount   int64     `json:"hitCount"`
	BlockedFor string    `json:"blockedFor"`
	OccurredAt time.Time `json:"occurredAt"`
}
