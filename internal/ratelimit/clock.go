package ratelimit

import "time"

// Clock supplies the current time. Abstracted so window and block boundaries
// can be tested without sleeping.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}
