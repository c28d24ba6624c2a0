package abuse

import "context"

// Store receives consumed violation events.
type Store interface {
	SaveViolation(ctx context.Context, event *ViolationEvent) error
}
