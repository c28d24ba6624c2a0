package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/casevault/rateguard/internal/abuse"
)

// Noop is an abuse.Store that only logs events. Used when no counter backend
// is configured.
type Noop struct {
	logger *zap.Logger
}

// NewNoop creates a new logging-only abuse store.
func NewNoop(logger *zap.Logger) *Noop {
	return &Noop{logger: logger}
}

func (n *Noop) SaveViolation(_ context.Context, event *abuse.ViolationEvent) error {
	n.logger.Info("violation event received",
		zap.String("id", event.ID),
		zap.String("key", event.Key),
		zap.String("action", event.Action),
		zap.Int64("hitCount", event.HitCount),
		zap.Time("occurredAt", event.OccurredAt),
	)

	return nil
}
