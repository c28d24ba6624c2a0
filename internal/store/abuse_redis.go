package store

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/casevault/rateguard/internal/abuse"
)

const violationCounterKey = "rateguard:violations"

// AbuseRedisStore keeps per-action violation counters in a Redis hash.
// The counters feed operator dashboards; the violation audit trail itself
// lives in PostgreSQL.
type AbuseRedisStore struct {
	client *redis.Client
	key    string
}

// NewAbuseRedisStore creates a Redis-backed abuse store.
func NewAbuseRedisStore(client *redis.Client) *AbuseRedisStore {
	return &AbuseRedisStore{
		client: client,
		key:    violationCounterKey,
	}
}

func (s *AbuseRedisStore) SaveViolation(ctx context.Context, event *abuse.ViolationEvent) error {
	return s.client.HIncrBy(ctx, s.key, event.Action, 1).Err()
}

// ViolationCounts returns the per-action counters.
func (s *AbuseRedisStore) ViolationCounts(ctx context.Context) (map[string]int64, error) {
	raw, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(raw))
	for action, value := range raw {
		counts[action] = parseCount(value)
	}

	return counts, nil
}

// Compile-time check.
var _ abuse.Store = (*AbuseRedisStore)(nil)
