package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyPrefix = "webhooks:payments:msg:"
	idempotencyTTL       = 72 * time.Hour
)

// Guard deduplicates webhook deliveries by provider message id.
type Guard interface {
	// CheckAndMark returns true if this delivery is the first with this
	// message id, marking it processed as a side effect.
	CheckAndMark(ctx context.Context, messageID string) (bool, error)
	// Release unmarks a message id after a failed handler so the provider's
	// retry can reprocess it.
	Release(ctx context.Context, messageID string) error
}

// RedisGuard implements Guard with a SetNX key per message id. The TTL only
// bounds storage; providers stop retrying long before it expires.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisGuard(client *redis.Client) *RedisGuard {
	return &RedisGuard{client: client, ttl: idempotencyTTL}
}

func (g *RedisGuard) CheckAndMark(ctx context.Context, messageID string) (bool, error) {
	if g.client == nil {
		// No redis configured: every delivery counts as fresh and the
		// reconciler's own idempotent semantics absorb duplicates.
		return true, nil
	}
	set, err := g.client.SetNX(ctx, idempotencyKeyPrefix+messageID, "1", g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set idempotency key: %w", err)
	}
	return set, nil
}

func (g *RedisGuard) Release(ctx context.Context, messageID string) error {
	if g.client == nil {
		return nil
	}
	return g.client.Del(ctx, idempotencyKeyPrefix+messageID).Err()
}
