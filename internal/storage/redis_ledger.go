package storage

import (
	"context"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of the go-redis client the ledger needs.
type RedisClient interface {
	SIsMember(ctx context.Context, key string, member interface{}) *redis.BoolCmd
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
}

// RedisLedger stores processed identifiers in a single Redis set, so several
// hosts can share one ledger.
type RedisLedger struct {
	client RedisClient
	key    string
}

func NewRedisLedger(client RedisClient, key string) *RedisLedger {
	return &RedisLedger{client: client, key: key}
}

func (r *RedisLedger) IsProcessed(ctx context.Context, id string) (bool, error) {
	ok, err := r.client.SIsMember(ctx, r.key, id).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check ledger: %w", err)
	}
	return ok, nil
}

func (r *RedisLedger) MarkProcessed(ctx context.Context, id string) error {
	if err := r.client.SAdd(ctx, r.key, id).Err(); err != nil {
		return fmt.Errorf("failed to mark %s processed: %w", id, err)
	}
	return nil
}

// Processed returns the members sorted; Redis sets carry no insertion order.
func (r *RedisLedger) Processed(ctx context.Context) ([]string, error) {
	members, err := r.client.SMembers(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger: %w", err)
	}
	sort.Strings(members)
	return members, nil
}
