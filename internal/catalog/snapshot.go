package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/web3-frozen/stable-yield/internal/yield"
)

const snapshotTTL = 24 * time.Hour

// RedisSnapshot stores the last good catalog as a JSON blob under CacheKey.
type RedisSnapshot struct {
	rdb *redis.Client
	key string
}

func NewRedisSnapshot(rdb *redis.Client) *RedisSnapshot {
	return &RedisSnapshot{rdb: rdb, key: CacheKey}
}

func (s *RedisSnapshot) Save(ctx context.Context, opps []yield.Opportunity) error {
	data, err := json.Marshal(opps)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key, data, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Load returns nil without error when no snapshot exists.
func (s *RedisSnapshot) Load(ctx context.Context) ([]yield.Opportunity, error) {
	data, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	var opps []yield.Opportunity
	if err := json.Unmarshal(data, &opps); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return opps, nil
}
