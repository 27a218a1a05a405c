package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// IntentAlertTTL is how long an intent alert stays suppressed.
const IntentAlertTTL = 24 * time.Hour

// Deduplicator checks and records whether an alert has been sent recently.
type Deduplicator struct {
	rdb *redis.Client
}

// New creates a Deduplicator backed by Redis.
func New(redisURL, password string) (*Deduplicator, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	if password != "" {
		opts.Password = password
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	return &Deduplicator{rdb: rdb}, nil
}

// Client exposes the underlying connection for other Redis-backed caches.
func (d *Deduplicator) Client() *redis.Client { return d.rdb }

// Close shuts down the Redis connection.
func (d *Deduplicator) Close() error {
	return d.rdb.Close()
}

// Ping reports whether Redis is reachable.
func (d *Deduplicator) Ping(ctx context.Context) error {
	return d.rdb.Ping(ctx).Err()
}

// AlreadySent returns true if key is recorded. It fails closed: when Redis
// cannot answer, the alert is treated as sent.
func (d *Deduplicator) AlreadySent(ctx context.Context, key string) bool {
	exists, err := d.rdb.Exists(ctx, key).Result()
	if err != nil {
		return true
	}
	return exists > 0
}

// Record marks key as sent for ttl. A zero ttl never expires.
func (d *Deduplicator) Record(ctx context.Context, key string, ttl time.Duration) {
	d.rdb.Set(ctx, key, "1", ttl) //nolint:errcheck
}

// ClearByPattern removes every key matching a glob pattern.
func (d *Deduplicator) ClearByPattern(ctx context.Context, pattern string) {
	iter := d.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if len(keys) > 0 {
		d.rdb.Del(ctx, keys...) //nolint:errcheck
	}
}

// IntentKey identifies the alert for one intent of one wallet.
func IntentKey(address, intentID string) string {
	return fmt.Sprintf("alert:intent:%s:%s", address, intentID)
}

// WalletPattern matches every intent alert of a wallet.
func WalletPattern(address string) string {
	return fmt.Sprintf("alert:intent:%s:*", address)
}

// DigestKey identifies one chat's digest for a calendar day.
func DigestKey(chatID int64, day time.Time) string {
	return fmt.Sprintf("alert:digest:%d:%s", chatID, day.UTC().Format("2006-01-02"))
}
