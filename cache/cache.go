// Package cache provides Redis read-cache helpers for the API layer.
//
// The cache only ever holds copies of ledger reads (balance, transaction
// history); every write path invalidates the affected keys. A nil client
// disables caching entirely, so handlers don't branch on configuration.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTL bounds staleness for entries that survive an invalidation miss.
const TTL = 60 * time.Second

// BalanceKey returns the cache key for a user's rewards balance.
func BalanceKey(userID string) string { return "rewards:user:" + userID }

// TransactionsKey returns the cache key for a user's payment history.
func TransactionsKey(userID string) string { return "txhistory:user:" + userID }

// Get retrieves a value and unmarshals it into dest. A nil client or a
// missing key reports found=false.
func Get(ctx context.Context, rdb *redis.Client, key string, dest any) (bool, error) {
	if rdb == nil {
		return false, nil
	}
	val, err := rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return true, json.Unmarshal([]byte(val), dest)
}

// Set stores a value with the package TTL. No-op on a nil client.
func Set(ctx context.Context, rdb *redis.Client, key string, value any) error {
	if rdb == nil {
		return nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, key, b, TTL).Err()
}

// Delete removes keys. No-op on a nil client.
func Delete(ctx context.Context, rdb *redis.Client, keys ...string) error {
	if rdb == nil || len(keys) == 0 {
		return nil
	}
	return rdb.Del(ctx, keys...).Err()
}
