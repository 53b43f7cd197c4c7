// Package redis provides Redis-backed adapters: a keyed in-flight lock and a
// pub/sub relay for analysis status updates.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock is a token-guarded SET NX lock.
type Lock struct {
	client redis.UniversalClient
	prefix string
}

// NewLock creates a Lock whose keys are prefixed with prefix.
func NewLock(client redis.UniversalClient, prefix string) *Lock {
	return &Lock{client: client, prefix: prefix}
}

// Acquire takes key for ttl. It returns false without error when another
// holder has it.
func (l *Lock) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if key == "" {
		return "", false, errors.New("key cannot be empty")
	}
	if ttl <= 0 {
		ttl = time.Second
	}

	token := uuid.NewString()
	// SETNX followed by EXPIRE is not atomic; SET with NX and a TTL is.
	status, err := l.client.SetArgs(ctx, l.prefix+key, token, redis.SetArgs{Mode: "NX", TTL: ttl}).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis SET NX: %w", err)
	}
	return token, status == "OK", nil
}

// Release drops key if it is still held with token. An expired or stolen
// lock is left alone.
func (l *Lock) Release(ctx context.Context, key, token string) error {
	if key == "" || token == "" {
		return nil
	}
	if err := releaseScript.Run(ctx, l.client, []string{l.prefix + key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis release: %w", err)
	}
	return nil
}
