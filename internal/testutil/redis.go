package testutil

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCandidates are probed in order when REDIS_ADDR is unset: the CI
// service name, a host-local server, then the docker-compose test profile.
var redisCandidates = []string{"redis:6379", "localhost:6379", "localhost:56379"}

const redisReservationPrefix = "esgpipeline:testutil:db_lock:"

// SetupTestRedis returns a client on an emptied, reserved logical database.
// Packages running in parallel each reserve a different DB in 1..15 through
// a SETNX key kept in DB 0, so FlushDB never crosses packages.
func SetupTestRedis(t TestingTB) *redis.Client {
	t.Helper()

	addr, err := findRedis()
	if err != nil {
		if requireRedis() {
			t.Fatal("redis not available for testing:", err)
		}
		t.Skip("redis not available for testing:", err)
	}

	client := redis.NewClient(&redis.Options{Addr: addr, DB: reserveRedisDB(t, addr)})
	t.Cleanup(func() { closeAndLog(t, "redis client", client) })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flush test redis db: %v", err)
	}
	return client
}

func findRedis() (string, error) {
	candidates := redisCandidates
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		candidates = []string{addr}
	}
	var lastErr error
	for _, addr := range candidates {
		if lastErr = pingRedis(addr); lastErr == nil {
			return addr, nil
		}
	}
	return "", lastErr
}

func pingRedis(addr string) error {
	c := redis.NewClient(&redis.Options{Addr: addr})
	defer c.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%s: %w", addr, err)
	}
	return nil
}

// reserveRedisDB honours TEST_REDIS_DB, otherwise claims the first free DB
// index and releases it on cleanup. It falls back to DB 1.
func reserveRedisDB(t TestingTB, addr string) int {
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i >= 0 {
			return i
		}
		t.Logf("ignoring invalid TEST_REDIS_DB=%q", v)
	}

	meta := redis.NewClient(&redis.Options{Addr: addr})
	token := fmt.Sprintf("%d:%d", os.Getpid(), time.Now().UnixNano())
	for i := 1; i <= 15; i++ {
		key := redisReservationPrefix + strconv.Itoa(i)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		ok, err := meta.SetNX(ctx, key, token, 30*time.Minute).Result()
		cancel()
		if err != nil || !ok {
			continue
		}
		t.Cleanup(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := meta.Del(ctx, key).Err(); err != nil {
				t.Logf("release redis db reservation %s: %v", key, err)
			}
			closeAndLog(t, "redis meta client", meta)
		})
		t.Logf("using redis db %d at %s", i, addr)
		return i
	}
	closeAndLog(t, "redis meta client", meta)
	t.Logf("no free redis db at %s, using db 1", addr)
	return 1
}
