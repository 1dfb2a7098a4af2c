package app

import (
	"context"
	"errors"
	"os"
	"testing"

	"tablet-tracker/internal/logging"

	"github.com/redis/go-redis/v9"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set; skipping redis test")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("ping redis: %v", err)
	}
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestRedisJobLocker_SecondCallerRejected(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()
	rdb.Del(ctx, "lock:job:"+JobRecalculate)

	a := NewRedisJobLocker(rdb, logging.Discard())
	b := NewRedisJobLocker(rdb, logging.Discard())

	var inner error
	err := a.Run(ctx, JobRecalculate, func(ctx context.Context) error {
		inner = b.Run(ctx, JobRecalculate, func(context.Context) error { return nil })
		return nil
	})
	if err != nil {
		t.Fatalf("outer Run: %v", err)
	}
	if !errors.Is(inner, ErrJobRunning) {
		t.Errorf("expected ErrJobRunning from second locker, got %v", inner)
	}

	// Released after the first job returns.
	if err := b.Run(ctx, JobRecalculate, func(context.Context) error { return nil }); err != nil {
		t.Errorf("expected lock free after release, got %v", err)
	}
}
