package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/finbooks/accounting/internal/domain"
)

func TestCacheSetAndGet(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer mr.Close()
	defer client.Close()

	cache := NewCache(client)
	ctx := context.Background()

	if err := cache.Set(ctx, "balance:bank", "1250.50", time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	val, err := cache.Get(ctx, "balance:bank")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}

	if val != "1250.50" {
		t.Fatalf("expected 1250.50, got %s", val)
	}
}

func TestCacheGetMissingKey(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer mr.Close()
	defer client.Close()

	cache := NewCache(client)

	_, err := cache.Get(context.Background(), "balance:account:missing")
	if !errors.Is(err, domain.ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}
}

func TestCacheGetAfterExpiry(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer mr.Close()
	defer client.Close()

	cache := NewCache(client)
	ctx := context.Background()

	if err := cache.Set(ctx, "balance:cash", "300", time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	_, err := cache.Get(ctx, "balance:cash")
	if !errors.Is(err, domain.ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss after expiry, got %v", err)
	}
}

func TestCacheDelete(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer mr.Close()
	defer client.Close()

	cache := NewCache(client)
	ctx := context.Background()

	if err := cache.Set(ctx, "balance:summary", "{}", time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	if err := cache.Delete(ctx, "balance:summary"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	_, err := cache.Get(ctx, "balance:summary")
	if !errors.Is(err, domain.ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss for deleted key, got %v", err)
	}
}
