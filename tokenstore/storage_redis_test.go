package tokenstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStorage(t *testing.T, ttl time.Duration) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	return NewRedisStorage(rdb, "gac:", ttl), mr
}

func TestRedisStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	rs, mr := newRedisStorage(t, 0)

	if _, ok, err := rs.Get(ctx, "access_token"); err != nil || ok {
		t.Fatalf("expected missing slot, got ok=%v err=%v", ok, err)
	}
	if err := rs.Set(ctx, "access_token", "a1"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if got, _ := mr.Get("gac:access_token"); got != "a1" {
		t.Fatalf("expected prefixed key, got %q", got)
	}
	v, ok, err := rs.Get(ctx, "access_token")
	if err != nil || !ok || v != "a1" {
		t.Fatalf("unexpected get result %q %v %v", v, ok, err)
	}
	if err := rs.Remove(ctx, "access_token"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if err := rs.Remove(ctx, "access_token"); err != nil {
		t.Fatalf("remove of missing slot failed: %v", err)
	}
	if mr.Exists("gac:access_token") {
		t.Fatal("key survived remove")
	}
}

func TestRedisStorageAppliesTTL(t *testing.T) {
	ctx := context.Background()
	rs, mr := newRedisStorage(t, time.Hour)

	if err := rs.Set(ctx, "refresh_token", "r1"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if ttl := mr.TTL("gac:refresh_token"); ttl != time.Hour {
		t.Fatalf("expected 1h ttl, got %s", ttl)
	}
}

func TestRedisStorageUnavailable(t *testing.T) {
	ctx := context.Background()
	rs, mr := newRedisStorage(t, 0)
	mr.Close()

	if err := rs.Set(ctx, "access_token", "a1"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}

func TestStoreOverRedisSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	rs, _ := newRedisStorage(t, 0)

	first := New(rs)
	first.Set(ctx, Pair{AccessToken: "a1", RefreshToken: "r1"})

	second := New(rs)
	if err := second.Load(ctx); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got := second.Get(); got.AccessToken != "a1" || got.RefreshToken != "r1" {
		t.Fatalf("unexpected hydrated pair %+v", got)
	}
}
