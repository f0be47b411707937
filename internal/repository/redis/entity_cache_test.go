package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*red.Client, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := red.NewClient(&red.Options{Addr: server.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	return client, server
}

type cachedTenant struct {
	ID        string `json:"id"`
	Subdomain string `json:"subdomain"`
}

func TestEntityCache_SetAndGet(t *testing.T) {
	client, server := newTestRedis(t)
	cache := NewEntityCache(client, "crm")

	ctx := context.Background()
	ttl := 5 * time.Minute

	if err := cache.Set(ctx, "tenant:id:t-1", cachedTenant{ID: "t-1", Subdomain: "acme"}, ttl); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	var got cachedTenant
	found, err := cache.Get(ctx, "tenant:id:t-1", &got)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !found {
		t.Fatalf("expected cached entity to be found")
	}
	if got.ID != "t-1" || got.Subdomain != "acme" {
		t.Fatalf("unexpected entity %+v", got)
	}

	remaining := server.TTL("crm:tenant:id:t-1")
	if remaining <= 0 || remaining > ttl {
		t.Fatalf("expected ttl within (0, %v], got %v", ttl, remaining)
	}
}

func TestEntityCache_GetMiss(t *testing.T) {
	client, _ := newTestRedis(t)
	cache := NewEntityCache(client, "")

	var got cachedTenant
	found, err := cache.Get(context.Background(), "tenant:id:missing", &got)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if found {
		t.Fatalf("expected cache miss")
	}
}

func TestEntityCache_Expires(t *testing.T) {
	client, server := newTestRedis(t)
	cache := NewEntityCache(client, "crm")
	ctx := context.Background()

	if err := cache.Set(ctx, "user:id:u-1", cachedTenant{ID: "u-1"}, time.Minute); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	server.FastForward(2 * time.Minute)

	var got cachedTenant
	found, err := cache.Get(ctx, "user:id:u-1", &got)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if found {
		t.Fatalf("expected entry to expire")
	}
}

func TestEntityCache_Delete(t *testing.T) {
	client, server := newTestRedis(t)
	cache := NewEntityCache(client, "crm")
	ctx := context.Background()

	for _, key := range []string{"tenant:id:t-1", "tenant:subdomain:acme"} {
		if err := cache.Set(ctx, key, cachedTenant{ID: "t-1"}, time.Minute); err != nil {
			t.Fatalf("Set returned error: %v", err)
		}
	}

	if err := cache.Delete(ctx, "tenant:id:t-1", "", "tenant:subdomain:acme"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if server.Exists("crm:tenant:id:t-1") || server.Exists("crm:tenant:subdomain:acme") {
		t.Fatalf("expected keys to be removed")
	}
}

func TestEntityCache_RejectsInvalidInput(t *testing.T) {
	client, _ := newTestRedis(t)
	cache := NewEntityCache(client, "crm")
	ctx := context.Background()

	if err := cache.Set(ctx, "tenant:id:t-1", cachedTenant{}, 0); err == nil {
		t.Fatalf("expected error for non-positive ttl")
	}
	if err := cache.Set(ctx, "  ", cachedTenant{}, time.Minute); err == nil {
		t.Fatalf("expected error for empty key")
	}
}
