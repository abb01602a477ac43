package ratelimit

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"keyward/internal/config"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func TestParseScriptReply(t *testing.T) {
	current, ttl, err := parseScriptReply([]any{int64(3), int64(1500)})
	if err != nil || current != 3 || ttl != 1500 {
		t.Fatalf("unexpected parse: %d %d %v", current, ttl, err)
	}
	if _, _, err := parseScriptReply("OK"); err == nil {
		t.Fatal("expected error for non-array reply")
	}
	if _, _, err := parseScriptReply([]any{"3", int64(1)}); err == nil {
		t.Fatal("expected error for non-integer counter")
	}
}

func TestFromConfig_Memory(t *testing.T) {
	limiter, closeFn, err := FromConfig(config.Config{RateLimitMaxKeys: 5})
	if err != nil {
		t.Fatalf("from config: %v", err)
	}
	defer closeFn()
	if _, ok := limiter.(*Memory); !ok {
		t.Fatalf("expected memory limiter, got %T", limiter)
	}
}

func TestRedis_FixedWindow(t *testing.T) {
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR_TEST"))
	if addr == "" {
		t.Skip("REDIS_ADDR_TEST not set")
	}
	limiter, err := NewRedis(redis.NewClient(&redis.Options{Addr: addr}), nil)
	if err != nil {
		t.Fatalf("new redis limiter: %v", err)
	}
	defer limiter.Close()

	key := "test:" + uuid.NewString()
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		d, err := limiter.Allow(ctx, key, 2, time.Minute)
		if err != nil || !d.Allowed {
			t.Fatalf("request %d: expected allowed, got %+v err=%v", i, d, err)
		}
	}
	d, err := limiter.Allow(ctx, key, 2, time.Minute)
	if err != nil || d.Allowed {
		t.Fatalf("expected limited, got %+v err=%v", d, err)
	}
}

func TestNewRedis_RequiresClient(t *testing.T) {
	if _, err := NewRedis(nil, nil); err == nil {
		t.Fatal("expected error for nil client")
	}
}
