package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type mockRedisEvaler struct {
	lastScript string
	lastKeys   []string
	lastArgs   []interface{}
	result     []interface{}
	err        error
}

func (m *mockRedisEvaler) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	m.lastScript = script
	m.lastKeys = keys
	m.lastArgs = args
	cmd := redis.NewCmd(ctx)
	if m.err != nil {
		cmd.SetErr(m.err)
		return cmd
	}
	cmd.SetVal(m.result)
	return cmd
}

func windowReply(count, ttlMillis int64) []interface{} {
	return []interface{}{count, ttlMillis}
}

func TestRedisThoughtRateLimiterAllow(t *testing.T) {
	ctx := context.Background()
	const userID = "0B7A4F4E-5C36-4A44-9D4E-1F0F4C3B2A10"

	t.Run("nil receiver fail-open", func(t *testing.T) {
		var l *redisThoughtRateLimiter
		if d := l.Allow(ctx, userID); !d.Allowed || d.Remaining != -1 {
			t.Fatalf("expected fail-open for nil limiter, got %+v", d)
		}
	})

	t.Run("empty user rejected", func(t *testing.T) {
		l := newRedisThoughtRateLimiter(&mockRedisEvaler{result: windowReply(1, 1000)}, time.Minute, 3, zap.NewNop())
		if l.Allow(ctx, "   ").Allowed {
			t.Fatalf("expected empty user to be rejected")
		}
	})

	t.Run("allow reports remaining budget", func(t *testing.T) {
		mock := &mockRedisEvaler{result: windowReply(2, 90_000)}
		l := newRedisThoughtRateLimiter(mock, 2*time.Minute, 3, zap.NewNop())
		d := l.Allow(ctx, " "+userID+" ")
		if !d.Allowed || d.Remaining != 1 {
			t.Fatalf("expected allowed with 1 remaining, got %+v", d)
		}
		wantKey := "thought:rl:user:0b7a4f4e-5c36-4a44-9d4e-1f0f4c3b2a10:thoughts"
		if len(mock.lastKeys) != 1 || mock.lastKeys[0] != wantKey {
			t.Fatalf("unexpected key, got %+v", mock.lastKeys)
		}
		if len(mock.lastArgs) != 1 || mock.lastArgs[0] != int64(120_000) {
			t.Fatalf("expected window in ms=120000, got %+v", mock.lastArgs)
		}
		if mock.lastScript != redisThoughtWindowScript {
			t.Fatalf("expected window script")
		}
	})

	t.Run("deny carries window ttl", func(t *testing.T) {
		l := newRedisThoughtRateLimiter(&mockRedisEvaler{result: windowReply(4, 12_500)}, time.Minute, 3, zap.NewNop())
		d := l.Allow(ctx, userID)
		if d.Allowed || d.RetryAfter != 12500*time.Millisecond {
			t.Fatalf("expected deny with 12.5s retry, got %+v", d)
		}
	})

	t.Run("redis error fail-open", func(t *testing.T) {
		l := newRedisThoughtRateLimiter(&mockRedisEvaler{err: errors.New("redis down")}, time.Minute, 3, zap.NewNop())
		if d := l.Allow(ctx, userID); !d.Allowed || d.Remaining != -1 {
			t.Fatalf("expected fail-open on redis errors, got %+v", d)
		}
	})
}

func TestRedisThoughtRateLimiterWindowScript(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	l := newRedisThoughtRateLimiter(client, time.Minute, 2, zap.NewNop())
	for want := 1; want >= 0; want-- {
		d := l.Allow(ctx, "u1")
		if !d.Allowed || d.Remaining != want {
			t.Fatalf("expected allowed with %d remaining, got %+v", want, d)
		}
	}
	d := l.Allow(ctx, "u1")
	if d.Allowed || d.RetryAfter <= 0 || d.RetryAfter > time.Minute {
		t.Fatalf("expected deny with retry inside the window, got %+v", d)
	}
	if !l.Allow(ctx, "u2").Allowed {
		t.Fatalf("expected other users unaffected")
	}
	if ttl := mr.TTL("thought:rl:user:u1:thoughts"); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("expected window ttl set on key, got %s", ttl)
	}

	mr.FastForward(time.Minute + time.Second)
	if d := l.Allow(ctx, "u1"); !d.Allowed || d.Remaining != 1 {
		t.Fatalf("expected fresh window after expiry, got %+v", d)
	}
}

func TestThoughtRateLimiterMemory(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	l := NewThoughtRateLimiter(time.Hour, 2).(*thoughtRateLimiter)
	l.now = func() time.Time { return now }

	if d := l.Allow(ctx, "u1"); !d.Allowed || d.Remaining != 1 {
		t.Fatalf("first thought: %+v", d)
	}
	if d := l.Allow(ctx, "u1"); !d.Allowed || d.Remaining != 0 {
		t.Fatalf("second thought: %+v", d)
	}
	d := l.Allow(ctx, "u1")
	if d.Allowed {
		t.Fatalf("expected third thought within window to be denied")
	}
	// un token cada 30 minutos
	if d.RetryAfter < 30*time.Minute-time.Second || d.RetryAfter > 30*time.Minute {
		t.Fatalf("retry after = %s, want ~30m", d.RetryAfter)
	}
	// el rechazo no consume presupuesto
	now = now.Add(30*time.Minute + time.Second)
	if d := l.Allow(ctx, "u1"); !d.Allowed || d.Remaining != 0 {
		t.Fatalf("expected token refilled after 30m, got %+v", d)
	}
	if l.Allow(ctx, " U1 ").Allowed {
		t.Fatalf("expected U1 to share the u1 window")
	}
	if !l.Allow(ctx, "u2").Allowed {
		t.Fatalf("expected other users unaffected")
	}
	if l.Allow(ctx, "  ").Allowed {
		t.Fatalf("expected empty user rejected")
	}
}
