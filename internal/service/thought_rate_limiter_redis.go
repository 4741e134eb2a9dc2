package service

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// redisThoughtWindowScript cuenta publicaciones en una ventana fija y devuelve
// {cuenta, ms restantes de la ventana}. La ventana arranca con la primera publicacion.
const redisThoughtWindowScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`

// redisThoughtRateLimiter comparte la ventana de cada usuario entre replicas del servicio.
type redisThoughtRateLimiter struct {
	client  redisEvaler
	window  time.Duration
	max     int
	prefix  string
	timeout time.Duration
	logger  *zap.Logger
}

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

func NewRedisThoughtRateLimiter(client *redis.Client, window time.Duration, max int, logger *zap.Logger) ThoughtRateLimiter {
	if client == nil {
		return nil
	}
	return newRedisThoughtRateLimiter(client, window, max, logger)
}

func newRedisThoughtRateLimiter(client redisEvaler, window time.Duration, max int, logger *zap.Logger) *redisThoughtRateLimiter {
	if window < time.Millisecond {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &redisThoughtRateLimiter{
		client:  client,
		window:  window,
		max:     max,
		prefix:  "thought:rl:",
		timeout: 500 * time.Millisecond,
		logger:  logger,
	}
}

// Allow deja pasar la publicacion si redis no responde. Remaining -1 indica presupuesto desconocido.
func (l *redisThoughtRateLimiter) Allow(ctx context.Context, userID string) RateDecision {
	if l == nil || l.client == nil {
		return RateDecision{Allowed: true, Remaining: -1}
	}
	if strings.TrimSpace(userID) == "" {
		return RateDecision{}
	}
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	res, err := l.client.Eval(ctx, redisThoughtWindowScript,
		[]string{l.prefix + thoughtRateKey(userID)}, l.window.Milliseconds()).Int64Slice()
	if err != nil || len(res) != 2 {
		l.logger.Warn("thought rate limiter unavailable", zap.String("user_id", userID), zap.Error(err))
		return RateDecision{Allowed: true, Remaining: -1}
	}
	count, ttl := int(res[0]), time.Duration(res[1])*time.Millisecond
	if count > l.max {
		return RateDecision{RetryAfter: ttl}
	}
	return RateDecision{Allowed: true, Remaining: l.max - count}
}
