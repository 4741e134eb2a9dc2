package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateDecision es la respuesta del limiter para una publicacion.
type RateDecision struct {
	Allowed bool
	// Remaining es el presupuesto que queda en la ventana despues de esta publicacion.
	Remaining int
	// RetryAfter solo tiene sentido cuando Allowed es false.
	RetryAfter time.Duration
}

// ThoughtRateLimiter limita la frecuencia de publicacion de pensamientos de cada usuario.
type ThoughtRateLimiter interface {
	Allow(ctx context.Context, userID string) RateDecision
}

// RateLimitedError envuelve ErrRateLimited con la espera sugerida.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s: retry after %s", ErrRateLimited, e.RetryAfter)
}

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }

// thoughtRateKey identifica la ventana de publicacion de un usuario.
func thoughtRateKey(userID string) string {
	return "user:" + strings.ToLower(strings.TrimSpace(userID)) + ":thoughts"
}

type thoughtRateLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*limiterEntry
	idleTTL  time.Duration
	lastGC   time.Time
	now      func() time.Time
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewThoughtRateLimiter crea un token bucket en memoria: max pensamientos por ventana, con rafaga max.
func NewThoughtRateLimiter(window time.Duration, max int) ThoughtRateLimiter {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &thoughtRateLimiter{
		limit:    rate.Every(window / time.Duration(max)),
		burst:    max,
		limiters: make(map[string]*limiterEntry),
		idleTTL:  window * 10,
		lastGC:   time.Now(),
		now:      time.Now,
	}
}

func (l *thoughtRateLimiter) Allow(_ context.Context, userID string) RateDecision {
	if strings.TrimSpace(userID) == "" {
		return RateDecision{}
	}
	key := thoughtRateKey(userID)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastAccess = now
	if now.Sub(l.lastGC) > l.idleTTL {
		l.collect(now)
	}

	r := entry.limiter.ReserveN(now, 1)
	if !r.OK() {
		return RateDecision{}
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return RateDecision{RetryAfter: delay}
	}
	remaining := int(entry.limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return RateDecision{Allowed: true, Remaining: remaining}
}

// collect elimina limiters sin uso; se llama con mu tomado.
func (l *thoughtRateLimiter) collect(now time.Time) {
	for key, entry := range l.limiters {
		if now.Sub(entry.lastAccess) > l.idleTTL {
			delete(l.limiters, key)
		}
	}
	l.lastGC = now
}
