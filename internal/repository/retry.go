package repository

import (
	"context"
	"errors"
	"time"
)

// retryConfig acota los reintentos que hace un store ante conflictos transitorios.
type retryConfig struct {
	attempts     int
	initialDelay time.Duration
	maxDelay     time.Duration
}

var defaultRetry = retryConfig{
	attempts:     16,
	initialDelay: time.Millisecond,
	maxDelay:     50 * time.Millisecond,
}

// withRetry ejecuta fn hasta cfg.attempts veces mientras shouldRetry acepte el error,
// con backoff exponencial. Devuelve el error del ultimo intento.
func withRetry(ctx context.Context, cfg retryConfig, shouldRetry func(error) bool, onRetry func(), fn func() error) error {
	if cfg.attempts <= 0 {
		cfg.attempts = 1
	}
	if cfg.initialDelay <= 0 {
		cfg.initialDelay = defaultRetry.initialDelay
	}
	if cfg.maxDelay <= 0 {
		cfg.maxDelay = defaultRetry.maxDelay
	}

	delay := cfg.initialDelay
	var lastErr error
	for attempt := 1; attempt <= cfg.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return errors.Join(lastErr, err)
		}
		lastErr = fn()
		if lastErr == nil || !shouldRetry(lastErr) {
			return lastErr
		}
		if attempt == cfg.attempts {
			break
		}
		if onRetry != nil {
			onRetry()
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(lastErr, ctx.Err())
		case <-timer.C:
		}
		delay *= 2
		if delay > cfg.maxDelay {
			delay = cfg.maxDelay
		}
	}
	return lastErr
}
