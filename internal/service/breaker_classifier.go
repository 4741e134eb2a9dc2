package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"mindmatch/internal/domain"
	"mindmatch/internal/metrics"
)

// BreakerClassifierConfig controla el timeout por llamada y el circuit breaker.
type BreakerClassifierConfig struct {
	Timeout             time.Duration
	ConsecutiveFailures uint32
	Cooldown            time.Duration
}

// BreakerClassifier envuelve un Classifier con timeout y circuit breaker.
// Cualquier fallo se reporta como ErrClassificationUnavailable.
type BreakerClassifier struct {
	next    Classifier
	cb      *gobreaker.CircuitBreaker[domain.Classification]
	timeout time.Duration
	logger  *zap.Logger
}

func NewBreakerClassifier(next Classifier, cfg BreakerClassifierConfig, logger *zap.Logger) *BreakerClassifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	const name = "classifier"
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[domain.Classification](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		// Una cancelacion del llamador no dice nada de la salud del clasificador.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("classifier circuit breaker state change",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
		},
	})

	return &BreakerClassifier{
		next:    next,
		cb:      cb,
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

func (b *BreakerClassifier) Classify(ctx context.Context, text string) (domain.Classification, error) {
	result, err := b.cb.Execute(func() (domain.Classification, error) {
		callCtx, cancel := context.WithTimeout(ctx, b.timeout)
		defer cancel()
		return b.next.Classify(callCtx, text)
	})
	if err == nil {
		return result, nil
	}

	reason := "error"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		reason = "rejected"
	case errors.Is(err, context.DeadlineExceeded):
		reason = "timeout"
	}
	metrics.ClassificationFailures.WithLabelValues(reason).Inc()
	return domain.Classification{}, fmt.Errorf("%w: %s: %w", ErrClassificationUnavailable, reason, err)
}

// State expone el estado del breaker para health checks.
func (b *BreakerClassifier) State() gobreaker.State {
	return b.cb.State()
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
