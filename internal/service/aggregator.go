package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"mindmatch/internal/domain"
	"mindmatch/internal/metrics"
	"mindmatch/internal/repository"
)

// PatternAggregator pliega la clasificacion de un pensamiento en el patron de su autor.
type PatternAggregator struct {
	store          repository.PatternStore
	atomicThoughts bool
	logger         *zap.Logger
}

// NewPatternAggregator crea el agregador. Con atomicThoughts y un store que
// implemente repository.ThoughtBatcher, cada pensamiento se aplica en una sola transaccion.
func NewPatternAggregator(store repository.PatternStore, atomicThoughts bool, logger *zap.Logger) *PatternAggregator {
	return &PatternAggregator{
		store:          store,
		atomicThoughts: atomicThoughts,
		logger:         logger,
	}
}

// RecordThought suma cada tema distinto una vez y el sentimiento exactamente una vez.
// Los incrementos ya aplicados no se deshacen si el contexto se cancela a mitad de camino.
func (a *PatternAggregator) RecordThought(ctx context.Context, userID string, classification domain.Classification) error {
	topics := classification.DistinctTopics()

	if a.atomicThoughts {
		if batcher, ok := a.store.(repository.ThoughtBatcher); ok {
			if err := batcher.ApplyThought(ctx, userID, topics, classification.Sentiment); err != nil {
				return a.fail(userID, fmt.Errorf("apply thought: %w", err))
			}
			a.count(len(topics))
			return nil
		}
	}

	for i, topic := range topics {
		if err := ctx.Err(); err != nil {
			return a.fail(userID, fmt.Errorf("aborted after %d of %d topics: %w", i, len(topics), err))
		}
		if err := a.store.IncrementTopic(ctx, userID, topic); err != nil {
			return a.fail(userID, fmt.Errorf("increment topic %q: %w", topic, err))
		}
		metrics.PatternIncrements.WithLabelValues("topic").Inc()
	}

	if err := ctx.Err(); err != nil {
		return a.fail(userID, fmt.Errorf("aborted before sentiment: %w", err))
	}
	if err := a.store.IncrementSentiment(ctx, userID, classification.Sentiment); err != nil {
		return a.fail(userID, fmt.Errorf("increment sentiment: %w", err))
	}
	metrics.PatternIncrements.WithLabelValues("sentiment").Inc()
	return nil
}

func (a *PatternAggregator) count(topics int) {
	metrics.PatternIncrements.WithLabelValues("topic").Add(float64(topics))
	metrics.PatternIncrements.WithLabelValues("sentiment").Inc()
}

func (a *PatternAggregator) fail(userID string, err error) error {
	metrics.AggregationFailures.Inc()
	a.logger.Warn("pattern aggregation failed", zap.String("user_id", userID), zap.Error(err))
	return fmt.Errorf("%w: %w", ErrAggregationFailed, err)
}
