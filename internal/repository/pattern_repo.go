package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"mindmatch/internal/domain"
	"mindmatch/internal/metrics"
)

const (
	incrementTopicSQL = `
		INSERT INTO pattern_topics (user_id, topic, count)
		VALUES ($1, $2, 1)
		ON CONFLICT (user_id, topic)
		DO UPDATE SET count = pattern_topics.count + 1
	`
	incrementSentimentSQL = `
		INSERT INTO pattern_sentiments (user_id, sentiment, count)
		VALUES ($1, $2, 1)
		ON CONFLICT (user_id, sentiment)
		DO UPDATE SET count = pattern_sentiments.count + 1
	`
)

// PgPatternStore guarda cada celda del patron como una fila. El upsert con
// count = count + 1 toma el lock de esa fila, asi que no se pierden incrementos.
type PgPatternStore struct {
	pool  *pgxpool.Pool
	retry retryConfig
}

func NewPgPatternStore(pool *pgxpool.Pool, attempts int) *PgPatternStore {
	cfg := defaultRetry
	if attempts > 0 {
		cfg.attempts = attempts
	}
	return &PgPatternStore{pool: pool, retry: cfg}
}

func (r *PgPatternStore) IncrementTopic(ctx context.Context, userID, topic string) error {
	if err := validateCell(userID, topic); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, incrementTopicSQL, userID, topic)
	return err
}

func (r *PgPatternStore) IncrementSentiment(ctx context.Context, userID string, sentiment domain.Sentiment) error {
	if err := validateSentimentCell(userID, sentiment); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, incrementSentimentSQL, userID, string(sentiment))
	return err
}

// ApplyThought aplica todos los incrementos de un pensamiento en una transaccion.
// Reintenta ante deadlocks entre pensamientos concurrentes del mismo usuario.
func (r *PgPatternStore) ApplyThought(ctx context.Context, userID string, topics []string, sentiment domain.Sentiment) error {
	if err := validateThought(userID, topics, sentiment); err != nil {
		return err
	}
	return withRetry(ctx, r.retry, isRetryablePgError, func() {
		metrics.StoreConflictRetries.WithLabelValues("postgres").Inc()
	}, func() error {
		return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
			for _, t := range topics {
				if _, err := tx.Exec(ctx, incrementTopicSQL, userID, t); err != nil {
					return fmt.Errorf("increment topic %q: %w", t, err)
				}
			}
			if _, err := tx.Exec(ctx, incrementSentimentSQL, userID, string(sentiment)); err != nil {
				return fmt.Errorf("increment sentiment: %w", err)
			}
			return nil
		})
	})
}

func (r *PgPatternStore) GetPattern(ctx context.Context, userID string) (domain.ThoughtPattern, error) {
	if userID == "" {
		return domain.ThoughtPattern{}, ErrEmptyUserID
	}
	pattern := domain.NewThoughtPattern()

	const topicsQuery = `SELECT topic, count FROM pattern_topics WHERE user_id = $1`
	rows, err := r.pool.Query(ctx, topicsQuery, userID)
	if err != nil {
		return domain.ThoughtPattern{}, err
	}
	for rows.Next() {
		var topic string
		var count int64
		if err := rows.Scan(&topic, &count); err != nil {
			rows.Close()
			return domain.ThoughtPattern{}, err
		}
		pattern.Topics[topic] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return domain.ThoughtPattern{}, err
	}

	const sentimentsQuery = `SELECT sentiment, count FROM pattern_sentiments WHERE user_id = $1`
	rows, err = r.pool.Query(ctx, sentimentsQuery, userID)
	if err != nil {
		return domain.ThoughtPattern{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var sentiment string
		var count int64
		if err := rows.Scan(&sentiment, &count); err != nil {
			return domain.ThoughtPattern{}, err
		}
		pattern.Sentiments[domain.Sentiment(sentiment)] = count
	}
	if err := rows.Err(); err != nil {
		return domain.ThoughtPattern{}, err
	}
	return pattern, nil
}

// ListCandidatePatterns lee todas las celdas salvo las del usuario excluido.
// Las dos lecturas no forman un snapshot atomico; es suficiente para puntuar.
func (r *PgPatternStore) ListCandidatePatterns(ctx context.Context, excludeUserID string) ([]domain.UserPattern, error) {
	patterns := make(map[string]domain.ThoughtPattern)
	get := func(userID string) domain.ThoughtPattern {
		p, ok := patterns[userID]
		if !ok {
			p = domain.NewThoughtPattern()
			patterns[userID] = p
		}
		return p
	}

	const topicsQuery = `SELECT user_id, topic, count FROM pattern_topics WHERE user_id <> $1`
	rows, err := r.pool.Query(ctx, topicsQuery, excludeUserID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var userID, topic string
		var count int64
		if err := rows.Scan(&userID, &topic, &count); err != nil {
			rows.Close()
			return nil, err
		}
		get(userID).Topics[topic] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const sentimentsQuery = `SELECT user_id, sentiment, count FROM pattern_sentiments WHERE user_id <> $1`
	rows, err = r.pool.Query(ctx, sentimentsQuery, excludeUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var userID, sentiment string
		var count int64
		if err := rows.Scan(&userID, &sentiment, &count); err != nil {
			return nil, err
		}
		get(userID).Sentiments[domain.Sentiment(sentiment)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]domain.UserPattern, 0, len(patterns))
	for userID, p := range patterns {
		out = append(out, domain.UserPattern{UserID: userID, Pattern: p})
	}
	sortUserPatterns(out)
	return out, nil
}

// isRetryablePgError detecta deadlocks y fallos de serializacion.
func isRetryablePgError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40P01" || pgErr.Code == "40001"
}
