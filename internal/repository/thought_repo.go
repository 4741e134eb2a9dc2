package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"mindmatch/internal/domain"
)

type ThoughtRepository interface {
	Create(ctx context.Context, thought domain.Thought) error
	ListRecent(ctx context.Context, limit int) ([]domain.Thought, error)
	ListByUserID(ctx context.Context, userID string, limit int) ([]domain.Thought, error)
}

type PgThoughtRepository struct {
	pool *pgxpool.Pool
}

func NewPgThoughtRepository(pool *pgxpool.Pool) *PgThoughtRepository {
	return &PgThoughtRepository{pool: pool}
}

func (r *PgThoughtRepository) Create(ctx context.Context, thought domain.Thought) error {
	const query = `
		INSERT INTO thoughts (id, user_id, content, sentiment, topics, classified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	topics := thought.Topics
	if topics == nil {
		topics = []string{}
	}
	_, err := r.pool.Exec(ctx, query,
		thought.ID,
		thought.UserID,
		thought.Content,
		string(thought.Sentiment),
		topics,
		thought.Classified,
		thought.CreatedAt,
	)
	return err
}

func (r *PgThoughtRepository) ListRecent(ctx context.Context, limit int) ([]domain.Thought, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `
		SELECT id, user_id, content, sentiment, topics, classified, created_at
		FROM thoughts
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanThoughts(rows)
}

func (r *PgThoughtRepository) ListByUserID(ctx context.Context, userID string, limit int) ([]domain.Thought, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `
		SELECT id, user_id, content, sentiment, topics, classified, created_at
		FROM thoughts
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanThoughts(rows)
}

func scanThoughts(rows pgxRows) ([]domain.Thought, error) {
	thoughts := []domain.Thought{}
	for rows.Next() {
		var t domain.Thought
		var sentiment string
		if err := rows.Scan(
			&t.ID,
			&t.UserID,
			&t.Content,
			&sentiment,
			&t.Topics,
			&t.Classified,
			&t.CreatedAt,
		); err != nil {
			return nil, err
		}
		t.Sentiment = domain.Sentiment(sentiment)
		thoughts = append(thoughts, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return thoughts, nil
}

// pgxRows is a minimal interface to allow scanning from pgx rows and simplify testing.
type pgxRows interface {
	Next() bool
	Scan(...interface{}) error
	Err() error
	Close()
}
