package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mindmatch/internal/domain"
)

// UserRepository define el contrato de persistencia para usuarios.
type UserRepository interface {
	Upsert(ctx context.Context, user domain.User) (domain.User, error)
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (domain.User, error)
}

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

// Upsert crea el usuario o actualiza sus datos de Telegram si ya existe.
// Devuelve el registro persistido, con el id y created_at originales.
func (r *PgUserRepository) Upsert(ctx context.Context, user domain.User) (domain.User, error) {
	const query = `
		INSERT INTO users (id, telegram_id, username, first_name, last_name, created_at, last_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (telegram_id)
		DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			last_active = EXCLUDED.last_active
		RETURNING id, telegram_id, username, first_name, last_name, created_at, last_active
	`
	var u domain.User
	err := r.pool.QueryRow(ctx, query,
		user.ID,
		user.TelegramID,
		user.Username,
		user.FirstName,
		user.LastName,
		user.CreatedAt,
		user.LastActive,
	).Scan(
		&u.ID,
		&u.TelegramID,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.CreatedAt,
		&u.LastActive,
	)
	return u, err
}

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	return r.getOne(ctx, "id", id)
}

// GetByTelegramID busca por el id de Telegram; devuelve pgx.ErrNoRows si no existe.
func (r *PgUserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (domain.User, error) {
	return r.getOne(ctx, "telegram_id", telegramID)
}

// getOne recibe la columna desde el codigo, nunca desde el request.
func (r *PgUserRepository) getOne(ctx context.Context, column string, value any) (domain.User, error) {
	query := `
		SELECT id, telegram_id, username, first_name, last_name, created_at, last_active
		FROM users
		WHERE ` + column + ` = $1
	`
	var u domain.User
	err := r.pool.QueryRow(ctx, query, value).Scan(
		&u.ID,
		&u.TelegramID,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.CreatedAt,
		&u.LastActive,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, err
	}
	return u, err
}
