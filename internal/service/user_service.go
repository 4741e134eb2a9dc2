package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"mindmatch/internal/domain"
	"mindmatch/internal/repository"
)

// UserService coordina reglas de negocio para usuarios.
type UserService struct {
	logger   *zap.Logger
	users    repository.UserRepository
	patterns repository.PatternStore
}

func NewUserService(logger *zap.Logger, users repository.UserRepository, patterns repository.PatternStore) *UserService {
	return &UserService{
		logger:   logger,
		users:    users,
		patterns: patterns,
	}
}

type CreateUserInput struct {
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string
}

var ErrInvalidTelegramID = errors.New("invalid telegram id")

// CreateOrUpdateUser registra al usuario por su id de Telegram o refresca sus datos.
// El patron de pensamiento se crea de forma perezosa con el primer pensamiento.
func (s *UserService) CreateOrUpdateUser(ctx context.Context, input CreateUserInput) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("user service not configured")
	}
	if input.TelegramID <= 0 {
		return domain.User{}, ErrInvalidTelegramID
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:         uuid.NewString(),
		TelegramID: input.TelegramID,
		Username:   strings.TrimSpace(input.Username),
		FirstName:  strings.TrimSpace(input.FirstName),
		LastName:   strings.TrimSpace(input.LastName),
		CreatedAt:  now,
		LastActive: now,
	}

	saved, err := s.users.Upsert(ctx, user)
	if err != nil {
		return domain.User{}, err
	}
	return saved, nil
}

// Profile es el usuario con su patron de pensamiento actual.
type Profile struct {
	User         domain.User           `json:"user"`
	Pattern      domain.ThoughtPattern `json:"thought_pattern"`
	ThoughtCount int64                 `json:"thought_count"`
}

// GetProfile acepta el id interno (UUID) o el id numerico de Telegram.
func (s *UserService) GetProfile(ctx context.Context, ref string) (Profile, error) {
	user, err := s.resolveUser(ctx, strings.TrimSpace(ref))
	if err != nil {
		return Profile{}, err
	}
	pattern, err := s.patterns.GetPattern(ctx, user.ID)
	if err != nil {
		return Profile{}, fmt.Errorf("get pattern: %w", err)
	}
	return Profile{
		User:         user,
		Pattern:      pattern,
		ThoughtCount: pattern.ThoughtCount(),
	}, nil
}

func (s *UserService) resolveUser(ctx context.Context, ref string) (domain.User, error) {
	telegramID, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		return lookupUser(ctx, s.users, ref)
	}
	if telegramID <= 0 {
		return domain.User{}, ErrInvalidUser
	}
	user, err := s.users.GetByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrInvalidUser
		}
		return domain.User{}, fmt.Errorf("get user by telegram id %d: %w", telegramID, err)
	}
	return user, nil
}
