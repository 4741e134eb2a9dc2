package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"mindmatch/internal/domain"
	"mindmatch/internal/metrics"
	"mindmatch/internal/repository"
)

var (
	ErrInvalidUser               = errors.New("invalid user")
	ErrInvalidThought            = errors.New("invalid thought")
	ErrRateLimited               = errors.New("rate limited")
	ErrClassificationUnavailable = errors.New("classification unavailable")
	ErrAggregationFailed         = errors.New("aggregation failed")
)

const maxThoughtLength = 1000

// ThoughtService compone clasificacion, persistencia y agregacion de un pensamiento.
type ThoughtService struct {
	logger             *zap.Logger
	users              repository.UserRepository
	thoughts           repository.ThoughtRepository
	patterns           repository.PatternStore
	classifier         Classifier
	aggregator         *PatternAggregator
	limiter            ThoughtRateLimiter
	acceptUnclassified bool
}

type ThoughtServiceConfig struct {
	// AcceptUnclassified guarda el pensamiento aunque el clasificador falle, sin tocar el patron.
	AcceptUnclassified bool
}

func NewThoughtService(
	logger *zap.Logger,
	users repository.UserRepository,
	thoughts repository.ThoughtRepository,
	patterns repository.PatternStore,
	classifier Classifier,
	aggregator *PatternAggregator,
	limiter ThoughtRateLimiter,
	cfg ThoughtServiceConfig,
) *ThoughtService {
	return &ThoughtService{
		logger:             logger,
		users:              users,
		thoughts:           thoughts,
		patterns:           patterns,
		classifier:         classifier,
		aggregator:         aggregator,
		limiter:            limiter,
		acceptUnclassified: cfg.AcceptUnclassified,
	}
}

// RecordResult es el pensamiento persistido junto con el patron resultante.
type RecordResult struct {
	Thought        domain.Thought        `json:"thought"`
	Pattern        domain.ThoughtPattern `json:"pattern"`
	PatternUpdated bool                  `json:"pattern_updated"`
	// RateRemaining es el presupuesto de publicacion restante; -1 si no hay limiter o es desconocido.
	RateRemaining int `json:"-"`
}

// RecordThought clasifica, persiste y agrega un pensamiento.
//
// Si la agregacion falla el pensamiento ya quedo guardado: se devuelve el resultado
// junto con un error que envuelve ErrAggregationFailed.
func (s *ThoughtService) RecordThought(ctx context.Context, userID, content string) (RecordResult, error) {
	content = strings.TrimSpace(content)
	if content == "" || utf8.RuneCountInString(content) > maxThoughtLength {
		return RecordResult{}, ErrInvalidThought
	}
	if _, err := lookupUser(ctx, s.users, userID); err != nil {
		return RecordResult{}, err
	}
	remaining := -1
	if s.limiter != nil {
		decision := s.limiter.Allow(ctx, userID)
		if !decision.Allowed {
			metrics.ThoughtsRateLimited.Inc()
			return RecordResult{}, &RateLimitedError{RetryAfter: decision.RetryAfter}
		}
		remaining = decision.Remaining
	}

	thought := domain.Thought{
		ID:        uuid.NewString(),
		UserID:    userID,
		Content:   content,
		Topics:    []string{},
		CreatedAt: time.Now().UTC(),
	}

	classification, err := s.classifier.Classify(ctx, content)
	if err != nil {
		if !errors.Is(err, ErrClassificationUnavailable) {
			err = fmt.Errorf("%w: %w", ErrClassificationUnavailable, err)
		}
		if !s.acceptUnclassified {
			return RecordResult{}, err
		}
		s.logger.Warn("storing thought without classification", zap.String("user_id", userID), zap.Error(err))
	} else {
		thought.Sentiment = classification.Sentiment
		thought.Topics = classification.Topics
		thought.Classified = true
	}

	if err := s.thoughts.Create(ctx, thought); err != nil {
		return RecordResult{}, fmt.Errorf("create thought: %w", err)
	}
	metrics.ThoughtsRecorded.WithLabelValues(fmt.Sprint(thought.Classified)).Inc()

	result := RecordResult{Thought: thought, RateRemaining: remaining}
	var aggErr error
	if thought.Classified {
		aggErr = s.aggregator.RecordThought(ctx, userID, classification)
		result.PatternUpdated = aggErr == nil
	}

	pattern, err := s.patterns.GetPattern(ctx, userID)
	if err != nil {
		s.logger.Warn("read pattern after thought failed", zap.String("user_id", userID), zap.Error(err))
		pattern = domain.NewThoughtPattern()
	}
	result.Pattern = pattern

	return result, aggErr
}

// ListRecent devuelve los ultimos pensamientos de todos los usuarios.
func (s *ThoughtService) ListRecent(ctx context.Context, limit int) ([]domain.Thought, error) {
	return s.thoughts.ListRecent(ctx, clampLimit(limit, 20, 100))
}

// ListByUser devuelve los pensamientos de un usuario, del mas nuevo al mas viejo.
func (s *ThoughtService) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Thought, error) {
	if _, err := lookupUser(ctx, s.users, userID); err != nil {
		return nil, err
	}
	return s.thoughts.ListByUserID(ctx, userID, clampLimit(limit, 20, 100))
}

// lookupUser falla rapido con ErrInvalidUser ante ids malformados o desconocidos.
func lookupUser(ctx context.Context, users repository.UserRepository, userID string) (domain.User, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return domain.User{}, ErrInvalidUser
	}
	user, err := users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrInvalidUser
		}
		return domain.User{}, fmt.Errorf("get user %s: %w", userID, err)
	}
	return user, nil
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
