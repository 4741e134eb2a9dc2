package service

import (
	"context"

	"go.uber.org/zap"

	"mindmatch/internal/domain"
	"mindmatch/internal/match"
	"mindmatch/internal/repository"
)

// MatchService expone el ranking de compatibilidad con paginacion en el borde.
type MatchService struct {
	logger       *zap.Logger
	users        repository.UserRepository
	ranker       *match.Ranker
	defaultLimit int
	maxLimit     int
}

func NewMatchService(logger *zap.Logger, users repository.UserRepository, ranker *match.Ranker, defaultLimit, maxLimit int) *MatchService {
	if defaultLimit <= 0 {
		defaultLimit = 20
	}
	if maxLimit < defaultLimit {
		maxLimit = defaultLimit
	}
	return &MatchService{
		logger:       logger,
		users:        users,
		ranker:       ranker,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

// GetMatches devuelve los mejores candidatos para userID; limit <= 0 usa el default.
func (s *MatchService) GetMatches(ctx context.Context, userID string, limit int) ([]domain.Match, error) {
	if _, err := lookupUser(ctx, s.users, userID); err != nil {
		return nil, err
	}

	matches, err := s.ranker.Rank(ctx, userID)
	if err != nil {
		return nil, err
	}

	limit = clampLimit(limit, s.defaultLimit, s.maxLimit)
	if len(matches) > limit {
		matches = matches[:limit]
	}
	s.logger.Debug("matches ranked", zap.String("user_id", userID), zap.Int("count", len(matches)))
	return matches, nil
}
