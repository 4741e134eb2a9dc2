package repository

import (
	"context"
	"errors"
	"sort"
	"strings"

	"mindmatch/internal/domain"
)

// PatternStore guarda un patron de pensamiento por usuario.
// Cada incremento es atomico sobre una sola celda (usuario, tema) o (usuario, sentimiento);
// nunca se reemplaza el patron completo a partir de una lectura previa.
type PatternStore interface {
	GetPattern(ctx context.Context, userID string) (domain.ThoughtPattern, error)
	IncrementTopic(ctx context.Context, userID, topic string) error
	IncrementSentiment(ctx context.Context, userID string, sentiment domain.Sentiment) error
	ListCandidatePatterns(ctx context.Context, excludeUserID string) ([]domain.UserPattern, error)
}

// ThoughtBatcher aplica todos los incrementos de un pensamiento en una sola transaccion.
type ThoughtBatcher interface {
	ApplyThought(ctx context.Context, userID string, topics []string, sentiment domain.Sentiment) error
}

var (
	ErrEmptyUserID      = errors.New("pattern store: empty user id")
	ErrEmptyTopic       = errors.New("pattern store: empty topic")
	ErrInvalidSentiment = errors.New("pattern store: invalid sentiment")
	ErrReservedUserID   = errors.New("pattern store: user id contains a reserved byte")
)

func validateCell(userID, topic string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrEmptyUserID
	}
	if strings.TrimSpace(topic) == "" {
		return ErrEmptyTopic
	}
	return nil
}

func validateSentimentCell(userID string, sentiment domain.Sentiment) error {
	if strings.TrimSpace(userID) == "" {
		return ErrEmptyUserID
	}
	if !sentiment.Valid() {
		return ErrInvalidSentiment
	}
	return nil
}

func validateThought(userID string, topics []string, sentiment domain.Sentiment) error {
	if err := validateSentimentCell(userID, sentiment); err != nil {
		return err
	}
	for _, t := range topics {
		if strings.TrimSpace(t) == "" {
			return ErrEmptyTopic
		}
	}
	return nil
}

func sortUserPatterns(patterns []domain.UserPattern) {
	sort.Slice(patterns, func(i, j int) bool {
		return patterns[i].UserID < patterns[j].UserID
	})
}
