package match

import (
	"context"
	"fmt"
	"sort"
	"time"

	"mindmatch/internal/domain"
	"mindmatch/internal/metrics"
)

// PatternSource es la vista de solo lectura del store que necesita el ranker.
type PatternSource interface {
	GetPattern(ctx context.Context, userID string) (domain.ThoughtPattern, error)
	ListCandidatePatterns(ctx context.Context, excludeUserID string) ([]domain.UserPattern, error)
}

// Ranker ordena el pool de candidatos contra un usuario sujeto.
type Ranker struct {
	source PatternSource
}

func NewRanker(source PatternSource) *Ranker {
	return &Ranker{source: source}
}

// Rank devuelve todos los candidatos con puntaje positivo, ordenados por puntaje
// descendente y desempatados por user id ascendente. Un sujeto sin pensamientos
// no tiene senal y devuelve una lista vacia.
func (r *Ranker) Rank(ctx context.Context, subjectID string) ([]domain.Match, error) {
	start := time.Now()
	defer func() {
		metrics.RankDuration.Observe(time.Since(start).Seconds())
	}()

	subject, err := r.source.GetPattern(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("get subject pattern: %w", err)
	}
	if subject.IsEmpty() {
		return []domain.Match{}, nil
	}

	candidates, err := r.source.ListCandidatePatterns(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("list candidate patterns: %w", err)
	}

	matches := make([]domain.Match, 0, len(candidates))
	for _, c := range candidates {
		if c.UserID == subjectID {
			continue
		}
		res := Score(subject, c.Pattern)
		if res.Score == 0 || len(res.CommonTopics) == 0 {
			continue
		}
		matches = append(matches, domain.Match{
			UserID:       c.UserID,
			Score:        res.Score,
			CommonTopics: res.CommonTopics,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].UserID < matches[j].UserID
	})
	return matches, nil
}
