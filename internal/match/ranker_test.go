package match

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindmatch/internal/domain"
)

type staticSource struct {
	patterns map[string]domain.ThoughtPattern
	listErr  error
}

func (s staticSource) GetPattern(_ context.Context, userID string) (domain.ThoughtPattern, error) {
	if p, ok := s.patterns[userID]; ok {
		return p.Clone(), nil
	}
	return domain.NewThoughtPattern(), nil
}

// ListCandidatePatterns devuelve tambien al sujeto para comprobar que el ranker lo descarta.
func (s staticSource) ListCandidatePatterns(_ context.Context, _ string) ([]domain.UserPattern, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]domain.UserPattern, 0, len(s.patterns))
	for id, p := range s.patterns {
		out = append(out, domain.UserPattern{UserID: id, Pattern: p.Clone()})
	}
	return out, nil
}

func TestRankEmptySubject(t *testing.T) {
	src := staticSource{patterns: map[string]domain.ThoughtPattern{
		"u2": pattern(map[string]int64{"ai": 1}, 1, 0, 0),
	}}
	got, err := NewRanker(src).Rank(context.Background(), "u1")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRankExcludesDisjointUsers(t *testing.T) {
	src := staticSource{patterns: map[string]domain.ThoughtPattern{
		"u1": pattern(map[string]int64{"ai": 2}, 2, 0, 0),
		"u2": pattern(map[string]int64{"cooking": 2}, 2, 0, 0),
	}}
	r := NewRanker(src)

	got, err := r.Rank(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = r.Rank(context.Background(), "u2")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRankOrdering(t *testing.T) {
	src := staticSource{patterns: map[string]domain.ThoughtPattern{
		"subject": pattern(map[string]int64{"ai": 3, "music": 2}, 2, 1, 0),
		"u-low":   pattern(map[string]int64{"ai": 1}, 1, 0, 0),
		"u-high":  pattern(map[string]int64{"ai": 3, "music": 2}, 2, 1, 0),
		"u-tie-b": pattern(map[string]int64{"music": 2}, 1, 1, 0),
		"u-tie-a": pattern(map[string]int64{"music": 2}, 1, 1, 0),
		"u-none":  pattern(map[string]int64{"travel": 9}, 9, 9, 9),
	}}
	r := NewRanker(src)

	got, err := r.Rank(context.Background(), "subject")
	require.NoError(t, err)

	ids := make([]string, 0, len(got))
	for _, m := range got {
		ids = append(ids, m.UserID)
		assert.Positive(t, m.Score)
		assert.NotEmpty(t, m.CommonTopics)
	}
	assert.Equal(t, []string{"u-high", "u-tie-a", "u-tie-b", "u-low"}, ids)
	assert.Equal(t, 4.0, got[0].Score)
	assert.Equal(t, 2.0, got[1].Score)
	assert.Equal(t, 1.0, got[3].Score)

	again, err := r.Rank(context.Background(), "subject")
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestRankPropagatesSourceErrors(t *testing.T) {
	boom := errors.New("boom")
	src := staticSource{
		patterns: map[string]domain.ThoughtPattern{"u1": pattern(map[string]int64{"ai": 1}, 1, 0, 0)},
		listErr:  boom,
	}
	_, err := NewRanker(src).Rank(context.Background(), "u1")
	assert.ErrorIs(t, err, boom)
}
