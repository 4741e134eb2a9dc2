package repository

import (
	"context"
	"sync"
	"sync/atomic"

	"mindmatch/internal/domain"
)

// MemoryPatternStore mantiene un arena de contadores atomicos por celda.
// No hay locks por usuario ni globales: dos temas del mismo usuario se incrementan en paralelo.
type MemoryPatternStore struct {
	users sync.Map // userID -> *memoryCells
}

type memoryCells struct {
	topics     sync.Map // topic -> *atomic.Int64
	sentiments [3]atomic.Int64
}

func NewMemoryPatternStore() *MemoryPatternStore {
	return &MemoryPatternStore{}
}

func (s *MemoryPatternStore) cells(userID string) *memoryCells {
	if c, ok := s.users.Load(userID); ok {
		return c.(*memoryCells)
	}
	c, _ := s.users.LoadOrStore(userID, &memoryCells{})
	return c.(*memoryCells)
}

func (s *MemoryPatternStore) IncrementTopic(_ context.Context, userID, topic string) error {
	if err := validateCell(userID, topic); err != nil {
		return err
	}
	cells := s.cells(userID)
	counter, ok := cells.topics.Load(topic)
	if !ok {
		counter, _ = cells.topics.LoadOrStore(topic, new(atomic.Int64))
	}
	counter.(*atomic.Int64).Add(1)
	return nil
}

func (s *MemoryPatternStore) IncrementSentiment(_ context.Context, userID string, sentiment domain.Sentiment) error {
	if err := validateSentimentCell(userID, sentiment); err != nil {
		return err
	}
	s.cells(userID).sentiments[sentimentIndex(sentiment)].Add(1)
	return nil
}

// ApplyThought aplica las celdas una a una; cada incremento sigue siendo atomico.
func (s *MemoryPatternStore) ApplyThought(ctx context.Context, userID string, topics []string, sentiment domain.Sentiment) error {
	if err := validateThought(userID, topics, sentiment); err != nil {
		return err
	}
	for _, t := range topics {
		if err := s.IncrementTopic(ctx, userID, t); err != nil {
			return err
		}
	}
	return s.IncrementSentiment(ctx, userID, sentiment)
}

func (s *MemoryPatternStore) GetPattern(_ context.Context, userID string) (domain.ThoughtPattern, error) {
	if userID == "" {
		return domain.ThoughtPattern{}, ErrEmptyUserID
	}
	c, ok := s.users.Load(userID)
	if !ok {
		return domain.NewThoughtPattern(), nil
	}
	return c.(*memoryCells).snapshot(), nil
}

func (s *MemoryPatternStore) ListCandidatePatterns(_ context.Context, excludeUserID string) ([]domain.UserPattern, error) {
	var out []domain.UserPattern
	s.users.Range(func(key, value any) bool {
		userID := key.(string)
		if userID == excludeUserID {
			return true
		}
		out = append(out, domain.UserPattern{
			UserID:  userID,
			Pattern: value.(*memoryCells).snapshot(),
		})
		return true
	})
	sortUserPatterns(out)
	return out, nil
}

func (c *memoryCells) snapshot() domain.ThoughtPattern {
	p := domain.NewThoughtPattern()
	c.topics.Range(func(key, value any) bool {
		p.Topics[key.(string)] = value.(*atomic.Int64).Load()
		return true
	})
	for i, s := range domain.Sentiments {
		p.Sentiments[s] = c.sentiments[i].Load()
	}
	return p
}

func sentimentIndex(s domain.Sentiment) int {
	for i, candidate := range domain.Sentiments {
		if candidate == s {
			return i
		}
	}
	return -1
}
