package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"mindmatch/internal/domain"
)

type mockUserRepo struct {
	mu           sync.Mutex
	usersByID    map[string]domain.User
	byTelegramID map[int64]string
	err          error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		usersByID:    make(map[string]domain.User),
		byTelegramID: make(map[int64]string),
	}
}

func (m *mockUserRepo) Upsert(_ context.Context, user domain.User) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domain.User{}, m.err
	}
	if id, ok := m.byTelegramID[user.TelegramID]; ok {
		existing := m.usersByID[id]
		existing.Username = user.Username
		existing.FirstName = user.FirstName
		existing.LastName = user.LastName
		existing.LastActive = user.LastActive
		m.usersByID[id] = existing
		return existing, nil
	}
	m.usersByID[user.ID] = user
	m.byTelegramID[user.TelegramID] = user.ID
	return user, nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) GetByTelegramID(_ context.Context, telegramID int64) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byTelegramID[telegramID]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return m.usersByID[id], nil
}

func (m *mockUserRepo) add(user domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usersByID[user.ID] = user
	m.byTelegramID[user.TelegramID] = user.ID
}

type mockThoughtRepo struct {
	mu       sync.Mutex
	thoughts []domain.Thought
	err      error
}

func (m *mockThoughtRepo) Create(_ context.Context, thought domain.Thought) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.thoughts = append(m.thoughts, thought)
	return nil
}

func (m *mockThoughtRepo) ListRecent(_ context.Context, limit int) ([]domain.Thought, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]domain.Thought(nil), m.thoughts...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockThoughtRepo) ListByUserID(ctx context.Context, userID string, limit int) ([]domain.Thought, error) {
	all, _ := m.ListRecent(ctx, len(m.thoughts))
	out := make([]domain.Thought, 0, len(all))
	for _, t := range all {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type stubClassifier struct {
	result domain.Classification
	err    error
	calls  int
}

func (s *stubClassifier) Classify(_ context.Context, _ string) (domain.Classification, error) {
	s.calls++
	return s.result, s.err
}

// failingPatternStore falla en el n-esimo incremento (1-based); 0 nunca falla.
type failingPatternStore struct {
	mu         sync.Mutex
	failAt     int
	increments int
	topics     map[string]int64
	sentiments map[domain.Sentiment]int64
	applied    int
}

func newFailingPatternStore(failAt int) *failingPatternStore {
	return &failingPatternStore{
		failAt:     failAt,
		topics:     make(map[string]int64),
		sentiments: make(map[domain.Sentiment]int64),
	}
}

var errStoreDown = errors.New("store down")

func (f *failingPatternStore) step() error {
	f.increments++
	if f.failAt > 0 && f.increments == f.failAt {
		return errStoreDown
	}
	return nil
}

func (f *failingPatternStore) GetPattern(_ context.Context, _ string) (domain.ThoughtPattern, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := domain.NewThoughtPattern()
	for k, v := range f.topics {
		p.Topics[k] = v
	}
	for k, v := range f.sentiments {
		p.Sentiments[k] = v
	}
	return p, nil
}

func (f *failingPatternStore) IncrementTopic(_ context.Context, _ string, topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.step(); err != nil {
		return err
	}
	f.topics[topic]++
	return nil
}

func (f *failingPatternStore) IncrementSentiment(_ context.Context, _ string, sentiment domain.Sentiment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.step(); err != nil {
		return err
	}
	f.sentiments[sentiment]++
	return nil
}

func (f *failingPatternStore) ListCandidatePatterns(_ context.Context, _ string) ([]domain.UserPattern, error) {
	return nil, nil
}

// batchingPatternStore agrega ApplyThought sobre failingPatternStore.
type batchingPatternStore struct {
	*failingPatternStore
}

func (b batchingPatternStore) ApplyThought(_ context.Context, _ string, topics []string, sentiment domain.Sentiment) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.applied++
	for _, t := range topics {
		b.topics[t]++
	}
	b.sentiments[sentiment]++
	return nil
}

type denyAllLimiter struct {
	retryAfter time.Duration
}

func (d denyAllLimiter) Allow(context.Context, string) RateDecision {
	return RateDecision{RetryAfter: d.retryAfter}
}
