package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"mindmatch/internal/domain"
	"mindmatch/internal/match"
	"mindmatch/internal/repository"
)

func seedMatchUsers(t *testing.T, n int) (*mockUserRepo, *repository.MemoryPatternStore, []string) {
	t.Helper()
	ctx := context.Background()
	users := newMockUserRepo()
	store := repository.NewMemoryPatternStore()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("00000000-0000-4000-8000-%012d", i)
		users.add(domain.User{ID: id, TelegramID: int64(i + 1), CreatedAt: time.Now()})
		if err := store.IncrementTopic(ctx, id, "ai"); err != nil {
			t.Fatalf("seed: %v", err)
		}
		if err := store.IncrementSentiment(ctx, id, domain.SentimentPositive); err != nil {
			t.Fatalf("seed: %v", err)
		}
		ids = append(ids, id)
	}
	return users, store, ids
}

func TestGetMatchesClampsLimit(t *testing.T) {
	users, store, ids := seedMatchUsers(t, 6)
	svc := NewMatchService(zap.NewNop(), users, match.NewRanker(store), 3, 4)
	ctx := context.Background()

	got, err := svc.GetMatches(ctx, ids[0], 0)
	if err != nil {
		t.Fatalf("get matches: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected default limit 3, got %d", len(got))
	}
	if got[0].UserID != ids[1] {
		t.Fatalf("expected userID tie-break, got %s first", got[0].UserID)
	}

	got, err = svc.GetMatches(ctx, ids[0], 50)
	if err != nil {
		t.Fatalf("get matches: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected max limit 4, got %d", len(got))
	}
}

func TestGetMatchesUnknownUser(t *testing.T) {
	users, store, _ := seedMatchUsers(t, 1)
	svc := NewMatchService(zap.NewNop(), users, match.NewRanker(store), 20, 100)
	if _, err := svc.GetMatches(context.Background(), "00000000-0000-4000-8000-999999999999", 10); !errors.Is(err, ErrInvalidUser) {
		t.Fatalf("expected ErrInvalidUser, got %v", err)
	}
}

func TestGetMatchesNoPatternIsEmpty(t *testing.T) {
	users, store, _ := seedMatchUsers(t, 2)
	fresh := "00000000-0000-4000-8000-000000000099"
	users.add(domain.User{ID: fresh, TelegramID: 99})
	svc := NewMatchService(zap.NewNop(), users, match.NewRanker(store), 20, 100)

	got, err := svc.GetMatches(context.Background(), fresh, 0)
	if err != nil {
		t.Fatalf("get matches: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}
