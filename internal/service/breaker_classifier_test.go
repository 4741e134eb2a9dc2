package service

import (
	"context"
	"errors"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"mindmatch/internal/domain"
)

type blockingClassifier struct{}

func (blockingClassifier) Classify(ctx context.Context, _ string) (domain.Classification, error) {
	<-ctx.Done()
	return domain.Classification{}, ctx.Err()
}

func TestBreakerClassifierTimeout(t *testing.T) {
	b := NewBreakerClassifier(blockingClassifier{}, BreakerClassifierConfig{Timeout: 10 * time.Millisecond}, zap.NewNop())
	_, err := b.Classify(context.Background(), "slow")
	if !errors.Is(err, ErrClassificationUnavailable) {
		t.Fatalf("expected ErrClassificationUnavailable, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected wrapped deadline, got %v", err)
	}
}

func TestBreakerClassifierOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &stubClassifier{err: errors.New("llm down")}
	b := NewBreakerClassifier(inner, BreakerClassifierConfig{
		Timeout:             time.Second,
		ConsecutiveFailures: 2,
		Cooldown:            time.Hour,
	}, zap.NewNop())

	for i := 0; i < 2; i++ {
		if _, err := b.Classify(context.Background(), "x"); !errors.Is(err, ErrClassificationUnavailable) {
			t.Fatalf("call %d: expected ErrClassificationUnavailable, got %v", i, err)
		}
	}
	if b.State() != gobreaker.StateOpen {
		t.Fatalf("expected open breaker, got %s", b.State())
	}

	_, err := b.Classify(context.Background(), "x")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open state rejection, got %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("expected inner classifier not called while open, calls=%d", inner.calls)
	}
}

func TestBreakerClassifierPassesThrough(t *testing.T) {
	want := domain.Classification{Sentiment: domain.SentimentPositive, Topics: []string{"ai"}}
	b := NewBreakerClassifier(&stubClassifier{result: want}, BreakerClassifierConfig{}, zap.NewNop())
	got, err := b.Classify(context.Background(), "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Sentiment != want.Sentiment || len(got.Topics) != 1 {
		t.Fatalf("unexpected classification %+v", got)
	}
}
