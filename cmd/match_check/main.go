package main

import (
	"context"
	"fmt"
	"os"
	"slices"
	"sync"

	"go.uber.org/zap"

	"mindmatch/internal/domain"
	"mindmatch/internal/match"
	"mindmatch/internal/repository"
	"mindmatch/internal/service"
)

type seedUser struct {
	ID       string
	Nickname string
	Thoughts []string
}

type Scenario struct {
	Name          string
	Subject       string
	WantOrder     []string
	WantTopScore  float64
	WantTopTopics []string
}

// scriptedLLM responde con la clasificacion fija de cada pensamiento sembrado.
type scriptedLLM struct {
	responses map[string]string
}

func (s scriptedLLM) Generate(_ context.Context, _ string, userPrompt string) (string, error) {
	resp, ok := s.responses[userPrompt]
	if !ok {
		return "", fmt.Errorf("no scripted classification for %q", userPrompt)
	}
	return resp, nil
}

var classifications = map[string]string{
	"Trained a tiny transformer on my notes tonight":    `{"sentiment":"positive","topics":["ai","learning"]}`,
	"Jazz and code, perfect evening":                    "```json\n{\"sentiment\":\"positive\",\"topics\":[\"music\",\"programming\"]}\n```",
	"GPT wrote my tests and they all pass":              `{"sentiment":"positive","topics":["AI","Programming"]}`,
	"The deadline moved again":                          `{"sentiment":"negative","topics":["work"]}`,
	"Rainy hike in the mountains":                       `{"sentiment":"neutral","topics":["hiking","nature"]}`,
	"Worried AI will replace my job":                    `{"sentiment":-0.6,"topics":["ai","work"]}`,
	"Cooked ramen from scratch":                         `{"sentiment":"positive","topics":["cooking"]}`,
	"Finished a novel about space colonies":             `{"sentiment":"positive","topics":["books","space"]}`,
	"Mountain trail at sunrise":                         `Here you go: {"sentiment":"positive","topics":["hiking","nature"]}`,
	"Learning piano with an AI tutor, loving it so far": `{"sentiment":"positive","topics":["music","ai","learning","music"]}`,
}

var seedUsers = []seedUser{
	{ID: "test1", Nickname: "Alice", Thoughts: []string{"Trained a tiny transformer on my notes tonight", "Jazz and code, perfect evening"}},
	{ID: "test2", Nickname: "Bob", Thoughts: []string{"GPT wrote my tests and they all pass", "The deadline moved again"}},
	{ID: "test3", Nickname: "Charlie", Thoughts: []string{"Rainy hike in the mountains"}},
	{ID: "test4", Nickname: "Diana", Thoughts: []string{"Worried AI will replace my job"}},
	{ID: "test5", Nickname: "Evan", Thoughts: []string{"Cooked ramen from scratch"}},
	{ID: "test6", Nickname: "Fiona", Thoughts: []string{"Finished a novel about space colonies"}},
	{ID: "test7", Nickname: "George", Thoughts: []string{"Mountain trail at sunrise"}},
	{ID: "test8", Nickname: "Hannah", Thoughts: []string{"Learning piano with an AI tutor, loving it so far"}},
}

func main() {
	ctx := context.Background()
	logger := zap.NewExample()
	defer logger.Sync()

	store := repository.NewMemoryPatternStore()
	classifier := service.NewLLMClassifier(scriptedLLM{responses: classifications}, logger)
	aggregator := service.NewPatternAggregator(store, false, logger)
	ranker := match.NewRanker(store)

	for _, u := range seedUsers {
		for _, text := range u.Thoughts {
			c, err := classifier.Classify(ctx, text)
			if err != nil {
				fmt.Printf("❌ FAIL seed %s: classify %q: %v\n", u.Nickname, text, err)
				os.Exit(1)
			}
			if err := aggregator.RecordThought(ctx, u.ID, c); err != nil {
				fmt.Printf("❌ FAIL seed %s: aggregate: %v\n", u.Nickname, err)
				os.Exit(1)
			}
		}
		logger.Info("seeded user", zap.String("user_id", u.ID), zap.String("nickname", u.Nickname))
	}

	scenarios := []Scenario{
		{
			Name:          "Alice comparte ai/learning/music con Hannah",
			Subject:       "test1",
			WantOrder:     []string{"test8", "test2", "test4"},
			WantTopScore:  2,
			WantTopTopics: []string{"ai", "learning", "music"},
		},
		{
			Name:          "Diana: empate resuelto por user id",
			Subject:       "test4",
			WantOrder:     []string{"test2", "test1", "test8"},
			WantTopScore:  1.5,
			WantTopTopics: []string{"ai", "work"},
		},
		{
			Name:          "Charlie solo coincide en temas con George",
			Subject:       "test3",
			WantOrder:     []string{"test7"},
			WantTopScore:  1,
			WantTopTopics: []string{"hiking", "nature"},
		},
		{
			Name:      "Evan sin temas en comun",
			Subject:   "test5",
			WantOrder: []string{},
		},
		{
			Name:      "Usuario sin pensamientos",
			Subject:   "test9",
			WantOrder: []string{},
		},
	}

	passed := 0
	total := len(scenarios) + 2

	for _, sc := range scenarios {
		fmt.Printf("=== Ejecutando: %s ===\n", sc.Name)
		matches, err := ranker.Rank(ctx, sc.Subject)
		if err != nil {
			fmt.Printf("❌ FAIL [%s] rank: %v\n\n", sc.Name, err)
			continue
		}
		for _, m := range matches {
			fmt.Printf("  %s score=%.1f topics=%v\n", m.UserID, m.Score, m.CommonTopics)
		}
		if ok, reason := checkScenario(sc, matches); ok {
			fmt.Printf("✅ PASS [%s]\n\n", sc.Name)
			passed++
		} else {
			fmt.Printf("❌ FAIL [%s] %s\n\n", sc.Name, reason)
		}
	}

	fmt.Println("=== Ejecutando: simetria del puntaje ===")
	if reason := checkSymmetry(ctx, store); reason == "" {
		fmt.Print("✅ PASS [simetria]\n\n")
		passed++
	} else {
		fmt.Printf("❌ FAIL [simetria] %s\n\n", reason)
	}

	fmt.Println("=== Ejecutando: agregacion concurrente ===")
	if reason := checkConcurrentAggregation(ctx, aggregator, store); reason == "" {
		fmt.Print("✅ PASS [concurrencia]\n\n")
		passed++
	} else {
		fmt.Printf("❌ FAIL [concurrencia] %s\n\n", reason)
	}

	fmt.Printf("Tests: %d/%d pasaron\n", passed, total)
	if passed != total {
		os.Exit(1)
	}
	os.Exit(0)
}

func checkScenario(sc Scenario, matches []domain.Match) (bool, string) {
	got := make([]string, 0, len(matches))
	for _, m := range matches {
		got = append(got, m.UserID)
	}
	if !slices.Equal(got, sc.WantOrder) {
		return false, fmt.Sprintf("orden esperado=%v obtenido=%v", sc.WantOrder, got)
	}
	if len(matches) == 0 {
		return true, ""
	}
	top := matches[0]
	if top.Score != sc.WantTopScore {
		return false, fmt.Sprintf("score esperado=%.2f obtenido=%.2f", sc.WantTopScore, top.Score)
	}
	if !slices.Equal(top.CommonTopics, sc.WantTopTopics) {
		return false, fmt.Sprintf("temas esperados=%v obtenidos=%v", sc.WantTopTopics, top.CommonTopics)
	}
	return true, ""
}

func checkSymmetry(ctx context.Context, store *repository.MemoryPatternStore) string {
	all, err := store.ListCandidatePatterns(ctx, "")
	if err != nil {
		return err.Error()
	}
	for _, a := range all {
		for _, b := range all {
			ab := match.Score(a.Pattern, b.Pattern)
			ba := match.Score(b.Pattern, a.Pattern)
			if ab.Score != ba.Score || !slices.Equal(ab.CommonTopics, ba.CommonTopics) {
				return fmt.Sprintf("score(%s,%s)=%.2f != score(%s,%s)=%.2f", a.UserID, b.UserID, ab.Score, b.UserID, a.UserID, ba.Score)
			}
		}
	}
	return ""
}

func checkConcurrentAggregation(ctx context.Context, aggregator *service.PatternAggregator, store *repository.MemoryPatternStore) string {
	const userID, writers = "load-user", 200
	c := domain.Classification{Sentiment: domain.SentimentNeutral, Topics: []string{"ai", "music"}}

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := aggregator.RecordThought(ctx, userID, c); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		return err.Error()
	}

	p, err := store.GetPattern(ctx, userID)
	if err != nil {
		return err.Error()
	}
	if p.Topics["ai"] != writers || p.Topics["music"] != writers || p.ThoughtCount() != writers {
		return fmt.Sprintf("contadores esperados=%d obtenidos topics=%v sentiments=%v", writers, p.Topics, p.Sentiments)
	}
	return ""
}
