package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"mindmatch/internal/domain"
)

// El script aplica un pensamiento completo; redis ejecuta los scripts de forma atomica.
// KEYS: usuarios, temas, sentimientos. ARGV: user id, sentimiento, temas...
const redisApplyThoughtScript = `
redis.call("SADD", KEYS[1], ARGV[1])
redis.call("HINCRBY", KEYS[3], ARGV[2], 1)
for i = 3, #ARGV do
  redis.call("HINCRBY", KEYS[2], ARGV[i], 1)
end
return #ARGV - 2
`

type redisPatternClient interface {
	HIncrBy(ctx context.Context, key, field string, incr int64) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// RedisPatternStore guarda el patron en dos hashes por usuario; HINCRBY es atomico por campo.
type RedisPatternStore struct {
	client redisPatternClient
	prefix string
}

func NewRedisPatternStore(client *redis.Client) *RedisPatternStore {
	return &RedisPatternStore{
		client: client,
		prefix: "pattern:",
	}
}

func (s *RedisPatternStore) usersKey() string {
	return s.prefix + "users"
}

func (s *RedisPatternStore) topicsKey(userID string) string {
	return s.prefix + "{" + userID + "}:topics"
}

func (s *RedisPatternStore) sentimentsKey(userID string) string {
	return s.prefix + "{" + userID + "}:sentiments"
}

func (s *RedisPatternStore) IncrementTopic(ctx context.Context, userID, topic string) error {
	if err := validateCell(userID, topic); err != nil {
		return err
	}
	if err := s.client.SAdd(ctx, s.usersKey(), userID).Err(); err != nil {
		return fmt.Errorf("index user: %w", err)
	}
	return s.client.HIncrBy(ctx, s.topicsKey(userID), topic, 1).Err()
}

func (s *RedisPatternStore) IncrementSentiment(ctx context.Context, userID string, sentiment domain.Sentiment) error {
	if err := validateSentimentCell(userID, sentiment); err != nil {
		return err
	}
	if err := s.client.SAdd(ctx, s.usersKey(), userID).Err(); err != nil {
		return fmt.Errorf("index user: %w", err)
	}
	return s.client.HIncrBy(ctx, s.sentimentsKey(userID), string(sentiment), 1).Err()
}

func (s *RedisPatternStore) ApplyThought(ctx context.Context, userID string, topics []string, sentiment domain.Sentiment) error {
	if err := validateThought(userID, topics, sentiment); err != nil {
		return err
	}
	keys := []string{s.usersKey(), s.topicsKey(userID), s.sentimentsKey(userID)}
	args := make([]interface{}, 0, len(topics)+2)
	args = append(args, userID, string(sentiment))
	for _, t := range topics {
		args = append(args, t)
	}
	return s.client.Eval(ctx, redisApplyThoughtScript, keys, args...).Err()
}

func (s *RedisPatternStore) GetPattern(ctx context.Context, userID string) (domain.ThoughtPattern, error) {
	if userID == "" {
		return domain.ThoughtPattern{}, ErrEmptyUserID
	}
	pattern := domain.NewThoughtPattern()

	topics, err := s.client.HGetAll(ctx, s.topicsKey(userID)).Result()
	if err != nil {
		return domain.ThoughtPattern{}, fmt.Errorf("read topics: %w", err)
	}
	for topic, raw := range topics {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return domain.ThoughtPattern{}, fmt.Errorf("parse topic %q: %w", topic, err)
		}
		pattern.Topics[topic] = n
	}

	sentiments, err := s.client.HGetAll(ctx, s.sentimentsKey(userID)).Result()
	if err != nil {
		return domain.ThoughtPattern{}, fmt.Errorf("read sentiments: %w", err)
	}
	for sentiment, raw := range sentiments {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return domain.ThoughtPattern{}, fmt.Errorf("parse sentiment %q: %w", sentiment, err)
		}
		pattern.Sentiments[domain.Sentiment(sentiment)] = n
	}
	return pattern, nil
}

func (s *RedisPatternStore) ListCandidatePatterns(ctx context.Context, excludeUserID string) ([]domain.UserPattern, error) {
	userIDs, err := s.client.SMembers(ctx, s.usersKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]domain.UserPattern, 0, len(userIDs))
	for _, userID := range userIDs {
		if userID == excludeUserID {
			continue
		}
		p, err := s.GetPattern(ctx, userID)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.UserPattern{UserID: userID, Pattern: p})
	}
	sortUserPatterns(out)
	return out, nil
}
