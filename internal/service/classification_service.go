package service

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"mindmatch/internal/domain"
	"mindmatch/internal/llm"
)

// Classifier es el gateway de clasificacion: texto de entrada, sentimiento y temas de salida.
type Classifier interface {
	Classify(ctx context.Context, text string) (domain.Classification, error)
}

// Umbral para mapear un sentimiento numerico en [-1, 1] a la categoria cerrada.
const numericSentimentThreshold = 0.2

const classificationPrompt = `Analyze the following thought and return a JSON object with:
- sentiment (string: "positive", "negative", or "neutral")
- topics (array of relevant topics/themes, max 5, most relevant first, short lowercase nouns)
Return ONLY the JSON, with this format: {"sentiment": string, "topics": string[]}`

// LLMClassifier usa el LLM para clasificar pensamientos.
type LLMClassifier struct {
	llmClient llm.LLMClient
	validate  *validator.Validate
	logger    *zap.Logger
}

func NewLLMClassifier(llmClient llm.LLMClient, logger *zap.Logger) *LLMClassifier {
	return &LLMClassifier{
		llmClient: llmClient,
		validate:  validator.New(),
		logger:    logger,
	}
}

func (c *LLMClassifier) Classify(ctx context.Context, text string) (domain.Classification, error) {
	rawResp, err := c.llmClient.Generate(ctx, classificationPrompt, strings.TrimSpace(text))
	if err != nil {
		return domain.Classification{}, fmt.Errorf("llm generate: %w", err)
	}

	parsed, err := parseClassificationResponse(rawResp)
	if err != nil {
		c.logger.Warn("unparseable classification", zap.Error(err), zap.String("raw", rawResp))
		return domain.Classification{}, err
	}

	sentiment, err := parsed.sentiment()
	if err != nil {
		return domain.Classification{}, err
	}

	classification := domain.Classification{
		Sentiment: sentiment,
		Topics:    normalizeTopics(parsed.Topics),
	}
	if err := c.validate.Struct(classification); err != nil {
		return domain.Classification{}, fmt.Errorf("invalid classification: %w", err)
	}
	return classification, nil
}

// classificationResponse acepta el sentimiento como etiqueta o como numero en [-1, 1].
type classificationResponse struct {
	Sentiment json.RawMessage `json:"sentiment"`
	Topics    []string        `json:"topics"`
}

func (r classificationResponse) sentiment() (domain.Sentiment, error) {
	var label string
	if err := json.Unmarshal(r.Sentiment, &label); err == nil {
		return domain.ParseSentiment(label)
	}
	var score float64
	if err := json.Unmarshal(r.Sentiment, &score); err != nil {
		return "", fmt.Errorf("sentiment is neither label nor number: %s", string(r.Sentiment))
	}
	switch {
	case score > numericSentimentThreshold:
		return domain.SentimentPositive, nil
	case score < -numericSentimentThreshold:
		return domain.SentimentNegative, nil
	default:
		return domain.SentimentNeutral, nil
	}
}

// Los modelos suelen envolver la respuesta en un bloque ```json ... ``` y a veces
// agregan texto u otros objetos alrededor.
var (
	classificationFence = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)\\s*```")
	sentimentKey        = regexp.MustCompile(`^\s*\{\s*"sentiment"\s*:`)
)

// parseClassificationResponse busca el objeto de clasificacion dentro de la respuesta:
// primero el contenido de un bloque cercado, luego el texto completo y por ultimo cada
// objeto de primer nivel, prefiriendo el que trae la clave "sentiment".
func parseClassificationResponse(raw string) (classificationResponse, error) {
	body := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "\uFEFF"))
	if m := classificationFence.FindStringSubmatch(body); m != nil {
		body = m[1]
	}
	if body == "" {
		return classificationResponse{}, fmt.Errorf("parse llm response: empty body")
	}

	var parsed classificationResponse
	if err := json.Unmarshal([]byte(body), &parsed); err == nil && len(parsed.Sentiment) > 0 {
		return parsed, nil
	}

	objects := topLevelObjects(body)
	if len(objects) == 0 {
		return classificationResponse{}, fmt.Errorf("parse llm response: no json object found")
	}
	// sentimentKey es un atajo barato; la decision final la toma el decode.
	slices.SortStableFunc(objects, func(a, b string) int {
		return boolRank(sentimentKey.MatchString(b)) - boolRank(sentimentKey.MatchString(a))
	})
	var lastErr error
	for _, obj := range objects {
		var candidate classificationResponse
		if err := json.Unmarshal([]byte(obj), &candidate); err != nil {
			lastErr = err
			continue
		}
		if len(candidate.Sentiment) > 0 {
			return candidate, nil
		}
	}
	if lastErr != nil {
		return classificationResponse{}, fmt.Errorf("parse llm response: %w", lastErr)
	}
	return classificationResponse{}, fmt.Errorf("parse llm response: no object with sentiment")
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

// topLevelObjects devuelve cada objeto {...} balanceado de primer nivel, ignorando
// llaves dentro de strings. Un objeto sin cerrar al final se descarta.
func topLevelObjects(s string) []string {
	var (
		out      []string
		start    = -1
		depth    int
		inString bool
		escaped  bool
	)
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				out = append(out, s[start:i+1])
			}
		}
	}
	return out
}

// normalizeTopics deja temas en minuscula, sin espacios repetidos ni duplicados,
// conserva el orden de relevancia y corta en domain.MaxTopicsPerThought.
func normalizeTopics(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, t := range raw {
		topic := strings.ToLower(strings.Join(strings.Fields(t), " "))
		if topic == "" {
			continue
		}
		if _, ok := seen[topic]; ok {
			continue
		}
		seen[topic] = struct{}{}
		out = append(out, topic)
		if len(out) == domain.MaxTopicsPerThought {
			break
		}
	}
	return out
}
