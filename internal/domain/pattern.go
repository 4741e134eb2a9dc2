package domain

import (
	"fmt"
	"strings"
)

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Sentiments enumera las categorias fijas en un orden estable.
var Sentiments = []Sentiment{SentimentPositive, SentimentNegative, SentimentNeutral}

func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	}
	return false
}

// ParseSentiment normaliza la etiqueta devuelta por el clasificador.
func ParseSentiment(raw string) (Sentiment, error) {
	s := Sentiment(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown sentiment %q", raw)
	}
	return s, nil
}

// ThoughtPattern es el histograma acumulado de temas y sentimientos de un usuario.
// Los contadores solo crecen.
type ThoughtPattern struct {
	Topics     map[string]int64    `json:"topics"`
	Sentiments map[Sentiment]int64 `json:"sentiments"`
}

func NewThoughtPattern() ThoughtPattern {
	p := ThoughtPattern{
		Topics:     make(map[string]int64),
		Sentiments: make(map[Sentiment]int64, len(Sentiments)),
	}
	for _, s := range Sentiments {
		p.Sentiments[s] = 0
	}
	return p
}

// ThoughtCount es la cantidad de pensamientos agregados: cada uno suma exactamente un sentimiento.
func (p ThoughtPattern) ThoughtCount() int64 {
	var total int64
	for _, n := range p.Sentiments {
		total += n
	}
	return total
}

// IsEmpty indica que el patron no tiene ninguna senal todavia.
func (p ThoughtPattern) IsEmpty() bool {
	if p.ThoughtCount() > 0 {
		return false
	}
	for _, n := range p.Topics {
		if n > 0 {
			return false
		}
	}
	return true
}

// Clone devuelve una copia independiente del patron.
func (p ThoughtPattern) Clone() ThoughtPattern {
	out := NewThoughtPattern()
	for t, n := range p.Topics {
		out.Topics[t] = n
	}
	for s, n := range p.Sentiments {
		out.Sentiments[s] = n
	}
	return out
}

// UserPattern asocia un patron con su usuario dentro del pool de candidatos.
type UserPattern struct {
	UserID  string
	Pattern ThoughtPattern
}

// Match es un candidato puntuado contra el usuario sujeto.
type Match struct {
	UserID       string   `json:"user_id"`
	Score        float64  `json:"score"`
	CommonTopics []string `json:"common_topics"`
}
