package domain

import "time"

// MaxTopicsPerThought limita cuantos temas aporta un pensamiento al patron.
const MaxTopicsPerThought = 5

// Thought es un texto corto publicado por un usuario, con su clasificacion.
// Topics conserva el orden de relevancia devuelto por el clasificador.
type Thought struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Content    string    `json:"content"`
	Sentiment  Sentiment `json:"sentiment,omitempty"`
	Topics     []string  `json:"topics"`
	Classified bool      `json:"classified"`
	CreatedAt  time.Time `json:"created_at"`
}

// Classification es la salida del analista externo para un pensamiento.
type Classification struct {
	Sentiment Sentiment `json:"sentiment" validate:"required,oneof=positive negative neutral"`
	Topics    []string  `json:"topics" validate:"max=5,dive,required"`
}

// DistinctTopics devuelve los temas sin repetir, en orden de aparicion.
// Un tema repetido dentro del mismo pensamiento cuenta una sola vez.
func (c Classification) DistinctTopics() []string {
	seen := make(map[string]struct{}, len(c.Topics))
	out := make([]string, 0, len(c.Topics))
	for _, t := range c.Topics {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
