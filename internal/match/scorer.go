// Package match puntua y ordena usuarios segun la similitud de sus patrones de pensamiento.
package match

import (
	"sort"

	"mindmatch/internal/domain"
)

// Result es la compatibilidad entre dos patrones.
type Result struct {
	Score        float64
	CommonTopics []string
}

// Score calcula la superposicion ponderada entre dos patrones.
//
// Los temas comunes son los que tienen conteo positivo en ambos lados, ordenados
// por min(a, b) descendente y luego por nombre. Sin temas comunes el puntaje es 0,
// aunque los sentimientos coincidan. La funcion es simetrica.
func Score(a, b domain.ThoughtPattern) Result {
	type shared struct {
		topic string
		count int64
	}

	var common []shared
	for topic, countA := range a.Topics {
		if countA <= 0 {
			continue
		}
		countB := b.Topics[topic]
		if countB <= 0 {
			continue
		}
		common = append(common, shared{topic: topic, count: min(countA, countB)})
	}
	if len(common) == 0 {
		return Result{CommonTopics: []string{}}
	}

	sort.Slice(common, func(i, j int) bool {
		if common[i].count != common[j].count {
			return common[i].count > common[j].count
		}
		return common[i].topic < common[j].topic
	})

	var topicScore int64
	topics := make([]string, 0, len(common))
	for _, c := range common {
		topicScore += c.count
		topics = append(topics, c.topic)
	}

	var sentimentScore int64
	for _, s := range domain.Sentiments {
		sentimentScore += min(a.Sentiments[s], b.Sentiments[s])
	}

	return Result{
		Score:        float64(topicScore+sentimentScore) / 2,
		CommonTopics: topics,
	}
}
