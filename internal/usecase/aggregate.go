package usecase

import (
	"sort"

	"github.com/capvault/capsearch/internal/domain"
)

// Aggregate сворачивает сырые попадания вариантов в результаты уровня
// крышек: счётчик попаданий и среднюю/минимальную/максимальную близость.
// Порядок результатов — по убыванию средней близости; при равенстве —
// по убыванию числа попаданий, затем порядок первого появления
// (стабильная сортировка). Результат не зависит от порядка кандидатов
// с точностью до этого правила.
func Aggregate(candidates []domain.Candidate) []domain.AggregatedMatch {
	type group struct {
		count int
		sum   float64
		min   float32
		max   float32
	}

	groups := make(map[int64]*group, len(candidates))
	order := make([]int64, 0, len(candidates))

	for _, c := range candidates {
		g, ok := groups[c.CapID]
		if !ok {
			groups[c.CapID] = &group{
				count: 1,
				sum:   float64(c.Similarity),
				min:   c.Similarity,
				max:   c.Similarity,
			}
			order = append(order, c.CapID)
			continue
		}

		g.count++
		g.sum += float64(c.Similarity)
		if c.Similarity < g.min {
			g.min = c.Similarity
		}
		if c.Similarity > g.max {
			g.max = c.Similarity
		}
	}

	matches := make([]domain.AggregatedMatch, 0, len(order))
	for _, id := range order {
		g := groups[id]
		matches = append(matches, domain.AggregatedMatch{
			CapID:          id,
			MatchCount:     g.count,
			MeanSimilarity: float32(g.sum / float64(g.count)),
			MinSimilarity:  g.min,
			MaxSimilarity:  g.max,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].MeanSimilarity != matches[j].MeanSimilarity {
			return matches[i].MeanSimilarity > matches[j].MeanSimilarity
		}
		return matches[i].MatchCount > matches[j].MatchCount
	})

	return matches
}
