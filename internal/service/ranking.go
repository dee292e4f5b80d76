package service

import (
	"fmt"
	"sort"

	"github.com/dermascan-server/internal/domain"
)

// TieTolerance is the gap below which two probabilities rank as equal.
const TieTolerance = 1e-9

// DefaultTopK is the number of differential candidates shown next to the
// primary diagnosis.
const DefaultTopK = 3

// DefaultTopN is the length of the prediction list returned by the API.
const DefaultTopN = 5

// Rank orders the distribution by descending probability. Probabilities
// chained within TieTolerance of their neighbour form one tie band, and a
// band orders by catalog index.
func Rank(dist domain.ProbabilityDistribution) domain.RankedResult {
	idx := make([]int, len(dist))
	for i := range idx {
		idx[i] = i
	}

	sort.SliceStable(idx, func(a, b int) bool {
		return dist[idx[a]] > dist[idx[b]]
	})
	for start := 0; start < len(idx); {
		end := start + 1
		for end < len(idx) && dist[idx[end-1]]-dist[idx[end]] <= TieTolerance {
			end++
		}
		sort.Ints(idx[start:end])
		start = end
	}

	ranked := make(domain.RankedResult, 0, len(idx))
	for _, i := range idx {
		c, ok := domain.ConditionAt(i)
		if !ok {
			continue
		}
		ranked = append(ranked, domain.ScoredCondition{
			Condition:   c,
			Probability: dist[i],
			Percent:     FormatPercent(dist[i]),
		})
	}
	return ranked
}

// SelectTop splits ranked into the primary entry and the next min(k, len-1)
// entries. A negative k selects no others.
func SelectTop(ranked domain.RankedResult, k int) (domain.Selection, error) {
	if len(ranked) == 0 {
		return domain.Selection{}, fmt.Errorf("%w: nothing to select from an empty ranking", domain.ErrInvariantViolation)
	}
	if k < 0 {
		k = 0
	}
	if k > len(ranked)-1 {
		k = len(ranked) - 1
	}

	others := make([]domain.ScoredCondition, k)
	copy(others, ranked[1:1+k])
	return domain.Selection{Primary: ranked[0], Others: others}, nil
}

// Truncate keeps the first n entries; n <= 0 keeps everything.
func Truncate(ranked domain.RankedResult, n int) domain.RankedResult {
	if n <= 0 || n >= len(ranked) {
		out := make(domain.RankedResult, len(ranked))
		copy(out, ranked)
		return out
	}
	out := make(domain.RankedResult, n)
	copy(out, ranked[:n])
	return out
}

// FormatPercent renders p as a percentage with one decimal, e.g. "42.5%".
func FormatPercent(p float64) string {
	return fmt.Sprintf("%.1f%%", p*100)
}
