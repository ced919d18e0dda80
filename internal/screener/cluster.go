package screener

import (
	"math"
	"regexp"
	"strings"

	"github.com/quantfold/sibyl/internal/domain"
)

// Mutually-exclusive market variants usually differ only by a numeric
// threshold ("above $80k?" / "above $90k?"). Stripping the numbers from
// the question yields a key shared by the whole family.
var (
	numericToken = regexp.MustCompile(`[\d][\d,.]*%?`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// ClusterKey canonicalizes a contract question for duplicate grouping:
// lowercase, every numeric token replaced by a placeholder, whitespace
// collapsed.
func ClusterKey(question string) string {
	key := strings.ToLower(question)
	key = numericToken.ReplaceAllString(key, "#")
	key = whitespace.ReplaceAllString(key, " ")
	return strings.TrimSpace(key)
}

// DedupPool keeps one representative per cluster key: the highest-volume
// member. Input order is volume-descending, so the first occurrence wins.
func DedupPool(pool []domain.Contract) []domain.Contract {
	seen := make(map[string]bool, len(pool))
	out := make([]domain.Contract, 0, len(pool))
	for _, c := range pool {
		key := ClusterKey(c.Question)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

// ExcludeHeldClusters removes candidates whose cluster key matches an
// already-open position, so the book never doubles down on a
// mutually-exclusive outcome it already holds. It returns the surviving
// pool and the number excluded.
func ExcludeHeldClusters(pool []domain.Contract, heldClusters map[string]bool) ([]domain.Contract, int) {
	if len(heldClusters) == 0 {
		return pool, 0
	}
	out := make([]domain.Contract, 0, len(pool))
	excluded := 0
	for _, c := range pool {
		if heldClusters[ClusterKey(c.Question)] {
			excluded++
			continue
		}
		out = append(out, c)
	}
	return out, excluded
}

// DedupAssessed is the second dedup pass, run after the oracle replies.
// The oracle may reveal correlations invisible from the question text
// (shared cluster ids), so assessments are regrouped, by oracle cluster
// id when present, by text cluster key otherwise, and only the member
// with the largest absolute edge survives, ties broken by confidence.
func DedupAssessed(scored []domain.ScoredAssessment) []domain.ScoredAssessment {
	best := make(map[string]domain.ScoredAssessment)
	order := make([]string, 0, len(scored))

	for _, s := range scored {
		key := s.ClusterID
		if key == "" {
			key = ClusterKey(s.Contract.Question)
		}
		cur, ok := best[key]
		if !ok {
			best[key] = s
			order = append(order, key)
			continue
		}
		if better(s, cur) {
			best[key] = s
		}
	}

	out := make([]domain.ScoredAssessment, 0, len(order))
	for _, key := range order {
		out = append(out, best[key])
	}
	return out
}

func better(a, b domain.ScoredAssessment) bool {
	ea, eb := math.Abs(a.Edge), math.Abs(b.Edge)
	if ea != eb {
		return ea > eb
	}
	return a.Confidence > b.Confidence
}
