package rerank

import (
	"context"
	"sort"
	"strings"

	"github.com/finsolve/rbac-chat/common/logger"
	"github.com/finsolve/rbac-chat/schema"
)

// Keyword reranks based on keyword matching and positioning. It is fully
// deterministic, so it doubles as the offline stand-in for a cross-encoder.
type Keyword struct {
	MinKeywordLength int     // Minimum length for a word to be considered a keyword (default: 3)
	BaseScoreWeight  float64 // Weight for original similarity score (default: 0.5)
}

func (k *Keyword) Rerank(_ context.Context, query string, in []schema.SearchResult, topN int) ([]schema.SearchResult, error) {
	minLen := k.MinKeywordLength
	if minLen == 0 {
		minLen = 3
	}
	baseWeight := k.BaseScoreWeight
	if baseWeight == 0 {
		baseWeight = 0.5
	}

	keywords := make([]string, 0)
	for _, word := range strings.Fields(query) {
		if len(word) > minLen {
			keywords = append(keywords, strings.ToLower(word))
		}
	}
	logger.Debugf("rerank: extracted %d keywords from query", len(keywords))

	scored := make([]schema.SearchResult, 0, len(in))
	for _, result := range in {
		documentText := strings.ToLower(result.Document.Content)

		// Base score from original similarity
		finalScore := result.Score * baseWeight

		for _, keyword := range keywords {
			if !strings.Contains(documentText, keyword) {
				continue
			}
			finalScore += 0.1

			// Position bonus: keyword in the first quarter counts extra
			if pos := strings.Index(documentText, keyword); pos >= 0 && pos < len(documentText)/4 {
				finalScore += 0.1
			}

			// Frequency bonus, capped
			freq := 0.05 * float64(strings.Count(documentText, keyword))
			if freq > 0.2 {
				freq = 0.2
			}
			finalScore += freq
		}

		result.Score = finalScore
		scored = append(scored, result)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return truncate(scored, topN), nil
}
