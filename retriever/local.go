package retriever

import (
	"context"
	"sort"
	"strings"

	"github.com/finsolve/rbac-chat/schema"
)

// Local is an in-process keyword searcher over ingested chunks. It is the
// default backend: fully deterministic, no external service, which keeps the
// whole retrieval path testable offline.
type Local struct {
	byDepartment map[string][]schema.Document
}

// NewLocal indexes the corpus by department.
func NewLocal(corpus []schema.Document) *Local {
	idx := make(map[string][]schema.Document)
	for _, doc := range corpus {
		dept := strings.ToLower(doc.Department)
		idx[dept] = append(idx[dept], doc)
	}
	return &Local{byDepartment: idx}
}

func (l *Local) Type() string { return "local" }

// Search scores chunks from the allowed departments only by query-term
// overlap. Ties break on source path and chunk index so repeated calls
// return identical orderings.
func (l *Local) Search(ctx context.Context, departments []string, query string, topK int) ([]schema.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 4
	}
	terms := queryTerms(query)
	if len(terms) == 0 {
		return []schema.SearchResult{}, nil
	}

	var results []schema.SearchResult
	for _, dept := range departments {
		for _, doc := range l.byDepartment[strings.ToLower(strings.TrimSpace(dept))] {
			score := scoreDocument(doc.Content, terms)
			if score <= 0 {
				continue
			}
			results = append(results, schema.SearchResult{Document: doc, Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Document.Source != results[j].Document.Source {
			return results[i].Document.Source < results[j].Document.Source
		}
		return results[i].Document.ChunkIndex < results[j].Document.ChunkIndex
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func queryTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, `.,;:!?"'()[]`)
		if len(f) > 2 {
			terms = append(terms, f)
		}
	}
	return terms
}

// scoreDocument returns the fraction of query terms present in the chunk,
// with a small frequency bonus, clamped to [0, 1].
func scoreDocument(content string, terms []string) float64 {
	text := strings.ToLower(content)
	matched := 0
	bonus := 0.0
	for _, term := range terms {
		n := strings.Count(text, term)
		if n == 0 {
			continue
		}
		matched++
		extra := 0.02 * float64(n-1)
		if extra > 0.1 {
			extra = 0.1
		}
		bonus += extra
	}
	if matched == 0 {
		return 0
	}
	score := float64(matched)/float64(len(terms)) + bonus
	if score > 1 {
		score = 1
	}
	return score
}
