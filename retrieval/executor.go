// Package retrieval answers questions from department documents: cached
// search, optional reranking, then answer synthesis.
package retrieval

import (
	"context"
	"errors"
	"fmt"

	"github.com/finsolve/rbac-chat/cache"
	"github.com/finsolve/rbac-chat/common/logger"
	"github.com/finsolve/rbac-chat/rbac"
	"github.com/finsolve/rbac-chat/rerank"
	"github.com/finsolve/rbac-chat/retriever"
	"github.com/finsolve/rbac-chat/schema"
	"github.com/finsolve/rbac-chat/synthesis"
)

// ErrRetrievalUnavailable reports that the document search backend failed
// and no cached results could cover the question.
var ErrRetrievalUnavailable = errors.New("document retrieval unavailable")

// Answer is the outcome of one retrieval-path execution.
type Answer struct {
	Text       string
	References []schema.Reference
	CacheHit   bool
	Reranked   bool
}

// Executor runs the retrieval path. The searcher is always filtered to the
// policy's departments; results never cross that boundary.
type Executor struct {
	searcher    retriever.Searcher
	cache       *cache.Retrieval
	reranker    rerank.Reranker
	synthesizer synthesis.Provider
	fallback    synthesis.Provider
	topN        int
}

// NewExecutor wires the retrieval path. cache and reranker may be nil, in
// which case caching and reranking are skipped.
func NewExecutor(searcher retriever.Searcher, c *cache.Retrieval, rr rerank.Reranker, syn synthesis.Provider, topN int) *Executor {
	return &Executor{
		searcher:    searcher,
		cache:       c,
		reranker:    rr,
		synthesizer: syn,
		fallback:    &synthesis.Extractive{},
		topN:        topN,
	}
}

// Execute answers question within the policy's department scope.
func (e *Executor) Execute(ctx context.Context, policy rbac.AccessPolicy, question string, topK int) (Answer, error) {
	results, hit := e.lookup(policy.Role, question)
	if !hit {
		var err error
		results, err = e.searcher.Search(ctx, policy.Departments, question, topK)
		if err != nil {
			logger.Errorf("retrieval: search failed for role %s: %v", policy.Role, err)
			return Answer{}, fmt.Errorf("%w: %v", ErrRetrievalUnavailable, err)
		}
		if e.cache != nil && len(results) > 0 {
			e.cache.Set(policy.Role, question, results)
		}
	}

	if len(results) == 0 {
		return Answer{Text: synthesis.NoContextAnswer, CacheHit: hit}, nil
	}

	reranked := false
	if e.reranker != nil {
		if _, passthrough := e.reranker.(rerank.Noop); !passthrough {
			ordered, err := e.reranker.Rerank(ctx, question, results, e.topN)
			if err != nil {
				logger.Warnf("retrieval: rerank failed, keeping original order: %v", err)
			} else {
				results = ordered
				reranked = true
			}
		}
	}

	text, err := e.synthesizer.Generate(ctx, policy.Role, question, results)
	if err != nil {
		logger.Warnf("retrieval: synthesis failed, using extractive fallback: %v", err)
		text, err = e.fallback.Generate(ctx, policy.Role, question, results)
		if err != nil {
			return Answer{}, fmt.Errorf("answer synthesis: %w", err)
		}
	}

	return Answer{
		Text:       text,
		References: references(results),
		CacheHit:   hit,
		Reranked:   reranked,
	}, nil
}

func (e *Executor) lookup(role, question string) ([]schema.SearchResult, bool) {
	if e.cache == nil {
		return nil, false
	}
	return e.cache.Get(role, question)
}

// references keeps one entry per distinct source, in result order.
func references(results []schema.SearchResult) []schema.Reference {
	seen := make(map[string]struct{}, len(results))
	refs := make([]schema.Reference, 0, len(results))
	for _, r := range results {
		if _, dup := seen[r.Document.Source]; dup {
			continue
		}
		seen[r.Document.Source] = struct{}{}
		refs = append(refs, schema.Reference{
			Source:     r.Document.Source,
			Department: r.Document.Department,
			Score:      r.Score,
		})
	}
	return refs
}
