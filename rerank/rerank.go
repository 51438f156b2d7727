// Package rerank reorders retrieved candidates by relevance to the question.
// Rerankers only reorder and truncate; they never add candidates or change
// department scope.
package rerank

import (
	"context"
	"fmt"

	"github.com/finsolve/rbac-chat/common/httpx"
	"github.com/finsolve/rbac-chat/config"
	"github.com/finsolve/rbac-chat/schema"
)

// Reranker reorders candidates, typically using a cross-encoder.
type Reranker interface {
	Rerank(ctx context.Context, query string, in []schema.SearchResult, topN int) ([]schema.SearchResult, error)
}

// Noop keeps the incoming order, truncating to topN. Selected when the
// reranking stage is disabled.
type Noop struct{}

func (Noop) Rerank(_ context.Context, _ string, in []schema.SearchResult, topN int) ([]schema.SearchResult, error) {
	return truncate(in, topN), nil
}

// New creates a reranker from configuration. A disabled config yields Noop.
func New(cfg config.RerankConfig, httpCfg *config.HTTPClientConfig) (Reranker, error) {
	if !cfg.Enable {
		return Noop{}, nil
	}
	switch cfg.Provider {
	case "", "keyword":
		return &Keyword{}, nil
	case "http":
		return &HTTP{Endpoint: cfg.Endpoint, Client: httpx.NewFromConfig(httpCfg)}, nil
	default:
		return nil, fmt.Errorf("unsupported rerank provider: %q", cfg.Provider)
	}
}

func truncate(in []schema.SearchResult, topN int) []schema.SearchResult {
	if topN > 0 && len(in) > topN {
		return append([]schema.SearchResult(nil), in[:topN]...)
	}
	return in
}
