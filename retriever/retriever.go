// Package retriever provides department-scoped document search.
package retriever

import (
	"context"

	"github.com/finsolve/rbac-chat/schema"
)

// Searcher is the external search capability consumed by the retrieval
// path. The department scope is a hard filter applied inside the search
// call, never a post-filter on unscoped results.
type Searcher interface {
	Type() string
	Search(ctx context.Context, departments []string, query string, topK int) ([]schema.SearchResult, error)
}
