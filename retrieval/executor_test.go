package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsolve/rbac-chat/cache"
	"github.com/finsolve/rbac-chat/rbac"
	"github.com/finsolve/rbac-chat/rerank"
	"github.com/finsolve/rbac-chat/schema"
	"github.com/finsolve/rbac-chat/synthesis"
)

type fakeSearcher struct {
	results []schema.SearchResult
	err     error
	calls   int
	lastDep []string
}

func (f *fakeSearcher) Type() string { return "fake" }

func (f *fakeSearcher) Search(_ context.Context, departments []string, _ string, _ int) ([]schema.SearchResult, error) {
	f.calls++
	f.lastDep = departments
	return f.results, f.err
}

func hrPolicy() rbac.AccessPolicy {
	return rbac.AccessPolicy{Role: "hr", Departments: []string{"hr", "general"}}
}

func hrResults() []schema.SearchResult {
	return []schema.SearchResult{
		{Document: schema.Document{ID: "1", Content: "The parental leave policy grants twelve weeks.", Source: "hr/handbook.md", Department: "hr"}, Score: 0.9},
		{Document: schema.Document{ID: "2", Content: "Vacation accrues monthly.", Source: "hr/handbook.md", Department: "hr", ChunkIndex: 1}, Score: 0.6},
		{Document: schema.Document{ID: "3", Content: "Holidays are published in January.", Source: "general/holidays.md", Department: "general"}, Score: 0.4},
	}
}

func TestExecutePassesDepartmentScope(t *testing.T) {
	searcher := &fakeSearcher{results: hrResults()}
	exec := NewExecutor(searcher, nil, nil, synthesis.NewExtractive(), 0)

	_, err := exec.Execute(context.Background(), hrPolicy(), "parental leave policy", 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"hr", "general"}, searcher.lastDep)
}

func TestExecuteCachesResults(t *testing.T) {
	searcher := &fakeSearcher{results: hrResults()}
	c := cache.NewRetrieval(8, 0)
	exec := NewExecutor(searcher, c, nil, synthesis.NewExtractive(), 0)

	first, err := exec.Execute(context.Background(), hrPolicy(), "parental leave policy", 4)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)
	assert.Equal(t, 1, searcher.calls)

	second, err := exec.Execute(context.Background(), hrPolicy(), "parental leave policy", 4)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, 1, searcher.calls, "cache hit must not hit the searcher again")
	assert.Equal(t, first.Text, second.Text)
}

func TestExecuteDoesNotCacheEmptyResults(t *testing.T) {
	searcher := &fakeSearcher{}
	c := cache.NewRetrieval(8, 0)
	exec := NewExecutor(searcher, c, nil, synthesis.NewExtractive(), 0)

	ans, err := exec.Execute(context.Background(), hrPolicy(), "nothing matches", 4)
	require.NoError(t, err)
	assert.Equal(t, synthesis.NoContextAnswer, ans.Text)
	assert.Equal(t, 0, c.Len())

	_, err = exec.Execute(context.Background(), hrPolicy(), "nothing matches", 4)
	require.NoError(t, err)
	assert.Equal(t, 2, searcher.calls)
}

func TestExecuteSearchFailure(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("backend down")}
	exec := NewExecutor(searcher, nil, nil, synthesis.NewExtractive(), 0)

	_, err := exec.Execute(context.Background(), hrPolicy(), "anything", 4)
	assert.ErrorIs(t, err, ErrRetrievalUnavailable)
}

func TestExecuteRerankerReorders(t *testing.T) {
	searcher := &fakeSearcher{results: hrResults()}
	exec := NewExecutor(searcher, nil, &rerank.Keyword{}, synthesis.NewExtractive(), 2)

	ans, err := exec.Execute(context.Background(), hrPolicy(), "parental leave", 4)
	require.NoError(t, err)
	assert.True(t, ans.Reranked)
	assert.LessOrEqual(t, len(ans.References), 2)
}

func TestExecuteNoopRerankerNotCounted(t *testing.T) {
	searcher := &fakeSearcher{results: hrResults()}
	exec := NewExecutor(searcher, nil, rerank.Noop{}, synthesis.NewExtractive(), 0)

	ans, err := exec.Execute(context.Background(), hrPolicy(), "parental leave", 4)
	require.NoError(t, err)
	assert.False(t, ans.Reranked)
}

type failingReranker struct{}

func (failingReranker) Rerank(_ context.Context, _ string, in []schema.SearchResult, _ int) ([]schema.SearchResult, error) {
	return in, errors.New("rerank service unavailable")
}

func TestExecuteRerankFailureKeepsOriginalOrder(t *testing.T) {
	searcher := &fakeSearcher{results: hrResults()}
	exec := NewExecutor(searcher, nil, failingReranker{}, synthesis.NewExtractive(), 0)

	ans, err := exec.Execute(context.Background(), hrPolicy(), "parental leave", 4)
	require.NoError(t, err)
	assert.False(t, ans.Reranked, "a failed rerank must not be reported as a rerank")
	require.Len(t, ans.References, 2)
	assert.Equal(t, "hr/handbook.md", ans.References[0].Source)
	assert.Equal(t, "general/holidays.md", ans.References[1].Source)
}

func TestReferencesDeduplicateSources(t *testing.T) {
	refs := references(hrResults())

	require.Len(t, refs, 2)
	assert.Equal(t, "hr/handbook.md", refs[0].Source)
	assert.Equal(t, "hr", refs[0].Department)
	assert.Equal(t, "general/holidays.md", refs[1].Source)
}
