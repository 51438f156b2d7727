package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsolve/rbac-chat/cache"
	"github.com/finsolve/rbac-chat/classifier"
	"github.com/finsolve/rbac-chat/ingest"
	"github.com/finsolve/rbac-chat/metrics"
	"github.com/finsolve/rbac-chat/rbac"
	"github.com/finsolve/rbac-chat/retrieval"
	"github.com/finsolve/rbac-chat/retriever"
	"github.com/finsolve/rbac-chat/schema"
	"github.com/finsolve/rbac-chat/structured"
	"github.com/finsolve/rbac-chat/synthesis"
)

func writeFile(t *testing.T, root, department, name, content string) {
	t.Helper()
	dir := filepath.Join(root, department)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

type fixture struct {
	orch    *Orchestrator
	tracker *metrics.Tracker
	catalog *structured.Catalog
}

func newFixture(t *testing.T, searcher retriever.Searcher) *fixture {
	t.Helper()
	root := t.TempDir()

	writeFile(t, root, "hr", "employees.csv",
		"name,department,salary\nAlice,Engineering,90000\nBob,Sales,70000\n")
	writeFile(t, root, "hr", "handbook.md",
		"The parental leave policy grants twelve weeks of paid leave. Vacation accrues monthly.")
	writeFile(t, root, "marketing", "plan.md",
		"The spring campaign budget targets social channels.")
	writeFile(t, root, "general", "holidays.md",
		"Office holidays are published every January.")

	catalog, err := structured.NewCatalog(root)
	require.NoError(t, err)

	if searcher == nil {
		corpus, err := ingest.LoadDepartments(root, ingest.Options{})
		require.NoError(t, err)
		searcher = retriever.NewLocal(corpus)
	}

	store := rbac.NewStore(map[string][]string{
		"hr":        {"hr", "general"},
		"marketing": {"marketing", "general"},
		"employee":  {"general"},
		"c_level":   {"hr", "marketing", "general"},
	})

	tracker := metrics.NewTracker()
	retrievalExec := retrieval.NewExecutor(searcher, cache.NewRetrieval(16, 0), nil, synthesis.NewExtractive(), 0)

	orch := New(store, catalog, classifier.NewRuleBased(),
		structured.NewExecutor(catalog), retrievalExec, tracker)

	return &fixture{orch: orch, tracker: tracker, catalog: catalog}
}

func TestHandleStructuredSuccess(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.orch.Handle(context.Background(), "hr",
		"SELECT name FROM hr_employees WHERE department = 'Sales'", 4)

	assert.Equal(t, schema.ModeSQL, resp.Mode)
	assert.Contains(t, resp.Answer, "| Bob |")
	require.Len(t, resp.References, 1)
	assert.Equal(t, "hr/employees.csv", resp.References[0].Source)

	snap := f.tracker.Snapshot()
	assert.Equal(t, int64(1), snap.Roles["hr"].SQL)
	assert.Equal(t, int64(1), snap.TotalRequests)
}

func TestHandleStructuredDeclinedFallsBack(t *testing.T) {
	f := newFixture(t, nil)

	// Marketing cannot see hr tables, so the same SQL falls back to the
	// document path with a provenance note.
	resp := f.orch.Handle(context.Background(), "marketing",
		"SELECT name FROM hr_employees WHERE department = 'Sales'", 4)

	assert.Equal(t, schema.ModeSQLFallback, resp.Mode)
	assert.Contains(t, resp.Answer, "Structured query was attempted but declined")
	assert.Contains(t, resp.Answer, "not accessible")
	for _, ref := range resp.References {
		assert.Contains(t, []string{"marketing", "general"}, ref.Department)
	}

	snap := f.tracker.Snapshot()
	assert.Equal(t, int64(1), snap.Roles["marketing"].Fallback)
}

func TestHandleNaturalLanguage(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.orch.Handle(context.Background(), "hr", "How long is parental leave?", 4)

	assert.Equal(t, schema.ModeRAG, resp.Mode)
	assert.False(t, resp.CacheHit)
	assert.Contains(t, resp.Answer, "twelve weeks")

	again := f.orch.Handle(context.Background(), "hr", "How long is parental leave?", 4)
	assert.True(t, again.CacheHit)
	assert.Equal(t, resp.Answer, again.Answer)

	snap := f.tracker.Snapshot()
	assert.Equal(t, int64(2), snap.Roles["hr"].RAG)
	assert.Equal(t, int64(1), snap.CacheHits)
}

func TestHandleDepartmentIsolation(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.orch.Handle(context.Background(), "employee", "What is the spring campaign budget?", 4)

	assert.Equal(t, schema.ModeRAG, resp.Mode)
	assert.NotContains(t, resp.Answer, "social channels")
	for _, ref := range resp.References {
		assert.Equal(t, "general", ref.Department)
	}
}

func TestHandleNormalizesRole(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.orch.Handle(context.Background(), "  HR ", "How long is parental leave?", 4)
	assert.Equal(t, "hr", resp.Role)
	assert.Contains(t, resp.Answer, "twelve weeks")
}

type panickySearcher struct{}

func (panickySearcher) Type() string { return "panicky" }

func (panickySearcher) Search(context.Context, []string, string, int) ([]schema.SearchResult, error) {
	panic("searcher exploded")
}

func TestHandleRecoversFromPanic(t *testing.T) {
	f := newFixture(t, panickySearcher{})

	resp := f.orch.Handle(context.Background(), "hr", "How long is parental leave?", 4)

	assert.Equal(t, ApologyAnswer, resp.Answer)
	assert.Equal(t, "hr", resp.Role)

	snap := f.tracker.Snapshot()
	assert.Equal(t, int64(1), snap.TotalRequests, "a recovered request still records exactly one outcome")
}
