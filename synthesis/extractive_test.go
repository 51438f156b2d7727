package synthesis

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsolve/rbac-chat/schema"
)

func docs() []schema.SearchResult {
	return []schema.SearchResult{
		{
			Document: schema.Document{
				Content: "Employees accrue vacation monthly. The parental leave policy grants twelve weeks of paid leave. Remote work requires manager approval.",
				Source:  "hr/handbook.md",
			},
			Score: 0.9,
		},
		{
			Document: schema.Document{
				Content: "Quarterly expense reports are due on the fifth business day.",
				Source:  "finance/process.md",
			},
			Score: 0.5,
		},
	}
}

func TestGenerateNoContexts(t *testing.T) {
	e := NewExtractive()
	out, err := e.Generate(context.Background(), "hr", "anything", nil)
	require.NoError(t, err)
	assert.Equal(t, NoContextAnswer, out)
}

func TestGeneratePicksBestSentence(t *testing.T) {
	e := NewExtractive()
	out, err := e.Generate(context.Background(), "hr", "How long is parental leave?", docs())
	require.NoError(t, err)

	assert.Contains(t, out, "The parental leave policy grants twelve weeks of paid leave.")
	assert.Contains(t, out, "(source: hr/handbook.md)")
}

func TestGenerateIsDeterministic(t *testing.T) {
	e := NewExtractive()
	first, err := e.Generate(context.Background(), "hr", "parental leave policy", docs())
	require.NoError(t, err)
	second, err := e.Generate(context.Background(), "hr", "parental leave policy", docs())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGenerateFallsBackToKeyPoints(t *testing.T) {
	e := NewExtractive()
	// All question words are stopwords or too short, so no sentence scores.
	out, err := e.Generate(context.Background(), "hr", "what was the", docs())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "Key points from the knowledge base:"))
	assert.Contains(t, out, "(source: hr/handbook.md)")
	assert.Contains(t, out, "(source: finance/process.md)")
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("First point. Second point! Third question? trailing fragment")
	assert.Equal(t, []string{"First point.", "Second point!", "Third question?", "trailing fragment"}, got)
}

func TestShorten(t *testing.T) {
	assert.Equal(t, "short text", shorten("short   text", 180))

	long := strings.Repeat("word ", 100)
	got := shorten(long, 40)
	assert.LessOrEqual(t, len(got), 40)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestFormatContextNumbersSources(t *testing.T) {
	out := FormatContext(docs(), 0)
	assert.Contains(t, out, "Source 1: hr/handbook.md (score: 0.90)")
	assert.Contains(t, out, "Source 2: finance/process.md (score: 0.50)")
}
