package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyStructured(t *testing.T) {
	c := NewRuleBased()
	tables := []string{"hr_employees", "general_holidays"}

	tests := []struct {
		name     string
		question string
		want     Intent
	}{
		{
			name:     "leading select",
			question: "SELECT name FROM hr_employees WHERE salary > 50000",
			want:     Structured,
		},
		{
			name:     "leading with clause",
			question: "WITH top AS (SELECT * FROM hr_employees) SELECT * FROM top",
			want:     Structured,
		},
		{
			name:     "leading select with whitespace",
			question: "   select count(*) from general_holidays",
			want:     Structured,
		},
		{
			name:     "keywords plus comparison",
			question: "count rows where score >= 10 order by score",
			want:     Structured,
		},
		{
			name:     "table mention plus comparison",
			question: "hr_employees entries with rating != 3",
			want:     Structured,
		},
		{
			name:     "plain question",
			question: "What is our parental leave policy?",
			want:     NaturalLanguage,
		},
		{
			name:     "single keyword no comparison",
			question: "give me a count of new hires",
			want:     NaturalLanguage,
		},
		{
			name:     "keywords without comparison or table",
			question: "select the best average performer for me",
			want:     Structured, // leading select wins
		},
		{
			name:     "empty question",
			question: "   ",
			want:     NaturalLanguage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.question, tables)
			assert.Equal(t, tt.want, got.Intent)
			if tt.want == Structured {
				assert.NotEmpty(t, got.Statement)
			}
		})
	}
}

func TestClassifyStatementPreservesCase(t *testing.T) {
	c := NewRuleBased()
	res := c.Classify("  SELECT Name FROM hr_employees  ", nil)

	assert.Equal(t, Structured, res.Intent)
	assert.Equal(t, "SELECT Name FROM hr_employees", res.Statement)
}

func TestClassifyIgnoresInaccessibleTables(t *testing.T) {
	c := NewRuleBased()

	// Same question, different table scope: mention check only sees the
	// caller's own tables.
	res := c.Classify("finance_expenses rows where amount > 100", []string{"finance_expenses"})
	assert.Equal(t, Structured, res.Intent)

	res = c.Classify("finance_expenses rows where amount > 100", []string{"hr_employees"})
	assert.Equal(t, NaturalLanguage, res.Intent)
}
