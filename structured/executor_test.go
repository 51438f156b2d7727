package structured

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsolve/rbac-chat/rbac"
)

func writeCSV(t *testing.T, root, department, name, content string) {
	t.Helper()
	dir := filepath.Join(root, department)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	root := t.TempDir()

	writeCSV(t, root, "hr", "employees.csv",
		"name,department,salary\nAlice,Engineering,90000\nBob,Sales,70000\nCara,Engineering,85000\n")
	writeCSV(t, root, "finance", "expenses.csv",
		"category,amount\nTravel,1200\nSoftware,300\n")
	writeCSV(t, root, "general", "holidays.csv",
		"date,holiday\n2025-01-01,New Year\n")

	var big strings.Builder
	big.WriteString("n\n")
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&big, "%d\n", i)
	}
	writeCSV(t, root, "hr", "rows.csv", big.String())

	writeCSV(t, root, "finance", "q1-budget.csv",
		"line_item,planned\nCloud,5000\n")

	cat, err := NewCatalog(root)
	require.NoError(t, err)
	return cat
}

func hrPolicy(cat *Catalog) rbac.AccessPolicy {
	store := rbac.NewStore(map[string][]string{
		"hr":      {"hr", "general"},
		"finance": {"finance", "general"},
		"c_level": {"hr", "finance", "general"},
	})
	return store.Policy("hr", cat.Tables())
}

func TestCatalogLoadsDepartmentTables(t *testing.T) {
	cat := testCatalog(t)

	tables := cat.Tables()
	assert.Equal(t, "hr", tables["hr_employees"])
	assert.Equal(t, "finance", tables["finance_expenses"])
	assert.Equal(t, "general", tables["general_holidays"])

	assert.Equal(t, []string{"general_holidays", "hr_employees", "hr_rows"},
		cat.TablesFor([]string{"hr", "general"}))
}

func TestCatalogMissingRoot(t *testing.T) {
	cat, err := NewCatalog(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)

	assert.Empty(t, cat.Tables())
}

func TestExecuteSelect(t *testing.T) {
	cat := testCatalog(t)
	exec := NewExecutor(cat)

	res, err := exec.Execute(context.Background(), hrPolicy(cat),
		"SELECT name FROM hr_employees WHERE department = 'Engineering' ORDER BY name")
	require.NoError(t, err)

	assert.Equal(t, 2, res.RowCount)
	assert.Contains(t, res.Markdown, "| name |")
	assert.Contains(t, res.Markdown, "| Alice |")
	assert.Contains(t, res.Markdown, "| Cara |")
	assert.Contains(t, res.Markdown, "2 row(s) returned.")
	require.Len(t, res.References, 1)
	assert.Equal(t, "hr/employees.csv", res.References[0].Source)
	assert.Equal(t, "hr", res.References[0].Department)
}

func TestExecuteAppliesRowLimit(t *testing.T) {
	cat := testCatalog(t)
	exec := NewExecutor(cat)

	res, err := exec.Execute(context.Background(), hrPolicy(cat), "SELECT n FROM hr_rows")
	require.NoError(t, err)

	assert.Equal(t, defaultRowLimit, res.RowCount)
	assert.Contains(t, res.Markdown, fmt.Sprintf("Showing %d of %d rows.", displayRowCap, defaultRowLimit))
}

func TestExecuteRespectsExplicitLimit(t *testing.T) {
	cat := testCatalog(t)
	exec := NewExecutor(cat)

	res, err := exec.Execute(context.Background(), hrPolicy(cat), "SELECT n FROM hr_rows LIMIT 3")
	require.NoError(t, err)
	assert.Equal(t, 3, res.RowCount)
}

func TestExecuteNoRows(t *testing.T) {
	cat := testCatalog(t)
	exec := NewExecutor(cat)

	res, err := exec.Execute(context.Background(), hrPolicy(cat),
		"SELECT name FROM hr_employees WHERE salary = '-1'")
	require.NoError(t, err)
	assert.Equal(t, "No rows returned for this query.", res.Markdown)
}

func TestGateRejections(t *testing.T) {
	cat := testCatalog(t)
	exec := NewExecutor(cat)
	policy := hrPolicy(cat)

	tests := []struct {
		name      string
		statement string
		reason    string
	}{
		{"empty", "   ", "empty query"},
		{"multiple statements", "SELECT * FROM hr_employees; DROP TABLE hr_employees", "multiple statements"},
		{"not a select", "UPDATE hr_employees SET salary = 0", "only SELECT"},
		{"forbidden keyword", "SELECT * FROM hr_employees WHERE name IN (SELECT 1) AND 0 = (DELETE)", "forbidden keyword"},
		{"no table", "SELECT 1 + 1", "at least one known table"},
		{"out of scope table", "SELECT * FROM finance_expenses", "not accessible"},
		{"unknown table", "SELECT * FROM hr_secrets", "not accessible"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := exec.Execute(context.Background(), policy, tt.statement)
			var perr *PolicyError
			require.ErrorAs(t, err, &perr)
			assert.Contains(t, perr.Reason, tt.reason)
		})
	}
}

func TestGateCrossDepartment(t *testing.T) {
	cat := testCatalog(t)
	exec := NewExecutor(cat)

	store := rbac.NewStore(map[string][]string{
		"c_level": {"hr", "finance", "general"},
	})
	policy := store.Policy("c_level", cat.Tables())

	// Joining a department table with general data is allowed.
	_, err := exec.Execute(context.Background(), policy,
		"SELECT e.name FROM hr_employees e JOIN general_holidays h ON 1=1")
	require.NoError(t, err)

	// Two distinct non-general departments are not, even for c_level.
	_, err = exec.Execute(context.Background(), policy,
		"SELECT e.name FROM hr_employees e JOIN finance_expenses f ON 1=1")
	var perr *PolicyError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Reason, "multiple departments")
}

func TestGateCommaJoinCannotReachOtherDepartments(t *testing.T) {
	cat := testCatalog(t)
	exec := NewExecutor(cat)

	// A comma-style join names the second table without FROM/JOIN in
	// front of it; it must still be treated as a reference and rejected.
	_, err := exec.Execute(context.Background(), hrPolicy(cat),
		"SELECT finance_expenses.category, finance_expenses.amount FROM hr_employees, finance_expenses")
	var perr *PolicyError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Reason, "not accessible")
}

func TestGateCommaJoinCrossDepartment(t *testing.T) {
	cat := testCatalog(t)
	exec := NewExecutor(cat)

	store := rbac.NewStore(map[string][]string{
		"c_level": {"hr", "finance", "general"},
	})
	policy := store.Policy("c_level", cat.Tables())

	_, err := exec.Execute(context.Background(), policy,
		"SELECT * FROM hr_employees, finance_expenses")
	var perr *PolicyError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Reason, "multiple departments")
}

func TestGateRejectsQuotedMentionOfOutOfScopeTable(t *testing.T) {
	cat := testCatalog(t)
	exec := NewExecutor(cat)

	// Conservative: even a string-literal mention of a table outside the
	// caller's scope rejects the statement.
	_, err := exec.Execute(context.Background(), hrPolicy(cat),
		"SELECT name FROM hr_employees WHERE name = 'finance_expenses'")
	var perr *PolicyError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Reason, "not accessible")
}

func TestExecuteScratchDatabaseOnlyHoldsReferencedTables(t *testing.T) {
	cat := testCatalog(t)
	exec := NewExecutor(cat)

	store := rbac.NewStore(map[string][]string{
		"finance": {"finance", "general"},
	})
	policy := store.Policy("finance", cat.Tables())

	res, err := exec.Execute(context.Background(), policy,
		"SELECT category FROM finance_expenses ORDER BY category")
	require.NoError(t, err)
	assert.Equal(t, []string{"finance_expenses"}, res.Tables)
	assert.Contains(t, res.Markdown, "| Software |")
}

func TestExecuteCitationUsesRealFilename(t *testing.T) {
	cat := testCatalog(t)
	exec := NewExecutor(cat)

	store := rbac.NewStore(map[string][]string{
		"finance": {"finance", "general"},
	})
	policy := store.Policy("finance", cat.Tables())

	// The table name sanitizes the dash away; the citation must keep the
	// file's real name.
	res, err := exec.Execute(context.Background(), policy,
		"SELECT line_item FROM finance_q1_budget")
	require.NoError(t, err)
	require.Len(t, res.References, 1)
	assert.Equal(t, "finance/q1-budget.csv", res.References[0].Source)
}

func TestExecuteEngineErrorIsExecError(t *testing.T) {
	cat := testCatalog(t)
	exec := NewExecutor(cat)

	_, err := exec.Execute(context.Background(), hrPolicy(cat),
		"SELECT no_such_column FROM hr_employees")
	var xerr *ExecError
	require.ErrorAs(t, err, &xerr)

	var perr *PolicyError
	assert.False(t, errors.As(err, &perr))
}
