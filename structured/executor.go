package structured

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/finsolve/rbac-chat/rbac"
	"github.com/finsolve/rbac-chat/schema"
)

// PolicyError rejects a statement before execution: disallowed syntax,
// unknown or out-of-scope tables, or an invalid department combination.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string { return e.Reason }

// ExecError wraps an engine failure for a statement that passed the gate.
type ExecError struct {
	Err error
}

func (e *ExecError) Error() string { return fmt.Sprintf("structured execution failed: %v", e.Err) }

func (e *ExecError) Unwrap() error { return e.Err }

// Result carries a rendered structured answer.
type Result struct {
	Markdown   string
	References []schema.Reference
	Tables     []string
	RowCount   int
}

const (
	defaultRowLimit = 50
	displayRowCap   = 10
)

var (
	selectPattern    = regexp.MustCompile(`(?i)^\s*(select|with)\b`)
	tableRefPattern  = regexp.MustCompile(`(?i)\b(?:from|join)\s+([a-zA-Z_][a-zA-Z0-9_]*)`)
	forbiddenPattern = regexp.MustCompile(`(?i)\b(insert|update|delete|drop|alter|create|attach|detach|pragma|vacuum|replace|reindex|grant|revoke)\b`)
	limitPattern     = regexp.MustCompile(`(?i)\blimit\s+\d+`)
)

// Executor gates SQL statements against an access policy and runs the
// ones that pass against a scratch database holding only their tables.
type Executor struct {
	catalog *Catalog
	// mentions matches each catalog table name on word boundaries, so a
	// table reference anywhere in a statement is found even when the
	// FROM/JOIN scan misses it (comma joins, subqueries).
	mentions map[string]*regexp.Regexp
}

// NewExecutor builds an executor over the loaded catalog.
func NewExecutor(catalog *Catalog) *Executor {
	mentions := make(map[string]*regexp.Regexp)
	for name := range catalog.Tables() {
		mentions[name] = regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\b`)
	}
	return &Executor{catalog: catalog, mentions: mentions}
}

// Execute validates statement against policy, appends a row limit when the
// statement has none, runs it, and renders a markdown table. It returns a
// *PolicyError for gate rejections and an *ExecError for engine failures.
func (e *Executor) Execute(ctx context.Context, policy rbac.AccessPolicy, statement string) (Result, error) {
	statement = strings.TrimSpace(statement)
	tables, err := e.gate(policy, statement)
	if err != nil {
		return Result{}, err
	}

	if !limitPattern.MatchString(statement) {
		statement = fmt.Sprintf("%s LIMIT %d", strings.TrimRight(statement, " \t\n;"), defaultRowLimit)
	}

	columns, rows, qerr := e.catalog.Query(ctx, tables, statement)
	if qerr != nil {
		return Result{}, &ExecError{Err: qerr}
	}

	refs := make([]schema.Reference, 0, len(tables))
	for _, name := range tables {
		meta, _ := e.catalog.Meta(name)
		refs = append(refs, schema.Reference{
			Source:     fmt.Sprintf("%s/%s", meta.Department, filepath.Base(meta.Path)),
			Department: meta.Department,
			Score:      1.0,
		})
	}

	return Result{
		Markdown:   renderMarkdown(columns, rows),
		References: refs,
		Tables:     tables,
		RowCount:   len(rows),
	}, nil
}

// gate applies the policy checks and returns the referenced table names,
// FROM/JOIN references first in appearance order.
func (e *Executor) gate(policy rbac.AccessPolicy, statement string) ([]string, error) {
	if statement == "" {
		return nil, &PolicyError{Reason: "empty query"}
	}
	if strings.Contains(statement, ";") {
		return nil, &PolicyError{Reason: "multiple statements are not supported"}
	}
	if !selectPattern.MatchString(statement) {
		return nil, &PolicyError{Reason: "only SELECT queries are supported"}
	}
	if m := forbiddenPattern.FindString(statement); m != "" {
		return nil, &PolicyError{Reason: fmt.Sprintf("statement contains forbidden keyword %q", strings.ToLower(m))}
	}

	lowered := strings.ToLower(statement)
	matches := tableRefPattern.FindAllStringSubmatch(statement, -1)
	seen := make(map[string]struct{})
	var tables []string
	for _, m := range matches {
		name := strings.ToLower(m[1])
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		tables = append(tables, name)
	}

	// Any mention of a known table counts as a reference: a comma join
	// (`FROM a, b`) or a subquery must not smuggle in a table the
	// FROM/JOIN scan missed. Conservative on purpose: even a quoted
	// mention of an out-of-scope table rejects the statement.
	for _, name := range e.mentionedTables(lowered) {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		tables = append(tables, name)
	}

	if len(tables) == 0 {
		return nil, &PolicyError{Reason: "query must reference at least one known table"}
	}

	departments := make(map[string]struct{})
	for _, name := range tables {
		dept, ok := policy.Tables[name]
		if !ok {
			return nil, &PolicyError{Reason: fmt.Sprintf("table %q is not accessible for role %q", name, policy.Role)}
		}
		departments[dept] = struct{}{}
	}

	// Queries may join a department table with general data, but never
	// two distinct non-general departments.
	nonGeneral := 0
	for dept := range departments {
		if dept != "general" {
			nonGeneral++
		}
	}
	if nonGeneral > 1 {
		return nil, &PolicyError{Reason: "query spans multiple departments"}
	}

	return tables, nil
}

// mentionedTables lists the catalog tables whose names appear anywhere in
// the lowercased statement, sorted for determinism.
func (e *Executor) mentionedTables(lowered string) []string {
	var names []string
	for name, pattern := range e.mentions {
		if pattern.MatchString(lowered) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func renderMarkdown(columns []string, rows [][]string) string {
	if len(rows) == 0 {
		return "No rows returned for this query."
	}

	var b strings.Builder
	b.WriteString("| ")
	b.WriteString(strings.Join(columns, " | "))
	b.WriteString(" |\n| ")
	for i := range columns {
		if i > 0 {
			b.WriteString(" | ")
		}
		b.WriteString("---")
	}
	b.WriteString(" |\n")

	display := rows
	if len(display) > displayRowCap {
		display = display[:displayRowCap]
	}
	for _, row := range display {
		cells := make([]string, len(columns))
		for i := range columns {
			if i < len(row) {
				cells[i] = strings.ReplaceAll(row[i], "|", "\\|")
			}
		}
		b.WriteString("| ")
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString(" |\n")
	}

	if len(rows) > displayRowCap {
		fmt.Fprintf(&b, "\nShowing %d of %d rows.", displayRowCap, len(rows))
	} else {
		fmt.Fprintf(&b, "\n%d row(s) returned.", len(rows))
	}
	return b.String()
}
