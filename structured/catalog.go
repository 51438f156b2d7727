// Package structured validates and executes SQL questions against
// role-scoped department tables.
package structured

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // in-memory structured engine

	"github.com/finsolve/rbac-chat/common/logger"
)

// TableMeta describes one discovered department table.
type TableMeta struct {
	Department string
	Name       string
	Path       string
	Columns    []string
}

// Catalog owns the read-only structured data: every
// <data_root>/<department>/*.csv becomes a table <department>_<stem>. Rows
// stay in process memory; each query materializes only its authorized
// tables into a fresh scratch database, so a statement can never reach a
// table the gate did not approve.
type Catalog struct {
	tables map[string]TableMeta
	rows   map[string][][]string
}

var identifierPattern = regexp.MustCompile(`[^a-zA-Z0-9_]`)

func sanitizeIdentifier(parts ...string) string {
	raw := strings.Join(parts, "_")
	safe := identifierPattern.ReplaceAllString(raw, "_")
	safe = regexp.MustCompile(`_+`).ReplaceAllString(safe, "_")
	return strings.ToLower(strings.Trim(safe, "_"))
}

// NewCatalog discovers department CSV files under root and loads them.
// A missing root yields an empty catalog.
func NewCatalog(root string) (*Catalog, error) {
	cat := &Catalog{
		tables: make(map[string]TableMeta),
		rows:   make(map[string][][]string),
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warnf("structured: data root %s does not exist, no tables loaded", root)
			return cat, nil
		}
		return nil, fmt.Errorf("read data root: %w", err)
	}

	for _, dir := range entries {
		if !dir.IsDir() {
			continue
		}
		department := strings.ToLower(dir.Name())
		paths, err := filepath.Glob(filepath.Join(root, dir.Name(), "*.csv"))
		if err != nil {
			return nil, err
		}
		sort.Strings(paths)
		for _, path := range paths {
			stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			name := sanitizeIdentifier(department, stem)
			columns, rows, err := loadTable(path)
			if err != nil {
				logger.Warnf("structured: failed to load %s: %v", path, err)
				continue
			}
			cat.tables[name] = TableMeta{Department: department, Name: name, Path: path, Columns: columns}
			cat.rows[name] = rows
		}
	}
	logger.Infof("structured: loaded %d tables", len(cat.tables))
	return cat, nil
}

// loadTable parses a CSV file into sanitized column names and rows padded
// to the column count.
func loadTable(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 || len(records[0]) == 0 {
		return nil, nil, fmt.Errorf("csv %s has no header", path)
	}

	columns := make([]string, 0, len(records[0]))
	for _, col := range records[0] {
		col = sanitizeIdentifier(col)
		if col != "" {
			columns = append(columns, col)
		}
	}
	if len(columns) == 0 {
		return nil, nil, fmt.Errorf("csv %s header has no usable columns", path)
	}

	rows := make([][]string, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make([]string, len(columns))
		for i := range columns {
			if i < len(record) {
				row[i] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return columns, rows, nil
}

// Tables maps every table name to its department, for access-policy
// derivation.
func (c *Catalog) Tables() map[string]string {
	out := make(map[string]string, len(c.tables))
	for name, meta := range c.tables {
		out[name] = meta.Department
	}
	return out
}

// Meta returns the metadata for a table.
func (c *Catalog) Meta(name string) (TableMeta, bool) {
	meta, ok := c.tables[name]
	return meta, ok
}

// TablesFor lists table names visible to the given departments, sorted.
func (c *Catalog) TablesFor(departments []string) []string {
	inScope := make(map[string]struct{}, len(departments))
	for _, d := range departments {
		inScope[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
	}
	var names []string
	for name, meta := range c.tables {
		if _, ok := inScope[meta.Department]; ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Query materializes exactly the given tables into a fresh in-memory
// database, runs the statement against it, and stringifies every value.
// Any table outside the list simply does not exist for the statement.
func (c *Catalog) Query(ctx context.Context, tables []string, statement string) ([]string, [][]string, error) {
	db, err := sqlx.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, nil, fmt.Errorf("open scratch engine: %w", err)
	}
	defer db.Close()

	// Pin a single connection: each sqlite connection gets its own
	// :memory: database, so every statement must run on the same one.
	conn, err := db.Connx(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("pin scratch connection: %w", err)
	}
	defer conn.Close()

	for _, name := range tables {
		if err := c.materialize(ctx, conn, name); err != nil {
			return nil, nil, err
		}
	}

	rows, err := conn.QueryxContext(ctx, statement)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var out [][]string
	for rows.Next() {
		raw, err := rows.SliceScan()
		if err != nil {
			return nil, nil, err
		}
		record := make([]string, len(raw))
		for i, v := range raw {
			record[i] = stringify(v)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return columns, out, nil
}

func (c *Catalog) materialize(ctx context.Context, conn *sqlx.Conn, name string) error {
	meta, ok := c.tables[name]
	if !ok {
		return fmt.Errorf("unknown table %q", name)
	}

	ddl := fmt.Sprintf("CREATE TABLE %s (%s TEXT)", name, strings.Join(meta.Columns, " TEXT, "))
	if _, err := conn.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", name, err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(meta.Columns)), ", ")
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", name, strings.Join(meta.Columns, ", "), placeholders)
	stmt, err := conn.PreparexContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("prepare insert for %s: %w", name, err)
	}
	defer stmt.Close()

	for _, row := range c.rows[name] {
		values := make([]any, len(row))
		for i, v := range row {
			values[i] = v
		}
		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			return fmt.Errorf("load rows into %s: %w", name, err)
		}
	}
	return nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(t)
	case string:
		return t
	case sql.RawBytes:
		return string(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
