package retriever

import (
	"context"
	"fmt"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/finsolve/rbac-chat/common/logger"
	"github.com/finsolve/rbac-chat/config"
	"github.com/finsolve/rbac-chat/embedding"
	"github.com/finsolve/rbac-chat/schema"
)

// Milvus searches a Milvus collection of embedded chunks. The department
// scope goes into the search expression so out-of-scope chunks never enter
// the candidate set.
type Milvus struct {
	client     client.Client
	embed      embedding.Provider
	collection string
}

// Expected collection fields.
const (
	fieldID         = "id"
	fieldContent    = "content"
	fieldSource     = "source"
	fieldDepartment = "department"
	fieldChunkIndex = "chunk_index"
	fieldVector     = "vector"
)

// NewMilvus connects to Milvus and wraps it as a Searcher.
func NewMilvus(ctx context.Context, cfg config.VectorDBConfig, embed embedding.Provider) (*Milvus, error) {
	c, err := client.NewClient(ctx, client.Config{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		DBName:   cfg.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("connect milvus failed: %w", err)
	}
	return &Milvus{client: c, embed: embed, collection: cfg.Collection}, nil
}

func (m *Milvus) Type() string { return "milvus" }

// Close releases the underlying connection.
func (m *Milvus) Close() error { return m.client.Close() }

// Search implements Searcher.
func (m *Milvus) Search(ctx context.Context, departments []string, query string, topK int) ([]schema.SearchResult, error) {
	if topK <= 0 {
		topK = 4
	}
	expr := departmentExpr(departments)
	if expr == "" {
		return []schema.SearchResult{}, nil
	}

	vec, err := m.embed.GetEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query failed: %w", err)
	}

	sp, err := entity.NewIndexHNSWSearchParam(64)
	if err != nil {
		return nil, fmt.Errorf("build search params failed: %w", err)
	}
	results, err := m.client.Search(ctx, m.collection, nil, expr,
		[]string{fieldContent, fieldSource, fieldDepartment, fieldChunkIndex},
		[]entity.Vector{entity.FloatVector(vec)}, fieldVector, entity.IP, topK, sp)
	if err != nil {
		return nil, fmt.Errorf("milvus search failed: %w", err)
	}

	var out []schema.SearchResult
	for _, rs := range results {
		for i := 0; i < rs.ResultCount; i++ {
			doc := schema.Document{
				ID:         columnString(rs.IDs, i),
				Content:    columnString(rs.Fields.GetColumn(fieldContent), i),
				Source:     columnString(rs.Fields.GetColumn(fieldSource), i),
				Department: columnString(rs.Fields.GetColumn(fieldDepartment), i),
				ChunkIndex: columnInt(rs.Fields.GetColumn(fieldChunkIndex), i),
			}
			out = append(out, schema.SearchResult{Document: doc, Score: float64(rs.Scores[i])})
		}
	}
	logger.Debugf("retriever: milvus returned %d results for scope %s", len(out), expr)
	return out, nil
}

// departmentExpr builds the boolean filter expression. Department names come
// from the static role table, not from user input, but quotes are stripped
// anyway.
func departmentExpr(departments []string) string {
	quoted := make([]string, 0, len(departments))
	for _, d := range departments {
		d = strings.ToLower(strings.TrimSpace(d))
		d = strings.ReplaceAll(d, `"`, "")
		if d != "" {
			quoted = append(quoted, fmt.Sprintf("%q", d))
		}
	}
	if len(quoted) == 0 {
		return ""
	}
	return fmt.Sprintf("%s in [%s]", fieldDepartment, strings.Join(quoted, ", "))
}

func columnString(col entity.Column, idx int) string {
	if col == nil {
		return ""
	}
	v, err := col.Get(idx)
	if err != nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	default:
		return fmt.Sprintf("%v", s)
	}
}

func columnInt(col entity.Column, idx int) int {
	if col == nil {
		return 0
	}
	v, err := col.Get(idx)
	if err != nil {
		return 0
	}
	switch n := v.(type) {
	case int64:
		return int(n)
	case int32:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}
