package schema

// Document is a retrievable unit of department text with provenance metadata.
type Document struct {
	ID         string         `json:"id"`
	Content    string         `json:"content"`
	Source     string         `json:"source"`
	Department string         `json:"department"`
	ChunkIndex int            `json:"chunk_index"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// SearchResult pairs a document with its relevance score.
type SearchResult struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}

// Reference is a single source citation attached to an answer.
type Reference struct {
	Source     string  `json:"source"`
	Department string  `json:"department"`
	Score      float64 `json:"score,omitempty"`
}

// Answer modes recorded per completed request.
const (
	ModeSQL         = "sql"
	ModeRAG         = "rag"
	ModeSQLFallback = "sql_fallback_to_rag"
)

// ChatRequest is the resolved inbound request after authentication.
type ChatRequest struct {
	Message string `json:"message" binding:"required,min=1"`
	TopK    int    `json:"top_k"`
}

// ChatResponse is the outbound contract to the presentation layer.
type ChatResponse struct {
	Answer     string      `json:"answer"`
	Role       string      `json:"role"`
	Mode       string      `json:"mode"`
	CacheHit   bool        `json:"cache_hit"`
	Reranked   bool        `json:"reranked,omitempty"`
	References []Reference `json:"references"`
}

// CloneResults deep-copies a result list so cached entries stay isolated
// from caller mutation.
func CloneResults(results []SearchResult) []SearchResult {
	if len(results) == 0 {
		return nil
	}
	out := make([]SearchResult, len(results))
	for i, res := range results {
		out[i].Score = res.Score
		out[i].Document = cloneDocument(res.Document)
	}
	return out
}

func cloneDocument(doc Document) Document {
	cloned := doc
	if doc.Metadata != nil {
		cloned.Metadata = make(map[string]any, len(doc.Metadata))
		for k, v := range doc.Metadata {
			cloned.Metadata[k] = v
		}
	}
	return cloned
}
