package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/finsolve/rbac-chat/common/httpx"
	"github.com/finsolve/rbac-chat/common/logger"
	"github.com/finsolve/rbac-chat/schema"
)

// HTTP posts a JSON payload to an external cross-encoder service.
// Expected request body:
// {"query":"...","candidates":[{"id":"","text":"..."}],"top_n":4}
// Expected response body:
// {"ranking":[{"id":"","score":0.9}]}
//
// On any failure the candidates are returned truncated in their original
// order together with a non-nil error, so the caller can tell a real
// rerank apart from a passthrough.
type HTTP struct {
	Endpoint string
	Client   *httpx.Client
}

type rerankReq struct {
	Query      string            `json:"query"`
	Candidates []rerankCandidate `json:"candidates"`
	TopN       int               `json:"top_n,omitempty"`
}
type rerankCandidate struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}
type rerankResp struct {
	Ranking []struct {
		ID    string  `json:"id"`
		Score float64 `json:"score"`
	} `json:"ranking"`
}

func (h *HTTP) Rerank(ctx context.Context, query string, in []schema.SearchResult, topN int) ([]schema.SearchResult, error) {
	if h.Endpoint == "" {
		return truncate(in, topN), fmt.Errorf("rerank: no endpoint configured")
	}
	req := rerankReq{Query: query, TopN: topN}
	idx := map[string]int{}
	req.Candidates = make([]rerankCandidate, 0, len(in))
	for i, c := range in {
		idx[c.Document.ID] = i
		req.Candidates = append(req.Candidates, rerankCandidate{ID: c.Document.ID, Text: c.Document.Content})
	}
	bs, _ := json.Marshal(req)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Endpoint, bytes.NewReader(bs))
	if err != nil {
		return truncate(in, topN), fmt.Errorf("rerank: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if h.Client == nil {
		h.Client = httpx.NewFromConfig(nil)
	}
	resp, err := h.Client.Do(httpReq)
	if err != nil {
		logger.Warnf("rerank: http call failed, passing candidates through: %v", err)
		return truncate(in, topN), fmt.Errorf("rerank: http call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return truncate(in, topN), fmt.Errorf("rerank: unexpected status %d", resp.StatusCode)
	}

	var rr rerankResp
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return truncate(in, topN), fmt.Errorf("rerank: decode response: %w", err)
	}
	if len(rr.Ranking) == 0 {
		return truncate(in, topN), fmt.Errorf("rerank: empty ranking in response")
	}

	// Build a new ordered list based on ranking ids
	out := make([]schema.SearchResult, 0, len(rr.Ranking))
	for _, r := range rr.Ranking {
		if i, ok := idx[r.ID]; ok {
			c := in[i]
			c.Score = r.Score
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return truncate(out, topN), nil
}
