// Package synthesis produces the final natural-language answer from
// retrieved context. When no generation service is configured it falls back
// to a deterministic extractive answer so the whole path works offline.
package synthesis

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/finsolve/rbac-chat/common/logger"
	"github.com/finsolve/rbac-chat/config"
	"github.com/finsolve/rbac-chat/schema"
)

// Provider generates an answer for a question given retrieved contexts.
type Provider interface {
	Generate(ctx context.Context, role, question string, contexts []schema.SearchResult) (string, error)
}

// NoContextAnswer is returned when retrieval produced nothing usable.
const NoContextAnswer = "I could not find relevant information in the accessible documents."

const systemPrompt = `You are an internal assistant for FinSolve Technologies.
You must always respect the provided context and cite the specific document names used.
If the answer is unavailable, state that you cannot find the information in the accessible documents.`

// New creates a synthesis provider from configuration. An empty provider
// name selects the deterministic extractive fallback.
func New(cfg config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case "":
		return NewExtractive(), nil
	case "openai":
		return NewOpenAI(cfg)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %q", cfg.Provider)
	}
}

// FormatContext renders retrieved chunks into a numbered context block,
// truncated to the token budget when one is set.
func FormatContext(contexts []schema.SearchResult, maxTokens int) string {
	var parts []string
	for i, c := range contexts {
		header := fmt.Sprintf("Source %d: %s", i+1, c.Document.Source)
		if c.Score > 0 {
			header += fmt.Sprintf(" (score: %.2f)", c.Score)
		}
		parts = append(parts, header+"\n"+c.Document.Content)
	}
	formatted := strings.Join(parts, "\n\n")
	if maxTokens > 0 {
		formatted = truncateToTokens(formatted, maxTokens)
	}
	return formatted
}

// truncateToTokens caps text at maxTokens using the cl100k_base encoding.
// If the tokenizer cannot be loaded the text passes through with a rough
// 4-bytes-per-token character cap instead.
func truncateToTokens(text string, maxTokens int) string {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		logger.Warnf("synthesis: tokenizer unavailable, using character budget: %v", err)
		limit := maxTokens * 4
		if len(text) > limit {
			return text[:limit]
		}
		return text
	}
	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return enc.Decode(tokens[:maxTokens])
}
