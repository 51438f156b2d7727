package synthesis

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"

	"github.com/finsolve/rbac-chat/config"
	"github.com/finsolve/rbac-chat/schema"
)

// OpenAI generates answers with an OpenAI-compatible chat completion
// endpoint.
type OpenAI struct {
	client           openai.Client
	model            string
	temperature      float64
	maxTokens        int
	maxContextTokens int
}

// NewOpenAI builds the provider from configuration.
func NewOpenAI(cfg config.LLMConfig) (*OpenAI, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm model is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAI{
		client:           openai.NewClient(opts...),
		model:            cfg.Model,
		temperature:      cfg.Temperature,
		maxTokens:        cfg.MaxTokens,
		maxContextTokens: cfg.MaxContextTokens,
	}, nil
}

// Generate implements Provider.
func (o *OpenAI) Generate(ctx context.Context, role, question string, contexts []schema.SearchResult) (string, error) {
	formatted := FormatContext(contexts, o.maxContextTokens)
	if formatted == "" {
		return NoContextAnswer, nil
	}

	userPrompt := fmt.Sprintf(
		"Role: %s\nQuestion: %s\n\nContext:\n%s\n\nProvide a concise answer and reference the relevant sources.",
		role, question, formatted,
	)

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature: openai.Float(o.temperature),
	}
	if o.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(o.maxTokens))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("generate completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion response contained no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
