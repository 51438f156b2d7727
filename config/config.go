package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration structure for the chat engine.
type Config struct {
	Server    ServerConfig        `json:"server" yaml:"server"`
	Auth      AuthConfig          `json:"auth" yaml:"auth"`
	Roles     map[string][]string `json:"roles,omitempty" yaml:"roles,omitempty"`
	Data      DataConfig          `json:"data" yaml:"data"`
	RAG       RAGConfig           `json:"rag" yaml:"rag"`
	LLM       LLMConfig           `json:"llm" yaml:"llm"`
	Embedding EmbeddingConfig     `json:"embedding" yaml:"embedding"`
	VectorDB  VectorDBConfig      `json:"vectordb" yaml:"vectordb"`
	Rerank    RerankConfig        `json:"rerank" yaml:"rerank"`
	HTTP      *HTTPClientConfig   `json:"http,omitempty" yaml:"http,omitempty"`
}

// ServerConfig holds the HTTP gateway settings.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// AuthConfig defines the static user table and token settings consumed by
// the gateway. Credential verification stays outside the core engine.
type AuthConfig struct {
	JWTSecret string `json:"jwt_secret" yaml:"jwt_secret"`
	TokenTTL  int    `json:"token_ttl_minutes" yaml:"token_ttl_minutes"`
	Users     []User `json:"users" yaml:"users"`
}

// User is one entry of the static credential table.
type User struct {
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	Role     string `json:"role" yaml:"role"`
}

// DataConfig points at the department data tree
// (<root>/<department>/{*.md,*.txt,*.csv}).
type DataConfig struct {
	Root string `json:"root" yaml:"root"`
}

// RAGConfig contains retrieval-path settings.
type RAGConfig struct {
	TopK            int `json:"top_k,omitempty" yaml:"top_k,omitempty"`
	ChunkSize       int `json:"chunk_size,omitempty" yaml:"chunk_size,omitempty"`
	ChunkOverlap    int `json:"chunk_overlap,omitempty" yaml:"chunk_overlap,omitempty"`
	CacheCapacity   int `json:"cache_capacity,omitempty" yaml:"cache_capacity,omitempty"`
	CacheTTLSeconds int `json:"cache_ttl_seconds,omitempty" yaml:"cache_ttl_seconds,omitempty"`
}

// LLMConfig defines configuration for the answer-synthesis model.
// An empty provider selects the deterministic offline fallback.
type LLMConfig struct {
	Provider         string  `json:"provider" yaml:"provider"` // Available options: openai, ""
	APIKey           string  `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL          string  `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model            string  `json:"model" yaml:"model"`
	Temperature      float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens        int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	MaxContextTokens int     `json:"max_context_tokens,omitempty" yaml:"max_context_tokens,omitempty"`
}

// EmbeddingConfig defines the embedding model used by the vector searcher.
type EmbeddingConfig struct {
	Provider string `json:"provider" yaml:"provider"` // Available options: openai
	APIKey   string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL  string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model    string `json:"model,omitempty" yaml:"model,omitempty"`
}

// VectorDBConfig selects the search backend. The local provider indexes the
// department documents in process and needs no external service.
type VectorDBConfig struct {
	Provider   string `json:"provider" yaml:"provider"` // Available options: local, milvus
	Address    string `json:"address,omitempty" yaml:"address,omitempty"`
	Database   string `json:"database,omitempty" yaml:"database,omitempty"`
	Collection string `json:"collection,omitempty" yaml:"collection,omitempty"`
	Username   string `json:"username,omitempty" yaml:"username,omitempty"`
	Password   string `json:"password,omitempty" yaml:"password,omitempty"`
}

// RerankConfig controls the optional reranking stage.
type RerankConfig struct {
	Enable   bool   `json:"enable" yaml:"enable"`
	Provider string `json:"provider,omitempty" yaml:"provider,omitempty"` // Available options: keyword, http
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	TopN     int    `json:"top_n,omitempty" yaml:"top_n,omitempty"`
}

// HTTPClientConfig tunes outbound HTTP calls made to external capabilities
// (rerank service, synthesis service).
type HTTPClientConfig struct {
	TimeoutMs              int      `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
	Retry                  int      `json:"retry,omitempty" yaml:"retry,omitempty"`
	BackoffMinMs           int      `json:"backoff_min_ms,omitempty" yaml:"backoff_min_ms,omitempty"`
	BackoffMaxMs           int      `json:"backoff_max_ms,omitempty" yaml:"backoff_max_ms,omitempty"`
	HostAllowlist          []string `json:"host_allowlist,omitempty" yaml:"host_allowlist,omitempty"`
	MaxConsecutiveFailures int      `json:"max_consecutive_failures,omitempty" yaml:"max_consecutive_failures,omitempty"`
	CircuitOpenSeconds     int      `json:"circuit_open_seconds,omitempty" yaml:"circuit_open_seconds,omitempty"`
}

// Default returns a configuration with the built-in role table and offline
// providers, suitable for local use without any external service.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		Auth: AuthConfig{
			TokenTTL: 60,
		},
		Roles: map[string][]string{
			"finance":     {"finance", "general"},
			"marketing":   {"marketing", "general"},
			"hr":          {"hr", "general"},
			"engineering": {"engineering", "general"},
			"employee":    {"general"},
			"c_level":     {"finance", "marketing", "hr", "engineering", "general"},
		},
		Data: DataConfig{Root: "resources/data"},
		RAG: RAGConfig{
			TopK:          4,
			ChunkSize:     800,
			ChunkOverlap:  150,
			CacheCapacity: 128,
		},
		LLM: LLMConfig{
			Provider:         "",
			Model:            "gpt-4o-mini",
			Temperature:      0.1,
			MaxTokens:        1024,
			MaxContextTokens: 3000,
		},
		Embedding: EmbeddingConfig{
			Provider: "openai",
			Model:    "text-embedding-3-small",
		},
		VectorDB: VectorDBConfig{
			Provider:   "local",
			Collection: "rbac_documents",
		},
		Rerank: RerankConfig{
			Enable:   false,
			Provider: "keyword",
			TopN:     4,
		},
	}
}

// Load reads configuration from a YAML file on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
