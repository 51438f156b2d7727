package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	if len(errs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("found %d configuration error(s):\n", len(errs)))
	for i, err := range errs {
		b.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Message))
	}
	return b.String()
}

// Validate validates the complete configuration.
func (c *Config) Validate() error {
	var errs ValidationErrors

	errs = append(errs, c.validateRoles()...)
	errs = append(errs, c.validateRAG()...)
	errs = append(errs, c.validateLLM()...)
	errs = append(errs, c.validateVectorDB()...)
	errs = append(errs, c.validateRerank()...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (c *Config) validateRoles() ValidationErrors {
	var errs ValidationErrors

	if len(c.Roles) == 0 {
		errs = append(errs, ValidationError{
			Field:   "roles",
			Message: "at least one role mapping is required",
		})
	}
	for role, departments := range c.Roles {
		if strings.TrimSpace(role) == "" {
			errs = append(errs, ValidationError{
				Field:   "roles",
				Message: "role names must not be empty",
			})
			continue
		}
		if len(departments) == 0 {
			errs = append(errs, ValidationError{
				Field:   "roles." + role,
				Message: fmt.Sprintf("role %q must map to at least one department", role),
			})
		}
	}
	for _, user := range c.Auth.Users {
		if user.Role == "" {
			continue
		}
		if _, ok := c.Roles[strings.ToLower(strings.TrimSpace(user.Role))]; !ok {
			errs = append(errs, ValidationError{
				Field:   "auth.users",
				Message: fmt.Sprintf("user %q references unknown role %q", user.Username, user.Role),
			})
		}
	}
	return errs
}

func (c *Config) validateRAG() ValidationErrors {
	var errs ValidationErrors

	if c.RAG.TopK < 0 {
		errs = append(errs, ValidationError{
			Field:   "rag.top_k",
			Message: "top_k must be positive",
		})
	}
	if c.RAG.CacheCapacity < 0 {
		errs = append(errs, ValidationError{
			Field:   "rag.cache_capacity",
			Message: "cache_capacity must be positive",
		})
	}
	if c.RAG.ChunkOverlap >= c.RAG.ChunkSize && c.RAG.ChunkSize > 0 {
		errs = append(errs, ValidationError{
			Field:   "rag.chunk_overlap",
			Message: "chunk_overlap must be smaller than chunk_size",
		})
	}
	return errs
}

func (c *Config) validateLLM() ValidationErrors {
	var errs ValidationErrors

	switch c.LLM.Provider {
	case "", "openai":
	default:
		errs = append(errs, ValidationError{
			Field:   "llm.provider",
			Message: fmt.Sprintf("unsupported llm provider %q (available: openai)", c.LLM.Provider),
		})
	}
	if c.LLM.Provider == "openai" && c.LLM.Model == "" {
		errs = append(errs, ValidationError{
			Field:   "llm.model",
			Message: "llm model is required when a provider is configured",
		})
	}
	return errs
}

func (c *Config) validateVectorDB() ValidationErrors {
	var errs ValidationErrors

	switch c.VectorDB.Provider {
	case "", "local":
	case "milvus":
		if c.VectorDB.Address == "" {
			errs = append(errs, ValidationError{
				Field:   "vectordb.address",
				Message: "milvus address is required",
			})
		}
		if c.VectorDB.Collection == "" {
			errs = append(errs, ValidationError{
				Field:   "vectordb.collection",
				Message: "milvus collection is required",
			})
		}
		if c.Embedding.Provider == "" || c.Embedding.Model == "" {
			errs = append(errs, ValidationError{
				Field:   "embedding",
				Message: "milvus search requires an embedding provider and model",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "vectordb.provider",
			Message: fmt.Sprintf("unsupported vectordb provider %q (available: local, milvus)", c.VectorDB.Provider),
		})
	}
	return errs
}

func (c *Config) validateRerank() ValidationErrors {
	var errs ValidationErrors

	if !c.Rerank.Enable {
		return errs
	}
	switch c.Rerank.Provider {
	case "", "keyword":
	case "http":
		if c.Rerank.Endpoint == "" {
			errs = append(errs, ValidationError{
				Field:   "rerank.endpoint",
				Message: "http reranker requires an endpoint",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "rerank.provider",
			Message: fmt.Sprintf("unsupported rerank provider %q (available: keyword, http)", c.Rerank.Provider),
		})
	}
	return errs
}
