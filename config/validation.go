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
		b.WriteString(fmt.Sprintf("  %d. [%s] %s\n", i+1, err.Field, err.Message))
	}
	return b.String()
}

// Validate validates the complete configuration.
func (c *Config) Validate() error {
	var errs ValidationErrors

	errs = append(errs, c.validateLLM()...)
	errs = append(errs, c.validateEmbedding()...)
	errs = append(errs, c.validateVectorDB()...)
	errs = append(errs, c.validateLegacyDB()...)
	errs = append(errs, c.validateEngine()...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (c *Config) validateLLM() ValidationErrors {
	var errs ValidationErrors
	if c.LLM.Provider == "" {
		errs = append(errs, ValidationError{
			Field:   "llm.provider",
			Message: "llm provider is required",
		})
	}
	if c.LLM.Provider != "" && c.LLM.Model == "" {
		errs = append(errs, ValidationError{
			Field:   "llm.model",
			Message: "llm model is required",
		})
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, ValidationError{
			Field:   "llm.temperature",
			Message: fmt.Sprintf("temperature must be in [0, 2], got %.2f", c.LLM.Temperature),
		})
	}
	return errs
}

func (c *Config) validateEmbedding() ValidationErrors {
	var errs ValidationErrors
	if c.Embedding.Provider == "" {
		errs = append(errs, ValidationError{
			Field:   "embedding.provider",
			Message: "embedding provider is required",
		})
	}
	if c.Embedding.Model == "" {
		errs = append(errs, ValidationError{
			Field:   "embedding.model",
			Message: "embedding model is required",
		})
	}
	if c.Embedding.Dimensions <= 0 {
		errs = append(errs, ValidationError{
			Field:   "embedding.dimensions",
			Message: fmt.Sprintf("embedding dimensions must be positive, got %d", c.Embedding.Dimensions),
		})
	}
	return errs
}

func (c *Config) validateVectorDB() ValidationErrors {
	var errs ValidationErrors
	if c.VectorDB.Provider == "" {
		errs = append(errs, ValidationError{
			Field:   "vectordb.provider",
			Message: "vectordb provider is required",
		})
	}
	switch strings.ToLower(c.VectorDB.Provider) {
	case "milvus":
		if c.VectorDB.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "vectordb.host",
				Message: "vectordb host is required for milvus provider",
			})
		}
		if c.VectorDB.Collection == "" {
			errs = append(errs, ValidationError{
				Field:   "vectordb.collection",
				Message: "collection name is required for milvus provider",
			})
		}
	case "memory", "":
		// nothing to check
	default:
		errs = append(errs, ValidationError{
			Field:   "vectordb.provider",
			Message: fmt.Sprintf("unknown vectordb provider %q", c.VectorDB.Provider),
		})
	}
	return errs
}

func (c *Config) validateLegacyDB() ValidationErrors {
	var errs ValidationErrors
	if c.LegacyDB.Driver == "" {
		errs = append(errs, ValidationError{
			Field:   "legacydb.driver",
			Message: "legacydb driver is required",
		})
	}
	if c.LegacyDB.Driver != "" && c.LegacyDB.DSN == "" {
		errs = append(errs, ValidationError{
			Field:   "legacydb.dsn",
			Message: "legacydb dsn is required",
		})
	}
	switch strings.ToLower(c.LegacyDB.Dialect) {
	case "", "sqlite", "oracle":
	default:
		errs = append(errs, ValidationError{
			Field:   "legacydb.dialect",
			Message: fmt.Sprintf("unknown dialect %q (want sqlite or oracle)", c.LegacyDB.Dialect),
		})
	}
	if len(c.LegacyDB.AllowedObjects) == 0 {
		errs = append(errs, ValidationError{
			Field:   "legacydb.allowed_objects",
			Message: "at least one allowed object is required for the structured pipeline",
		})
	}
	return errs
}

func (c *Config) validateEngine() ValidationErrors {
	var errs ValidationErrors
	if c.Engine.TopK > 100 {
		errs = append(errs, ValidationError{
			Field:   "engine.top_k",
			Message: fmt.Sprintf("top_k %d is too large (max recommended: 100)", c.Engine.TopK),
		})
	}
	if c.Engine.MinSimilarity < 0 || c.Engine.MinSimilarity > 1 {
		errs = append(errs, ValidationError{
			Field:   "engine.min_similarity",
			Message: fmt.Sprintf("min_similarity must be in [0, 1], got %.2f", c.Engine.MinSimilarity),
		})
	}
	if c.Engine.CacheTTLSeconds < 0 {
		errs = append(errs, ValidationError{
			Field:   "engine.cache_ttl_seconds",
			Message: fmt.Sprintf("cache_ttl_seconds must be non-negative, got %d", c.Engine.CacheTTLSeconds),
		})
	}
	return errs
}
