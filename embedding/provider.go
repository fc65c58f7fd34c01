// Package embedding abstracts the text embedding service.
package embedding

import (
	"context"
	"fmt"

	"github.com/altamira-data/queryhub/config"
)

// Provider defines the interface for embedding providers.
type Provider interface {
	// GetEmbedding returns the embedding vector for the given text.
	GetEmbedding(ctx context.Context, text string) ([]float32, error)
	// GetProviderType returns the provider type identifier.
	GetProviderType() string
	// GetDimensions returns the embedding dimensionality.
	GetDimensions() int
}

// NewProvider creates an embedding provider from configuration.
func NewProvider(cfg config.EmbeddingConfig) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		return newOpenAIProvider(cfg)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}
