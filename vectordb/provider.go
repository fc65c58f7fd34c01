// Package vectordb abstracts the vector-capable document store used by the
// retrieval pipeline.
package vectordb

import (
	"context"
	"fmt"

	"github.com/altamira-data/queryhub/config"
	"github.com/altamira-data/queryhub/schema"
)

// Provider defines the interface for vector database providers.
type Provider interface {
	// SearchDocs finds passages similar to the query vector, honoring the
	// tier ceiling and similarity floor in options.
	SearchDocs(ctx context.Context, vector []float32, options *schema.SearchOptions) ([]schema.Passage, error)
	// AddDocs upserts passages into the store.
	AddDocs(ctx context.Context, passages []schema.Passage) error
	// Close releases the underlying connection.
	Close() error
}

// NewProvider creates a vector database provider from configuration.
func NewProvider(ctx context.Context, cfg config.VectorDBConfig, dimensions int) (Provider, error) {
	switch cfg.Provider {
	case "milvus":
		return newMilvusProvider(ctx, cfg, dimensions)
	case "memory", "":
		return NewMemoryProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported vectordb provider: %s", cfg.Provider)
	}
}
