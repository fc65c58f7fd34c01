// Package llm abstracts the completion service used by the structured and
// retrieval pipelines.
package llm

import (
	"context"
	"fmt"

	"github.com/altamira-data/queryhub/config"
)

// Provider defines the interface for LLM completion providers.
type Provider interface {
	// GenerateCompletion produces an answer using the provider's configured
	// temperature. Used for answer synthesis.
	GenerateCompletion(ctx context.Context, system, prompt string) (string, error)
	// GenerateDeterministic produces output at near-zero temperature. Used
	// for query generation where reproducibility matters more than prose.
	GenerateDeterministic(ctx context.Context, system, prompt string) (string, error)
	// GetProviderType returns the provider type identifier.
	GetProviderType() string
}

// NewProvider creates an LLM provider from configuration.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		return newOpenAIProvider(cfg)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}
