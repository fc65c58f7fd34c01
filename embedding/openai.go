package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/altamira-data/queryhub/config"
	"github.com/altamira-data/queryhub/retrypolicy"
)

type openAIProvider struct {
	client     openai.Client
	model      string
	dimensions int
	retry      retrypolicy.Policy
}

func newOpenAIProvider(cfg config.EmbeddingConfig) (*openAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai embedding provider requires an api key")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	policy := retrypolicy.LLMService
	policy.Retryable = isRetryableAPIError
	return &openAIProvider{
		client:     openai.NewClient(opts...),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		retry:      policy,
	}, nil
}

func (p *openAIProvider) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("cannot embed empty text")
	}

	var vector []float32
	err := p.retry.Do(ctx, "embedding", func() error {
		resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Model:      openai.EmbeddingModel(p.model),
			Input:      openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
			Dimensions: openai.Int(int64(p.dimensions)),
		})
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 {
			return fmt.Errorf("embedding service returned no data")
		}
		raw := resp.Data[0].Embedding
		vector = make([]float32, len(raw))
		for i, v := range raw {
			vector[i] = float32(v)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	if p.dimensions > 0 && len(vector) != p.dimensions {
		return nil, fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(vector), p.dimensions)
	}
	return vector, nil
}

func (p *openAIProvider) GetProviderType() string {
	return "openai"
}

func (p *openAIProvider) GetDimensions() int {
	return p.dimensions
}

func isRetryableAPIError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return retrypolicy.IsTransient(err)
}
