package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/altamira-data/queryhub/config"
	"github.com/altamira-data/queryhub/retrypolicy"
)

const defaultMaxTokens = 800

type openAIProvider struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int
	retry       retrypolicy.Policy
}

func newOpenAIProvider(cfg config.LLMConfig) (*openAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai llm provider requires an api key")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	policy := retrypolicy.LLMService
	policy.Retryable = isRetryableAPIError
	return &openAIProvider{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
		retry:       policy,
	}, nil
}

func (p *openAIProvider) GenerateCompletion(ctx context.Context, system, prompt string) (string, error) {
	return p.complete(ctx, system, prompt, p.temperature)
}

func (p *openAIProvider) GenerateDeterministic(ctx context.Context, system, prompt string) (string, error) {
	return p.complete(ctx, system, prompt, 0.1)
}

func (p *openAIProvider) GetProviderType() string {
	return "openai"
}

func (p *openAIProvider) complete(ctx context.Context, system, prompt string, temperature float64) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(prompt))

	var content string
	err := p.retry.Do(ctx, "llm completion", func() error {
		resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model:       openai.ChatModel(p.model),
			Messages:    messages,
			Temperature: openai.Float(temperature),
			MaxTokens:   openai.Int(int64(p.maxTokens)),
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("llm returned no choices")
		}
		content = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("llm completion failed: %w", err)
	}
	return content, nil
}

// isRetryableAPIError treats rate limits and server-side failures as
// transient; auth and validation failures are surfaced immediately.
func isRetryableAPIError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return retrypolicy.IsTransient(err)
}
