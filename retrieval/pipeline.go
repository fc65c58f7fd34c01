// Package retrieval implements the semantic-search pipeline over the
// vector store.
package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/altamira-data/queryhub/common/logger"
	"github.com/altamira-data/queryhub/embedding"
	"github.com/altamira-data/queryhub/retrypolicy"
	"github.com/altamira-data/queryhub/schema"
	"github.com/altamira-data/queryhub/secrets"
	"github.com/altamira-data/queryhub/vectordb"
)

// Pipeline embeds a question, searches the vector store under the
// requester's tier ceiling, and decrypts what survives the filter.
type Pipeline struct {
	Embedder  embedding.Provider
	Store     vectordb.Provider
	Encryptor *secrets.Encryptor

	TopK          int
	MinSimilarity float64

	retry retrypolicy.Policy
}

// NewPipeline wires a retrieval pipeline.
func NewPipeline(embedder embedding.Provider, store vectordb.Provider, encryptor *secrets.Encryptor, topK int, minSimilarity float64) *Pipeline {
	return &Pipeline{
		Embedder:      embedder,
		Store:         store,
		Encryptor:     encryptor,
		TopK:          topK,
		MinSimilarity: minSimilarity,
		retry:         retrypolicy.Database,
	}
}

// Search returns passages relevant to the question, capped at the
// requester's clearance tier. Results are ordered by similarity, ties
// broken by recency. Encrypted content is opened only after the tier
// filter has passed; passages that fail to decrypt are dropped.
func (p *Pipeline) Search(ctx context.Context, question string, clearance schema.Tier) ([]schema.Passage, error) {
	vector, err := p.Embedder.GetEmbedding(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("retrieval embedding failed: %w", err)
	}

	var candidates []schema.Passage
	err = p.retry.Do(ctx, "vector search", func() error {
		var searchErr error
		candidates, searchErr = p.Store.SearchDocs(ctx, vector, &schema.SearchOptions{
			TopK:      p.TopK,
			Threshold: p.MinSimilarity,
			MaxTier:   clearance,
		})
		return searchErr
	})
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	passages := make([]schema.Passage, 0, len(candidates))
	for _, candidate := range candidates {
		// Re-check the ceiling locally. The store already filters, but a
		// passage above clearance must never pass regardless of what the
		// backend returned.
		if candidate.Tier.Rank() > clearance.Rank() {
			logger.Warnf("store returned passage %s above clearance %s, dropping", candidate.ID, clearance)
			continue
		}
		if candidate.Encrypted() {
			if p.Encryptor == nil {
				logger.Warnf("passage %s is encrypted but no key is configured, dropping", candidate.ID)
				continue
			}
			plaintext, err := p.Encryptor.Decrypt(candidate.Cipher)
			if err != nil {
				logger.Warnf("passage %s failed to decrypt, dropping: %v", candidate.ID, err)
				continue
			}
			candidate.Content = plaintext
			candidate.Cipher = nil
		}
		passages = append(passages, candidate)
	}

	sort.SliceStable(passages, func(i, j int) bool {
		if passages[i].Similarity != passages[j].Similarity {
			return passages[i].Similarity > passages[j].Similarity
		}
		return passages[i].SourceTime.After(passages[j].SourceTime)
	})
	return passages, nil
}
