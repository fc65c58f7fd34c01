package vectordb

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/altamira-data/queryhub/schema"
)

// MemoryProvider is an in-process vector store. It backs local development
// and tests where a milvus deployment is unavailable.
type MemoryProvider struct {
	mu       sync.RWMutex
	passages map[string]schema.Passage
}

// NewMemoryProvider creates an empty in-memory store.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{passages: make(map[string]schema.Passage)}
}

func (p *MemoryProvider) SearchDocs(_ context.Context, vector []float32, options *schema.SearchOptions) ([]schema.Passage, error) {
	if options == nil {
		options = &schema.SearchOptions{TopK: 10}
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	var matches []schema.Passage
	for _, passage := range p.passages {
		if passage.Tier.Rank() > options.MaxTier.Rank() {
			continue
		}
		sim := cosineSimilarity(vector, passage.Vector)
		if options.Threshold > 0 && sim < options.Threshold {
			continue
		}
		match := passage
		match.Similarity = sim
		matches = append(matches, match)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if options.TopK > 0 && len(matches) > options.TopK {
		matches = matches[:options.TopK]
	}
	return matches, nil
}

func (p *MemoryProvider) AddDocs(_ context.Context, passages []schema.Passage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, passage := range passages {
		p.passages[passage.ID] = passage
	}
	return nil
}

func (p *MemoryProvider) Close() error {
	return nil
}

// Len reports the number of stored passages.
func (p *MemoryProvider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.passages)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
