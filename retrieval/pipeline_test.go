package retrieval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/altamira-data/queryhub/retrypolicy"
	"github.com/altamira-data/queryhub/schema"
	"github.com/altamira-data/queryhub/secrets"
	"github.com/altamira-data/queryhub/vectordb"
)

type fixedEmbedder struct {
	vector []float32
	calls  int
}

func (f *fixedEmbedder) GetEmbedding(context.Context, string) ([]float32, error) {
	f.calls++
	return f.vector, nil
}

func (f *fixedEmbedder) GetProviderType() string { return "fixed" }
func (f *fixedEmbedder) GetDimensions() int      { return len(f.vector) }

func testEncryptor(t *testing.T) *secrets.Encryptor {
	t.Helper()
	key := make([]byte, 32)
	enc, err := secrets.New(key)
	if err != nil {
		t.Fatalf("secrets.New failed: %v", err)
	}
	return enc
}

func TestSearchTierCeilingAndOrder(t *testing.T) {
	store := vectordb.NewMemoryProvider()
	ctx := context.Background()
	_ = store.AddDocs(ctx, []schema.Passage{
		{ID: "low", Content: "general info", Tier: schema.TierLow, SourceTime: time.Unix(10, 0), Vector: []float32{1, 0}},
		{ID: "med", Content: "invoice data", Tier: schema.TierMedium, SourceTime: time.Unix(20, 0), Vector: []float32{1, 0}},
		{ID: "high", Content: "tax ids", Tier: schema.TierHigh, SourceTime: time.Unix(30, 0), Vector: []float32{1, 0}},
	})

	pipeline := NewPipeline(&fixedEmbedder{vector: []float32{1, 0}}, store, nil, 10, 0.2)
	passages, err := pipeline.Search(ctx, "question", schema.TierMedium)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(passages) != 2 {
		t.Fatalf("expected 2 passages under MEDIUM clearance, got %d", len(passages))
	}
	for _, passage := range passages {
		if passage.Tier == schema.TierHigh {
			t.Error("HIGH passage leaked past MEDIUM clearance")
		}
	}
	// Equal similarity, so recency decides.
	if passages[0].ID != "med" || passages[1].ID != "low" {
		t.Errorf("tie on similarity should order by recency: %s, %s", passages[0].ID, passages[1].ID)
	}
}

func TestSearchDecryptsAfterFilter(t *testing.T) {
	enc := testEncryptor(t)
	cipher, err := enc.Encrypt("customer 12.345.678/0001-90")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	store := vectordb.NewMemoryProvider()
	ctx := context.Background()
	_ = store.AddDocs(ctx, []schema.Passage{
		{ID: "enc", Cipher: cipher, Tier: schema.TierHigh, Vector: []float32{1, 0}},
	})

	pipeline := NewPipeline(&fixedEmbedder{vector: []float32{1, 0}}, store, enc, 10, 0.2)

	passages, err := pipeline.Search(ctx, "question", schema.TierHigh)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(passages) != 1 {
		t.Fatalf("expected 1 passage, got %d", len(passages))
	}
	if passages[0].Content != "customer 12.345.678/0001-90" {
		t.Errorf("content not decrypted: %q", passages[0].Content)
	}
	if passages[0].Cipher != nil {
		t.Error("cipher bytes should be cleared after decryption")
	}

	// Below clearance the encrypted passage is filtered out entirely, so
	// no decryption is attempted.
	passages, err = pipeline.Search(ctx, "question", schema.TierLow)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(passages) != 0 {
		t.Errorf("encrypted HIGH passage visible under LOW clearance: %+v", passages)
	}
}

func TestSearchDropsUndecryptable(t *testing.T) {
	enc := testEncryptor(t)
	store := vectordb.NewMemoryProvider()
	ctx := context.Background()
	_ = store.AddDocs(ctx, []schema.Passage{
		{ID: "bad", Cipher: []byte("garbage-that-is-long-enough-to-look-sealed"), Tier: schema.TierLow, Vector: []float32{1, 0}},
		{ID: "good", Content: "plain passage", Tier: schema.TierLow, Vector: []float32{1, 0}},
	})

	pipeline := NewPipeline(&fixedEmbedder{vector: []float32{1, 0}}, store, enc, 10, 0.2)
	passages, err := pipeline.Search(ctx, "question", schema.TierLow)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(passages) != 1 || passages[0].ID != "good" {
		t.Errorf("undecryptable passage should be dropped: %+v", passages)
	}
}

func TestSearchSimilarityFloor(t *testing.T) {
	store := vectordb.NewMemoryProvider()
	ctx := context.Background()
	_ = store.AddDocs(ctx, []schema.Passage{
		{ID: "near", Content: "relevant", Tier: schema.TierLow, Vector: []float32{1, 0}},
		{ID: "far", Content: "irrelevant", Tier: schema.TierLow, Vector: []float32{0, 1}},
	})

	pipeline := NewPipeline(&fixedEmbedder{vector: []float32{1, 0}}, store, nil, 10, 0.2)
	passages, err := pipeline.Search(ctx, "question", schema.TierLow)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(passages) != 1 || passages[0].ID != "near" {
		t.Errorf("similarity floor not applied: %+v", passages)
	}
}

type flakyStore struct {
	inner    *vectordb.MemoryProvider
	failWith error
	failures int
	calls    int
}

func (f *flakyStore) SearchDocs(ctx context.Context, vector []float32, options *schema.SearchOptions) ([]schema.Passage, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.failWith
	}
	return f.inner.SearchDocs(ctx, vector, options)
}

func (f *flakyStore) AddDocs(ctx context.Context, passages []schema.Passage) error {
	return f.inner.AddDocs(ctx, passages)
}

func (f *flakyStore) Close() error { return f.inner.Close() }

func fastRetry() retrypolicy.Policy {
	return retrypolicy.Policy{Attempts: 3, InitialDelay: time.Millisecond, BackoffFactor: 2}
}

func TestSearchRetriesTransientStoreFailure(t *testing.T) {
	store := vectordb.NewMemoryProvider()
	ctx := context.Background()
	_ = store.AddDocs(ctx, []schema.Passage{
		{ID: "p1", Content: "general info", Tier: schema.TierLow, Vector: []float32{1, 0}},
	})

	flaky := &flakyStore{
		inner:    store,
		failWith: retrypolicy.MarkTransient(errors.New("connection reset")),
		failures: 1,
	}
	pipeline := NewPipeline(&fixedEmbedder{vector: []float32{1, 0}}, flaky, nil, 10, 0.2)
	pipeline.retry = fastRetry()

	passages, err := pipeline.Search(ctx, "question", schema.TierLow)
	if err != nil {
		t.Fatalf("Search failed after transient store error: %v", err)
	}
	if len(passages) != 1 || passages[0].ID != "p1" {
		t.Fatalf("unexpected passages: %+v", passages)
	}
	if flaky.calls != 2 {
		t.Errorf("expected one retry, store saw %d calls", flaky.calls)
	}
}

func TestSearchDoesNotRetryPermanentStoreFailure(t *testing.T) {
	flaky := &flakyStore{
		inner:    vectordb.NewMemoryProvider(),
		failWith: errors.New("collection not found"),
		failures: 5,
	}
	pipeline := NewPipeline(&fixedEmbedder{vector: []float32{1, 0}}, flaky, nil, 10, 0.2)
	pipeline.retry = fastRetry()

	if _, err := pipeline.Search(context.Background(), "question", schema.TierLow); err == nil {
		t.Fatal("expected error from permanently failing store")
	}
	if flaky.calls != 1 {
		t.Errorf("permanent failure must not be retried, store saw %d calls", flaky.calls)
	}
}
