package vectordb

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/altamira-data/queryhub/common/logger"
	"github.com/altamira-data/queryhub/config"
	"github.com/altamira-data/queryhub/schema"
)

const (
	milvusFieldID       = "id"
	milvusFieldContent  = "content"
	milvusFieldCipher   = "cipher"
	milvusFieldTier     = "tier"
	milvusFieldEntity   = "entity"
	milvusFieldSourceTS = "source_ts"
	milvusFieldVector   = "vector"

	milvusMaxContentLength = 65535
	milvusMaxIDLength      = 128
)

type milvusProvider struct {
	client     client.Client
	collection string
	dimensions int
}

func newMilvusProvider(ctx context.Context, cfg config.VectorDBConfig, dimensions int) (*milvusProvider, error) {
	address := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	c, err := client.NewClient(ctx, client.Config{
		Address:  address,
		Username: cfg.Username,
		Password: cfg.Password,
		DBName:   cfg.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus at %s: %w", address, err)
	}

	p := &milvusProvider{
		client:     c,
		collection: cfg.Collection,
		dimensions: dimensions,
	}
	if err := p.ensureCollection(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return p, nil
}

func (p *milvusProvider) ensureCollection(ctx context.Context) error {
	exists, err := p.client.HasCollection(ctx, p.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", p.collection, err)
	}
	if !exists {
		collSchema := entity.NewSchema().WithName(p.collection).
			WithField(entity.NewField().WithName(milvusFieldID).WithDataType(entity.FieldTypeVarChar).WithMaxLength(milvusMaxIDLength).WithIsPrimaryKey(true)).
			WithField(entity.NewField().WithName(milvusFieldContent).WithDataType(entity.FieldTypeVarChar).WithMaxLength(milvusMaxContentLength)).
			WithField(entity.NewField().WithName(milvusFieldCipher).WithDataType(entity.FieldTypeVarChar).WithMaxLength(milvusMaxContentLength)).
			WithField(entity.NewField().WithName(milvusFieldTier).WithDataType(entity.FieldTypeVarChar).WithMaxLength(16)).
			WithField(entity.NewField().WithName(milvusFieldEntity).WithDataType(entity.FieldTypeVarChar).WithMaxLength(256)).
			WithField(entity.NewField().WithName(milvusFieldSourceTS).WithDataType(entity.FieldTypeInt64)).
			WithField(entity.NewField().WithName(milvusFieldVector).WithDataType(entity.FieldTypeFloatVector).WithDim(int64(p.dimensions)))
		if err := p.client.CreateCollection(ctx, collSchema, entity.DefaultShardNumber); err != nil {
			return fmt.Errorf("failed to create collection %s: %w", p.collection, err)
		}
		idx, err := entity.NewIndexAUTOINDEX(entity.COSINE)
		if err != nil {
			return fmt.Errorf("failed to build index: %w", err)
		}
		if err := p.client.CreateIndex(ctx, p.collection, milvusFieldVector, idx, false); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", p.collection, err)
		}
		logger.Infof("created milvus collection %s (dim=%d)", p.collection, p.dimensions)
	}
	if err := p.client.LoadCollection(ctx, p.collection, false); err != nil {
		return fmt.Errorf("failed to load collection %s: %w", p.collection, err)
	}
	return nil
}

func (p *milvusProvider) SearchDocs(ctx context.Context, vector []float32, options *schema.SearchOptions) ([]schema.Passage, error) {
	if options == nil {
		options = &schema.SearchOptions{TopK: 10}
	}
	sp, err := entity.NewIndexAUTOINDEXSearchParam(1)
	if err != nil {
		return nil, fmt.Errorf("failed to build search params: %w", err)
	}

	expr := tierFilterExpr(options.MaxTier)
	outputFields := []string{milvusFieldContent, milvusFieldCipher, milvusFieldTier, milvusFieldEntity, milvusFieldSourceTS}
	results, err := p.client.Search(ctx, p.collection, nil, expr, outputFields,
		[]entity.Vector{entity.FloatVector(vector)}, milvusFieldVector, entity.COSINE, options.TopK, sp)
	if err != nil {
		return nil, fmt.Errorf("milvus search failed: %w", err)
	}

	var passages []schema.Passage
	for _, result := range results {
		for i := 0; i < result.ResultCount; i++ {
			sim := float64(result.Scores[i])
			if options.Threshold > 0 && sim < options.Threshold {
				continue
			}
			passage := schema.Passage{Similarity: sim}
			if id, err := result.IDs.Get(i); err == nil {
				passage.ID, _ = id.(string)
			}
			passage.Content = columnString(result.Fields.GetColumn(milvusFieldContent), i)
			passage.Tier = schema.ParseTier(columnString(result.Fields.GetColumn(milvusFieldTier), i))
			passage.Entity = columnString(result.Fields.GetColumn(milvusFieldEntity), i)
			if ts := columnInt64(result.Fields.GetColumn(milvusFieldSourceTS), i); ts > 0 {
				passage.SourceTime = time.Unix(ts, 0).UTC()
			}
			if encoded := columnString(result.Fields.GetColumn(milvusFieldCipher), i); encoded != "" {
				cipher, err := base64.StdEncoding.DecodeString(encoded)
				if err != nil {
					logger.Warnf("skipping passage %s: malformed cipher field: %v", passage.ID, err)
					continue
				}
				passage.Cipher = cipher
			}
			passages = append(passages, passage)
		}
	}
	return passages, nil
}

func (p *milvusProvider) AddDocs(ctx context.Context, passages []schema.Passage) error {
	if len(passages) == 0 {
		return nil
	}
	n := len(passages)
	ids := make([]string, n)
	contents := make([]string, n)
	ciphers := make([]string, n)
	tiers := make([]string, n)
	entities := make([]string, n)
	sourceTS := make([]int64, n)
	vectors := make([][]float32, n)
	for i, passage := range passages {
		ids[i] = passage.ID
		contents[i] = passage.Content
		if len(passage.Cipher) > 0 {
			ciphers[i] = base64.StdEncoding.EncodeToString(passage.Cipher)
		}
		tiers[i] = string(passage.Tier)
		entities[i] = passage.Entity
		if !passage.SourceTime.IsZero() {
			sourceTS[i] = passage.SourceTime.Unix()
		}
		vectors[i] = passage.Vector
	}

	_, err := p.client.Upsert(ctx, p.collection, "",
		entity.NewColumnVarChar(milvusFieldID, ids),
		entity.NewColumnVarChar(milvusFieldContent, contents),
		entity.NewColumnVarChar(milvusFieldCipher, ciphers),
		entity.NewColumnVarChar(milvusFieldTier, tiers),
		entity.NewColumnVarChar(milvusFieldEntity, entities),
		entity.NewColumnInt64(milvusFieldSourceTS, sourceTS),
		entity.NewColumnFloatVector(milvusFieldVector, p.dimensions, vectors),
	)
	if err != nil {
		return fmt.Errorf("milvus upsert failed: %w", err)
	}
	if err := p.client.Flush(ctx, p.collection, false); err != nil {
		return fmt.Errorf("milvus flush failed: %w", err)
	}
	return nil
}

func (p *milvusProvider) Close() error {
	return p.client.Close()
}

func columnString(col entity.Column, idx int) string {
	if col == nil {
		return ""
	}
	v, err := col.Get(idx)
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func columnInt64(col entity.Column, idx int) int64 {
	if col == nil {
		return 0
	}
	v, err := col.Get(idx)
	if err != nil {
		return 0
	}
	n, _ := v.(int64)
	return n
}

// tierFilterExpr builds the server-side filter covering every tier at or
// below the ceiling. An unknown ceiling filters to LOW only.
func tierFilterExpr(maxTier schema.Tier) string {
	allowed := make([]string, 0, 3)
	for _, tier := range []schema.Tier{schema.TierLow, schema.TierMedium, schema.TierHigh} {
		if tier.Rank() <= maxTier.Rank() {
			allowed = append(allowed, fmt.Sprintf("%q", string(tier)))
		}
	}
	if len(allowed) == 0 {
		allowed = append(allowed, fmt.Sprintf("%q", string(schema.TierLow)))
	}
	return fmt.Sprintf("%s in [%s]", milvusFieldTier, strings.Join(allowed, ", "))
}
