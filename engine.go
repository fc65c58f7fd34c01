// Package queryhub answers natural-language questions over a legacy
// business database, enforcing per-requester clearance on a three-tier
// sensitivity model.
package queryhub

import (
	"context"
	"crypto/sha1"
	"fmt"
	"strings"
	"time"

	"github.com/altamira-data/queryhub/access"
	"github.com/altamira-data/queryhub/audit"
	"github.com/altamira-data/queryhub/cache"
	"github.com/altamira-data/queryhub/classify"
	"github.com/altamira-data/queryhub/common/logger"
	"github.com/altamira-data/queryhub/config"
	"github.com/altamira-data/queryhub/embedding"
	"github.com/altamira-data/queryhub/llm"
	"github.com/altamira-data/queryhub/metrics"
	"github.com/altamira-data/queryhub/retrieval"
	"github.com/altamira-data/queryhub/schema"
	"github.com/altamira-data/queryhub/secrets"
	"github.com/altamira-data/queryhub/sqlstore"
	"github.com/altamira-data/queryhub/synth"
	"github.com/altamira-data/queryhub/textsql"
	"github.com/altamira-data/queryhub/vectordb"
)

// Engine coordinates classification, access control, the two answer
// pipelines and response caching. Fields are exported so tests can wire
// fakes directly.
type Engine struct {
	Classifier  *classify.Classifier
	Directory   audit.Directory
	Structured  *textsql.Pipeline
	Retrieval   *retrieval.Pipeline
	Synthesizer *synth.Synthesizer
	Audit       audit.Sink

	ResponseCache cache.Cache[schema.Response]
	CacheTTL      time.Duration
	QueryTimeout  time.Duration
}

// New builds a fully wired engine from configuration.
func New(ctx context.Context, cfg *config.Config) (*Engine, error) {
	llmProvider, err := llm.NewProvider(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("init llm provider: %w", err)
	}
	embedProvider, err := embedding.NewProvider(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("init embedding provider: %w", err)
	}
	vectorStore, err := vectordb.NewProvider(ctx, cfg.VectorDB, embedProvider.GetDimensions())
	if err != nil {
		return nil, fmt.Errorf("init vector store: %w", err)
	}
	legacyStore, err := sqlstore.Open(ctx, cfg.LegacyDB)
	if err != nil {
		return nil, fmt.Errorf("init legacy store: %w", err)
	}

	var encryptor *secrets.Encryptor
	if cfg.Secrets.EncryptionKey != "" {
		encryptor, err = secrets.FromBase64(cfg.Secrets.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("init encryption key: %w", err)
		}
	}

	var sink audit.Sink = audit.NopSink{}
	var directory audit.Directory
	if cfg.Audit.Path != "" {
		store, err := audit.OpenSQLite(cfg.Audit.Path)
		if err != nil {
			return nil, fmt.Errorf("init audit store: %w", err)
		}
		sink = store
		directory = store
	}

	return &Engine{
		Classifier: classify.New(),
		Directory:  directory,
		Structured: textsql.NewPipeline(llmProvider, legacyStore, cfg.LegacyDB.AllowedObjects, cfg.Engine.RowLimit),
		Retrieval: retrieval.NewPipeline(embedProvider, vectorStore, encryptor,
			cfg.Engine.TopK, cfg.Engine.MinSimilarity),
		Synthesizer: synth.NewSynthesizer(llmProvider, cfg.Engine.ContextTopN,
			cfg.Engine.ContextTokenBudget, true),
		Audit:         sink,
		ResponseCache: cache.NewLRU[schema.Response](cfg.Engine.CacheMaxEntries, time.Duration(cfg.Engine.CacheTTLSeconds)*time.Second),
		CacheTTL:      time.Duration(cfg.Engine.CacheTTLSeconds) * time.Second,
		QueryTimeout:  time.Duration(cfg.Engine.QueryTimeoutSeconds) * time.Second,
	}, nil
}

// Handle answers one query. It always returns a Response; failures are
// reported through Success=false rather than an error so callers get a
// uniform envelope.
func (e *Engine) Handle(ctx context.Context, query schema.Query) schema.Response {
	started := time.Now()
	if e.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.QueryTimeout)
		defer cancel()
	}

	text := strings.TrimSpace(query.Text)
	if text == "" {
		return e.finish(started, query, schema.Classification{}, false, "", schema.Response{
			Success: false,
			Answer:  "Please provide a question.",
			Route:   schema.RouteEmpty,
		})
	}
	query.Text = text

	clearance, err := e.resolveClearance(ctx, query)
	if err != nil {
		return e.finish(started, query, schema.Classification{}, false, "", schema.Response{
			Success: false,
			Answer:  "Unknown requester.",
			Route:   schema.RouteDenied,
		})
	}
	query.Clearance = clearance

	// Classification happens exactly once, before either pipeline.
	classification := e.Classifier.Classify(query.Text)
	logger.Debugf("classified %q as %s (confidence %.2f, structured=%v)",
		query.Text, classification.Tier, classification.Confidence, classification.IsStructured)

	key := cacheKey(query.Text, query.RequesterID, query.Clearance)
	if e.ResponseCache != nil {
		if cached, ok := e.ResponseCache.Get(key); ok {
			metrics.IncCacheHit()
			metrics.IncQuery(string(cached.Route))
			e.record(query, classification, cached, true, "", time.Since(started).Milliseconds())
			return cached
		}
	}

	decision := access.Authorize(query.Clearance, classification)
	if !decision.Allowed {
		metrics.IncGateDenial()
		response := schema.Response{
			Success: false,
			Answer:  access.RequiredClearanceMessage(classification.Tier),
			Route:   schema.RouteDenied,
		}
		return e.finish(started, query, classification, false, decision.DeniedReason, response)
	}

	response := e.answer(ctx, query, classification)
	response.ProcessingTimeMs = time.Since(started).Milliseconds()

	if e.ResponseCache != nil && response.Success {
		e.ResponseCache.Set(key, response, e.CacheTTL)
	}
	return e.finish(started, query, classification, false, "", response)
}

// answer routes the query through the structured pipeline when the
// classifier saw an aggregation shape, falling back to retrieval whenever
// the structured attempt cannot produce rows.
func (e *Engine) answer(ctx context.Context, query schema.Query, classification schema.Classification) schema.Response {
	if classification.IsStructured && e.Structured != nil {
		stageStart := time.Now()
		outcome, err := e.Structured.Run(ctx, query)
		metrics.ObserveStage("structured", stageStart)
		switch {
		case err != nil:
			logger.Warnf("structured pipeline failed, falling back to retrieval: %v", err)
		case outcome.OutOfScope:
			return schema.Response{
				Success: false,
				Answer: "This question is outside the scope of the available data. " +
					"The service answers questions about the business records it is connected to.",
				Route: schema.RouteOutOfScope,
			}
		case outcome.Fallback:
			if outcome.FallbackReason != "" {
				logger.Infof("structured fallback: %s", outcome.FallbackReason)
			}
		default:
			metrics.ObserveSQLRows(outcome.Result.RowCount)
			answer := e.Synthesizer.FromStructured(ctx, query, outcome.Result)
			return schema.Response{
				Success:    true,
				Answer:     answer.Text,
				Confidence: answer.Confidence,
				Route:      schema.RouteStructured,
				Provenance: []schema.Provenance{answer.Provenance},
			}
		}
	}

	stageStart := time.Now()
	passages, err := e.Retrieval.Search(ctx, query.Text, query.Clearance)
	metrics.ObserveStage("retrieval", stageStart)
	if err != nil {
		logger.Errorf("retrieval failed: %v", err)
		return schema.Response{
			Success: false,
			Answer:  "The service could not process the question. Please try again.",
			Route:   schema.RouteRetrieval,
		}
	}
	if len(passages) == 0 {
		return schema.Response{
			Success: false,
			Answer:  "No relevant information was found for this question.",
			Route:   schema.RouteEmpty,
		}
	}
	metrics.ObserveRetrievalTop1(passages[0].Similarity)

	answer, err := e.Synthesizer.FromPassages(ctx, query, passages)
	if err != nil {
		logger.Errorf("synthesis failed: %v", err)
		return schema.Response{
			Success: false,
			Answer:  "The service could not process the question. Please try again.",
			Route:   schema.RouteRetrieval,
		}
	}
	return schema.Response{
		Success:    true,
		Answer:     answer.Text,
		Confidence: answer.Confidence,
		Route:      schema.RouteRetrieval,
		Provenance: []schema.Provenance{answer.Provenance},
	}
}

// resolveClearance prefers the clearance carried on the query, consulting
// the requester directory otherwise.
func (e *Engine) resolveClearance(ctx context.Context, query schema.Query) (schema.Tier, error) {
	if query.Clearance.Valid() {
		return query.Clearance, nil
	}
	if e.Directory != nil && query.RequesterID != "" {
		user, err := e.Directory.GetUser(ctx, query.RequesterID)
		if err != nil {
			return "", err
		}
		return user.Clearance, nil
	}
	// No directory and no clearance: treat as lowest privilege.
	return schema.TierLow, nil
}

func (e *Engine) finish(started time.Time, query schema.Query, classification schema.Classification, cacheHit bool, deniedReason string, response schema.Response) schema.Response {
	if response.ProcessingTimeMs == 0 {
		response.ProcessingTimeMs = time.Since(started).Milliseconds()
	}
	metrics.IncQuery(string(response.Route))
	e.record(query, classification, response, cacheHit, deniedReason, response.ProcessingTimeMs)
	return response
}

// record writes the audit entry without blocking the response path. The
// deniedReason is the gate's precise verdict; the user-facing Answer only
// stands in for it when no gate reason exists.
func (e *Engine) record(query schema.Query, classification schema.Classification, response schema.Response, cacheHit bool, deniedReason string, elapsedMs int64) {
	if e.Audit == nil {
		return
	}
	record := audit.Record{
		Timestamp:        time.Now(),
		RequesterID:      query.RequesterID,
		RequesterTier:    query.Clearance,
		QueryText:        query.Text,
		Tier:             classification.Tier,
		Route:            response.Route,
		Success:          response.Success,
		CacheHit:         cacheHit,
		ProcessingTimeMs: elapsedMs,
	}
	for _, source := range response.Provenance {
		if source.Reference != "" {
			record.ReferencedIDs = append(record.ReferencedIDs, source.Reference)
		}
	}
	if deniedReason == "" && response.Route == schema.RouteDenied {
		deniedReason = response.Answer
	}
	record.DeniedReason = deniedReason
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.Audit.Write(ctx, record); err != nil {
			logger.Warnf("audit write failed: %v", err)
		}
	}()
}

// cacheKey derives the replay key. The requester id is part of the key so
// a cached answer can never leak across requesters, and the requester's
// clearance is part of it so a clearance change within the freshness
// window can never replay an answer cached under the old clearance.
func cacheKey(normalizedText, requesterID string, clearance schema.Tier) string {
	sum := sha1.Sum([]byte(strings.ToLower(normalizedText) + "|" + requesterID + "|" + string(clearance)))
	return fmt.Sprintf("%x", sum)
}
