package textsql

import (
	"context"
	"fmt"

	"github.com/altamira-data/queryhub/common/logger"
	"github.com/altamira-data/queryhub/llm"
	"github.com/altamira-data/queryhub/retrypolicy"
	"github.com/altamira-data/queryhub/schema"
	"github.com/altamira-data/queryhub/sqlstore"
)

// Outcome is the result of one structured-pipeline attempt. Exactly one of
// Result, Fallback or OutOfScope describes what happened: a populated
// Result answers the question, Fallback hands off to retrieval, and
// OutOfScope means the catalog cannot answer at all.
type Outcome struct {
	Result         *schema.StructuredResult
	Generated      schema.GeneratedQuery
	Fallback       bool
	FallbackReason string
	OutOfScope     bool
}

// Pipeline runs question-to-SQL generation, validation and execution.
type Pipeline struct {
	Generator      *Generator
	Store          sqlstore.Adapter
	AllowedObjects []string
	RowLimit       int

	retry retrypolicy.Policy
}

// NewPipeline wires a structured pipeline over the given provider and
// store.
func NewPipeline(provider llm.Provider, store sqlstore.Adapter, allowedObjects []string, rowLimit int) *Pipeline {
	return &Pipeline{
		Generator:      NewGenerator(provider),
		Store:          store,
		AllowedObjects: allowedObjects,
		RowLimit:       rowLimit,
		retry:          retrypolicy.Database,
	}
}

// Run attempts to answer the question against the legacy database. Hard
// failures (catalog introspection, LLM outage, database errors after
// retries) return an error; recoverable conditions surface through the
// Outcome so the caller can fall back to retrieval.
func (p *Pipeline) Run(ctx context.Context, query schema.Query) (*Outcome, error) {
	description, err := p.Store.DescribeObjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("schema introspection failed: %w", err)
	}

	raw, outOfScope, err := p.Generator.Generate(ctx, query.Text, query.History, description)
	if err != nil {
		return nil, err
	}
	if outOfScope {
		return &Outcome{OutOfScope: true}, nil
	}

	columns, err := p.Store.ColumnUniverse(ctx)
	if err != nil {
		return nil, fmt.Errorf("schema introspection failed: %w", err)
	}
	validator := NewValidator(p.AllowedObjects, columns, p.Store.Dialect(), p.RowLimit)
	generated := validator.Validate(query.Text, raw)
	if !generated.IsSafe {
		logger.Warnf("rejected generated query for %q: %s", query.Text, generated.RejectionReason)
		return &Outcome{
			Generated:      generated,
			Fallback:       true,
			FallbackReason: fmt.Sprintf("generated query rejected: %s", generated.RejectionReason),
		}, nil
	}

	var result *schema.StructuredResult
	err = p.retry.Do(ctx, "legacy query", func() error {
		var execErr error
		result, execErr = p.Store.ExecuteReadOnly(ctx, generated.QueryText)
		return execErr
	})
	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}

	if result.RowCount == 0 {
		return &Outcome{
			Generated:      generated,
			Fallback:       true,
			FallbackReason: "query returned no rows",
		}, nil
	}
	result.Generated = generated
	return &Outcome{Result: result, Generated: generated}, nil
}
