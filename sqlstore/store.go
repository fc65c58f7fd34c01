// Package sqlstore wraps the legacy relational database reached by the
// structured-query pipeline. Access is read-only and bounded: a fixed
// connection budget that fails fast when exhausted, and a per-query
// timeout.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/altamira-data/queryhub/config"
	"github.com/altamira-data/queryhub/retrypolicy"
	"github.com/altamira-data/queryhub/schema"
)

// ErrPoolExhausted reports that every connection slot was busy at the time
// of the request. Callers may retry.
var ErrPoolExhausted = errors.New("sqlstore: connection pool exhausted")

// Adapter is the read-only query surface consumed by the structured
// pipeline.
type Adapter interface {
	ExecuteReadOnly(ctx context.Context, query string) (*schema.StructuredResult, error)
	DescribeObjects(ctx context.Context) (string, error)
	ColumnUniverse(ctx context.Context) (map[string]bool, error)
	Dialect() Dialect
}

// Store implements Adapter over database/sql.
type Store struct {
	db      *sql.DB
	slots   chan struct{}
	timeout time.Duration
	dialect Dialect

	allowedObjects []string
	objectHints    map[string]string

	descriptor *descriptorCache
}

// Open connects to the legacy database described by cfg and verifies
// reachability.
func Open(ctx context.Context, cfg config.LegacyDBConfig) (*Store, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", cfg.Driver, err)
	}
	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 10
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: ping: %w", err)
	}

	timeout := time.Duration(cfg.QueryTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Store{
		db:             db,
		slots:          make(chan struct{}, maxConns),
		timeout:        timeout,
		dialect:        NewDialect(cfg.Dialect),
		allowedObjects: cfg.AllowedObjects,
		objectHints:    cfg.ObjectHints,
		descriptor:     &descriptorCache{},
	}, nil
}

// ExecuteReadOnly runs a validated SELECT and materializes the rows. The
// pool is non-blocking: when every slot is busy the call fails immediately
// with a retryable error instead of queueing behind slow queries.
func (s *Store) ExecuteReadOnly(ctx context.Context, query string) (*schema.StructuredResult, error) {
	select {
	case s.slots <- struct{}{}:
		defer func() { <-s.slots }()
	default:
		return nil, retrypolicy.MarkTransient(ErrPoolExhausted)
	}

	queryCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	rows, err := s.db.QueryContext(queryCtx, query)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("sqlstore: columns: %w", err)
	}

	result := &schema.StructuredResult{Columns: columns}
	values := make([]any, len(columns))
	scanTargets := make([]any, len(columns))
	for i := range values {
		scanTargets[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("sqlstore: scan: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, column := range columns {
			row[column] = normalizeValue(values[i])
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: rows: %w", err)
	}
	result.RowCount = len(result.Rows)
	result.ExecutionTimeMs = time.Since(started).Milliseconds()
	return result, nil
}

// Dialect returns the row-limit dialect for this store.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Close releases the underlying pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// normalizeValue maps driver values to JSON-friendly Go types.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return v
	}
}
