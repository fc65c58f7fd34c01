package sqlstore

import (
	"fmt"
	"regexp"
	"strings"
)

// Dialect captures the per-engine rules for capping result size on a
// generated query.
type Dialect interface {
	// Name returns the dialect identifier.
	Name() string
	// EnforceLimit rewrites query so it returns at most n rows. Queries
	// that already bound their output, and aggregations that return a
	// single row by construction, come back unchanged.
	EnforceLimit(query string, n int) string
}

// NewDialect resolves a dialect by name. Unknown names fall back to sqlite.
func NewDialect(name string) Dialect {
	switch strings.ToLower(name) {
	case "oracle":
		return oracleDialect{}
	default:
		return sqliteDialect{}
	}
}

var (
	aggregatePattern = regexp.MustCompile(`(?i)\b(SUM|COUNT|AVG|MAX|MIN)\s*\(|\bGROUP\s+BY\b`)
	orderByPattern   = regexp.MustCompile(`(?i)\bORDER\s+BY\b`)
	wherePattern     = regexp.MustCompile(`(?i)\bWHERE\b`)
	boundedPattern   = regexp.MustCompile(`(?i)\bROWNUM\b|\bFETCH\s+FIRST\b|\bLIMIT\s+\d`)
)

// alreadyBounded reports whether the query caps its own output, either by
// aggregating to a scalar or by carrying an explicit row bound.
func alreadyBounded(query string) bool {
	return aggregatePattern.MatchString(query) || boundedPattern.MatchString(query)
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return "sqlite" }

func (sqliteDialect) EnforceLimit(query string, n int) string {
	query = strings.TrimRight(strings.TrimSpace(query), ";")
	if alreadyBounded(query) {
		return query
	}
	return fmt.Sprintf("%s LIMIT %d", query, n)
}

type oracleDialect struct{}

func (oracleDialect) Name() string { return "oracle" }

// EnforceLimit splices a ROWNUM predicate. When the query orders its rows
// the predicate must apply after the sort, so the query is wrapped in a
// subselect; otherwise ROWNUM joins the existing WHERE clause directly.
func (oracleDialect) EnforceLimit(query string, n int) string {
	query = strings.TrimRight(strings.TrimSpace(query), ";")
	if alreadyBounded(query) {
		return query
	}
	if orderByPattern.MatchString(query) {
		return fmt.Sprintf("SELECT * FROM (%s) WHERE ROWNUM <= %d", query, n)
	}
	if loc := wherePattern.FindStringIndex(query); loc != nil {
		// Predicate order is irrelevant without a sort, so appending at the
		// end of the statement keeps the splice simple.
		return fmt.Sprintf("%s AND ROWNUM <= %d", query, n)
	}
	return fmt.Sprintf("%s WHERE ROWNUM <= %d", query, n)
}
