package textsql

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/altamira-data/queryhub/schema"
	"github.com/altamira-data/queryhub/sqlstore"
)

// forbiddenKeywords lists statements and commands a generated query must
// never contain. REPLACE covers sqlite's INSERT OR REPLACE shorthand.
var forbiddenKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER", "TRUNCATE",
	"GRANT", "REVOKE", "MERGE", "EXEC", "EXECUTE", "CALL",
	"ATTACH", "DETACH", "PRAGMA", "VACUUM", "REPLACE",
}

var (
	lineCommentPattern   = regexp.MustCompile(`--[^\n]*`)
	blockCommentPattern  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	stringLiteralPattern = regexp.MustCompile(`'(?:[^']|'')*'`)
	identifierPattern    = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)
	fromObjectPattern    = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+([A-Za-z_][A-Za-z0-9_.]*)`)
)

// sqlVocabulary holds keywords and common functions that identifier
// scanning must not mistake for column references.
var sqlVocabulary = map[string]bool{
	"select": true, "from": true, "where": true, "and": true, "or": true,
	"not": true, "in": true, "like": true, "between": true, "is": true,
	"null": true, "as": true, "on": true, "join": true, "inner": true,
	"left": true, "right": true, "outer": true, "group": true, "by": true,
	"order": true, "having": true, "asc": true, "desc": true, "distinct": true,
	"limit": true, "offset": true, "rownum": true, "fetch": true, "first": true,
	"rows": true, "only": true, "case": true, "when": true, "then": true,
	"else": true, "end": true, "exists": true, "all": true, "any": true,
	"union": true, "sum": true, "count": true, "avg": true, "max": true,
	"min": true, "round": true, "upper": true, "lower": true, "trim": true,
	"substr": true, "length": true, "coalesce": true, "cast": true,
	"date": true, "strftime": true, "to_char": true, "to_date": true,
	"nvl": true, "sysdate": true, "current_date": true, "abs": true,
}

// Validator checks generated queries against the read-only contract before
// they reach the legacy database.
type Validator struct {
	allowed  map[string]bool
	columns  map[string]bool
	dialect  sqlstore.Dialect
	rowLimit int
}

// NewValidator builds a validator over the allowed-object whitelist and the
// introspected column universe. A nil column universe disables the
// unknown-column check.
func NewValidator(allowedObjects []string, columns map[string]bool, dialect sqlstore.Dialect, rowLimit int) *Validator {
	allowed := make(map[string]bool, len(allowedObjects))
	for _, name := range allowedObjects {
		allowed[strings.ToLower(name)] = true
	}
	return &Validator{
		allowed:  allowed,
		columns:  columns,
		dialect:  dialect,
		rowLimit: rowLimit,
	}
}

// Validate decides whether raw may be executed. A safe query comes back
// sanitized, with the dialect's row limit applied. An unsafe query is never
// rewritten: IsSafe is false and RejectionReason explains why.
func (v *Validator) Validate(question, raw string) schema.GeneratedQuery {
	generated := schema.GeneratedQuery{SourceQuestion: question}

	sanitized := stripComments(raw)
	sanitized = strings.TrimSpace(sanitized)
	if sanitized == "" {
		generated.RejectionReason = "empty query"
		return generated
	}

	trimmed := strings.TrimRight(sanitized, "; \t\n")
	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "SELECT") {
		generated.RejectionReason = "only SELECT statements are allowed"
		return generated
	}

	// Blank out string literals first so a quoted semicolon cannot be
	// mistaken for a statement separator.
	scannable := stringLiteralPattern.ReplaceAllString(trimmed, "''")
	if strings.Contains(scannable, ";") {
		generated.RejectionReason = "multiple statements are not allowed"
		return generated
	}

	upperScannable := strings.ToUpper(scannable)
	for _, keyword := range forbiddenKeywords {
		if containsWord(upperScannable, keyword) {
			generated.RejectionReason = fmt.Sprintf("forbidden keyword: %s", keyword)
			return generated
		}
	}

	objects := fromObjectPattern.FindAllStringSubmatch(scannable, -1)
	if len(objects) == 0 {
		generated.RejectionReason = "query references no table"
		return generated
	}
	referenced := make(map[string]bool)
	for _, match := range objects {
		name := strings.ToLower(match[1])
		// Strip a schema qualifier like owner.table.
		if idx := strings.LastIndex(name, "."); idx >= 0 {
			name = name[idx+1:]
		}
		referenced[name] = true
		if !v.allowed[name] {
			generated.RejectionReason = fmt.Sprintf("table %s is not in the allowed list", name)
			return generated
		}
	}

	if len(v.columns) > 0 {
		if unknown := v.findUnknownIdentifier(scannable, referenced); unknown != "" {
			generated.RejectionReason = fmt.Sprintf("unknown column: %s", unknown)
			return generated
		}
	}

	generated.IsSafe = true
	generated.QueryText = v.dialect.EnforceLimit(trimmed, v.rowLimit)
	return generated
}

// findUnknownIdentifier scans for a bare identifier that is neither SQL
// vocabulary, a referenced table, an alias, nor a known column.
func (v *Validator) findUnknownIdentifier(query string, tables map[string]bool) string {
	aliases := collectAliases(query)
	for _, ident := range identifierPattern.FindAllString(query, -1) {
		lower := strings.ToLower(ident)
		if sqlVocabulary[lower] || tables[lower] || aliases[lower] || v.allowed[lower] {
			continue
		}
		if !v.columns[lower] {
			return lower
		}
	}
	return ""
}

var (
	asAliasPattern    = regexp.MustCompile(`(?i)\bAS\s+([A-Za-z_][A-Za-z0-9_]*)`)
	tableAliasPattern = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+[A-Za-z_][A-Za-z0-9_.]*\s+(?:AS\s+)?([A-Za-z_][A-Za-z0-9_]*)`)
)

// collectAliases grabs identifiers introduced with AS, plus table aliases
// following FROM/JOIN objects.
func collectAliases(query string) map[string]bool {
	aliases := make(map[string]bool)
	for _, match := range asAliasPattern.FindAllStringSubmatch(query, -1) {
		aliases[strings.ToLower(match[1])] = true
	}
	for _, match := range tableAliasPattern.FindAllStringSubmatch(query, -1) {
		candidate := strings.ToLower(match[1])
		if !sqlVocabulary[candidate] {
			aliases[candidate] = true
		}
	}
	return aliases
}

func containsWord(haystack, word string) bool {
	idx := 0
	for {
		pos := strings.Index(haystack[idx:], word)
		if pos < 0 {
			return false
		}
		pos += idx
		before := pos == 0 || !isWordByte(haystack[pos-1])
		afterIdx := pos + len(word)
		after := afterIdx >= len(haystack) || !isWordByte(haystack[afterIdx])
		if before && after {
			return true
		}
		idx = pos + len(word)
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

func stripComments(query string) string {
	query = blockCommentPattern.ReplaceAllString(query, " ")
	return lineCommentPattern.ReplaceAllString(query, " ")
}
