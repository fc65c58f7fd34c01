// Package textsql turns natural-language questions into validated
// read-only SQL against the legacy database.
package textsql

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/altamira-data/queryhub/llm"
	"github.com/altamira-data/queryhub/schema"
)

// OutOfScopeToken is the sentinel the model emits when the question cannot
// be answered from the catalog.
const OutOfScopeToken = "OUT_OF_SCOPE"

const generatorSystemPrompt = `You are a SQL generator for a read-only business database.
Generate exactly one SELECT statement that answers the user's question.

Rules:
- Use ONLY the tables and columns in the schema below. Never invent names.
- When the question asks to LIST, SHOW or ENUMERATE records, select the relevant columns.
- When the question asks HOW MANY, HOW MUCH or for a TOTAL, use COUNT or SUM instead of listing rows.
- Never write INSERT, UPDATE, DELETE, DDL, or more than one statement.
- Do not add your own LIMIT or ROWNUM clause.
- If the question cannot be answered from this schema, reply with exactly ` + OutOfScopeToken + ` and nothing else.

Schema:
%s`

var sqlFencePattern = regexp.MustCompile("(?s)```(?:sql)?\\s*(.*?)```")

// Generator produces candidate SQL from a question and the introspected
// catalog description.
type Generator struct {
	llm llm.Provider
}

// NewGenerator builds a generator over the given completion provider.
func NewGenerator(provider llm.Provider) *Generator {
	return &Generator{llm: provider}
}

// Generate asks the model for a candidate query. The returned string is
// raw model output with code fences stripped; OutOfScope reports the
// sentinel. Validation happens separately.
func (g *Generator) Generate(ctx context.Context, question string, history []schema.Turn, schemaDescription string) (string, bool, error) {
	system := fmt.Sprintf(generatorSystemPrompt, schemaDescription)

	var b strings.Builder
	for _, turn := range history {
		fmt.Fprintf(&b, "Previous question: %s\nPrevious answer: %s\n", turn.User, turn.Assistant)
	}
	fmt.Fprintf(&b, "Question: %s", question)

	raw, err := g.llm.GenerateDeterministic(ctx, system, b.String())
	if err != nil {
		return "", false, fmt.Errorf("sql generation failed: %w", err)
	}

	candidate := extractSQL(raw)
	if strings.Contains(strings.ToUpper(candidate), OutOfScopeToken) {
		return "", true, nil
	}
	return candidate, false, nil
}

// extractSQL pulls the statement out of a fenced code block when present,
// otherwise returns the trimmed response as-is.
func extractSQL(raw string) string {
	if match := sqlFencePattern.FindStringSubmatch(raw); match != nil {
		return strings.TrimSpace(match[1])
	}
	return strings.TrimSpace(raw)
}
