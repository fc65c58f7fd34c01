// Package synth turns pipeline results into user-facing answers.
package synth

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/altamira-data/queryhub/common/logger"
	"github.com/altamira-data/queryhub/llm"
	"github.com/altamira-data/queryhub/schema"
)

const (
	structuredConfidence = 0.85
	passageConfidenceMul = 0.7

	encodingName = "cl100k_base"
)

const passageSystemPrompt = `You answer business questions using ONLY the context snippets provided.
Rules:
- Base every statement on the context. If the context does not contain the answer, say you could not find it.
- Do not use outside knowledge and do not speculate.
- Answer concisely in the language of the question.`

const polishSystemPrompt = `Rewrite the following query result as a short, natural answer to the question.
Preserve every number, date and name exactly as given. Do not add information.`

// Answer is a synthesized reply plus its confidence and provenance.
type Answer struct {
	Text       string
	Confidence float64
	Provenance schema.Provenance
}

// Synthesizer renders structured results and retrieved passages into
// answers.
type Synthesizer struct {
	LLM llm.Provider

	// ContextTopN caps how many passages feed the prompt.
	ContextTopN int
	// TokenBudget caps the total context size in tokens.
	TokenBudget int
	// Polish enables LLM rephrasing of structured answers. The rephrased
	// text is discarded if it changes any numeric value.
	Polish bool

	encoder *tiktoken.Tiktoken
}

// NewSynthesizer builds a synthesizer. The token encoder load failure is
// tolerated: token budgeting falls back to a character heuristic.
func NewSynthesizer(provider llm.Provider, contextTopN, tokenBudget int, polish bool) *Synthesizer {
	encoder, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		logger.Warnf("failed to load %s encoding, using character heuristic: %v", encodingName, err)
		encoder = nil
	}
	return &Synthesizer{
		LLM:         provider,
		ContextTopN: contextTopN,
		TokenBudget: tokenBudget,
		Polish:      polish,
		encoder:     encoder,
	}
}

// FromStructured renders a query result. The base rendering is
// deterministic so numbers can never drift; the optional LLM polish is
// reverted whenever it changes a numeric token.
func (s *Synthesizer) FromStructured(ctx context.Context, query schema.Query, result *schema.StructuredResult) Answer {
	text := renderResult(result)

	if s.Polish && s.LLM != nil {
		prompt := fmt.Sprintf("Question: %s\n\nResult:\n%s", query.Text, text)
		polished, err := s.LLM.GenerateCompletion(ctx, polishSystemPrompt, prompt)
		if err != nil {
			logger.Warnf("answer polish failed, keeping deterministic rendering: %v", err)
		} else if sameNumbers(text, polished) {
			text = strings.TrimSpace(polished)
		} else {
			logger.Warnf("polished answer changed numeric content, keeping deterministic rendering")
		}
	}

	return Answer{
		Text:       text,
		Confidence: structuredConfidence,
		Provenance: schema.Provenance{
			Route:     schema.RouteStructured,
			Reference: result.Generated.QueryText,
		},
	}
}

// FromPassages answers from retrieved context. Confidence scales with the
// mean similarity of the passages actually used.
func (s *Synthesizer) FromPassages(ctx context.Context, query schema.Query, passages []schema.Passage) (Answer, error) {
	selected := s.selectContext(passages)
	if len(selected) == 0 {
		return Answer{}, fmt.Errorf("no passages available for synthesis")
	}

	var b strings.Builder
	for i, passage := range selected {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, passage.Content)
	}
	var prompt strings.Builder
	for _, turn := range query.History {
		fmt.Fprintf(&prompt, "Previous question: %s\nPrevious answer: %s\n", turn.User, turn.Assistant)
	}
	fmt.Fprintf(&prompt, "Context:\n%s\nQuestion: %s", b.String(), query.Text)

	text, err := s.LLM.GenerateCompletion(ctx, passageSystemPrompt, prompt.String())
	if err != nil {
		return Answer{}, fmt.Errorf("answer synthesis failed: %w", err)
	}

	var simSum float64
	ids := make([]string, len(selected))
	for i, passage := range selected {
		simSum += passage.Similarity
		ids[i] = passage.ID
	}
	meanSim := simSum / float64(len(selected))

	return Answer{
		Text:       strings.TrimSpace(text),
		Confidence: meanSim * passageConfidenceMul,
		Provenance: schema.Provenance{
			Route:     schema.RouteRetrieval,
			Reference: strings.Join(ids, ","),
		},
	}, nil
}

// selectContext keeps the top-N passages that fit the token budget.
// Input is assumed sorted by relevance.
func (s *Synthesizer) selectContext(passages []schema.Passage) []schema.Passage {
	topN := s.ContextTopN
	if topN <= 0 {
		topN = 5
	}
	if len(passages) > topN {
		passages = passages[:topN]
	}

	if s.TokenBudget <= 0 {
		return passages
	}
	var selected []schema.Passage
	used := 0
	for _, passage := range passages {
		cost := s.countTokens(passage.Content)
		if used+cost > s.TokenBudget && len(selected) > 0 {
			break
		}
		selected = append(selected, passage)
		used += cost
	}
	return selected
}

func (s *Synthesizer) countTokens(text string) int {
	if s.encoder != nil {
		return len(s.encoder.Encode(text, nil, nil))
	}
	// Rough heuristic of four characters per token.
	return len(text) / 4
}

// renderResult produces a compact deterministic text form of a result set.
// Single-cell results read as a plain value, everything else as rows of
// column: value pairs.
func renderResult(result *schema.StructuredResult) string {
	if result == nil || result.RowCount == 0 {
		return "No records found."
	}
	if result.RowCount == 1 && len(result.Columns) == 1 {
		return fmt.Sprintf("%v", result.Rows[0][result.Columns[0]])
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d record(s):\n", result.RowCount)
	for _, row := range result.Rows {
		parts := make([]string, 0, len(result.Columns))
		for _, column := range result.Columns {
			parts = append(parts, fmt.Sprintf("%s: %v", column, row[column]))
		}
		b.WriteString("- " + strings.Join(parts, ", ") + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

var numberPattern = regexp.MustCompile(`\d+(?:[.,]\d+)*`)

// sameNumbers reports whether both texts contain the same multiset of
// numeric tokens.
func sameNumbers(a, b string) bool {
	na := numberPattern.FindAllString(a, -1)
	nb := numberPattern.FindAllString(b, -1)
	if len(na) != len(nb) {
		return false
	}
	sort.Strings(na)
	sort.Strings(nb)
	for i := range na {
		if na[i] != nb[i] {
			return false
		}
	}
	return true
}
