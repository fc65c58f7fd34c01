package classify

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/altamira-data/queryhub/schema"
)

// Classifier labels a free-text business question with a sensitivity tier and
// a structured-query hint. Evaluation is a cascading pattern match: HIGH rules
// first, then MEDIUM, otherwise LOW. First match wins, so tier priority beats
// specificity.

type rule struct {
	pattern *regexp.Regexp
	tier    schema.Tier
}

// HIGH: identifiers that point at a person or legal entity.
var highRules = compile(schema.TierHigh,
	`\btax\s+ids?\b`,
	`\btax\s+number\b`,
	`\bregistration\s+numbers?\b`,
	`\bcpf\b`,
	`\bcnpj\b`,
	`\bssn\b`,
	`\bcustomer\s+names?\b`,
	`\bsupplier\s+names?\b`,
	`\bwho\s+(bought|sold|paid|ordered)\b`,
	`\bphone\s*(number)?\b`,
	`\be-?mail\b`,
	`\bhome\s+address\b`,
	`\bcontact\s+(details|info)\b`,
	`\bpersonal\s+data\b`,
)

// MEDIUM: transactional and financial-amount vocabulary without direct
// personal identifiers.
var mediumRules = compile(schema.TierMedium,
	`\bsales?\b`,
	`\brevenue\b`,
	`\bfinancial\b`,
	`\binvoices?\b`,
	`\border\s+(number|\d+)`,
	`\borders?\b`,
	`\bpayments?\b`,
	`\bpayables?\b`,
	`\breceivables?\b`,
	`\bbalances?\b`,
	`\bamounts?\b`,
	`\bexpenses?\b`,
	`\bbilling\b`,
	`\bdue\s+(date|on)\b`,
	`\boverdue\b`,
	`\binstallments?\b`,
	`\bturnover\b`,
)

// Aggregation and quantity cues. Matching any of these marks the question as
// suitable for direct query generation, independent of its tier.
var structuredCues = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\btotal\b`),
	regexp.MustCompile(`(?i)\bhow\s+many\b`),
	regexp.MustCompile(`(?i)\bhow\s+much\b`),
	regexp.MustCompile(`(?i)\bcount\b`),
	regexp.MustCompile(`(?i)\bsum\b`),
	regexp.MustCompile(`(?i)\baverage\b`),
	regexp.MustCompile(`(?i)\blist\b`),
	regexp.MustCompile(`(?i)\btop\s+\d+`),
	regexp.MustCompile(`(?i)\bnumber\s+of\b`),
	regexp.MustCompile(`(?i)\branking\b`),
	regexp.MustCompile(`(?i)\bwhich\s+(ones|orders|invoices|titles)\b`),
}

func compile(tier schema.Tier, patterns ...string) []rule {
	rules := make([]rule, 0, len(patterns))
	for _, p := range patterns {
		rules = append(rules, rule{
			pattern: regexp.MustCompile(`(?i)` + p),
			tier:    tier,
		})
	}
	return rules
}

// Classifier is stateless; the zero value is not usable, construct with New.
type Classifier struct {
	high   []rule
	medium []rule
	cues   []*regexp.Regexp
}

// New returns a classifier with the built-in rule sets.
func New() *Classifier {
	return &Classifier{high: highRules, medium: mediumRules, cues: structuredCues}
}

// Classify labels text with a tier, a confidence estimate and a
// structured-query hint. It is total: any input, including empty text,
// resolves to a classification and never to an error.
func (c *Classifier) Classify(text string) schema.Classification {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return schema.Classification{
			Tier:       schema.TierLow,
			Confidence: 0.2,
			Rationale:  "empty query",
		}
	}

	structured := c.hasStructuredCue(trimmed)

	if n := countMatches(c.high, trimmed); n > 0 {
		return schema.Classification{
			Tier:         schema.TierHigh,
			Confidence:   capConfidence(0.7+float64(n)*0.1, 1.0),
			Rationale:    fmt.Sprintf("personal or entity identifiers (%d match(es))", n),
			IsStructured: structured,
		}
	}

	if n := countMatches(c.medium, trimmed); n > 0 {
		return schema.Classification{
			Tier:         schema.TierMedium,
			Confidence:   capConfidence(0.6+float64(n)*0.1, 0.95),
			Rationale:    fmt.Sprintf("transactional or financial terms (%d match(es))", n),
			IsStructured: structured,
		}
	}

	return schema.Classification{
		Tier:         schema.TierLow,
		Confidence:   0.3,
		Rationale:    "no sensitive vocabulary matched",
		IsStructured: structured,
	}
}

func (c *Classifier) hasStructuredCue(text string) bool {
	for _, cue := range c.cues {
		if cue.MatchString(text) {
			return true
		}
	}
	return false
}

func countMatches(rules []rule, text string) int {
	n := 0
	for _, r := range rules {
		if r.pattern.MatchString(text) {
			n++
		}
	}
	return n
}

func capConfidence(v, max float64) float64 {
	if v > max {
		return max
	}
	return v
}
