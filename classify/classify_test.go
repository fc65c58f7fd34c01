package classify

import (
	"testing"

	"github.com/altamira-data/queryhub/schema"
)

func TestClassifyTiers(t *testing.T) {
	c := New()

	cases := []struct {
		name string
		text string
		tier schema.Tier
	}{
		{"tax ids", "show me customer tax IDs", schema.TierHigh},
		{"cnpj", "what is the CNPJ of our biggest supplier", schema.TierHigh},
		{"who bought", "who bought the most units last month", schema.TierHigh},
		{"contact details", "give me the contact details of overdue accounts", schema.TierHigh},
		{"sales", "total sales in October", schema.TierMedium},
		{"invoices", "list overdue invoices", schema.TierMedium},
		{"financial prose", "tell me about financial performance", schema.TierMedium},
		{"payments", "how much did we spend on payments", schema.TierMedium},
		{"generic", "what products do we make", schema.TierLow},
		{"greeting", "hello there", schema.TierLow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := c.Classify(tc.text)
			if got.Tier != tc.tier {
				t.Errorf("Classify(%q).Tier = %s, want %s (rationale: %s)", tc.text, got.Tier, tc.tier, got.Rationale)
			}
		})
	}
}

func TestClassifyHighBeatsMedium(t *testing.T) {
	c := New()
	// Matches both an amount term and a personal identifier; HIGH must win.
	got := c.Classify("list invoice amounts with customer names")
	if got.Tier != schema.TierHigh {
		t.Errorf("mixed query classified as %s, want HIGH", got.Tier)
	}
}

func TestClassifyConfidence(t *testing.T) {
	c := New()

	single := c.Classify("total sales in October")
	if single.Confidence < 0.6 || single.Confidence > 0.95 {
		t.Errorf("MEDIUM confidence out of range: %v", single.Confidence)
	}

	multi := c.Classify("sales revenue and invoices with payments and balances")
	if multi.Confidence <= single.Confidence {
		t.Errorf("more matches should raise confidence: %v <= %v", multi.Confidence, single.Confidence)
	}
	if multi.Confidence > 0.95 {
		t.Errorf("MEDIUM confidence not capped: %v", multi.Confidence)
	}

	high := c.Classify("cpf cnpj ssn phone e-mail personal data customer names")
	if high.Confidence > 1.0 {
		t.Errorf("HIGH confidence not capped: %v", high.Confidence)
	}
}

func TestClassifyStructuredCues(t *testing.T) {
	c := New()

	cases := []struct {
		text       string
		structured bool
	}{
		{"total sales in October", true},
		{"how many orders did we ship", true},
		{"top 5 invoices by amount", true},
		{"list overdue invoices", true},
		{"tell me about financial performance", false},
		{"summarize the supplier situation", false},
	}
	for _, tc := range cases {
		got := c.Classify(tc.text)
		if got.IsStructured != tc.structured {
			t.Errorf("Classify(%q).IsStructured = %v, want %v", tc.text, got.IsStructured, tc.structured)
		}
	}
}

func TestClassifyEmpty(t *testing.T) {
	c := New()
	got := c.Classify("   ")
	if got.Tier != schema.TierLow {
		t.Errorf("empty text tier = %s, want LOW", got.Tier)
	}
	if got.Confidence != 0.2 {
		t.Errorf("empty text confidence = %v", got.Confidence)
	}
	if got.IsStructured {
		t.Error("empty text should not look structured")
	}
}
