package synth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/altamira-data/queryhub/schema"
)

type mockLLM struct {
	response string
	err      error
	calls    int
	lastUser string
}

func (m *mockLLM) GenerateCompletion(_ context.Context, _, prompt string) (string, error) {
	m.calls++
	m.lastUser = prompt
	return m.response, m.err
}

func (m *mockLLM) GenerateDeterministic(ctx context.Context, system, prompt string) (string, error) {
	return m.GenerateCompletion(ctx, system, prompt)
}

func (m *mockLLM) GetProviderType() string { return "mock" }

func singleValueResult(value any) *schema.StructuredResult {
	return &schema.StructuredResult{
		Columns:   []string{"total"},
		Rows:      []map[string]any{{"total": value}},
		RowCount:  1,
		Generated: schema.GeneratedQuery{QueryText: "SELECT SUM(amount) AS total FROM invoices"},
	}
}

func TestFromStructuredDeterministic(t *testing.T) {
	s := NewSynthesizer(nil, 5, 3000, false)

	answer := s.FromStructured(context.Background(), schema.Query{Text: "total sales"}, singleValueResult(1500.5))
	if answer.Text != "1500.5" {
		t.Errorf("unexpected rendering: %q", answer.Text)
	}
	if answer.Confidence != structuredConfidence {
		t.Errorf("confidence = %v, want %v", answer.Confidence, structuredConfidence)
	}
	if answer.Provenance.Route != schema.RouteStructured {
		t.Errorf("route = %v", answer.Provenance.Route)
	}
	if !strings.Contains(answer.Provenance.Reference, "SELECT SUM") {
		t.Errorf("provenance should carry the executed query: %q", answer.Provenance.Reference)
	}
}

func TestFromStructuredMultiRow(t *testing.T) {
	s := NewSynthesizer(nil, 5, 3000, false)

	result := &schema.StructuredResult{
		Columns: []string{"customer", "amount"},
		Rows: []map[string]any{
			{"customer": "Acme", "amount": 100.0},
			{"customer": "Borges", "amount": 200.0},
		},
		RowCount: 2,
	}
	answer := s.FromStructured(context.Background(), schema.Query{}, result)
	if !strings.Contains(answer.Text, "Found 2 record(s)") {
		t.Errorf("unexpected rendering: %q", answer.Text)
	}
	if !strings.Contains(answer.Text, "customer: Acme, amount: 100") {
		t.Errorf("row missing from rendering: %q", answer.Text)
	}
}

func TestFromStructuredPolishKeepsNumbers(t *testing.T) {
	provider := &mockLLM{response: "Total sales came to 1500.5."}
	s := NewSynthesizer(provider, 5, 3000, true)

	answer := s.FromStructured(context.Background(), schema.Query{Text: "total sales"}, singleValueResult(1500.5))
	if answer.Text != "Total sales came to 1500.5." {
		t.Errorf("polish should be kept when numbers match: %q", answer.Text)
	}
}

func TestFromStructuredPolishRevertedOnNumberDrift(t *testing.T) {
	provider := &mockLLM{response: "Total sales came to 1500.6."}
	s := NewSynthesizer(provider, 5, 3000, true)

	answer := s.FromStructured(context.Background(), schema.Query{Text: "total sales"}, singleValueResult(1500.5))
	if answer.Text != "1500.5" {
		t.Errorf("polish changing a number must be reverted: %q", answer.Text)
	}
}

func TestFromStructuredPolishErrorFallsBack(t *testing.T) {
	provider := &mockLLM{err: errors.New("unavailable")}
	s := NewSynthesizer(provider, 5, 3000, true)

	answer := s.FromStructured(context.Background(), schema.Query{Text: "total sales"}, singleValueResult(1500.5))
	if answer.Text != "1500.5" {
		t.Errorf("polish failure must fall back to deterministic text: %q", answer.Text)
	}
}

func TestFromPassages(t *testing.T) {
	provider := &mockLLM{response: "The customer ordered 40 units."}
	s := NewSynthesizer(provider, 5, 3000, false)

	passages := []schema.Passage{
		{ID: "p1", Content: "order note: 40 units", Similarity: 0.9},
		{ID: "p2", Content: "delivery confirmation", Similarity: 0.7},
	}
	answer, err := s.FromPassages(context.Background(), schema.Query{Text: "how many units?"}, passages)
	if err != nil {
		t.Fatalf("FromPassages failed: %v", err)
	}
	if answer.Text != "The customer ordered 40 units." {
		t.Errorf("unexpected answer: %q", answer.Text)
	}
	wantConfidence := 0.8 * passageConfidenceMul
	if diff := answer.Confidence - wantConfidence; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("confidence = %v, want %v", answer.Confidence, wantConfidence)
	}
	if answer.Provenance.Reference != "p1,p2" {
		t.Errorf("provenance = %q", answer.Provenance.Reference)
	}
	if !strings.Contains(provider.lastUser, "order note: 40 units") {
		t.Errorf("context missing from prompt:\n%s", provider.lastUser)
	}
}

func TestFromPassagesEmpty(t *testing.T) {
	s := NewSynthesizer(&mockLLM{}, 5, 3000, false)
	if _, err := s.FromPassages(context.Background(), schema.Query{}, nil); err == nil {
		t.Error("expected error for empty passage list")
	}
}

func TestSelectContextTopN(t *testing.T) {
	s := NewSynthesizer(nil, 2, 0, false)
	passages := []schema.Passage{{ID: "1"}, {ID: "2"}, {ID: "3"}}
	selected := s.selectContext(passages)
	if len(selected) != 2 {
		t.Errorf("expected 2 passages, got %d", len(selected))
	}
}

func TestSelectContextTokenBudget(t *testing.T) {
	s := NewSynthesizer(nil, 5, 10, false)
	s.encoder = nil // force the character heuristic for a stable count
	passages := []schema.Passage{
		{ID: "1", Content: strings.Repeat("a", 32)}, // 8 tokens
		{ID: "2", Content: strings.Repeat("b", 32)}, // would exceed the budget
	}
	selected := s.selectContext(passages)
	if len(selected) != 1 || selected[0].ID != "1" {
		t.Errorf("token budget not enforced: %+v", selected)
	}
}

func TestSameNumbers(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"total: 1500.5", "The total is 1500.5", true},
		{"total: 1500.5", "The total is 1500.6", false},
		{"3 orders of 40", "40 items across 3 orders", true},
		{"no numbers", "still none", true},
		{"one 1", "1 and 2", false},
	}
	for _, tc := range cases {
		if got := sameNumbers(tc.a, tc.b); got != tc.want {
			t.Errorf("sameNumbers(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}
