package schema

import "time"

// Tier is a data-sensitivity level. Tiers are totally ordered:
// LOW < MEDIUM < HIGH.
type Tier string

const (
	TierLow    Tier = "LOW"
	TierMedium Tier = "MEDIUM"
	TierHigh   Tier = "HIGH"
)

var tierRanks = map[Tier]int{
	TierLow:    0,
	TierMedium: 1,
	TierHigh:   2,
}

// Rank returns the tier's position in the total order. Unknown tiers rank
// below LOW so a malformed clearance can never widen access.
func (t Tier) Rank() int {
	if r, ok := tierRanks[t]; ok {
		return r
	}
	return -1
}

// Valid reports whether t is one of the three defined tiers.
func (t Tier) Valid() bool {
	_, ok := tierRanks[t]
	return ok
}

// ParseTier maps a raw string onto a Tier, defaulting to LOW for
// anything unrecognized.
func ParseTier(s string) Tier {
	switch Tier(s) {
	case TierLow, TierMedium, TierHigh:
		return Tier(s)
	}
	return TierLow
}

// Turn is one prior exchange of a conversation.
type Turn struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

// Query is the immutable per-request input. It is created for one inbound
// request and discarded once a Response has been produced.
type Query struct {
	Text        string `json:"text"`
	RequesterID string `json:"requester_id"`
	Clearance   Tier   `json:"clearance"`
	History     []Turn `json:"history,omitempty"`
}

// Classification is the sensitivity label attached to a query exactly once,
// before any pipeline runs.
type Classification struct {
	Tier         Tier    `json:"tier"`
	Confidence   float64 `json:"confidence"`
	Rationale    string  `json:"rationale"`
	IsStructured bool    `json:"is_structured"`
}

// AccessDecision is the gate's verdict for one query.
type AccessDecision struct {
	Allowed      bool   `json:"allowed"`
	DeniedReason string `json:"denied_reason,omitempty"`
}

// GeneratedQuery is the output of the generation step of the structured
// pipeline. Only the validation step may rewrite QueryText (for example to
// splice in a row cap).
type GeneratedQuery struct {
	SourceQuestion  string `json:"source_question"`
	QueryText       string `json:"query_text"`
	IsSafe          bool   `json:"is_safe"`
	RejectionReason string `json:"rejection_reason,omitempty"`
}

// StructuredResult holds the rows produced by an executed generated query.
type StructuredResult struct {
	Columns         []string         `json:"columns"`
	Rows            []map[string]any `json:"rows"`
	RowCount        int              `json:"row_count"`
	ExecutionTimeMs int64            `json:"execution_time_ms"`
	Generated       GeneratedQuery   `json:"generated_query"`
}

// Passage is one candidate from the similarity retrieval pipeline. Content
// holds plaintext once revealed; Cipher holds the stored ciphertext for
// passages persisted encrypted.
type Passage struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	Cipher     []byte    `json:"-"`
	Similarity float64   `json:"similarity"`
	Tier       Tier      `json:"tier"`
	Entity     string    `json:"entity"`
	SourceTime time.Time `json:"source_time"`
	Vector     []float32 `json:"-"`
}

// Encrypted reports whether the passage's stored representation is ciphertext.
func (p Passage) Encrypted() bool {
	return len(p.Cipher) > 0
}

// SearchOptions controls a vector store search.
type SearchOptions struct {
	TopK      int
	Threshold float64
	// MaxTier filters candidates to tiers the requester may see. Empty means
	// no tier filtering.
	MaxTier Tier
}

// Route identifies which path produced a response.
type Route string

const (
	RouteStructured Route = "structured"
	RouteRetrieval  Route = "retrieval"
	RouteDenied     Route = "denied"
	RouteEmpty      Route = "empty"
	RouteOutOfScope Route = "out_of_scope"
)

// Provenance records one underlying source of a response.
type Provenance struct {
	Route     Route  `json:"route"`
	Reference string `json:"reference"`
}

// Response is the terminal artifact of one handled query.
type Response struct {
	Success          bool         `json:"success"`
	Answer           string       `json:"answer"`
	Confidence       float64      `json:"confidence"`
	Route            Route        `json:"route"`
	Provenance       []Provenance `json:"provenance,omitempty"`
	ProcessingTimeMs int64        `json:"processing_time_ms"`
}
