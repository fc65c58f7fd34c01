package access

import (
	"fmt"

	"github.com/altamira-data/queryhub/schema"
)

// Gate compares a requester's clearance against a query's classified tier.
// The comparison is a total-order rank check with no I/O and no retries; the
// routing engine must consult it before any generation, execution or
// retrieval happens.

// Authorize returns the allow/deny decision for one (clearance, tier) pair.
// It is deterministic and defined for every input: an unknown clearance ranks
// below LOW and an unknown classification tier is treated as HIGH, so
// malformed inputs always fail closed.
func Authorize(clearance schema.Tier, classification schema.Classification) schema.AccessDecision {
	required := classification.Tier
	if !required.Valid() {
		required = schema.TierHigh
	}

	if clearance.Rank() >= required.Rank() {
		return schema.AccessDecision{Allowed: true}
	}

	return schema.AccessDecision{
		Allowed: false,
		DeniedReason: fmt.Sprintf("requires %s clearance, requester holds %s",
			required, displayTier(clearance)),
	}
}

// RequiredClearanceMessage is the user-facing explanation attached to a
// denial for the given tier.
func RequiredClearanceMessage(tier schema.Tier) string {
	switch tier {
	case schema.TierHigh:
		return "This question touches personal or sensitive entity data."
	case schema.TierMedium:
		return "This question touches transactional financial data."
	default:
		return "This question requires basic data access."
	}
}

func displayTier(t schema.Tier) schema.Tier {
	if t.Valid() {
		return t
	}
	return "NONE"
}
