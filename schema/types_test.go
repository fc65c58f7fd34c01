package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTierRank(t *testing.T) {
	assert.Equal(t, 0, TierLow.Rank())
	assert.Equal(t, 1, TierMedium.Rank())
	assert.Equal(t, 2, TierHigh.Rank())

	// Unknown tiers rank below LOW.
	assert.Equal(t, -1, Tier("").Rank())
	assert.Equal(t, -1, Tier("ULTRA").Rank())
}

func TestTierValid(t *testing.T) {
	assert.True(t, TierLow.Valid())
	assert.True(t, TierMedium.Valid())
	assert.True(t, TierHigh.Valid())
	assert.False(t, Tier("low").Valid())
	assert.False(t, Tier("").Valid())
}

func TestParseTier(t *testing.T) {
	assert.Equal(t, TierHigh, ParseTier("HIGH"))
	assert.Equal(t, TierMedium, ParseTier("MEDIUM"))
	assert.Equal(t, TierLow, ParseTier("LOW"))
	assert.Equal(t, TierLow, ParseTier("banana"))
	assert.Equal(t, TierLow, ParseTier(""))
}

func TestPassageEncrypted(t *testing.T) {
	assert.False(t, Passage{Content: "plain"}.Encrypted())
	assert.True(t, Passage{Cipher: []byte{1, 2, 3}}.Encrypted())
}
