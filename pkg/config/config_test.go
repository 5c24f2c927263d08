package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	// All three reference tables must default so an unconfigured
	// deployment can price a trade-in.
	assert.NotEmpty(t, c.Categories)
	assert.NotEmpty(t, c.Conditions)
	assert.NotEmpty(t, c.BulkBonusTiers)
	assert.Equal(t, 7, c.DistributionExpiryDays)

	cat := c.GetCategory("pokemon")
	require.NotNil(t, cat)
	assert.Equal(t, 0.60, cat.BasePayoutPct)
	assert.Nil(t, c.GetCategory("unknown"))

	cond := c.GetCondition("near_mint")
	require.NotNil(t, cond)
	assert.Equal(t, 1.0, cond.Modifier)
}
