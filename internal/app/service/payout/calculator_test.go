package payout

import (
	"testing"

	"github.com/tradeup/creditengine/internal/models"
	"github.com/tradeup/creditengine/pkg/config"
	"github.com/tradeup/creditengine/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Categories: []*types.CategoryRate{
			{ID: "pokemon", Name: "Pokemon", BasePayoutPct: 0.60},
			{ID: "magic", Name: "Magic", BasePayoutPct: 0.55},
		},
		Conditions: []*types.ConditionInfo{
			{Code: "near_mint", Modifier: 1.0},
			{Code: "damaged", Modifier: 0.5},
		},
		BulkBonusTiers: []*types.BulkBonusTier{
			{MinItems: 20, BonusPct: 0.05},
			{MinItems: 50, BonusPct: 0.10},
		},
	}
}

func TestCalculate_AllCases(t *testing.T) {
	tenPct := &models.TierConfiguration{TierName: "gold", TradeInBonusPct: 0.10}

	tests := []struct {
		name         string
		tier         *models.TierConfiguration
		items        []Item
		wantErr      bool
		wantSubtotal int64
		wantTierB    int64
		wantBulkB    int64
		wantTotal    int64
	}{
		{
			// pokemon base 60%, near_mint 1.0, $100 market value, tier 10%
			name:         "single item with tier bonus",
			tier:         tenPct,
			items:        []Item{{Category: "pokemon", MarketValueCents: 10000, Condition: "near_mint", Quantity: 1}},
			wantSubtotal: 6000,
			wantTierB:    600,
			wantTotal:    6600,
		},
		{
			name:         "damaged halves the payout",
			tier:         nil,
			items:        []Item{{Category: "pokemon", MarketValueCents: 10000, Condition: "damaged", Quantity: 2}},
			wantSubtotal: 6000,
			wantTotal:    6000,
		},
		{
			name: "bulk bonus at exact threshold",
			tier: nil,
			items: []Item{
				{Category: "magic", MarketValueCents: 1000, Condition: "near_mint", Quantity: 20},
			},
			wantSubtotal: 11000, // 550 * 20
			wantBulkB:    550,   // 5% tier applies at 20 items
			wantTotal:    11550,
		},
		{
			name: "highest satisfied threshold wins",
			tier: nil,
			items: []Item{
				{Category: "magic", MarketValueCents: 1000, Condition: "near_mint", Quantity: 60},
			},
			wantSubtotal: 33000,
			wantBulkB:    3300, // 10% tier, not 5%
			wantTotal:    36300,
		},
		{
			name:    "negative market value rejected",
			items:   []Item{{Category: "pokemon", MarketValueCents: -1, Condition: "near_mint", Quantity: 1}},
			wantErr: true,
		},
		{
			name:    "zero quantity rejected",
			items:   []Item{{Category: "pokemon", MarketValueCents: 100, Condition: "near_mint", Quantity: 0}},
			wantErr: true,
		},
		{
			name:    "unknown category rejected",
			items:   []Item{{Category: "beanie_babies", MarketValueCents: 100, Condition: "near_mint", Quantity: 1}},
			wantErr: true,
		},
		{
			name:    "unknown condition rejected",
			items:   []Item{{Category: "pokemon", MarketValueCents: 100, Condition: "mint_in_box", Quantity: 1}},
			wantErr: true,
		},
		{
			name:    "empty batch rejected",
			items:   nil,
			wantErr: true,
		},
	}

	calc := NewCalculator(testConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := calc.Calculate(tt.tier, tt.items)
			if tt.wantErr {
				require.Error(t, err)
				var verr *ValidationError
				assert.ErrorAs(t, err, &verr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSubtotal, res.SubtotalCents)
			assert.Equal(t, tt.wantTierB, res.TierBonusCents)
			assert.Equal(t, tt.wantBulkB, res.BulkBonusCents)
			assert.Equal(t, tt.wantTotal, res.TotalCents)

			var sum int64
			for _, it := range res.Items {
				sum += it.ItemTotalCents
			}
			assert.Equal(t, res.SubtotalCents, sum)
			assert.Equal(t, res.SubtotalCents+res.TierBonusCents+res.BulkBonusCents, res.TotalCents)
		})
	}
}

func TestCalculate_RoundsHalfToEven(t *testing.T) {
	calc := NewCalculator(testConfig())

	// 25 cents * 0.6 * 0.5 = 7.5 -> rounds to 8 (even)
	res, err := calc.Calculate(nil, []Item{{Category: "pokemon", MarketValueCents: 25, Condition: "damaged", Quantity: 1}})
	require.NoError(t, err)
	assert.Equal(t, int64(8), res.SubtotalCents)

	// 45 cents * 0.5 * 0.5... use magic 0.55: 10 * 0.55 * 0.5 = 2.75 -> 3
	res, err = calc.Calculate(nil, []Item{{Category: "magic", MarketValueCents: 10, Condition: "damaged", Quantity: 1}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.SubtotalCents)
}
