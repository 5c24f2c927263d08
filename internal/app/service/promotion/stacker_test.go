package promotion

import (
	"testing"

	"github.com/tradeup/creditengine/internal/models"
	"github.com/tradeup/creditengine/pkg/types"

	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
)

func pctPromo(id string, priority int, pct float64, stackable bool) *models.Promotion {
	p := basePromo(id)
	p.Priority = priority
	p.Stackable = stackable
	p.Payload = datatypes.NewJSONType(&models.PromotionPayload{BonusPct: f64Ptr(pct)})
	return p
}

func flatPromo(id string, priority int, cents int64, stackable bool) *models.Promotion {
	p := basePromo(id)
	p.Type = types.PromoTypeFlatBonus
	p.Priority = priority
	p.Stackable = stackable
	p.Payload = datatypes.NewJSONType(&models.PromotionPayload{BonusFlatCents: i64Ptr(cents)})
	return p
}

func multiplierPromo(id string, priority int, m float64, stackable bool) *models.Promotion {
	p := basePromo(id)
	p.Type = types.PromoTypeMultiplier
	p.Priority = priority
	p.Stackable = stackable
	p.Payload = datatypes.NewJSONType(&models.PromotionPayload{Multiplier: f64Ptr(m)})
	return p
}

func TestStack_AllCases(t *testing.T) {
	tests := []struct {
		name      string
		base      int64
		promos    []*models.Promotion
		wantIDs   []string
		wantTotal int64
	}{
		{
			name:      "no promotions",
			base:      10000,
			promos:    nil,
			wantIDs:   nil,
			wantTotal: 0,
		},
		{
			name:      "single percent promotion",
			base:      6000,
			promos:    []*models.Promotion{pctPromo("p1", 5, 0.15, false)},
			wantIDs:   []string{"p1"},
			wantTotal: 900,
		},
		{
			// non-stackable flat $5 at priority 10 beats 15% at priority 5
			name: "non-stackable winner terminates",
			base: 6000,
			promos: []*models.Promotion{
				flatPromo("flat5", 10, 500, false),
				pctPromo("pct15", 5, 0.15, true),
			},
			wantIDs:   []string{"flat5"},
			wantTotal: 500,
		},
		{
			name: "stackables accumulate",
			base: 10000,
			promos: []*models.Promotion{
				pctPromo("a", 10, 0.10, true),
				pctPromo("b", 5, 0.05, true),
				flatPromo("c", 1, 200, true),
			},
			wantIDs:   []string{"a", "b", "c"},
			wantTotal: 1000 + 500 + 200,
		},
		{
			// the first promotion always applies, stackable or not
			name: "first non-stackable blocks later stackables",
			base: 10000,
			promos: []*models.Promotion{
				pctPromo("first", 10, 0.10, false),
				pctPromo("second", 5, 0.05, true),
			},
			wantIDs:   []string{"first"},
			wantTotal: 1000,
		},
		{
			// a later non-stackable is skipped, not applied, and the walk continues
			name: "later non-stackable skipped",
			base: 10000,
			promos: []*models.Promotion{
				pctPromo("a", 10, 0.10, true),
				pctPromo("blocked", 5, 0.50, false),
				pctPromo("b", 1, 0.05, true),
			},
			wantIDs:   []string{"a", "b"},
			wantTotal: 1000 + 500,
		},
		{
			// 2x multiplier yields a bonus equal to the base
			name:      "multiplier expressed as bonus on top",
			base:      6000,
			promos:    []*models.Promotion{multiplierPromo("x2", 5, 2.0, false)},
			wantIDs:   []string{"x2"},
			wantTotal: 6000,
		},
		{
			name:      "1.5x multiplier",
			base:      6000,
			promos:    []*models.Promotion{multiplierPromo("x15", 5, 1.5, false)},
			wantIDs:   []string{"x15"},
			wantTotal: 3000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apps := Stack(tt.base, tt.promos)
			var ids []string
			for _, a := range apps {
				ids = append(ids, a.Promotion.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.wantTotal, TotalBonus(apps))
		})
	}
}
