package promotion

import (
	"testing"
	"time"

	"github.com/tradeup/creditengine/internal/models"
	"github.com/tradeup/creditengine/pkg/types"

	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
)

func intPtr(v int) *int         { return &v }
func i64Ptr(v int64) *int64     { return &v }
func f64Ptr(v float64) *float64 { return &v }

// tuesdayNoon is a fixed Tuesday 12:00 for deterministic matching.
var tuesdayNoon = time.Date(2025, 6, 3, 12, 0, 0, 0, time.UTC)

func basePromo(id string) *models.Promotion {
	return &models.Promotion{
		ID:       id,
		TenantID: "t1",
		Name:     "promo " + id,
		Type:     types.PromoTypeTradeInBonus,
		Payload:  datatypes.NewJSONType(&models.PromotionPayload{BonusPct: f64Ptr(0.10)}),
		StartsAt: tuesdayNoon.Add(-24 * time.Hour),
		EndsAt:   tuesdayNoon.Add(24 * time.Hour),
		Channel:  types.ChannelAll,
		Active:   true,
	}
}

func baseCtx() Context {
	return Context{
		Now:         tuesdayNoon,
		Channel:     types.ChannelInStore,
		MemberID:    "m1",
		MemberTier:  "gold",
		CategoryIDs: []string{"pokemon"},
		ValueCents:  10000,
		ItemCount:   3,
	}
}

func TestMatch_Conditions(t *testing.T) {
	tests := []struct {
		name  string
		mod   func(p *models.Promotion)
		ctx   func(c *Context)
		uses  map[string]int64
		match bool
	}{
		{name: "plain match", mod: func(p *models.Promotion) {}, match: true},
		{name: "inactive", mod: func(p *models.Promotion) { p.Active = false }, match: false},
		{name: "before window", mod: func(p *models.Promotion) { p.StartsAt = tuesdayNoon.Add(time.Hour) }, match: false},
		{name: "after window", mod: func(p *models.Promotion) { p.EndsAt = tuesdayNoon.Add(-time.Hour) }, match: false},
		{
			name:  "inside daily window",
			mod:   func(p *models.Promotion) { p.DailyStartMinute = intPtr(11 * 60); p.DailyEndMinute = intPtr(13 * 60) },
			match: true,
		},
		{
			name:  "outside daily window",
			mod:   func(p *models.Promotion) { p.DailyStartMinute = intPtr(14 * 60); p.DailyEndMinute = intPtr(16 * 60) },
			match: false,
		},
		{
			// 22:00-02:00 treated as a circular interval
			name:  "wrapping daily window excludes noon",
			mod:   func(p *models.Promotion) { p.DailyStartMinute = intPtr(22 * 60); p.DailyEndMinute = intPtr(2 * 60) },
			match: false,
		},
		{
			name: "wrapping daily window includes 23:30",
			mod:  func(p *models.Promotion) { p.DailyStartMinute = intPtr(22 * 60); p.DailyEndMinute = intPtr(2 * 60) },
			ctx: func(c *Context) {
				c.Now = time.Date(2025, 6, 3, 23, 30, 0, 0, time.UTC)
			},
			match: true,
		},
		{
			// ISO numbering: Tuesday is 1
			name:  "active day matches",
			mod:   func(p *models.Promotion) { p.ActiveDays = datatypes.JSONSlice[int]{1} },
			match: true,
		},
		{
			name:  "active day excludes",
			mod:   func(p *models.Promotion) { p.ActiveDays = datatypes.JSONSlice[int]{5, 6} },
			match: false,
		},
		{
			name:  "channel mismatch",
			mod:   func(p *models.Promotion) { p.Channel = types.ChannelOnline },
			match: false,
		},
		{
			name:  "category intersects",
			mod:   func(p *models.Promotion) { p.CategoryIDs = datatypes.JSONSlice[string]{"pokemon", "magic"} },
			match: true,
		},
		{
			name:  "category disjoint",
			mod:   func(p *models.Promotion) { p.CategoryIDs = datatypes.JSONSlice[string]{"sports"} },
			match: false,
		},
		{
			name:  "tier restricted out",
			mod:   func(p *models.Promotion) { p.TierRestriction = datatypes.JSONSlice[string]{"platinum"} },
			match: false,
		},
		{
			name:  "min items not met",
			mod:   func(p *models.Promotion) { p.MinItems = 5 },
			match: false,
		},
		{
			name:  "min value not met",
			mod:   func(p *models.Promotion) { p.MinValueCents = 20000 },
			match: false,
		},
		{
			name:  "global cap reached",
			mod:   func(p *models.Promotion) { p.MaxUses = i64Ptr(10); p.CurrentUses = 10 },
			match: false,
		},
		{
			name:  "member cap reached",
			mod:   func(p *models.Promotion) { p.MaxUsesPerMember = i64Ptr(2) },
			uses:  map[string]int64{"p1": 2},
			match: false,
		},
		{
			name:  "member cap not reached",
			mod:   func(p *models.Promotion) { p.MaxUsesPerMember = i64Ptr(2) },
			uses:  map[string]int64{"p1": 1},
			match: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := basePromo("p1")
			tt.mod(p)
			ctx := baseCtx()
			if tt.ctx != nil {
				tt.ctx(&ctx)
			}
			got := Match(ctx, []*models.Promotion{p}, tt.uses)
			if tt.match {
				assert.Len(t, got, 1)
			} else {
				assert.Empty(t, got)
			}
		})
	}
}

func TestMatch_Ordering(t *testing.T) {
	a := basePromo("b-low-id")
	a.Priority = 5
	b := basePromo("a-low-id")
	b.Priority = 5
	c := basePromo("z-high-priority")
	c.Priority = 10

	got := Match(baseCtx(), []*models.Promotion{a, b, c}, nil)
	ids := []string{got[0].ID, got[1].ID, got[2].ID}
	// priority desc, then id asc for deterministic ties
	assert.Equal(t, []string{"z-high-priority", "a-low-id", "b-low-id"}, ids)
}

func TestMatch_IsPure(t *testing.T) {
	p := basePromo("p1")
	p.MaxUses = i64Ptr(5)
	p.CurrentUses = 3

	Match(baseCtx(), []*models.Promotion{p}, nil)
	assert.Equal(t, int64(3), p.CurrentUses)
}
