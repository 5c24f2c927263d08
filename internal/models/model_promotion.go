package models

import (
	"time"

	"github.com/tradeup/creditengine/pkg/types"

	"gorm.io/datatypes"
)

// PromotionPayload is the per-type bonus payload. Exactly one field is
// set, matching Promotion.Type:
//
//	trade_in_bonus / purchase_cashback -> BonusPct
//	flat_bonus                         -> BonusFlatCents
//	multiplier                         -> Multiplier
type PromotionPayload struct {
	BonusPct       *float64 `json:"bonus_pct,omitempty"`
	BonusFlatCents *int64   `json:"bonus_flat_cents,omitempty"`
	Multiplier     *float64 `json:"multiplier,omitempty"`
}

type Promotion struct {
	ID       string          `gorm:"column:id;type:uuid;primary_key" json:"id"`
	TenantID string          `gorm:"column:tenant_id;type:varchar(64);not null;index:idx_promo_tenant_active,priority:1" json:"tenant_id"`
	Name     string          `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Type     types.PromoType `gorm:"column:type;type:varchar(32);not null" json:"type"`

	Payload datatypes.JSONType[*PromotionPayload] `gorm:"column:payload;type:jsonb;default:'{}'" json:"payload"`

	// Scheduling. StartsAt must precede EndsAt. The daily window is in
	// minutes from local midnight and may wrap past midnight; ActiveDays
	// uses ISO weekday numbering, Monday=0.
	StartsAt         time.Time                `gorm:"column:starts_at;not null" json:"starts_at"`
	EndsAt           time.Time                `gorm:"column:ends_at;not null" json:"ends_at"`
	DailyStartMinute *int                     `gorm:"column:daily_start_minute;default:null" json:"daily_start_minute"`
	DailyEndMinute   *int                     `gorm:"column:daily_end_minute;default:null" json:"daily_end_minute"`
	ActiveDays       datatypes.JSONSlice[int] `gorm:"column:active_days;type:jsonb" json:"active_days"`

	// Scope. Empty restrictions apply to everything.
	Channel         types.Channel               `gorm:"column:channel;type:varchar(32);not null;default:'all'" json:"channel"`
	CategoryIDs     datatypes.JSONSlice[string] `gorm:"column:category_ids;type:jsonb" json:"category_ids"`
	TierRestriction datatypes.JSONSlice[string] `gorm:"column:tier_restriction;type:jsonb" json:"tier_restriction"`

	// Constraints.
	MinItems         int    `gorm:"column:min_items;type:int;not null;default:0" json:"min_items"`
	MinValueCents    int64  `gorm:"column:min_value_cents;type:bigint;not null;default:0" json:"min_value_cents"`
	Stackable        bool   `gorm:"column:stackable;not null;default:false" json:"stackable"`
	Priority         int    `gorm:"column:priority;type:int;not null;default:0" json:"priority"`
	MaxUses          *int64 `gorm:"column:max_uses;type:bigint;default:null" json:"max_uses"`
	MaxUsesPerMember *int64 `gorm:"column:max_uses_per_member;type:bigint;default:null" json:"max_uses_per_member"`
	// CurrentUses only ever increases, and only inside the transaction
	// that writes the ledger entry it funded.
	CurrentUses int64 `gorm:"column:current_uses;type:bigint;not null;default:0" json:"current_uses"`

	Active bool `gorm:"column:active;not null;default:true;index:idx_promo_tenant_active,priority:2" json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Promotion) TableName() string {
	return "promotion"
}

func (p *Promotion) BonusPct() float64 {
	if pl := p.Payload.Data(); pl != nil && pl.BonusPct != nil {
		return *pl.BonusPct
	}
	return 0
}

func (p *Promotion) BonusFlatCents() int64 {
	if pl := p.Payload.Data(); pl != nil && pl.BonusFlatCents != nil {
		return *pl.BonusFlatCents
	}
	return 0
}

func (p *Promotion) Multiplier() float64 {
	if pl := p.Payload.Data(); pl != nil && pl.Multiplier != nil {
		return *pl.Multiplier
	}
	return 0
}
