package models

import "time"

// TierConfiguration holds the bonus percentages and pricing for a
// membership tier. At most one active configuration may exist per
// (tenant, tier_name); the tier service enforces this on write.
type TierConfiguration struct {
	ID                  string  `gorm:"column:id;type:uuid;primary_key" json:"id"`
	TenantID            string  `gorm:"column:tenant_id;type:varchar(64);not null;index:idx_tier_tenant_name,priority:1" json:"tenant_id"`
	TierName            string  `gorm:"column:tier_name;type:varchar(64);not null;index:idx_tier_tenant_name,priority:2" json:"tier_name"`
	MonthlyPriceCents   int64   `gorm:"column:monthly_price_cents;type:bigint;not null" json:"monthly_price_cents"`
	TradeInBonusPct     float64 `gorm:"column:trade_in_bonus_pct;type:double precision;not null" json:"trade_in_bonus_pct"`
	PurchaseCashbackPct float64 `gorm:"column:purchase_cashback_pct;type:double precision;not null" json:"purchase_cashback_pct"`
	StoreDiscountPct    float64 `gorm:"column:store_discount_pct;type:double precision;not null" json:"store_discount_pct"`
	// MonthlyCreditCents is the periodic credit distributed to members of
	// this tier by the monthly distribution workflow. Zero disables it.
	MonthlyCreditCents int64 `gorm:"column:monthly_credit_cents;type:bigint;not null;default:0" json:"monthly_credit_cents"`
	// DisplayOrder defines the upgrade/downgrade ranking of tiers.
	DisplayOrder int  `gorm:"column:display_order;type:int;not null" json:"display_order"`
	Active       bool `gorm:"column:active;not null;default:true" json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (TierConfiguration) TableName() string {
	return "tier_configuration"
}
