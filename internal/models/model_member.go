package models

import (
	"time"

	"github.com/tradeup/creditengine/pkg/types"
)

// Member is an enrolled loyalty program customer. Members are never
// physically deleted; Status tracks the soft lifecycle.
type Member struct {
	ID                string                 `gorm:"column:id;type:uuid;primary_key" json:"id"`
	TenantID          string                 `gorm:"column:tenant_id;type:varchar(64);not null;index:idx_member_tenant,priority:1" json:"tenant_id"`
	ShopifyCustomerID *string                `gorm:"column:shopify_customer_id;type:varchar(64);default:null" json:"shopify_customer_id"`
	MemberNumber      string                 `gorm:"column:member_number;type:varchar(32);not null" json:"member_number"`
	Name              string                 `gorm:"column:name;type:varchar(255)" json:"name"`
	Email             string                 `gorm:"column:email;type:varchar(255);index:idx_member_tenant,priority:2" json:"email"`
	Tier              string                 `gorm:"column:tier;type:varchar(64);not null" json:"tier"`
	Status            types.MemberStatus     `gorm:"column:status;type:varchar(32);not null" json:"status"`
	EnrollmentSource  types.EnrollmentSource `gorm:"column:enrollment_source;type:varchar(32);not null" json:"enrollment_source"`

	// Lifetime stats, updated in the same transaction as the events
	// that change them.
	TotalBonusEarnedCents int64 `gorm:"column:total_bonus_earned_cents;type:bigint;not null;default:0" json:"total_bonus_earned_cents"`
	TotalTradeIns         int64 `gorm:"column:total_trade_ins;type:bigint;not null;default:0" json:"total_trade_ins"`
	TotalTradeValueCents  int64 `gorm:"column:total_trade_value_cents;type:bigint;not null;default:0" json:"total_trade_value_cents"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Member) TableName() string {
	return "member"
}

func (m *Member) IsActive() bool {
	return m != nil && m.Status == types.MemberStatusActive
}
