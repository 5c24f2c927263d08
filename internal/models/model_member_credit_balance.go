package models

import "time"

// MemberCreditBalance is the materialized running balance for a member.
// It is updated in the same transaction as every ledger entry and must
// always equal the sum of that member's ledger amounts. Locking this
// row is the per-member serialization point for balance mutations.
type MemberCreditBalance struct {
	MemberID         string `gorm:"column:member_id;type:uuid;primary_key" json:"member_id"`
	TenantID         string `gorm:"column:tenant_id;type:varchar(64);not null" json:"tenant_id"`
	TotalEarnedCents int64  `gorm:"column:total_earned_cents;type:bigint;not null;default:0" json:"total_earned_cents"`
	TotalSpentCents  int64  `gorm:"column:total_spent_cents;type:bigint;not null;default:0" json:"total_spent_cents"`
	BalanceCents     int64  `gorm:"column:balance_cents;type:bigint;not null;default:0" json:"balance_cents"`

	UpdatedAt time.Time `json:"updated_at"`
}

func (MemberCreditBalance) TableName() string {
	return "member_credit_balance"
}
