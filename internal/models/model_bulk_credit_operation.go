package models

import (
	"time"

	"github.com/tradeup/creditengine/pkg/types"
)

// BulkCreditOperation credits a fixed amount to a filtered member set.
// MemberCount and TotalAmountCents are frozen at preview time; execute
// re-computes the member set and fails the whole operation if it
// drifted beyond tolerance instead of partially applying.
type BulkCreditOperation struct {
	ID                   string                    `gorm:"column:id;type:uuid;primary_key" json:"id"`
	TenantID             string                    `gorm:"column:tenant_id;type:varchar(64);not null;index" json:"tenant_id"`
	AmountPerMemberCents int64                     `gorm:"column:amount_per_member_cents;type:bigint;not null" json:"amount_per_member_cents"`
	TierFilter           *string                   `gorm:"column:tier_filter;type:varchar(64);default:null" json:"tier_filter"`
	Status               types.BulkOperationStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`

	MemberCount      int64 `gorm:"column:member_count;type:bigint;not null" json:"member_count"`
	TotalAmountCents int64 `gorm:"column:total_amount_cents;type:bigint;not null" json:"total_amount_cents"`
	ProcessedCount   int64 `gorm:"column:processed_count;type:bigint;not null;default:0" json:"processed_count"`

	CreatedBy  string     `gorm:"column:created_by;type:varchar(255)" json:"created_by"`
	Error      *string    `gorm:"column:error;type:text;default:null" json:"error"`
	ExecutedAt *time.Time `gorm:"column:executed_at;default:null" json:"executed_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (BulkCreditOperation) TableName() string {
	return "bulk_credit_operation"
}
