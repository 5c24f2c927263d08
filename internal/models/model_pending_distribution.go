package models

import (
	"time"

	"github.com/tradeup/creditengine/pkg/types"

	"gorm.io/datatypes"
)

// DistributionMember is one member's line in a frozen preview.
type DistributionMember struct {
	MemberID    string `json:"member_id"`
	Tier        string `json:"tier"`
	AmountCents int64  `json:"amount_cents"`
}

type TierBreakdown struct {
	Tier        string `json:"tier"`
	Count       int    `json:"count"`
	AmountCents int64  `json:"amount_cents"`
}

// DistributionPreview is the snapshot computed at creation time.
// Execution replays exactly this member list, never a fresh query.
type DistributionPreview struct {
	TotalMembers     int                  `json:"total_members"`
	TotalAmountCents int64                `json:"total_amount_cents"`
	Skipped          int                  `json:"skipped"`
	ByTier           []TierBreakdown      `json:"by_tier"`
	Members          []DistributionMember `json:"members"`
	CalculatedAt     time.Time            `json:"calculated_at"`
}

// ExecutionResult is written once after a successful execution and is
// immutable thereafter.
type ExecutionResult struct {
	Credited         int       `json:"credited"`
	Skipped          int       `json:"skipped"`
	Errors           int       `json:"errors"`
	TotalAmountCents int64     `json:"total_amount_cents"`
	ExecutedAt       time.Time `json:"executed_at"`
}

// PendingDistribution is a previewed periodic bulk credit event that
// requires merchant approval before executing. A pending item past
// ExpiresAt transitions to expired on any read and can never execute.
type PendingDistribution struct {
	ID               string                   `gorm:"column:id;type:uuid;primary_key" json:"id"`
	TenantID         string                   `gorm:"column:tenant_id;type:varchar(64);not null;uniqueIndex:unique_tenant_reference,priority:1" json:"tenant_id"`
	DistributionType string                   `gorm:"column:distribution_type;type:varchar(32);not null" json:"distribution_type"`
	ReferenceKey     string                   `gorm:"column:reference_key;type:varchar(64);not null;uniqueIndex:unique_tenant_reference,priority:2" json:"reference_key"`
	Status           types.DistributionStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`

	PreviewData datatypes.JSONType[*DistributionPreview] `gorm:"column:preview_data;type:jsonb;default:'{}'" json:"preview_data"`

	ExpiresAt time.Time `gorm:"column:expires_at;not null" json:"expires_at"`

	ApprovedAt      *time.Time `gorm:"column:approved_at;default:null" json:"approved_at"`
	ApprovedBy      *string    `gorm:"column:approved_by;type:varchar(255);default:null" json:"approved_by"`
	RejectedAt      *time.Time `gorm:"column:rejected_at;default:null" json:"rejected_at"`
	RejectedBy      *string    `gorm:"column:rejected_by;type:varchar(255);default:null" json:"rejected_by"`
	RejectionReason *string    `gorm:"column:rejection_reason;type:text;default:null" json:"rejection_reason"`

	ExecutedAt      *time.Time                           `gorm:"column:executed_at;default:null" json:"executed_at"`
	ExecutionResult datatypes.JSONType[*ExecutionResult] `gorm:"column:execution_result;type:jsonb;default:'null'" json:"execution_result"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (PendingDistribution) TableName() string {
	return "pending_distribution"
}

// ExpiredBy reports whether the item should be treated as expired at now.
func (p *PendingDistribution) ExpiredBy(now time.Time) bool {
	return p != nil && p.Status == types.DistributionStatusPending && now.After(p.ExpiresAt)
}

// Executed reports whether execution has completed. Executed is a
// terminal sub-state of approved, marked by a non-nil ExecutionResult.
func (p *PendingDistribution) Executed() bool {
	return p != nil && p.Status == types.DistributionStatusApproved && p.ExecutionResult.Data() != nil
}
