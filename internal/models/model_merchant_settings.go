package models

import (
	"time"

	"gorm.io/datatypes"
)

// MerchantSettings holds per-tenant automation flags. Auto-approve of
// distributions is gated: it can only be enabled after the merchant has
// manually approved their first distribution.
type MerchantSettings struct {
	TenantID                   string                      `gorm:"column:tenant_id;type:varchar(64);primary_key" json:"tenant_id"`
	AutoApproveEnabled         bool                        `gorm:"column:auto_approve_enabled;not null;default:false" json:"auto_approve_enabled"`
	FirstDistributionCompleted bool                        `gorm:"column:first_distribution_completed;not null;default:false" json:"first_distribution_completed"`
	NotificationEmails         datatypes.JSONSlice[string] `gorm:"column:notification_emails;type:jsonb" json:"notification_emails"`

	UpdatedAt time.Time `json:"updated_at"`
}

func (MerchantSettings) TableName() string {
	return "merchant_settings"
}
