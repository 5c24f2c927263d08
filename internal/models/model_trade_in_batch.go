package models

import (
	"time"

	"github.com/tradeup/creditengine/pkg/types"
)

// TradeInBatch is a submitted set of items exchanged for store credit.
// Item mutations are only allowed while the batch is draft or
// pending_review; completed is terminal and credits exactly once.
type TradeInBatch struct {
	ID       string            `gorm:"column:id;type:uuid;primary_key" json:"id"`
	TenantID string            `gorm:"column:tenant_id;type:varchar(64);not null;index:idx_batch_tenant_status,priority:1" json:"tenant_id"`
	MemberID string            `gorm:"column:member_id;type:uuid;not null;index" json:"member_id"`
	Category string            `gorm:"column:category;type:varchar(64);not null" json:"category"`
	Status   types.BatchStatus `gorm:"column:status;type:varchar(32);not null;index:idx_batch_tenant_status,priority:2" json:"status"`
	Notes    string            `gorm:"column:notes;type:text" json:"notes"`

	// Completion fields, set once when the batch transitions to completed.
	CompletedAt         *time.Time `gorm:"column:completed_at;default:null" json:"completed_at"`
	CreditedAmountCents int64      `gorm:"column:credited_amount_cents;type:bigint;not null;default:0" json:"credited_amount_cents"`
	BonusAmountCents    int64      `gorm:"column:bonus_amount_cents;type:bigint;not null;default:0" json:"bonus_amount_cents"`

	Items []TradeInItem `gorm:"foreignKey:BatchID" json:"items"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (TradeInBatch) TableName() string {
	return "trade_in_batch"
}

// Mutable reports whether items may still be added or replaced.
func (b *TradeInBatch) Mutable() bool {
	return b != nil && (b.Status == types.BatchStatusDraft || b.Status == types.BatchStatusPendingReview)
}

type TradeInItem struct {
	ID               string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	BatchID          string `gorm:"column:batch_id;type:uuid;not null;index:idx_item_batch_pos,priority:1" json:"batch_id"`
	Position         int    `gorm:"column:position;type:int;not null;index:idx_item_batch_pos,priority:2" json:"position"`
	Category         string `gorm:"column:category;type:varchar(64);not null" json:"category"`
	MarketValueCents int64  `gorm:"column:market_value_cents;type:bigint;not null" json:"market_value_cents"`
	Condition        string `gorm:"column:condition;type:varchar(32);not null" json:"condition"`
	Quantity         int    `gorm:"column:quantity;type:int;not null" json:"quantity"`

	CreatedAt time.Time `json:"created_at"`
}

func (TradeInItem) TableName() string {
	return "trade_in_item"
}
