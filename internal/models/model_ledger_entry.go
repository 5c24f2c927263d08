package models

import (
	"time"

	"github.com/tradeup/creditengine/pkg/types"
)

// StoreCreditLedgerEntry is one immutable, balance-affecting record.
// Entries are append-only: corrections are new entries, never updates.
// The only mutable columns are the sink reconciliation flags.
type StoreCreditLedgerEntry struct {
	ID       string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	TenantID string `gorm:"column:tenant_id;type:varchar(64);not null" json:"tenant_id"`
	MemberID string `gorm:"column:member_id;type:uuid;not null;index:idx_ledger_member_created,priority:1" json:"member_id"`

	// AmountCents is signed: credits positive, debits negative.
	AmountCents       int64 `gorm:"column:amount_cents;type:bigint;not null" json:"amount_cents"`
	BalanceAfterCents int64 `gorm:"column:balance_after_cents;type:bigint;not null" json:"balance_after_cents"`

	EventType   types.CreditEventType `gorm:"column:event_type;type:varchar(32);not null" json:"event_type"`
	SourceType  string                `gorm:"column:source_type;type:varchar(64);not null" json:"source_type"`
	SourceID    string                `gorm:"column:source_id;type:varchar(128);not null" json:"source_id"`
	PromotionID *string               `gorm:"column:promotion_id;type:uuid;default:null" json:"promotion_id"`

	// IdempotencyKey gates double-crediting: a replay with the same key
	// returns this entry instead of writing a new one.
	IdempotencyKey string `gorm:"column:idempotency_key;type:varchar(191);not null;uniqueIndex" json:"idempotency_key"`

	// Sink reconciliation. Internal balance truth never depends on the
	// external system's availability; unsynced entries are retried later.
	SyncedToShopify bool    `gorm:"column:synced_to_shopify;not null;default:false" json:"synced_to_shopify"`
	ShopifyCreditID *string `gorm:"column:shopify_credit_id;type:varchar(128);default:null" json:"shopify_credit_id"`

	CreatedAt time.Time `gorm:"index:idx_ledger_member_created,priority:2,sort:desc" json:"created_at"`
}

func (StoreCreditLedgerEntry) TableName() string {
	return "store_credit_ledger"
}
