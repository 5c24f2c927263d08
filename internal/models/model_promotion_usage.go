package models

import "time"

// PromotionUsage records one application of a promotion to a member's
// transaction. The unique index makes replays of the same source no-ops.
type PromotionUsage struct {
	ID          string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	PromotionID string `gorm:"column:promotion_id;type:uuid;not null;uniqueIndex:unique_promo_member_source,priority:1;index:idx_usage_promo_member,priority:1" json:"promotion_id"`
	MemberID    string `gorm:"column:member_id;type:uuid;not null;uniqueIndex:unique_promo_member_source,priority:2;index:idx_usage_promo_member,priority:2" json:"member_id"`
	SourceID    string `gorm:"column:source_id;type:varchar(128);not null;uniqueIndex:unique_promo_member_source,priority:3" json:"source_id"`

	CreatedAt time.Time `json:"created_at"`
}

func (PromotionUsage) TableName() string {
	return "promotion_usage"
}
