package types

type MemberStatus string

const (
	MemberStatusActive    MemberStatus = "active"
	MemberStatusPending   MemberStatus = "pending"
	MemberStatusPaused    MemberStatus = "paused"
	MemberStatusCancelled MemberStatus = "cancelled"
)

type EnrollmentSource string

const (
	EnrollmentSourceSelfSignup EnrollmentSource = "self_signup"
	EnrollmentSourceStaff      EnrollmentSource = "staff"
	EnrollmentSourceWebhook    EnrollmentSource = "webhook"
)

type BatchStatus string

const (
	BatchStatusDraft         BatchStatus = "draft"
	BatchStatusPendingReview BatchStatus = "pending_review"
	BatchStatusApproved      BatchStatus = "approved"
	BatchStatusCompleted     BatchStatus = "completed"
	BatchStatusRejected      BatchStatus = "rejected"
	BatchStatusCancelled     BatchStatus = "cancelled"
)

// CreditEventType classifies ledger entries.
type CreditEventType string

const (
	CreditEventTradeIn          CreditEventType = "trade_in"
	CreditEventPurchaseCashback CreditEventType = "purchase_cashback"
	CreditEventPromoBonus       CreditEventType = "promo_bonus"
	CreditEventBulkCredit       CreditEventType = "bulk_credit"
	CreditEventManualAdd        CreditEventType = "manual_add"
	CreditEventManualDeduct     CreditEventType = "manual_deduct"
	CreditEventRedemption       CreditEventType = "redemption"
)

type PromoType string

const (
	PromoTypeTradeInBonus     PromoType = "trade_in_bonus"
	PromoTypePurchaseCashback PromoType = "purchase_cashback"
	PromoTypeFlatBonus        PromoType = "flat_bonus"
	PromoTypeMultiplier       PromoType = "multiplier"
)

type Channel string

const (
	ChannelAll     Channel = "all"
	ChannelOnline  Channel = "online"
	ChannelInStore Channel = "in_store"
)

type DistributionStatus string

const (
	DistributionStatusPending  DistributionStatus = "pending"
	DistributionStatusApproved DistributionStatus = "approved"
	DistributionStatusRejected DistributionStatus = "rejected"
	DistributionStatusExpired  DistributionStatus = "expired"
)

type BulkOperationStatus string

const (
	BulkOperationStatusPending    BulkOperationStatus = "pending"
	BulkOperationStatusProcessing BulkOperationStatus = "processing"
	BulkOperationStatusCompleted  BulkOperationStatus = "completed"
	BulkOperationStatusFailed     BulkOperationStatus = "failed"
)
