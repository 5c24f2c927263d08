package types

// CategoryRate is the authoritative payout rate for a trade-in category.
// Reference data; loaded from config and never mutated at runtime.
type CategoryRate struct {
	ID            string  `json:"id" mapstructure:"id"`
	Name          string  `json:"name" mapstructure:"name"`
	BasePayoutPct float64 `json:"base_payout_pct" mapstructure:"base_payout_pct"`
}

// ConditionInfo maps a condition code to its payout modifier.
type ConditionInfo struct {
	Code     string  `json:"code" mapstructure:"code"`
	Modifier float64 `json:"modifier" mapstructure:"modifier"`
}

// BulkBonusTier grants a one-time bonus percentage once a trade-in batch
// reaches MinItems total items. The highest satisfied tier wins.
type BulkBonusTier struct {
	MinItems int     `json:"min_items" mapstructure:"min_items"`
	BonusPct float64 `json:"bonus_pct" mapstructure:"bonus_pct"`
}
