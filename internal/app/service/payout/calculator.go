package payout

import (
	"fmt"
	"sort"

	"github.com/tradeup/creditengine/internal/models"
	"github.com/tradeup/creditengine/pkg/config"
	"github.com/tradeup/creditengine/pkg/money"
)

// ValidationError rejects bad item data before any write happens.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Msg
}

// Item is one trade-in line as submitted by the trade-in workflow.
type Item struct {
	Category         string `json:"category"`
	MarketValueCents int64  `json:"market_value_cents"`
	Condition        string `json:"condition"`
	Quantity         int    `json:"quantity"`
}

type ItemResult struct {
	Category        string `json:"category"`
	Condition       string `json:"condition"`
	Quantity        int    `json:"quantity"`
	UnitPayoutCents int64  `json:"unit_payout_cents"`
	ItemTotalCents  int64  `json:"item_total_cents"`
}

type Result struct {
	Items          []ItemResult `json:"items"`
	SubtotalCents  int64        `json:"subtotal_cents"`
	TierBonusCents int64        `json:"tier_bonus_cents"`
	TierBonusPct   float64      `json:"tier_bonus_pct"`
	BulkBonusCents int64        `json:"bulk_bonus_cents"`
	BulkBonusPct   float64      `json:"bulk_bonus_pct"`
	TotalCents     int64        `json:"total_cents"`
}

// Calculator derives a trade-in payout from reference data in config.
// It is pure: safe to run concurrently across unrelated transactions.
type Calculator struct {
	cfg *config.Config
}

func NewCalculator(cfg *config.Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// Calculate computes base payout, tier bonus and bulk bonus for a set
// of items under the given tier configuration.
//
//	unit_payout = market_value * category.base_payout_pct * condition.modifier
//	item_total  = unit_payout * quantity
//	tier_bonus  = subtotal * tier.trade_in_bonus_pct
//
// The bulk bonus is applied once, keyed by the highest threshold that
// total item count satisfies.
func (c *Calculator) Calculate(tier *models.TierConfiguration, items []Item) (*Result, error) {
	if len(items) == 0 {
		return nil, &ValidationError{Msg: "no items"}
	}

	res := &Result{Items: make([]ItemResult, 0, len(items))}
	itemCount := 0

	for i, item := range items {
		if item.MarketValueCents < 0 {
			return nil, &ValidationError{Msg: fmt.Sprintf("item %d: negative market value", i)}
		}
		if item.Quantity < 1 {
			return nil, &ValidationError{Msg: fmt.Sprintf("item %d: quantity must be at least 1", i)}
		}
		cat := c.cfg.GetCategory(item.Category)
		if cat == nil {
			return nil, &ValidationError{Msg: fmt.Sprintf("item %d: unknown category %q", i, item.Category)}
		}
		cond := c.cfg.GetCondition(item.Condition)
		if cond == nil {
			return nil, &ValidationError{Msg: fmt.Sprintf("item %d: unknown condition %q", i, item.Condition)}
		}

		unit := money.Mul(item.MarketValueCents, cat.BasePayoutPct*cond.Modifier)
		itemTotal := unit * int64(item.Quantity)
		itemCount += item.Quantity

		res.Items = append(res.Items, ItemResult{
			Category:        item.Category,
			Condition:       item.Condition,
			Quantity:        item.Quantity,
			UnitPayoutCents: unit,
			ItemTotalCents:  itemTotal,
		})
		res.SubtotalCents += itemTotal
	}

	if tier != nil && tier.TradeInBonusPct > 0 {
		res.TierBonusPct = tier.TradeInBonusPct
		res.TierBonusCents = money.Mul(res.SubtotalCents, tier.TradeInBonusPct)
	}

	if pct := c.bulkBonusPct(itemCount); pct > 0 {
		res.BulkBonusPct = pct
		res.BulkBonusCents = money.Mul(res.SubtotalCents, pct)
	}

	res.TotalCents = res.SubtotalCents + res.TierBonusCents + res.BulkBonusCents
	return res, nil
}

// bulkBonusPct returns the bonus for the highest threshold satisfied by
// itemCount. Highest threshold <= count wins.
func (c *Calculator) bulkBonusPct(itemCount int) float64 {
	sorted := make([]int, 0, len(c.cfg.BulkBonusTiers))
	byMin := make(map[int]float64, len(c.cfg.BulkBonusTiers))
	for _, t := range c.cfg.BulkBonusTiers {
		sorted = append(sorted, t.MinItems)
		// On duplicate thresholds the larger bonus wins.
		if pct, ok := byMin[t.MinItems]; !ok || t.BonusPct > pct {
			byMin[t.MinItems] = t.BonusPct
		}
	}
	sort.Ints(sorted)

	best := 0.0
	for _, min := range sorted {
		if itemCount >= min {
			best = byMin[min]
		}
	}
	return best
}
