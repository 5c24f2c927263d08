package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/tradeup/creditengine/internal/app/service/sink"
	"github.com/tradeup/creditengine/internal/models"
	"github.com/tradeup/creditengine/pkg/logctx"
	"github.com/tradeup/creditengine/pkg/types"
)

// bonusEventTypes are the credit classifications surfaced by the bonus
// reporting endpoints.
var bonusEventTypes = []types.CreditEventType{
	types.CreditEventTradeIn,
	types.CreditEventPurchaseCashback,
	types.CreditEventPromoBonus,
	types.CreditEventBulkCredit,
}

type ListBonusesRequest struct {
	TenantID  string
	MemberID  string
	EventType types.CreditEventType
	Since     *time.Time
	Limit     int
	Offset    int
}

func (s *Service) ListBonuses(ctx context.Context, req *ListBonusesRequest) ([]*models.StoreCreditLedgerEntry, int64, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	q := s.db.WithContext(ctx).Model(&models.StoreCreditLedgerEntry{}).
		Where("tenant_id = ? AND amount_cents > 0", req.TenantID)
	if req.EventType != "" {
		q = q.Where("event_type = ?", req.EventType)
	} else {
		q = q.Where("event_type IN ?", bonusEventTypes)
	}
	if req.MemberID != "" {
		q = q.Where("member_id = ?", req.MemberID)
	}
	if req.Since != nil {
		q = q.Where("created_at >= ?", *req.Since)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []*models.StoreCreditLedgerEntry
	if err := q.Order("created_at desc, id desc").Limit(req.Limit).Offset(req.Offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

type BonusStats struct {
	TotalAwardedCents int64            `json:"total_awarded_cents"`
	TotalEntries      int64            `json:"total_entries"`
	UnsyncedEntries   int64            `json:"unsynced_entries"`
	ByEventType       map[string]int64 `json:"by_event_type"`
}

func (s *Service) GetBonusStats(ctx context.Context, tenantID string) (*BonusStats, error) {
	stats := &BonusStats{ByEventType: map[string]int64{}}

	type row struct {
		EventType string
		N         int64
		Sum       int64
	}
	var rows []row
	if err := s.db.WithContext(ctx).Model(&models.StoreCreditLedgerEntry{}).
		Select("event_type, count(*) as n, sum(amount_cents) as sum").
		Where("tenant_id = ? AND amount_cents > 0 AND event_type IN ?", tenantID, bonusEventTypes).
		Group("event_type").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate bonus stats: %w", err)
	}
	for _, r := range rows {
		stats.TotalAwardedCents += r.Sum
		stats.TotalEntries += r.N
		stats.ByEventType[r.EventType] = r.Sum
	}

	if err := s.db.WithContext(ctx).Model(&models.StoreCreditLedgerEntry{}).
		Where("tenant_id = ? AND amount_cents > 0 AND synced_to_shopify = ?", tenantID, false).
		Count(&stats.UnsyncedEntries).Error; err != nil {
		return nil, err
	}
	return stats, nil
}

type SyncResult struct {
	Attempted int `json:"attempted"`
	Synced    int `json:"synced"`
	Failed    int `json:"failed"`
}

// SyncUnsynced retries the sink push for credit entries that were
// written while the external system was unavailable. Oldest first, a
// bounded slice per call.
func (s *Service) SyncUnsynced(ctx context.Context, tenantID string, limit int) (*SyncResult, error) {
	if limit <= 0 {
		limit = 50
	}

	var entries []*models.StoreCreditLedgerEntry
	if err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND amount_cents > 0 AND synced_to_shopify = ?", tenantID, false).
		Order("created_at asc, id asc").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to load unsynced entries: %w", err)
	}

	res := &SyncResult{Attempted: len(entries)}
	for _, entry := range entries {
		var m models.Member
		if err := s.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, entry.MemberID).First(&m).Error; err != nil {
			res.Failed++
			continue
		}
		customerID := ""
		if m.ShopifyCustomerID != nil {
			customerID = *m.ShopifyCustomerID
		}

		pushed, err := s.sink.Push(ctx, &sink.PushRequest{
			TenantID:          entry.TenantID,
			MemberID:          entry.MemberID,
			ShopifyCustomerID: customerID,
			AmountCents:       entry.AmountCents,
			Currency:          "USD",
			IdempotencyKey:    entry.IdempotencyKey,
		})
		if err != nil {
			sinkFailuresTotal.Inc()
			res.Failed++
			continue
		}
		if _, err := s.SyncEntry(ctx, tenantID, entry.ID, pushed.CreditID); err != nil {
			res.Failed++
			continue
		}
		res.Synced++
	}

	logctx.FromCtx(ctx, s.log).Infow("bonus sync pass finished",
		"attempted", res.Attempted, "synced", res.Synced, "failed", res.Failed)
	return res, nil
}
