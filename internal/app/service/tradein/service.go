package tradein

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tradeup/creditengine/internal/app/service/ledger"
	"github.com/tradeup/creditengine/internal/app/service/payout"
	"github.com/tradeup/creditengine/internal/app/service/promotion"
	"github.com/tradeup/creditengine/internal/models"
	"github.com/tradeup/creditengine/pkg/logctx"
	"github.com/tradeup/creditengine/pkg/tool"
	"github.com/tradeup/creditengine/pkg/types"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrBatchNotFound     = errors.New("trade-in batch not found")
	ErrBatchImmutable    = errors.New("trade-in batch is not editable in its current status")
	ErrInvalidTransition = errors.New("invalid batch status transition")
	ErrMemberNotActive   = errors.New("member is not active")
)

// allowed is the batch state machine. completed, rejected and
// cancelled are terminal.
var allowed = map[types.BatchStatus][]types.BatchStatus{
	types.BatchStatusDraft:         {types.BatchStatusPendingReview, types.BatchStatusCancelled},
	types.BatchStatusPendingReview: {types.BatchStatusApproved, types.BatchStatusRejected, types.BatchStatusCancelled},
	types.BatchStatusApproved:      {types.BatchStatusCompleted, types.BatchStatusCancelled},
}

type Service struct {
	db     *gorm.DB
	log    *zap.SugaredLogger
	calc   *payout.Calculator
	promos *promotion.Service
	ledger *ledger.Service
}

func NewService(db *gorm.DB, log *zap.SugaredLogger, calc *payout.Calculator, promos *promotion.Service, l *ledger.Service) *Service {
	return &Service{db: db, log: log, calc: calc, promos: promos, ledger: l}
}

type CreateRequest struct {
	TenantID string
	MemberID string
	Category string
	Notes    string
	Items    []payout.Item
}

func (s *Service) Create(ctx context.Context, req *CreateRequest) (*models.TradeInBatch, error) {
	member, err := s.loadMember(ctx, req.TenantID, req.MemberID)
	if err != nil {
		return nil, err
	}
	if !member.IsActive() {
		return nil, fmt.Errorf("%w: %s", ErrMemberNotActive, member.ID)
	}

	batch := &models.TradeInBatch{
		ID:       tool.GenerateUUIDV7(),
		TenantID: req.TenantID,
		MemberID: req.MemberID,
		Category: req.Category,
		Status:   types.BatchStatusDraft,
		Notes:    req.Notes,
		Items:    buildItems("", req.Items),
	}
	for i := range batch.Items {
		batch.Items[i].BatchID = batch.ID
	}
	if err := s.db.WithContext(ctx).Create(batch).Error; err != nil {
		return nil, fmt.Errorf("failed to create trade-in batch: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("trade-in batch created",
		"batch_id", batch.ID, "member_id", batch.MemberID, "items", len(batch.Items))
	return batch, nil
}

func buildItems(batchID string, items []payout.Item) []models.TradeInItem {
	return lo.Map(items, func(it payout.Item, i int) models.TradeInItem {
		return models.TradeInItem{
			ID:               tool.GenerateUUIDV7(),
			BatchID:          batchID,
			Position:         i,
			Category:         it.Category,
			MarketValueCents: it.MarketValueCents,
			Condition:        it.Condition,
			Quantity:         it.Quantity,
		}
	})
}

// ReplaceItems swaps the batch's item set. Only draft and
// pending_review batches are editable.
func (s *Service) ReplaceItems(ctx context.Context, tenantID, batchID string, items []payout.Item) (*models.TradeInBatch, error) {
	batch, err := s.Get(ctx, tenantID, batchID)
	if err != nil {
		return nil, err
	}
	if !batch.Mutable() {
		return nil, fmt.Errorf("%w: status %s", ErrBatchImmutable, batch.Status)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("batch_id = ?", batch.ID).Delete(&models.TradeInItem{}).Error; err != nil {
			return fmt.Errorf("failed to clear batch items: %w", err)
		}
		rows := buildItems(batch.ID, items)
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to write batch items: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, tenantID, batchID)
}

func (s *Service) Get(ctx context.Context, tenantID, batchID string) (*models.TradeInBatch, error) {
	var batch models.TradeInBatch
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Where("tenant_id = ? AND id = ?", tenantID, batchID).
		First(&batch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBatchNotFound
	}
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

type ListRequest struct {
	TenantID string
	MemberID string
	Status   types.BatchStatus
	Limit    int
	Offset   int
}

func (s *Service) List(ctx context.Context, req *ListRequest) ([]*models.TradeInBatch, int64, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	q := s.db.WithContext(ctx).Model(&models.TradeInBatch{}).Where("tenant_id = ?", req.TenantID)
	if req.MemberID != "" {
		q = q.Where("member_id = ?", req.MemberID)
	}
	if req.Status != "" {
		q = q.Where("status = ?", req.Status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []*models.TradeInBatch
	if err := q.Preload("Items").Order("created_at desc, id desc").
		Limit(req.Limit).Offset(req.Offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// UpdateStatus drives the review transitions. Completion is not a plain
// status write; it goes through Complete so crediting happens exactly
// once.
func (s *Service) UpdateStatus(ctx context.Context, tenantID, batchID string, next types.BatchStatus) (*models.TradeInBatch, error) {
	if next == types.BatchStatusCompleted {
		return nil, fmt.Errorf("%w: completion must go through the complete endpoint", ErrInvalidTransition)
	}
	batch, err := s.Get(ctx, tenantID, batchID)
	if err != nil {
		return nil, err
	}
	if !lo.Contains(allowed[batch.Status], next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, batch.Status, next)
	}
	if err := s.db.WithContext(ctx).Model(batch).Update("status", next).Error; err != nil {
		return nil, fmt.Errorf("failed to update batch status: %w", err)
	}
	batch.Status = next
	return batch, nil
}

// Preview computes the payout a batch would credit today, without
// writing anything. Promotion matches reflect member usage at call time.
func (s *Service) Preview(ctx context.Context, tenantID, batchID string, channel types.Channel) (*CompleteResult, error) {
	batch, err := s.Get(ctx, tenantID, batchID)
	if err != nil {
		return nil, err
	}
	member, err := s.loadMember(ctx, tenantID, batch.MemberID)
	if err != nil {
		return nil, err
	}
	tier, err := s.loadTier(ctx, tenantID, member.Tier)
	if err != nil {
		return nil, err
	}

	calc, err := s.calc.Calculate(tier, itemsOf(batch))
	if err != nil {
		return nil, err
	}
	apps, err := s.matchPromotions(ctx, nil, batch, member, calc, channel, time.Now())
	if err != nil {
		return nil, err
	}

	return newCompleteResult(batch, tier, calc, apps, promotion.TotalBonus(apps)), nil
}

// Bonus describes the promotional component of a completed trade-in.
type Bonus struct {
	Eligible         bool     `json:"eligible"`
	BonusAmountCents int64    `json:"bonus_amount_cents"`
	PromotionIDs     []string `json:"promotion_ids,omitempty"`
	TierName         string   `json:"tier_name"`
}

type CompleteResult struct {
	BatchID          string         `json:"batch_id"`
	TradeValueCents  int64          `json:"trade_value_cents"`
	Payout           *payout.Result `json:"payout,omitempty"`
	Bonus            Bonus          `json:"bonus"`
	TotalCents       int64          `json:"total_cents"`
	AlreadyCompleted bool           `json:"already_completed"`
}

func newCompleteResult(batch *models.TradeInBatch, tier *models.TierConfiguration, calc *payout.Result, apps []promotion.Application, bonus int64) *CompleteResult {
	return &CompleteResult{
		BatchID:         batch.ID,
		TradeValueCents: calc.TotalCents,
		Payout:          calc,
		Bonus: Bonus{
			Eligible:         bonus > 0,
			BonusAmountCents: bonus,
			PromotionIDs: lo.Map(apps, func(a promotion.Application, _ int) string {
				return a.Promotion.ID
			}),
			TierName: tier.TierName,
		},
		TotalCents: calc.TotalCents + bonus,
	}
}

// Complete credits an approved batch: payout calculation, promotion
// matching and stacking, ledger entries, usage claims and member
// lifetime stats all commit in one transaction. Completing a batch that
// is already completed replays the stored outcome instead of crediting
// again.
func (s *Service) Complete(ctx context.Context, tenantID, batchID string, channel types.Channel) (*CompleteResult, error) {
	batch, err := s.Get(ctx, tenantID, batchID)
	if err != nil {
		return nil, err
	}
	if batch.Status == types.BatchStatusCompleted {
		return &CompleteResult{
			BatchID:          batch.ID,
			TradeValueCents:  batch.CreditedAmountCents,
			Bonus:            Bonus{Eligible: batch.BonusAmountCents > 0, BonusAmountCents: batch.BonusAmountCents},
			TotalCents:       batch.CreditedAmountCents + batch.BonusAmountCents,
			AlreadyCompleted: true,
		}, nil
	}
	if batch.Status != types.BatchStatusApproved {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, batch.Status, types.BatchStatusCompleted)
	}

	member, err := s.loadMember(ctx, tenantID, batch.MemberID)
	if err != nil {
		return nil, err
	}
	if !member.IsActive() {
		return nil, fmt.Errorf("%w: %s", ErrMemberNotActive, member.ID)
	}
	tier, err := s.loadTier(ctx, tenantID, member.Tier)
	if err != nil {
		return nil, err
	}

	calc, err := s.calc.Calculate(tier, itemsOf(batch))
	if err != nil {
		return nil, err
	}

	var (
		result  *CompleteResult
		written []*models.StoreCreditLedgerEntry
	)
	now := time.Now()
	err = s.ledger.WithMemberLock(batch.MemberID, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			base, err := s.ledger.CreditInTx(ctx, tx, &ledger.Request{
				TenantID:       tenantID,
				MemberID:       batch.MemberID,
				AmountCents:    calc.TotalCents,
				EventType:      types.CreditEventTradeIn,
				SourceType:     "trade_in_batch",
				SourceID:       batch.ID,
				IdempotencyKey: fmt.Sprintf("tradein:%s", batch.ID),
			})
			if err != nil {
				return err
			}
			if !base.Replayed {
				written = append(written, base.Entry)
			}

			apps, err := s.matchPromotions(ctx, tx, batch, member, calc, channel, now)
			if err != nil {
				return err
			}
			kept, bonus, err := s.promos.CommitApplications(ctx, tx, apps, batch.MemberID, batch.ID)
			if err != nil {
				return err
			}

			if bonus > 0 {
				promoEntry, err := s.ledger.CreditInTx(ctx, tx, &ledger.Request{
					TenantID:       tenantID,
					MemberID:       batch.MemberID,
					AmountCents:    bonus,
					EventType:      types.CreditEventPromoBonus,
					SourceType:     "trade_in_batch",
					SourceID:       batch.ID,
					IdempotencyKey: fmt.Sprintf("tradein:%s:promos", batch.ID),
				})
				if err != nil {
					return err
				}
				if !promoEntry.Replayed {
					written = append(written, promoEntry.Entry)
				}
			}

			if err := tx.Model(batch).Updates(map[string]interface{}{
				"status":                types.BatchStatusCompleted,
				"completed_at":          now,
				"credited_amount_cents": calc.TotalCents,
				"bonus_amount_cents":    bonus,
			}).Error; err != nil {
				return fmt.Errorf("failed to finalize batch: %w", err)
			}

			if err := tx.Model(member).Updates(map[string]interface{}{
				"total_trade_ins":          gorm.Expr("total_trade_ins + 1"),
				"total_trade_value_cents":  gorm.Expr("total_trade_value_cents + ?", calc.TotalCents),
				"total_bonus_earned_cents": gorm.Expr("total_bonus_earned_cents + ?", bonus),
			}).Error; err != nil {
				return fmt.Errorf("failed to update member stats: %w", err)
			}

			result = newCompleteResult(batch, tier, calc, kept, bonus)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.ledger.PushAfterCommit(ctx, written...)

	logctx.FromCtx(ctx, s.log).Infow("trade-in batch completed",
		"batch_id", batch.ID, "member_id", batch.MemberID,
		"trade_value_cents", result.TradeValueCents, "bonus_cents", result.Bonus.BonusAmountCents)
	return result, nil
}

func (s *Service) matchPromotions(ctx context.Context, tx *gorm.DB, batch *models.TradeInBatch, member *models.Member, calc *payout.Result, channel types.Channel, now time.Time) ([]promotion.Application, error) {
	catalog, err := s.promos.ActiveCatalog(ctx, tx, batch.TenantID)
	if err != nil {
		return nil, err
	}
	if len(catalog) == 0 {
		return nil, nil
	}

	ids := lo.Map(catalog, func(p *models.Promotion, _ int) string { return p.ID })
	uses, err := s.promos.MemberUses(ctx, tx, member.ID, ids)
	if err != nil {
		return nil, err
	}

	itemCount := 0
	categories := make([]string, 0, len(batch.Items))
	for _, it := range batch.Items {
		itemCount += it.Quantity
		categories = append(categories, it.Category)
	}

	matched := promotion.Match(promotion.Context{
		Now:         now,
		Channel:     channel,
		MemberID:    member.ID,
		MemberTier:  member.Tier,
		CategoryIDs: lo.Uniq(categories),
		ValueCents:  calc.TotalCents,
		ItemCount:   itemCount,
	}, catalog, uses)

	return promotion.Stack(calc.TotalCents, matched), nil
}

func itemsOf(batch *models.TradeInBatch) []payout.Item {
	return lo.Map(batch.Items, func(it models.TradeInItem, _ int) payout.Item {
		return payout.Item{
			Category:         it.Category,
			MarketValueCents: it.MarketValueCents,
			Condition:        it.Condition,
			Quantity:         it.Quantity,
		}
	})
}

func (s *Service) loadMember(ctx context.Context, tenantID, memberID string) (*models.Member, error) {
	var m models.Member
	err := s.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, memberID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("member not found: %s", memberID)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Service) loadTier(ctx context.Context, tenantID, tierName string) (*models.TierConfiguration, error) {
	var tier models.TierConfiguration
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND tier_name = ? AND active = ?", tenantID, tierName, true).
		First(&tier).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Members without a configured tier still trade in; they just
		// earn no tier bonus.
		return &models.TierConfiguration{TenantID: tenantID, TierName: tierName}, nil
	}
	if err != nil {
		return nil, err
	}
	return &tier, nil
}
