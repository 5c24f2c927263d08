package promotion

import (
	"context"
	"errors"
	"fmt"

	"github.com/tradeup/creditengine/internal/models"
	"github.com/tradeup/creditengine/pkg/logctx"
	"github.com/tradeup/creditengine/pkg/tool"
	"github.com/tradeup/creditengine/pkg/types"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrPromotionCapExceeded signals that a usage cap was hit at commit
// time. Callers degrade by dropping that promotion's contribution; the
// surrounding transaction never fails because of it.
var ErrPromotionCapExceeded = errors.New("promotion usage cap exceeded")

var ErrPromotionNotFound = errors.New("promotion not found")

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

func validatePromotion(p *models.Promotion) error {
	if !p.StartsAt.Before(p.EndsAt) {
		return fmt.Errorf("starts_at must precede ends_at")
	}
	pl := p.Payload.Data()
	switch p.Type {
	case types.PromoTypeTradeInBonus, types.PromoTypePurchaseCashback:
		if pl == nil || pl.BonusPct == nil || *pl.BonusPct <= 0 {
			return fmt.Errorf("%s promotion requires a positive bonus_pct", p.Type)
		}
	case types.PromoTypeFlatBonus:
		if pl == nil || pl.BonusFlatCents == nil || *pl.BonusFlatCents <= 0 {
			return fmt.Errorf("flat_bonus promotion requires a positive bonus_flat_cents")
		}
	case types.PromoTypeMultiplier:
		if pl == nil || pl.Multiplier == nil || *pl.Multiplier <= 1 {
			return fmt.Errorf("multiplier promotion requires a multiplier above 1")
		}
	default:
		return fmt.Errorf("unknown promotion type: %s", p.Type)
	}
	for _, d := range p.ActiveDays {
		if d < 0 || d > 6 {
			return fmt.Errorf("active_days entries must be 0 (Monday) through 6 (Sunday)")
		}
	}
	if p.MaxUses != nil && *p.MaxUses < 1 {
		return fmt.Errorf("max_uses must be at least 1 when set")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, p *models.Promotion) (*models.Promotion, error) {
	if err := validatePromotion(p); err != nil {
		return nil, err
	}
	if p.ID == "" {
		p.ID = tool.GenerateUUIDV7()
	}
	if p.Channel == "" {
		p.Channel = types.ChannelAll
	}
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, fmt.Errorf("failed to create promotion: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("promotion created", "promotion_id", p.ID, "type", p.Type, "priority", p.Priority)
	return p, nil
}

func (s *Service) Update(ctx context.Context, tenantID, id string, p *models.Promotion) (*models.Promotion, error) {
	existing, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	p.ID = existing.ID
	p.TenantID = existing.TenantID
	// CurrentUses is owned by the commit path and never set via CRUD.
	p.CurrentUses = existing.CurrentUses
	p.CreatedAt = existing.CreatedAt
	if err := validatePromotion(p); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Save(p).Error; err != nil {
		return nil, fmt.Errorf("failed to update promotion: %w", err)
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, tenantID, id string) (*models.Promotion, error) {
	var p models.Promotion
	err := s.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPromotionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

type ListRequest struct {
	TenantID   string
	ActiveOnly bool
	Limit      int
	Offset     int
}

func (s *Service) List(ctx context.Context, req *ListRequest) ([]*models.Promotion, int64, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	q := s.db.WithContext(ctx).Model(&models.Promotion{}).Where("tenant_id = ?", req.TenantID)
	if req.ActiveOnly {
		q = q.Where("active = ?", true)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []*models.Promotion
	if err := q.Order("priority desc, id asc").Limit(req.Limit).Offset(req.Offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ActiveCatalog loads the tenant's active promotions for matching. A
// non-nil tx reuses the caller's transaction.
func (s *Service) ActiveCatalog(ctx context.Context, tx *gorm.DB, tenantID string) ([]*models.Promotion, error) {
	if tx == nil {
		tx = s.db
	}
	var rows []*models.Promotion
	if err := tx.WithContext(ctx).
		Where("tenant_id = ? AND active = ?", tenantID, true).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load promotion catalog: %w", err)
	}
	return rows, nil
}

// MemberUses returns the member's historical use counts for the given
// promotions, keyed by promotion id.
func (s *Service) MemberUses(ctx context.Context, tx *gorm.DB, memberID string, promotionIDs []string) (map[string]int64, error) {
	if tx == nil {
		tx = s.db
	}
	if len(promotionIDs) == 0 {
		return map[string]int64{}, nil
	}
	type row struct {
		PromotionID string
		N           int64
	}
	var rows []row
	if err := tx.WithContext(ctx).Model(&models.PromotionUsage{}).
		Select("promotion_id, count(*) as n").
		Where("member_id = ? AND promotion_id IN ?", memberID, promotionIDs).
		Group("promotion_id").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count promotion usage: %w", err)
	}
	uses := make(map[string]int64, len(rows))
	for _, r := range rows {
		uses[r.PromotionID] = r.N
	}
	return uses, nil
}

// CommitUsage atomically claims one use of a promotion for a member
// inside the caller's transaction. The guarded UPDATE loses the race
// when a concurrent transaction takes the last use, in which case the
// caller drops the promotion's contribution and keeps going.
func (s *Service) CommitUsage(ctx context.Context, tx *gorm.DB, p *models.Promotion, memberID, sourceID string) error {
	// Per-member cap first: the member write path is serialized, so the
	// count cannot race, and a failed check must not leave a global
	// increment behind.
	if p.MaxUsesPerMember != nil {
		var n int64
		if err := tx.WithContext(ctx).Model(&models.PromotionUsage{}).
			Where("promotion_id = ? AND member_id = ?", p.ID, memberID).
			Count(&n).Error; err != nil {
			return fmt.Errorf("failed to count member usage: %w", err)
		}
		if n >= *p.MaxUsesPerMember {
			return fmt.Errorf("%w: promotion %s member %s", ErrPromotionCapExceeded, p.ID, memberID)
		}
	}

	res := tx.WithContext(ctx).Model(&models.Promotion{}).
		Where("id = ? AND (max_uses IS NULL OR current_uses < max_uses)", p.ID).
		UpdateColumn("current_uses", gorm.Expr("current_uses + 1"))
	if res.Error != nil {
		return fmt.Errorf("failed to increment promotion uses: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: promotion %s", ErrPromotionCapExceeded, p.ID)
	}

	usage := &models.PromotionUsage{
		ID:          tool.GenerateUUIDV7(),
		PromotionID: p.ID,
		MemberID:    memberID,
		SourceID:    sourceID,
	}
	if err := tx.WithContext(ctx).Create(usage).Error; err != nil {
		return fmt.Errorf("failed to record promotion usage: %w", err)
	}
	return nil
}

// CommitApplications claims a use for every applied promotion, dropping
// the ones whose caps were exhausted by a concurrent transaction. The
// surviving applications and their bonus total are returned; a cap race
// never fails the caller's transaction.
func (s *Service) CommitApplications(ctx context.Context, tx *gorm.DB, apps []Application, memberID, sourceID string) ([]Application, int64, error) {
	kept := make([]Application, 0, len(apps))
	var total int64
	for _, app := range apps {
		if err := s.CommitUsage(ctx, tx, app.Promotion, memberID, sourceID); err != nil {
			if errors.Is(err, ErrPromotionCapExceeded) {
				logctx.FromCtx(ctx, s.log).Warnw("promotion excluded at commit",
					"promotion_id", app.Promotion.ID, "member_id", memberID, "source_id", sourceID)
				continue
			}
			return nil, 0, err
		}
		kept = append(kept, app)
		total += app.BonusCents
	}
	return kept, total, nil
}

// PreviewResult is what the admin preview endpoint shows before a
// promotion is activated.
type PreviewResult struct {
	EligibleMembers int64               `json:"eligible_members"`
	Matches         []*models.Promotion `json:"matches"`
	TotalBonusCents int64               `json:"total_bonus_cents"`
}

// Preview runs the real matcher against the active catalog for a
// sample transaction context so merchants see true eligibility, and
// counts the members whose tier would pass the restriction.
func (s *Service) Preview(ctx context.Context, tenantID string, mctx Context, baseCents int64) (*PreviewResult, error) {
	catalog, err := s.ActiveCatalog(ctx, nil, tenantID)
	if err != nil {
		return nil, err
	}

	uses := map[string]int64{}
	if mctx.MemberID != "" {
		ids := make([]string, 0, len(catalog))
		for _, p := range catalog {
			ids = append(ids, p.ID)
		}
		if uses, err = s.MemberUses(ctx, nil, mctx.MemberID, ids); err != nil {
			return nil, err
		}
	}

	matched := Match(mctx, catalog, uses)
	apps := Stack(baseCents, matched)

	q := s.db.WithContext(ctx).Model(&models.Member{}).
		Where("tenant_id = ? AND status = ?", tenantID, types.MemberStatusActive)
	if mctx.MemberTier != "" {
		q = q.Where("tier = ?", mctx.MemberTier)
	}
	var eligible int64
	if err := q.Count(&eligible).Error; err != nil {
		return nil, err
	}

	return &PreviewResult{
		EligibleMembers: eligible,
		Matches:         matched,
		TotalBonusCents: TotalBonus(apps),
	}, nil
}
