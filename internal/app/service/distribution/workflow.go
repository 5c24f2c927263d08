package distribution

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/tradeup/creditengine/internal/models"
	"github.com/tradeup/creditengine/internal/platform/task"
	"github.com/tradeup/creditengine/pkg/config"
	"github.com/tradeup/creditengine/pkg/logctx"
	"github.com/tradeup/creditengine/pkg/tool"
	"github.com/tradeup/creditengine/pkg/types"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrDistributionNotFound = errors.New("distribution not found")
	ErrDistributionExists   = errors.New("distribution already exists for this period")
	ErrDistributionExpired  = errors.New("distribution has expired and can no longer be approved")
	ErrNotPending           = errors.New("distribution is not pending")
	ErrNotEligible          = errors.New("auto-approve requires a manually approved first distribution")
)

// Workflow owns the approval lifecycle of periodic distributions and
// the merchant automation settings that gate it.
type Workflow struct {
	db      *gorm.DB
	log     *zap.SugaredLogger
	cfg     *config.Config
	enqueue task.Enqueuer
	now     func() time.Time
}

func NewWorkflow(db *gorm.DB, log *zap.SugaredLogger, cfg *config.Config, enq task.Enqueuer) *Workflow {
	return &Workflow{db: db, log: log, cfg: cfg, enqueue: enq, now: time.Now}
}

// MonthlyReferenceKey returns the idempotency key for a month's
// distribution, e.g. "monthly-2026-08".
func MonthlyReferenceKey(t time.Time) string {
	return fmt.Sprintf("monthly-%s", t.Format("2006-01"))
}

// CreateMonthly previews and stores this period's distribution. The
// member list and amounts are frozen now; execution replays this
// snapshot even if memberships change before approval. One distribution
// per (tenant, period): a duplicate create returns ErrDistributionExists.
func (w *Workflow) CreateMonthly(ctx context.Context, tenantID string, period time.Time) (*models.PendingDistribution, error) {
	preview, err := w.buildMonthlyPreview(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	expiryDays := w.cfg.DistributionExpiryDays
	if expiryDays <= 0 {
		expiryDays = 7
	}

	dist := &models.PendingDistribution{
		ID:               tool.GenerateUUIDV7(),
		TenantID:         tenantID,
		DistributionType: "monthly_credit",
		ReferenceKey:     MonthlyReferenceKey(period),
		Status:           types.DistributionStatusPending,
		PreviewData:      datatypes.NewJSONType(preview),
		ExpiresAt:        time.Now().AddDate(0, 0, expiryDays),
	}

	if err := w.db.WithContext(ctx).Create(dist).Error; err != nil {
		var existing models.PendingDistribution
		lookupErr := w.db.WithContext(ctx).
			Where("tenant_id = ? AND reference_key = ?", tenantID, dist.ReferenceKey).
			First(&existing).Error
		if lookupErr == nil {
			return &existing, fmt.Errorf("%w: %s", ErrDistributionExists, dist.ReferenceKey)
		}
		return nil, fmt.Errorf("failed to create distribution: %w", err)
	}

	logctx.FromCtx(ctx, w.log).Infow("monthly distribution created",
		"distribution_id", dist.ID, "reference_key", dist.ReferenceKey,
		"members", preview.TotalMembers, "total_cents", preview.TotalAmountCents)
	return dist, nil
}

func (w *Workflow) buildMonthlyPreview(ctx context.Context, tenantID string) (*models.DistributionPreview, error) {
	var tiers []*models.TierConfiguration
	if err := w.db.WithContext(ctx).
		Where("tenant_id = ? AND active = ?", tenantID, true).
		Find(&tiers).Error; err != nil {
		return nil, fmt.Errorf("failed to load tiers: %w", err)
	}
	creditByTier := make(map[string]int64, len(tiers))
	for _, t := range tiers {
		creditByTier[t.TierName] = t.MonthlyCreditCents
	}

	var members []*models.Member
	if err := w.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ?", tenantID, types.MemberStatusActive).
		Order("id asc").
		Find(&members).Error; err != nil {
		return nil, fmt.Errorf("failed to load members: %w", err)
	}

	preview := &models.DistributionPreview{CalculatedAt: time.Now()}
	byTier := map[string]*models.TierBreakdown{}
	for _, m := range members {
		amount := creditByTier[m.Tier]
		if amount <= 0 {
			preview.Skipped++
			continue
		}
		preview.Members = append(preview.Members, models.DistributionMember{
			MemberID:    m.ID,
			Tier:        m.Tier,
			AmountCents: amount,
		})
		preview.TotalMembers++
		preview.TotalAmountCents += amount

		tb := byTier[m.Tier]
		if tb == nil {
			tb = &models.TierBreakdown{Tier: m.Tier}
			byTier[m.Tier] = tb
		}
		tb.Count++
		tb.AmountCents += amount
	}
	for _, tb := range byTier {
		preview.ByTier = append(preview.ByTier, *tb)
	}
	sort.Slice(preview.ByTier, func(i, j int) bool { return preview.ByTier[i].Tier < preview.ByTier[j].Tier })
	return preview, nil
}

// Get returns the distribution, lazily expiring it first.
func (w *Workflow) Get(ctx context.Context, tenantID, id string) (*models.PendingDistribution, error) {
	var dist models.PendingDistribution
	err := w.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).First(&dist).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDistributionNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := w.expireIfDue(ctx, &dist, time.Now()); err != nil {
		return nil, err
	}
	return &dist, nil
}

type ListRequest struct {
	TenantID string
	Status   types.DistributionStatus
	Limit    int
	Offset   int
}

func (w *Workflow) List(ctx context.Context, req *ListRequest) ([]*models.PendingDistribution, int64, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	// Sweep due expirations first so status filters see the truth.
	now := time.Now()
	if err := w.db.WithContext(ctx).Model(&models.PendingDistribution{}).
		Where("tenant_id = ? AND status = ? AND expires_at < ?", req.TenantID, types.DistributionStatusPending, now).
		Update("status", types.DistributionStatusExpired).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to expire distributions: %w", err)
	}

	q := w.db.WithContext(ctx).Model(&models.PendingDistribution{}).Where("tenant_id = ?", req.TenantID)
	if req.Status != "" {
		q = q.Where("status = ?", req.Status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []*models.PendingDistribution
	if err := q.Order("created_at desc, id desc").Limit(req.Limit).Offset(req.Offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (w *Workflow) expireIfDue(ctx context.Context, dist *models.PendingDistribution, now time.Time) error {
	if !dist.ExpiredBy(now) {
		return nil
	}
	res := w.db.WithContext(ctx).Model(&models.PendingDistribution{}).
		Where("id = ? AND status = ?", dist.ID, types.DistributionStatusPending).
		Update("status", types.DistributionStatusExpired)
	if res.Error != nil {
		return fmt.Errorf("failed to expire distribution: %w", res.Error)
	}
	dist.Status = types.DistributionStatusExpired
	logctx.FromCtx(ctx, w.log).Infow("distribution expired", "distribution_id", dist.ID)
	return nil
}

// Approve transitions a pending distribution to approved and enqueues
// its execution. The first manual approval unlocks the auto-approve
// setting for the tenant.
func (w *Workflow) Approve(ctx context.Context, tenantID, id, approvedBy string) (*models.PendingDistribution, error) {
	dist, err := w.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if dist.Status == types.DistributionStatusExpired {
		return nil, fmt.Errorf("%w: %s", ErrDistributionExpired, dist.ID)
	}
	if dist.Status != types.DistributionStatusPending {
		return nil, fmt.Errorf("%w: status %s", ErrNotPending, dist.Status)
	}

	now := w.now()
	// The expiry predicate closes the window between the Get check and
	// the update.
	res := w.db.WithContext(ctx).Model(&models.PendingDistribution{}).
		Where("id = ? AND status = ? AND expires_at >= ?", dist.ID, types.DistributionStatusPending, now).
		Updates(map[string]interface{}{
			"status":      types.DistributionStatusApproved,
			"approved_at": now,
			"approved_by": approvedBy,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to approve distribution: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if dist.ExpiredBy(now) {
			return nil, fmt.Errorf("%w: %s", ErrDistributionExpired, dist.ID)
		}
		return nil, fmt.Errorf("%w: concurrent status change", ErrNotPending)
	}
	dist.Status = types.DistributionStatusApproved
	dist.ApprovedAt = &now
	dist.ApprovedBy = &approvedBy

	if err := w.markFirstCompleted(ctx, tenantID); err != nil {
		return nil, err
	}

	t, err := NewDistributionExecuteTask(tenantID, dist.ID)
	if err != nil {
		return nil, err
	}
	if _, err := w.enqueue.EnqueueContext(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to enqueue distribution execution: %w", err)
	}

	logctx.FromCtx(ctx, w.log).Infow("distribution approved",
		"distribution_id", dist.ID, "approved_by", approvedBy)
	return dist, nil
}

func (w *Workflow) markFirstCompleted(ctx context.Context, tenantID string) error {
	settings, err := w.Settings(ctx, tenantID)
	if err != nil {
		return err
	}
	if settings.FirstDistributionCompleted {
		return nil
	}
	settings.FirstDistributionCompleted = true
	if err := w.db.WithContext(ctx).Save(settings).Error; err != nil {
		return fmt.Errorf("failed to update merchant settings: %w", err)
	}
	return nil
}

// Reject declines a pending distribution. Rejected is terminal; the
// next period produces a fresh one.
func (w *Workflow) Reject(ctx context.Context, tenantID, id, rejectedBy, reason string) (*models.PendingDistribution, error) {
	dist, err := w.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if dist.Status != types.DistributionStatusPending {
		return nil, fmt.Errorf("%w: status %s", ErrNotPending, dist.Status)
	}

	now := time.Now()
	res := w.db.WithContext(ctx).Model(&models.PendingDistribution{}).
		Where("id = ? AND status = ?", dist.ID, types.DistributionStatusPending).
		Updates(map[string]interface{}{
			"status":           types.DistributionStatusRejected,
			"rejected_at":      now,
			"rejected_by":      rejectedBy,
			"rejection_reason": reason,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to reject distribution: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: concurrent status change", ErrNotPending)
	}
	dist.Status = types.DistributionStatusRejected
	dist.RejectedAt = &now
	dist.RejectedBy = &rejectedBy
	dist.RejectionReason = &reason

	logctx.FromCtx(ctx, w.log).Infow("distribution rejected",
		"distribution_id", dist.ID, "rejected_by", rejectedBy, "reason", reason)
	return dist, nil
}

// Settings returns the tenant's automation settings, creating the
// default row on first read.
func (w *Workflow) Settings(ctx context.Context, tenantID string) (*models.MerchantSettings, error) {
	var settings models.MerchantSettings
	err := w.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		settings = models.MerchantSettings{TenantID: tenantID}
		if err := w.db.WithContext(ctx).Create(&settings).Error; err != nil {
			return nil, fmt.Errorf("failed to create merchant settings: %w", err)
		}
		return &settings, nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// SetAutoApprove toggles distribution auto-approval. Enabling requires
// that the tenant has manually approved at least one distribution.
func (w *Workflow) SetAutoApprove(ctx context.Context, tenantID string, enabled bool) (*models.MerchantSettings, error) {
	settings, err := w.Settings(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if enabled && !settings.FirstDistributionCompleted {
		return nil, ErrNotEligible
	}
	settings.AutoApproveEnabled = enabled
	if err := w.db.WithContext(ctx).Save(settings).Error; err != nil {
		return nil, fmt.Errorf("failed to update merchant settings: %w", err)
	}
	return settings, nil
}

// MaybeAutoApprove approves a freshly created distribution when the
// tenant has auto-approval on. Called by the periodic creation path.
func (w *Workflow) MaybeAutoApprove(ctx context.Context, dist *models.PendingDistribution) (*models.PendingDistribution, error) {
	settings, err := w.Settings(ctx, dist.TenantID)
	if err != nil {
		return nil, err
	}
	if !settings.AutoApproveEnabled {
		return dist, nil
	}
	return w.Approve(ctx, dist.TenantID, dist.ID, "auto-approve")
}
