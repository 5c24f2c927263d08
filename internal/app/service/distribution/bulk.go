package distribution

import (
	"context"
	"errors"
	"fmt"

	"github.com/tradeup/creditengine/internal/models"
	"github.com/tradeup/creditengine/internal/platform/task"
	"github.com/tradeup/creditengine/pkg/logctx"
	"github.com/tradeup/creditengine/pkg/tool"
	"github.com/tradeup/creditengine/pkg/types"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrBulkNotFound   = errors.New("bulk operation not found")
	ErrBulkNotPending = errors.New("bulk operation is not pending")
	ErrMemberSetDrift = errors.New("member set drifted beyond tolerance since preview")
)

// Bulk manages ad-hoc mass credit operations. Creation freezes the
// member count and total; Execute re-validates the set against the
// frozen numbers and fails the whole operation on drift rather than
// partially applying.
type Bulk struct {
	db      *gorm.DB
	log     *zap.SugaredLogger
	enqueue task.Enqueuer
}

func NewBulk(db *gorm.DB, log *zap.SugaredLogger, enq task.Enqueuer) *Bulk {
	return &Bulk{db: db, log: log, enqueue: enq}
}

func bulkMembers(ctx context.Context, db *gorm.DB, tenantID string, tierFilter *string) ([]*models.Member, error) {
	q := db.WithContext(ctx).
		Where("tenant_id = ? AND status = ?", tenantID, types.MemberStatusActive).
		Order("id asc")
	if tierFilter != nil && *tierFilter != "" {
		q = q.Where("tier = ?", *tierFilter)
	}
	var members []*models.Member
	if err := q.Find(&members).Error; err != nil {
		return nil, fmt.Errorf("failed to load members: %w", err)
	}
	return members, nil
}

type CreateBulkRequest struct {
	TenantID             string
	AmountPerMemberCents int64
	TierFilter           *string
	CreatedBy            string
}

func (b *Bulk) Create(ctx context.Context, req *CreateBulkRequest) (*models.BulkCreditOperation, error) {
	if req.AmountPerMemberCents <= 0 {
		return nil, fmt.Errorf("amount_per_member_cents must be positive")
	}

	members, err := bulkMembers(ctx, b.db, req.TenantID, req.TierFilter)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("no active members match the filter")
	}

	op := &models.BulkCreditOperation{
		ID:                   tool.GenerateUUIDV7(),
		TenantID:             req.TenantID,
		AmountPerMemberCents: req.AmountPerMemberCents,
		TierFilter:           req.TierFilter,
		Status:               types.BulkOperationStatusPending,
		MemberCount:          int64(len(members)),
		TotalAmountCents:     req.AmountPerMemberCents * int64(len(members)),
		CreatedBy:            req.CreatedBy,
	}
	if err := b.db.WithContext(ctx).Create(op).Error; err != nil {
		return nil, fmt.Errorf("failed to create bulk operation: %w", err)
	}

	logctx.FromCtx(ctx, b.log).Infow("bulk operation created",
		"operation_id", op.ID, "members", op.MemberCount, "total_cents", op.TotalAmountCents)
	return op, nil
}

func (b *Bulk) Get(ctx context.Context, tenantID, id string) (*models.BulkCreditOperation, error) {
	var op models.BulkCreditOperation
	err := b.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).First(&op).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBulkNotFound
	}
	if err != nil {
		return nil, err
	}
	return &op, nil
}

func (b *Bulk) List(ctx context.Context, tenantID string, limit, offset int) ([]*models.BulkCreditOperation, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	q := b.db.WithContext(ctx).Model(&models.BulkCreditOperation{}).Where("tenant_id = ?", tenantID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []*models.BulkCreditOperation
	if err := q.Order("created_at desc, id desc").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// driftTolerance is 1% of the frozen member count, at least 1.
func driftTolerance(frozen int64) int64 {
	tol := frozen / 100
	if tol < 1 {
		tol = 1
	}
	return tol
}

// Execute re-counts the member set and hands the operation to the
// background executor. If the count drifted beyond tolerance the whole
// operation fails atomically with nothing credited.
func (b *Bulk) Execute(ctx context.Context, tenantID, id string) (*models.BulkCreditOperation, error) {
	op, err := b.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if op.Status != types.BulkOperationStatusPending {
		return nil, fmt.Errorf("%w: status %s", ErrBulkNotPending, op.Status)
	}

	members, err := bulkMembers(ctx, b.db, tenantID, op.TierFilter)
	if err != nil {
		return nil, err
	}

	drift := int64(len(members)) - op.MemberCount
	if drift < 0 {
		drift = -drift
	}
	if drift > driftTolerance(op.MemberCount) {
		msg := fmt.Sprintf("member count drifted from %d to %d", op.MemberCount, len(members))
		if err := b.db.WithContext(ctx).Model(op).Updates(map[string]interface{}{
			"status": types.BulkOperationStatusFailed,
			"error":  msg,
		}).Error; err != nil {
			return nil, fmt.Errorf("failed to fail bulk operation: %w", err)
		}
		op.Status = types.BulkOperationStatusFailed
		op.Error = &msg
		return op, fmt.Errorf("%w: %s", ErrMemberSetDrift, msg)
	}

	res := b.db.WithContext(ctx).Model(&models.BulkCreditOperation{}).
		Where("id = ? AND status = ?", op.ID, types.BulkOperationStatusPending).
		Update("status", types.BulkOperationStatusProcessing)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to start bulk operation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: concurrent status change", ErrBulkNotPending)
	}
	op.Status = types.BulkOperationStatusProcessing

	t, err := NewBulkExecuteTask(tenantID, op.ID)
	if err != nil {
		return nil, err
	}
	if _, err := b.enqueue.EnqueueContext(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to enqueue bulk execution: %w", err)
	}

	logctx.FromCtx(ctx, b.log).Infow("bulk operation queued",
		"operation_id", op.ID, "members", len(members))
	return op, nil
}
