package distribution

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tradeup/creditengine/internal/app/service/ledger"
	"github.com/tradeup/creditengine/internal/models"
	"github.com/tradeup/creditengine/pkg/types"

	"github.com/hibiken/asynq"
	"gorm.io/datatypes"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	TypeDistributionExecute = "distribution:execute"
	TypeBulkExecute         = "bulk:execute"
)

type executePayload struct {
	TenantID string `json:"tenant_id"`
	ID       string `json:"id"`
}

func NewDistributionExecuteTask(tenantID, distributionID string) (*asynq.Task, error) {
	payload, err := json.Marshal(executePayload{TenantID: tenantID, ID: distributionID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task payload: %w", err)
	}
	return asynq.NewTask(TypeDistributionExecute, payload, asynq.MaxRetry(5)), nil
}

func NewBulkExecuteTask(tenantID, operationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(executePayload{TenantID: tenantID, ID: operationID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task payload: %w", err)
	}
	return asynq.NewTask(TypeBulkExecute, payload, asynq.MaxRetry(5)), nil
}

// Executor runs approved distributions and bulk operations in the
// background. Every member credit carries an idempotency key, so a task
// retried mid-run resumes where it left off without double-crediting.
type Executor struct {
	db     *gorm.DB
	log    *zap.SugaredLogger
	ledger *ledger.Service
}

func NewExecutor(db *gorm.DB, log *zap.SugaredLogger, l *ledger.Service) *Executor {
	return &Executor{db: db, log: log, ledger: l}
}

// Register attaches the executor's handlers to the worker mux.
func Register(mux *asynq.ServeMux, e *Executor) {
	mux.HandleFunc(TypeDistributionExecute, e.HandleDistributionExecute)
	mux.HandleFunc(TypeBulkExecute, e.HandleBulkExecute)
}

func (e *Executor) HandleDistributionExecute(ctx context.Context, t *asynq.Task) error {
	var p executePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("bad task payload: %v: %w", err, asynq.SkipRetry)
	}
	return e.ExecuteDistribution(ctx, p.TenantID, p.ID)
}

// ExecuteDistribution credits every member in the frozen preview, in
// stable member order. The execution result is written once; a
// distribution that already has one is a no-op.
func (e *Executor) ExecuteDistribution(ctx context.Context, tenantID, distributionID string) error {
	var dist models.PendingDistribution
	err := e.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, distributionID).First(&dist).Error
	if err != nil {
		return fmt.Errorf("failed to load distribution %s: %w", distributionID, err)
	}
	if dist.Status != types.DistributionStatusApproved {
		e.log.Warnw("skipping execution of non-approved distribution",
			"distribution_id", dist.ID, "status", dist.Status)
		return nil
	}
	if dist.Executed() {
		return nil
	}

	preview := dist.PreviewData.Data()
	if preview == nil {
		return fmt.Errorf("distribution %s has no preview data: %w", dist.ID, asynq.SkipRetry)
	}

	result := &models.ExecutionResult{}
	for _, m := range preview.Members {
		res, err := e.ledger.Credit(ctx, &ledger.Request{
			TenantID:       tenantID,
			MemberID:       m.MemberID,
			AmountCents:    m.AmountCents,
			EventType:      types.CreditEventBulkCredit,
			SourceType:     "distribution",
			SourceID:       dist.ID,
			IdempotencyKey: fmt.Sprintf("distribution:%s:member:%s", dist.ID, m.MemberID),
		})
		if err != nil {
			result.Errors++
			e.log.Errorw("distribution credit failed",
				"distribution_id", dist.ID, "member_id", m.MemberID, "err", err)
			continue
		}
		if res.Replayed {
			result.Skipped++
		} else {
			result.Credited++
		}
		result.TotalAmountCents += m.AmountCents
	}

	// A run with errors returns an error after recording nothing, so the
	// retry resumes the remaining members via idempotency keys.
	if result.Errors > 0 {
		return fmt.Errorf("distribution %s: %d of %d credits failed", dist.ID, result.Errors, preview.TotalMembers)
	}

	now := time.Now()
	result.ExecutedAt = now
	res := e.db.WithContext(ctx).Model(&models.PendingDistribution{}).
		Where("id = ? AND executed_at IS NULL", dist.ID).
		Updates(map[string]interface{}{
			"executed_at":      now,
			"execution_result": datatypes.NewJSONType(result),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to record execution result: %w", res.Error)
	}

	e.log.Infow("distribution executed",
		"distribution_id", dist.ID, "credited", result.Credited,
		"skipped", result.Skipped, "total_cents", result.TotalAmountCents)
	return nil
}

func (e *Executor) HandleBulkExecute(ctx context.Context, t *asynq.Task) error {
	var p executePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("bad task payload: %v: %w", err, asynq.SkipRetry)
	}
	return e.ExecuteBulk(ctx, p.TenantID, p.ID)
}

// ExecuteBulk credits the operation's member set. The set was validated
// against the frozen preview before the task was enqueued; here the
// members are re-read and credited idempotently.
func (e *Executor) ExecuteBulk(ctx context.Context, tenantID, operationID string) error {
	var op models.BulkCreditOperation
	err := e.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, operationID).First(&op).Error
	if err != nil {
		return fmt.Errorf("failed to load bulk operation %s: %w", operationID, err)
	}
	if op.Status != types.BulkOperationStatusProcessing {
		e.log.Warnw("skipping bulk operation not in processing state",
			"operation_id", op.ID, "status", op.Status)
		return nil
	}

	members, err := bulkMembers(ctx, e.db, tenantID, op.TierFilter)
	if err != nil {
		return err
	}

	var processed, failures int64
	for _, m := range members {
		_, err := e.ledger.Credit(ctx, &ledger.Request{
			TenantID:       tenantID,
			MemberID:       m.ID,
			AmountCents:    op.AmountPerMemberCents,
			EventType:      types.CreditEventBulkCredit,
			SourceType:     "bulk_operation",
			SourceID:       op.ID,
			IdempotencyKey: fmt.Sprintf("bulk:%s:member:%s", op.ID, m.ID),
		})
		if err != nil {
			failures++
			e.log.Errorw("bulk credit failed", "operation_id", op.ID, "member_id", m.ID, "err", err)
			continue
		}
		processed++
	}

	if err := e.db.WithContext(ctx).Model(&op).Update("processed_count", processed).Error; err != nil {
		return fmt.Errorf("failed to update processed count: %w", err)
	}
	if failures > 0 {
		return fmt.Errorf("bulk operation %s: %d of %d credits failed", op.ID, failures, len(members))
	}

	now := time.Now()
	if err := e.db.WithContext(ctx).Model(&op).Updates(map[string]interface{}{
		"status":      types.BulkOperationStatusCompleted,
		"executed_at": now,
	}).Error; err != nil {
		return fmt.Errorf("failed to complete bulk operation: %w", err)
	}

	e.log.Infow("bulk operation executed", "operation_id", op.ID, "processed", processed)
	return nil
}
