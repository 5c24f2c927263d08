package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/tradeup/creditengine/internal/app/service/sink"
	"github.com/tradeup/creditengine/internal/models"
	"github.com/tradeup/creditengine/pkg/logctx"
	"github.com/tradeup/creditengine/pkg/tool"
	"github.com/tradeup/creditengine/pkg/types"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrInsufficientBalance rejects a debit larger than the available
// balance. Nothing is written.
var ErrInsufficientBalance = errors.New("insufficient balance")

type Service struct {
	db   *gorm.DB
	log  *zap.SugaredLogger
	sink sink.Sink
	keys *keyedMutex
}

func NewService(db *gorm.DB, log *zap.SugaredLogger, creditSink sink.Sink) *Service {
	return &Service{db: db, log: log, sink: creditSink, keys: newKeyedMutex()}
}

// Request describes one credit or debit. AmountCents is always
// positive; Debit negates it. IdempotencyKey is caller-supplied (batch
// id, promotion application id, distribution member key) and gates
// double-crediting on retry.
type Request struct {
	TenantID       string
	MemberID       string
	AmountCents    int64
	EventType      types.CreditEventType
	SourceType     string
	SourceID       string
	PromotionID    *string
	IdempotencyKey string
}

// Result carries the written (or replayed) entry. Replayed is true when
// the idempotency key had already been used; the original entry is
// returned and nothing was written.
type Result struct {
	Entry    *models.StoreCreditLedgerEntry
	Replayed bool
}

func (r *Request) validate() error {
	if r.TenantID == "" || r.MemberID == "" {
		return fmt.Errorf("tenant_id and member_id are required")
	}
	if r.AmountCents <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	if r.IdempotencyKey == "" {
		return fmt.Errorf("idempotency_key is required")
	}
	return nil
}

// Credit appends a positive entry and pushes the amount to the
// store-credit sink. Sink failure does not fail the credit: balance
// truth is internal, and unsynced entries are reconciled later.
func (s *Service) Credit(ctx context.Context, req *Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var res *Result
	err := s.withMemberTx(ctx, req.MemberID, func(tx *gorm.DB) error {
		var err error
		res, err = s.appendTx(ctx, tx, req, req.AmountCents)
		return err
	})
	if err != nil {
		return nil, err
	}

	if !res.Replayed {
		s.pushToSink(ctx, res.Entry)
	}
	return res, nil
}

// Debit appends a negative entry. A debit exceeding the available
// balance fails with ErrInsufficientBalance and writes nothing.
func (s *Service) Debit(ctx context.Context, req *Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var res *Result
	err := s.withMemberTx(ctx, req.MemberID, func(tx *gorm.DB) error {
		var err error
		res, err = s.appendTx(ctx, tx, req, -req.AmountCents)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// CreditInTx appends a credit entry inside the caller's transaction.
// The caller must already hold the member lock via WithMemberLock. Used
// by the trade-in completion path so batch state, promotion usage and
// ledger entries commit atomically.
func (s *Service) CreditInTx(ctx context.Context, tx *gorm.DB, req *Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	return s.appendTx(ctx, tx, req, req.AmountCents)
}

// WithMemberLock runs fn while holding the member's write lock.
func (s *Service) WithMemberLock(memberID string, fn func() error) error {
	unlock := s.keys.Lock(memberID)
	defer unlock()
	return fn()
}

// PushAfterCommit pushes freshly committed entries to the sink.
// Callers that use CreditInTx invoke this once their transaction has
// committed; replayed results must not be passed in.
func (s *Service) PushAfterCommit(ctx context.Context, entries ...*models.StoreCreditLedgerEntry) {
	for _, e := range entries {
		s.pushToSink(ctx, e)
	}
}

// SyncEntry marks an entry as pushed to the sink. Called by the sync
// path and by the admin reconciliation endpoint.
func (s *Service) SyncEntry(ctx context.Context, tenantID, entryID, shopifyCreditID string) (*models.StoreCreditLedgerEntry, error) {
	var entry models.StoreCreditLedgerEntry
	err := s.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, entryID).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("ledger entry not found: %s", entryID)
	}
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"synced_to_shopify": true}
	if shopifyCreditID != "" {
		updates["shopify_credit_id"] = shopifyCreditID
	}
	if err := s.db.WithContext(ctx).Model(&entry).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to mark entry synced: %w", err)
	}
	return &entry, nil
}

func (s *Service) withMemberTx(ctx context.Context, memberID string, fn func(tx *gorm.DB) error) error {
	return s.WithMemberLock(memberID, func() error {
		return s.db.WithContext(ctx).Transaction(fn)
	})
}

// appendTx is the single append path. Caller holds the member lock.
func (s *Service) appendTx(ctx context.Context, tx *gorm.DB, req *Request, signedAmount int64) (*Result, error) {
	// Idempotency: same key returns the original entry, writes nothing.
	var existing models.StoreCreditLedgerEntry
	err := tx.WithContext(ctx).Where("idempotency_key = ?", req.IdempotencyKey).First(&existing).Error
	if err == nil {
		replaysTotal.Inc()
		logctx.FromCtx(ctx, s.log).Infow("idempotent replay",
			"idempotency_key", req.IdempotencyKey, "entry_id", existing.ID, "member_id", req.MemberID)
		return &Result{Entry: &existing, Replayed: true}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check idempotency key: %w", err)
	}

	balance, err := s.lockBalance(ctx, tx, req.TenantID, req.MemberID)
	if err != nil {
		return nil, err
	}

	if signedAmount < 0 && balance.BalanceCents+signedAmount < 0 {
		return nil, fmt.Errorf("%w: member %s has %d, debit of %d rejected",
			ErrInsufficientBalance, req.MemberID, balance.BalanceCents, -signedAmount)
	}

	entry := &models.StoreCreditLedgerEntry{
		ID:                tool.GenerateUUIDV7(),
		TenantID:          req.TenantID,
		MemberID:          req.MemberID,
		AmountCents:       signedAmount,
		BalanceAfterCents: balance.BalanceCents + signedAmount,
		EventType:         req.EventType,
		SourceType:        req.SourceType,
		SourceID:          req.SourceID,
		PromotionID:       req.PromotionID,
		IdempotencyKey:    req.IdempotencyKey,
	}
	if err := tx.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to append ledger entry: %w", err)
	}

	balance.BalanceCents += signedAmount
	if signedAmount > 0 {
		balance.TotalEarnedCents += signedAmount
		entriesTotal.WithLabelValues(string(req.EventType), "credit").Inc()
	} else {
		balance.TotalSpentCents += -signedAmount
		entriesTotal.WithLabelValues(string(req.EventType), "debit").Inc()
	}
	if err := tx.WithContext(ctx).Save(balance).Error; err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}

	return &Result{Entry: entry}, nil
}

// lockBalance loads (or creates) the member's balance row. Under
// postgres the row is locked FOR UPDATE as a cross-process guard; the
// in-process keyed mutex is the primary serialization point.
func (s *Service) lockBalance(ctx context.Context, tx *gorm.DB, tenantID, memberID string) (*models.MemberCreditBalance, error) {
	q := tx.WithContext(ctx)
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var balance models.MemberCreditBalance
	err := q.Where("tenant_id = ? AND member_id = ?", tenantID, memberID).First(&balance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		balance = models.MemberCreditBalance{MemberID: memberID, TenantID: tenantID}
		if err := tx.WithContext(ctx).Create(&balance).Error; err != nil {
			return nil, fmt.Errorf("failed to create balance row: %w", err)
		}
		return &balance, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load balance: %w", err)
	}
	return &balance, nil
}

// pushToSink runs after commit. On exhausted retries the entry stays
// unsynced and is picked up by reconciliation; on definitive rejection
// the entry also stays unsynced and the error is surfaced in logs with
// enough context for support tooling.
func (s *Service) pushToSink(ctx context.Context, entry *models.StoreCreditLedgerEntry) {
	if entry.AmountCents <= 0 {
		return
	}

	var member models.Member
	if err := s.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", entry.TenantID, entry.MemberID).First(&member).Error; err != nil {
		logctx.FromCtx(ctx, s.log).Warnw("sink push skipped: member lookup failed",
			"member_id", entry.MemberID, "entry_id", entry.ID, "err", err)
		return
	}
	customerID := ""
	if member.ShopifyCustomerID != nil {
		customerID = *member.ShopifyCustomerID
	}

	res, err := s.sink.Push(ctx, &sink.PushRequest{
		TenantID:          entry.TenantID,
		MemberID:          entry.MemberID,
		ShopifyCustomerID: customerID,
		AmountCents:       entry.AmountCents,
		Currency:          "USD",
		IdempotencyKey:    entry.IdempotencyKey,
	})
	if err != nil {
		sinkFailuresTotal.Inc()
		logctx.FromCtx(ctx, s.log).Errorw("store credit sink push failed; entry flagged for reconciliation",
			"entry_id", entry.ID, "member_id", entry.MemberID, "source_id", entry.SourceID, "err", err)
		return
	}

	if _, err := s.SyncEntry(ctx, entry.TenantID, entry.ID, res.CreditID); err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("failed to mark entry synced", "entry_id", entry.ID, "err", err)
	}
}

// GetBalance returns the materialized balance, zero-valued when the
// member has no ledger history yet.
func (s *Service) GetBalance(ctx context.Context, tenantID, memberID string) (*models.MemberCreditBalance, error) {
	var balance models.MemberCreditBalance
	err := s.db.WithContext(ctx).Where("tenant_id = ? AND member_id = ?", tenantID, memberID).First(&balance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.MemberCreditBalance{MemberID: memberID, TenantID: tenantID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

type HistoryRequest struct {
	TenantID string
	MemberID string
	Limit    int
	Offset   int
}

// GetHistory lists a member's entries newest first.
func (s *Service) GetHistory(ctx context.Context, req *HistoryRequest) ([]*models.StoreCreditLedgerEntry, int64, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	q := s.db.WithContext(ctx).Model(&models.StoreCreditLedgerEntry{}).
		Where("tenant_id = ? AND member_id = ?", req.TenantID, req.MemberID)

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
