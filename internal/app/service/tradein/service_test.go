package tradein

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradeup/creditengine/internal/app/service/ledger"
	"github.com/tradeup/creditengine/internal/app/service/payout"
	"github.com/tradeup/creditengine/internal/app/service/promotion"
	"github.com/tradeup/creditengine/internal/app/service/sink"
	"github.com/tradeup/creditengine/internal/models"
	"github.com/tradeup/creditengine/pkg/config"
	"github.com/tradeup/creditengine/pkg/tool"
	"github.com/tradeup/creditengine/pkg/types"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type nullSink struct{}

func (nullSink) Push(context.Context, *sink.PushRequest) (*sink.PushResult, error) {
	return &sink.PushResult{CreditID: "cid"}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Categories: []*types.CategoryRate{
			{ID: "pokemon", Name: "Pokemon", BasePayoutPct: 0.60},
		},
		Conditions: []*types.ConditionInfo{
			{Code: "near_mint", Modifier: 1.0},
			{Code: "light_play", Modifier: 0.85},
		},
		BulkBonusTiers: []*types.BulkBonusTier{
			{MinItems: 20, BonusPct: 0.05},
		},
	}
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection so the whole test shares a single in-memory db.
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.Member{},
		&models.TierConfiguration{},
		&models.TradeInBatch{},
		&models.TradeInItem{},
		&models.Promotion{},
		&models.PromotionUsage{},
		&models.StoreCreditLedgerEntry{},
		&models.MemberCreditBalance{},
	))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	log := zap.NewNop().Sugar()
	l := ledger.NewService(db, log, nullSink{})
	promos := promotion.NewService(db, log)
	calc := payout.NewCalculator(testConfig())
	return NewService(db, log, calc, promos, l), db
}

func seedMemberTier(t *testing.T, db *gorm.DB) *models.Member {
	t.Helper()
	require.NoError(t, db.Create(&models.TierConfiguration{
		ID:              tool.GenerateUUIDV7(),
		TenantID:        "t1",
		TierName:        "gold",
		TradeInBonusPct: 0.10,
		Active:          true,
	}).Error)
	m := &models.Member{
		ID:               tool.GenerateUUIDV7(),
		TenantID:         "t1",
		MemberNumber:     "M-0001",
		Tier:             "gold",
		Status:           types.MemberStatusActive,
		EnrollmentSource: types.EnrollmentSourceStaff,
	}
	require.NoError(t, db.Create(m).Error)
	return m
}

func approvedBatch(t *testing.T, svc *Service, db *gorm.DB, m *models.Member) *models.TradeInBatch {
	t.Helper()
	batch, err := svc.Create(context.Background(), &CreateRequest{
		TenantID: "t1",
		MemberID: m.ID,
		Category: "pokemon",
		Items: []payout.Item{
			{Category: "pokemon", MarketValueCents: 10000, Condition: "near_mint", Quantity: 1},
		},
	})
	require.NoError(t, err)
	_, err = svc.UpdateStatus(context.Background(), "t1", batch.ID, types.BatchStatusPendingReview)
	require.NoError(t, err)
	_, err = svc.UpdateStatus(context.Background(), "t1", batch.ID, types.BatchStatusApproved)
	require.NoError(t, err)
	return batch
}

func TestCompleteCreditsPayout(t *testing.T) {
	svc, db := newTestService(t)
	m := seedMemberTier(t, db)
	batch := approvedBatch(t, svc, db, m)

	// $100 near_mint pokemon: 60% base = $60, +10% tier = $66.
	res, err := svc.Complete(context.Background(), "t1", batch.ID, types.ChannelInStore)
	require.NoError(t, err)
	assert.Equal(t, int64(6600), res.TradeValueCents)
	assert.False(t, res.AlreadyCompleted)
	assert.False(t, res.Bonus.Eligible)

	var bal models.MemberCreditBalance
	require.NoError(t, db.Where("member_id = ?", m.ID).First(&bal).Error)
	assert.Equal(t, int64(6600), bal.BalanceCents)

	var got models.Member
	require.NoError(t, db.Where("id = ?", m.ID).First(&got).Error)
	assert.Equal(t, int64(1), got.TotalTradeIns)
	assert.Equal(t, int64(6600), got.TotalTradeValueCents)
}

func TestCompleteReplaysInsteadOfDoubleCrediting(t *testing.T) {
	svc, db := newTestService(t)
	m := seedMemberTier(t, db)
	batch := approvedBatch(t, svc, db, m)

	first, err := svc.Complete(context.Background(), "t1", batch.ID, types.ChannelInStore)
	require.NoError(t, err)

	second, err := svc.Complete(context.Background(), "t1", batch.ID, types.ChannelInStore)
	require.NoError(t, err)
	assert.True(t, second.AlreadyCompleted)
	assert.Equal(t, first.TradeValueCents, second.TradeValueCents)

	var count int64
	require.NoError(t, db.Model(&models.StoreCreditLedgerEntry{}).Where("member_id = ?", m.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	var bal models.MemberCreditBalance
	require.NoError(t, db.Where("member_id = ?", m.ID).First(&bal).Error)
	assert.Equal(t, int64(6600), bal.BalanceCents)
}

func TestCompleteAppliesPromotionBonus(t *testing.T) {
	svc, db := newTestService(t)
	m := seedMemberTier(t, db)

	pct := 0.15
	require.NoError(t, db.Create(&models.Promotion{
		ID:       tool.GenerateUUIDV7(),
		TenantID: "t1",
		Name:     "15% trade-in weekend",
		Type:     types.PromoTypeTradeInBonus,
		Payload:  datatypes.NewJSONType(&models.PromotionPayload{BonusPct: &pct}),
		StartsAt: time.Now().Add(-time.Hour),
		EndsAt:   time.Now().Add(time.Hour),
		Channel:  types.ChannelAll,
		Active:   true,
	}).Error)

	batch := approvedBatch(t, svc, db, m)
	res, err := svc.Complete(context.Background(), "t1", batch.ID, types.ChannelInStore)
	require.NoError(t, err)

	// 15% of the $66.00 payout.
	assert.True(t, res.Bonus.Eligible)
	assert.Equal(t, int64(990), res.Bonus.BonusAmountCents)
	assert.Equal(t, int64(6600+990), res.TotalCents)

	var bal models.MemberCreditBalance
	require.NoError(t, db.Where("member_id = ?", m.ID).First(&bal).Error)
	assert.Equal(t, int64(7590), bal.BalanceCents)

	var usage int64
	require.NoError(t, db.Model(&models.PromotionUsage{}).Where("member_id = ?", m.ID).Count(&usage).Error)
	assert.Equal(t, int64(1), usage)
}

func TestCompleteRequiresApprovedStatus(t *testing.T) {
	svc, db := newTestService(t)
	m := seedMemberTier(t, db)

	batch, err := svc.Create(context.Background(), &CreateRequest{
		TenantID: "t1",
		MemberID: m.ID,
		Category: "pokemon",
		Items: []payout.Item{
			{Category: "pokemon", MarketValueCents: 10000, Condition: "near_mint", Quantity: 1},
		},
	})
	require.NoError(t, err)

	_, err = svc.Complete(context.Background(), "t1", batch.ID, types.ChannelInStore)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestReplaceItemsRejectedAfterApproval(t *testing.T) {
	svc, db := newTestService(t)
	m := seedMemberTier(t, db)
	batch := approvedBatch(t, svc, db, m)

	_, err := svc.ReplaceItems(context.Background(), "t1", batch.ID, []payout.Item{
		{Category: "pokemon", MarketValueCents: 500, Condition: "near_mint", Quantity: 1},
	})
	require.ErrorIs(t, err, ErrBatchImmutable)
}

func TestStatusTransitionGuard(t *testing.T) {
	svc, db := newTestService(t)
	m := seedMemberTier(t, db)

	batch, err := svc.Create(context.Background(), &CreateRequest{
		TenantID: "t1",
		MemberID: m.ID,
		Category: "pokemon",
		Items: []payout.Item{
			{Category: "pokemon", MarketValueCents: 1000, Condition: "near_mint", Quantity: 1},
		},
	})
	require.NoError(t, err)

	// draft cannot jump straight to approved.
	_, err = svc.UpdateStatus(context.Background(), "t1", batch.ID, types.BatchStatusApproved)
	require.ErrorIs(t, err, ErrInvalidTransition)
}
