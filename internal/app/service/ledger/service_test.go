package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradeup/creditengine/internal/app/service/sink"
	"github.com/tradeup/creditengine/internal/models"
	"github.com/tradeup/creditengine/pkg/tool"
	"github.com/tradeup/creditengine/pkg/types"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeSink struct {
	mu     sync.Mutex
	pushes []*sink.PushRequest
	err    error
}

func (f *fakeSink) Push(_ context.Context, req *sink.PushRequest) (*sink.PushResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.pushes = append(f.pushes, req)
	return &sink.PushResult{CreditID: "gid://shopify/credit/" + req.IdempotencyKey}, nil
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection so the whole test shares a single in-memory db.
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.Member{},
		&models.StoreCreditLedgerEntry{},
		&models.MemberCreditBalance{},
	))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	return db
}

func newTestService(t *testing.T) (*Service, *fakeSink, *gorm.DB) {
	t.Helper()
	db := testDB(t)
	fs := &fakeSink{}
	return NewService(db, zap.NewNop().Sugar(), fs), fs, db
}

func seedMember(t *testing.T, db *gorm.DB) *models.Member {
	t.Helper()
	cid := "cust-1"
	m := &models.Member{
		ID:                tool.GenerateUUIDV7(),
		TenantID:          "t1",
		ShopifyCustomerID: &cid,
		MemberNumber:      "M-0001",
		Tier:              "gold",
		Status:            types.MemberStatusActive,
		EnrollmentSource:  types.EnrollmentSourceStaff,
	}
	require.NoError(t, db.Create(m).Error)
	return m
}

func creditReq(m *models.Member, amount int64, key string) *Request {
	return &Request{
		TenantID:       m.TenantID,
		MemberID:       m.ID,
		AmountCents:    amount,
		EventType:      types.CreditEventTradeIn,
		SourceType:     "trade_in_batch",
		SourceID:       "batch-1",
		IdempotencyKey: key,
	}
}

func TestCreditBuildsBalanceChain(t *testing.T) {
	svc, fs, db := newTestService(t)
	m := seedMember(t, db)

	r1, err := svc.Credit(context.Background(), creditReq(m, 1000, "k-1"))
	require.NoError(t, err)
	assert.False(t, r1.Replayed)
	assert.Equal(t, int64(1000), r1.Entry.BalanceAfterCents)

	r2, err := svc.Credit(context.Background(), creditReq(m, 500, "k-2"))
	require.NoError(t, err)
	assert.Equal(t, int64(1500), r2.Entry.BalanceAfterCents)

	bal, err := svc.GetBalance(context.Background(), m.TenantID, m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), bal.BalanceCents)
	assert.Equal(t, int64(1500), bal.TotalEarnedCents)
	assert.Equal(t, int64(0), bal.TotalSpentCents)

	assert.Len(t, fs.pushes, 2)
}

func TestDebitInsufficientBalanceWritesNothing(t *testing.T) {
	svc, _, db := newTestService(t)
	m := seedMember(t, db)

	_, err := svc.Credit(context.Background(), creditReq(m, 1500, "k-1"))
	require.NoError(t, err)

	_, err = svc.Debit(context.Background(), &Request{
		TenantID:       m.TenantID,
		MemberID:       m.ID,
		AmountCents:    2000,
		EventType:      types.CreditEventRedemption,
		SourceType:     "redemption",
		SourceID:       "r-1",
		IdempotencyKey: "k-debit",
	})
	require.ErrorIs(t, err, ErrInsufficientBalance)

	// Balance unchanged and no debit entry written.
	bal, err := svc.GetBalance(context.Background(), m.TenantID, m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), bal.BalanceCents)

	var count int64
	require.NoError(t, db.Model(&models.StoreCreditLedgerEntry{}).Where("member_id = ?", m.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestDebitReducesBalance(t *testing.T) {
	svc, _, db := newTestService(t)
	m := seedMember(t, db)

	_, err := svc.Credit(context.Background(), creditReq(m, 2000, "k-1"))
	require.NoError(t, err)

	res, err := svc.Debit(context.Background(), &Request{
		TenantID:       m.TenantID,
		MemberID:       m.ID,
		AmountCents:    750,
		EventType:      types.CreditEventRedemption,
		SourceType:     "redemption",
		SourceID:       "r-1",
		IdempotencyKey: "k-debit",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(-750), res.Entry.AmountCents)
	assert.Equal(t, int64(1250), res.Entry.BalanceAfterCents)

	bal, err := svc.GetBalance(context.Background(), m.TenantID, m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1250), bal.BalanceCents)
	assert.Equal(t, int64(750), bal.TotalSpentCents)
}

func TestIdempotentReplayReturnsOriginalEntry(t *testing.T) {
	svc, fs, db := newTestService(t)
	m := seedMember(t, db)

	r1, err := svc.Credit(context.Background(), creditReq(m, 1000, "same-key"))
	require.NoError(t, err)
	require.False(t, r1.Replayed)

	r2, err := svc.Credit(context.Background(), creditReq(m, 1000, "same-key"))
	require.NoError(t, err)
	assert.True(t, r2.Replayed)
	assert.Equal(t, r1.Entry.ID, r2.Entry.ID)

	var count int64
	require.NoError(t, db.Model(&models.StoreCreditLedgerEntry{}).Where("member_id = ?", m.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	bal, err := svc.GetBalance(context.Background(), m.TenantID, m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), bal.BalanceCents)

	// Replay does not re-push to the sink.
	assert.Len(t, fs.pushes, 1)
}

func TestSinkFailureDoesNotFailCredit(t *testing.T) {
	svc, fs, db := newTestService(t)
	fs.err = sink.ErrUnavailable
	m := seedMember(t, db)

	res, err := svc.Credit(context.Background(), creditReq(m, 1000, "k-1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1000), res.Entry.BalanceAfterCents)

	var entry models.StoreCreditLedgerEntry
	require.NoError(t, db.Where("id = ?", res.Entry.ID).First(&entry).Error)
	assert.False(t, entry.SyncedToShopify)
}

func TestGetBalanceIsTenantScoped(t *testing.T) {
	svc, _, db := newTestService(t)
	m := seedMember(t, db)

	_, err := svc.Credit(context.Background(), creditReq(m, 1000, "k-1"))
	require.NoError(t, err)

	// Another tenant asking about the same member id sees nothing.
	bal, err := svc.GetBalance(context.Background(), "t2", m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), bal.BalanceCents)
	assert.Equal(t, "t2", bal.TenantID)

	bal, err = svc.GetBalance(context.Background(), m.TenantID, m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), bal.BalanceCents)
}

func TestConcurrentCreditsSerialize(t *testing.T) {
	svc, _, db := newTestService(t)
	m := seedMember(t, db)

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Credit(context.Background(), creditReq(m, 100, fmt.Sprintf("k-%d", i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	bal, err := svc.GetBalance(context.Background(), m.TenantID, m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(n*100), bal.BalanceCents)

	// Every entry's running balance must be consistent with its position.
	var entries []*models.StoreCreditLedgerEntry
	require.NoError(t, db.Where("member_id = ?", m.ID).Order("balance_after_cents asc").Find(&entries).Error)
	require.Len(t, entries, n)
	for i, e := range entries {
		assert.Equal(t, int64((i+1)*100), e.BalanceAfterCents)
	}
}
