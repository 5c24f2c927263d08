package promotion

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradeup/creditengine/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection so the whole test shares a single in-memory db.
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.Promotion{},
		&models.PromotionUsage{},
	))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	return NewService(db, zap.NewNop().Sugar()), db
}

func TestCommitApplications_CapDegradation(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(p *models.Promotion)
		wantKept  int
		wantTotal int64
		wantUses  int64
	}{
		{
			name:      "within global cap",
			setup:     func(p *models.Promotion) { p.MaxUses = i64Ptr(2); p.CurrentUses = 1 },
			wantKept:  1,
			wantTotal: 1000,
			wantUses:  2,
		},
		{
			// A concurrent transaction took the last use between match and
			// commit; the promotion is dropped without failing the caller.
			name:      "global cap exhausted",
			setup:     func(p *models.Promotion) { p.MaxUses = i64Ptr(1); p.CurrentUses = 1 },
			wantKept:  0,
			wantTotal: 0,
			wantUses:  1,
		},
		{
			name:      "uncapped",
			setup:     func(p *models.Promotion) {},
			wantKept:  1,
			wantTotal: 1000,
			wantUses:  1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, db := newTestService(t)
			ctx := context.Background()

			p := basePromo("p1")
			tt.setup(p)
			require.NoError(t, db.Create(p).Error)

			apps := []Application{{Promotion: p, BonusCents: 1000}}
			err := db.Transaction(func(tx *gorm.DB) error {
				kept, total, err := svc.CommitApplications(ctx, tx, apps, "m1", "batch-1")
				require.NoError(t, err)
				assert.Len(t, kept, tt.wantKept)
				assert.Equal(t, tt.wantTotal, total)
				return nil
			})
			require.NoError(t, err)

			var got models.Promotion
			require.NoError(t, db.First(&got, "id = ?", p.ID).Error)
			assert.Equal(t, tt.wantUses, got.CurrentUses)

			var usages int64
			require.NoError(t, db.Model(&models.PromotionUsage{}).
				Where("promotion_id = ?", p.ID).Count(&usages).Error)
			assert.Equal(t, int64(tt.wantKept), usages)
		})
	}
}

func TestCommitApplications_PerMemberCap(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	p := basePromo("p1")
	p.MaxUsesPerMember = i64Ptr(1)
	require.NoError(t, db.Create(p).Error)

	commit := func(sourceID string) (int, int64) {
		var kept []Application
		var total int64
		err := db.Transaction(func(tx *gorm.DB) error {
			var err error
			kept, total, err = svc.CommitApplications(ctx, tx,
				[]Application{{Promotion: p, BonusCents: 500}}, "m1", sourceID)
			return err
		})
		require.NoError(t, err)
		return len(kept), total
	}

	n, total := commit("batch-1")
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(500), total)

	// Second use by the same member is dropped, and the failed per-member
	// check must not bump the global counter.
	n, total = commit("batch-2")
	assert.Equal(t, 0, n)
	assert.Zero(t, total)

	var got models.Promotion
	require.NoError(t, db.First(&got, "id = ?", p.ID).Error)
	assert.Equal(t, int64(1), got.CurrentUses)
}
