package member

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradeup/creditengine/internal/models"
	"github.com/tradeup/creditengine/pkg/types"
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
		&models.Member{},
		&models.TierConfiguration{},
	))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	return NewService(db, zap.NewNop().Sugar()), db
}

func goldTier(tenantID string, active bool) *models.TierConfiguration {
	return &models.TierConfiguration{
		TenantID:           tenantID,
		TierName:           "gold",
		TradeInBonusPct:    0.10,
		MonthlyCreditCents: 1000,
		Active:             active,
	}
}

func TestCreateMemberDefaults(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	m, err := svc.Create(ctx, &CreateMemberRequest{
		TenantID: "t1",
		Name:     "Ash",
		Email:    "ash@example.com",
		Tier:     "gold",
	})
	require.NoError(t, err)
	assert.Equal(t, types.MemberStatusActive, m.Status)
	assert.Equal(t, types.EnrollmentSourceStaff, m.EnrollmentSource)
	assert.NotEmpty(t, m.MemberNumber)
}

func TestCreateTierRejectsSecondActiveConfig(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateTier(ctx, goldTier("t1", true))
	require.NoError(t, err)

	_, err = svc.CreateTier(ctx, goldTier("t1", true))
	assert.ErrorIs(t, err, ErrTierConflict)

	// An inactive duplicate is fine.
	_, err = svc.CreateTier(ctx, goldTier("t1", false))
	assert.NoError(t, err)
}

func TestUpdateTierRejectsActivatingDuplicate(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	first, err := svc.CreateTier(ctx, goldTier("t1", true))
	require.NoError(t, err)
	second, err := svc.CreateTier(ctx, goldTier("t1", false))
	require.NoError(t, err)

	upd := goldTier("t1", true)
	_, err = svc.UpdateTier(ctx, "t1", second.ID, upd)
	assert.ErrorIs(t, err, ErrTierConflict)

	var active int64
	require.NoError(t, db.Model(&models.TierConfiguration{}).
		Where("tenant_id = ? AND tier_name = ? AND active = ?", "t1", "gold", true).
		Count(&active).Error)
	assert.Equal(t, int64(1), active)

	// Re-saving the already active config is not a conflict with itself.
	_, err = svc.UpdateTier(ctx, "t1", first.ID, goldTier("t1", true))
	assert.NoError(t, err)
}
