package member

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

var (
	ErrMemberNotFound = errors.New("member not found")
	ErrTierNotFound   = errors.New("tier configuration not found")
	ErrTierConflict   = errors.New("an active configuration already exists for this tier")
)

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

type CreateMemberRequest struct {
	TenantID          string
	ShopifyCustomerID *string
	MemberNumber      string
	Name              string
	Email             string
	Tier              string
	EnrollmentSource  types.EnrollmentSource
}

func (s *Service) Create(ctx context.Context, req *CreateMemberRequest) (*models.Member, error) {
	if req.Tier == "" {
		return nil, fmt.Errorf("tier is required")
	}
	source := req.EnrollmentSource
	if source == "" {
		source = types.EnrollmentSourceStaff
	}

	m := &models.Member{
		ID:                tool.GenerateUUIDV7(),
		TenantID:          req.TenantID,
		ShopifyCustomerID: req.ShopifyCustomerID,
		MemberNumber:      req.MemberNumber,
		Name:              req.Name,
		Email:             req.Email,
		Tier:              req.Tier,
		Status:            types.MemberStatusActive,
		EnrollmentSource:  source,
	}
	if m.MemberNumber == "" {
		m.MemberNumber = tool.GenerateUUIDV7()
	}
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, fmt.Errorf("failed to create member: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("member enrolled",
		"member_id", m.ID, "tier", m.Tier, "source", m.EnrollmentSource)
	return m, nil
}

func (s *Service) Get(ctx context.Context, tenantID, id string) (*models.Member, error) {
	var m models.Member
	err := s.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

type ListMembersRequest struct {
	TenantID string
	Tier     string
	Status   types.MemberStatus
	Limit    int
	Offset   int
}

func (s *Service) List(ctx context.Context, req *ListMembersRequest) ([]*models.Member, int64, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	q := s.db.WithContext(ctx).Model(&models.Member{}).Where("tenant_id = ?", req.TenantID)
	if req.Tier != "" {
		q = q.Where("tier = ?", req.Tier)
	}
	if req.Status != "" {
		q = q.Where("status = ?", req.Status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []*models.Member
	if err := q.Order("created_at desc, id desc").Limit(req.Limit).Offset(req.Offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

type UpdateMemberRequest struct {
	Name   *string
	Email  *string
	Tier   *string
	Status *types.MemberStatus
}

func (s *Service) Update(ctx context.Context, tenantID, id string, req *UpdateMemberRequest) (*models.Member, error) {
	m, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.Tier != nil {
		updates["tier"] = *req.Tier
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}
	if len(updates) == 0 {
		return m, nil
	}
	if err := s.db.WithContext(ctx).Model(m).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update member: %w", err)
	}
	return s.Get(ctx, tenantID, id)
}

// Tiers

func (s *Service) CreateTier(ctx context.Context, tier *models.TierConfiguration) (*models.TierConfiguration, error) {
	if tier.TierName == "" {
		return nil, fmt.Errorf("tier_name is required")
	}
	if tier.Active {
		var n int64
		if err := s.db.WithContext(ctx).Model(&models.TierConfiguration{}).
			Where("tenant_id = ? AND tier_name = ? AND active = ?", tier.TenantID, tier.TierName, true).
			Count(&n).Error; err != nil {
			return nil, err
		}
		if n > 0 {
			return nil, fmt.Errorf("%w: %s", ErrTierConflict, tier.TierName)
		}
	}
	if tier.ID == "" {
		tier.ID = tool.GenerateUUIDV7()
	}
	if err := s.db.WithContext(ctx).Create(tier).Error; err != nil {
		return nil, fmt.Errorf("failed to create tier configuration: %w", err)
	}
	return tier, nil
}

func (s *Service) ListTiers(ctx context.Context, tenantID string, activeOnly bool) ([]*models.TierConfiguration, error) {
	q := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var rows []*models.TierConfiguration
	if err := q.Order("display_order asc, tier_name asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Service) UpdateTier(ctx context.Context, tenantID, id string, tier *models.TierConfiguration) (*models.TierConfiguration, error) {
	var existing models.TierConfiguration
	err := s.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTierNotFound
	}
	if err != nil {
		return nil, err
	}

	tier.ID = existing.ID
	tier.TenantID = existing.TenantID
	tier.CreatedAt = existing.CreatedAt
	if tier.TierName == "" {
		tier.TierName = existing.TierName
	}
	if tier.Active {
		var n int64
		if err := s.db.WithContext(ctx).Model(&models.TierConfiguration{}).
			Where("tenant_id = ? AND tier_name = ? AND active = ? AND id <> ?", tier.TenantID, tier.TierName, true, tier.ID).
			Count(&n).Error; err != nil {
			return nil, err
		}
		if n > 0 {
			return nil, fmt.Errorf("%w: %s", ErrTierConflict, tier.TierName)
		}
	}
	if err := s.db.WithContext(ctx).Save(tier).Error; err != nil {
		return nil, fmt.Errorf("failed to update tier configuration: %w", err)
	}
	return tier, nil
}
