package repository

import (
	"context"

	"github.com/clearcomply/compliance-api/internal/database"
	"github.com/clearcomply/compliance-api/internal/models"
	"github.com/clearcomply/compliance-api/internal/tenantctx"
	"github.com/clearcomply/compliance-api/internal/utils"
	"gorm.io/gorm"
)

// GormInvitationRepository is a GORM implementation of InvitationRepository
type GormInvitationRepository struct {
	db *gorm.DB
}

// NewInvitationRepository creates a new InvitationRepository
func NewInvitationRepository(db *gorm.DB) InvitationRepository {
	return &GormInvitationRepository{db: db}
}

// Create creates a new invitation
func (r *GormInvitationRepository) Create(ctx context.Context, invitation *models.Invitation) error {
	return r.db.WithContext(ctx).Create(invitation).Error
}

// FindByID finds an invitation by ID
func (r *GormInvitationRepository) FindByID(ctx context.Context, id uint64) (*models.Invitation, error) {
	var invitation models.Invitation
	if err := r.db.WithContext(ctx).First(&invitation, id).Error; err != nil {
		return nil, err
	}
	return &invitation, nil
}

// FindByToken finds an invitation by its opaque token. Tenant filtering
// is masked: the accepting user is not yet a member of the workspace,
// so the lookup crosses tenant boundaries by nature.
func (r *GormInvitationRepository) FindByToken(ctx context.Context, token string) (*models.Invitation, error) {
	var invitation models.Invitation
	if err := r.db.WithContext(tenantctx.WithoutTenant(ctx)).
		Preload("Organization").
		Where("token = ?", token).
		First(&invitation).Error; err != nil {
		return nil, err
	}
	return &invitation, nil
}

// FindPendingByEmail finds a pending invitation for the given email in
// the organization.
func (r *GormInvitationRepository) FindPendingByEmail(ctx context.Context, organizationID uint64, email string) (*models.Invitation, error) {
	var invitation models.Invitation
	if err := r.db.WithContext(ctx).
		Where("organization_id = ? AND LOWER(email) = LOWER(?) AND status = ?",
			organizationID, email, models.InvitationPending).
		First(&invitation).Error; err != nil {
		return nil, err
	}
	return &invitation, nil
}

// Save persists changes to an existing invitation
func (r *GormInvitationRepository) Save(ctx context.Context, invitation *models.Invitation) error {
	return r.db.WithContext(ctx).Save(invitation).Error
}

// ListByOrganization lists invitations of an organization, newest first
func (r *GormInvitationRepository) ListByOrganization(ctx context.Context, organizationID uint64, params utils.PaginationParams) ([]models.Invitation, int64, error) {
	var total int64
	query := r.db.WithContext(ctx).Model(&models.Invitation{}).
		Where("organization_id = ?", organizationID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var invitations []models.Invitation
	if err := query.
		Order("created_at DESC").
		Scopes(database.Paginate(params)).
		Find(&invitations).Error; err != nil {
		return nil, 0, err
	}
	return invitations, total, nil
}
