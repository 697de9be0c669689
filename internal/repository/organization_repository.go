package repository

import (
	"context"

	"github.com/clearcomply/compliance-api/internal/models"
	"github.com/clearcomply/compliance-api/internal/tenantctx"
	"gorm.io/gorm"
)

// GormOrganizationRepository is a GORM implementation of OrganizationRepository
type GormOrganizationRepository struct {
	db *gorm.DB
}

// NewOrganizationRepository creates a new OrganizationRepository
func NewOrganizationRepository(db *gorm.DB) OrganizationRepository {
	return &GormOrganizationRepository{db: db}
}

// Create creates a new organization
func (r *GormOrganizationRepository) Create(ctx context.Context, org *models.Organization) error {
	return r.db.WithContext(ctx).Create(org).Error
}

// FindByID finds an organization by ID
func (r *GormOrganizationRepository) FindByID(ctx context.Context, id uint64) (*models.Organization, error) {
	var org models.Organization
	if err := r.db.WithContext(ctx).First(&org, id).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

// FindBySlug finds an organization by slug
func (r *GormOrganizationRepository) FindBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	var org models.Organization
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&org).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

// Update updates an organization
func (r *GormOrganizationRepository) Update(ctx context.Context, org *models.Organization) error {
	return r.db.WithContext(ctx).Save(org).Error
}

// Delete soft deletes an organization. Members and projects are kept;
// they disappear from reads through query scoping, not physical cascade.
func (r *GormOrganizationRepository) Delete(ctx context.Context, org *models.Organization) error {
	return r.db.WithContext(ctx).Delete(org).Error
}

// AddMember adds a member to an organization
func (r *GormOrganizationRepository) AddMember(ctx context.Context, member *models.OrganizationMember) error {
	return r.db.WithContext(ctx).Create(member).Error
}

// SaveMember persists changes to an existing membership
func (r *GormOrganizationRepository) SaveMember(ctx context.Context, member *models.OrganizationMember) error {
	return r.db.WithContext(ctx).Save(member).Error
}

// FindActiveMember finds an active membership
func (r *GormOrganizationRepository) FindActiveMember(ctx context.Context, organizationID, userID uint64) (*models.OrganizationMember, error) {
	var member models.OrganizationMember
	if err := r.db.WithContext(ctx).
		Where("organization_id = ? AND user_id = ? AND is_active = ?", organizationID, userID, true).
		First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

// FindMemberAnyState finds a membership regardless of IsActive
func (r *GormOrganizationRepository) FindMemberAnyState(ctx context.Context, organizationID, userID uint64) (*models.OrganizationMember, error) {
	var member models.OrganizationMember
	if err := r.db.WithContext(ctx).
		Where("organization_id = ? AND user_id = ?", organizationID, userID).
		First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

// ListMembers lists active members of an organization
func (r *GormOrganizationRepository) ListMembers(ctx context.Context, organizationID uint64) ([]models.OrganizationMember, error) {
	var members []models.OrganizationMember
	if err := r.db.WithContext(ctx).Preload("User").
		Where("organization_id = ? AND is_active = ?", organizationID, true).
		Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

// ListMembershipsByUserID lists all active memberships of a user
// together with their organizations. Tenant filtering is masked: this
// backs the workspace picker, which must see every workspace the
// caller belongs to regardless of the active one.
func (r *GormOrganizationRepository) ListMembershipsByUserID(ctx context.Context, userID uint64) ([]models.OrganizationMember, error) {
	var memberships []models.OrganizationMember
	if err := r.db.WithContext(tenantctx.WithoutTenant(ctx)).Preload("Organization").
		Where("user_id = ? AND is_active = ?", userID, true).
		Find(&memberships).Error; err != nil {
		return nil, err
	}
	return memberships, nil
}

// CountActiveMembers counts active members of an organization
func (r *GormOrganizationRepository) CountActiveMembers(ctx context.Context, organizationID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.OrganizationMember{}).
		Where("organization_id = ? AND is_active = ?", organizationID, true).
		Count(&count).Error
	return count, err
}
