package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clearcomply/compliance-api/internal/audit"
	"github.com/clearcomply/compliance-api/internal/models"
	"github.com/clearcomply/compliance-api/internal/repository"
	"github.com/clearcomply/compliance-api/internal/tenantctx"
	"github.com/clearcomply/compliance-api/internal/utils"
	"gorm.io/gorm"
)

var (
	ErrWorkspaceNotFound  = errors.New("workspace not found")
	ErrWorkspaceInactive  = errors.New("workspace is inactive")
	ErrNotWorkspaceMember = errors.New("not a member of this workspace")
	ErrInvalidTier        = errors.New("invalid subscription tier")
	ErrOnlyOwnerMayDelete = errors.New("only an owner can delete a workspace")
)

// OrganizationService handles workspace lifecycle and selection.
type OrganizationService struct {
	db         *gorm.DB
	orgRepo    repository.OrganizationRepository
	dispatcher *audit.Dispatcher
}

// NewOrganizationService creates a new OrganizationService.
func NewOrganizationService(db *gorm.DB, orgRepo repository.OrganizationRepository, dispatcher *audit.Dispatcher) *OrganizationService {
	return &OrganizationService{
		db:         db,
		orgRepo:    orgRepo,
		dispatcher: dispatcher,
	}
}

// CreateWorkspaceInput holds the fields for creating a workspace.
type CreateWorkspaceInput struct {
	Name string
	Tier models.SubscriptionTier
}

// CreateWorkspace creates a workspace with the acting user as its sole
// owner. The quota columns are snapshotted from the tier at creation
// time so later tier changes are an explicit operation.
func (s *OrganizationService) CreateWorkspace(ctx context.Context, userID uint64, input CreateWorkspaceInput) (*models.Organization, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("workspace name is required")
	}

	tier := input.Tier
	if tier == "" {
		tier = models.TierFree
	}
	if !tier.Valid() {
		return nil, ErrInvalidTier
	}

	slug, err := utils.Slugify(name)
	if err != nil {
		return nil, fmt.Errorf("failed to generate slug: %w", err)
	}

	maxMembers, maxProjects, maxStorage := tier.Quotas()
	org := &models.Organization{
		Name:         name,
		Slug:         slug,
		IsActive:     true,
		Tier:         tier,
		MaxMembers:   maxMembers,
		MaxProjects:  maxProjects,
		MaxStorageMB: maxStorage,
	}

	ctx, trail := audit.WithTrail(ctx)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(org).Error; err != nil {
			return fmt.Errorf("failed to create workspace: %w", err)
		}

		member := &models.OrganizationMember{
			OrganizationID: org.ID,
			UserID:         userID,
			Role:           models.RoleOwner,
			IsActive:       true,
			JoinedAt:       time.Now().UTC(),
		}
		if err := tx.Create(member).Error; err != nil {
			return fmt.Errorf("failed to add owner membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.dispatcher.Dispatch(ctx, trail.Drain())

	return org, nil
}

// ListWorkspacesForUser returns every active workspace the user belongs
// to, for the workspace picker.
func (s *OrganizationService) ListWorkspacesForUser(ctx context.Context, userID uint64) ([]models.OrganizationMember, error) {
	memberships, err := s.orgRepo.ListMembershipsByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}

	active := make([]models.OrganizationMember, 0, len(memberships))
	for _, m := range memberships {
		if m.Organization.ID != 0 && m.Organization.IsActive {
			active = append(active, m)
		}
	}
	return active, nil
}

// GetWorkspaceWithMembers returns a workspace and its active members.
func (s *OrganizationService) GetWorkspaceWithMembers(ctx context.Context, organizationID uint64) (*models.Organization, []models.OrganizationMember, error) {
	org, err := s.orgRepo.FindByID(ctx, organizationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrWorkspaceNotFound
		}
		return nil, nil, fmt.Errorf("failed to find workspace: %w", err)
	}

	members, err := s.orgRepo.ListMembers(ctx, organizationID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list members: %w", err)
	}
	return org, members, nil
}

// UpdateWorkspaceName renames a workspace.
func (s *OrganizationService) UpdateWorkspaceName(ctx context.Context, org *models.Organization, name string) (*models.Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("workspace name is required")
	}

	org.Name = name
	if err := s.orgRepo.Update(ctx, org); err != nil {
		return nil, fmt.Errorf("failed to update workspace: %w", err)
	}
	return org, nil
}

// DeleteWorkspace soft deletes a workspace. Memberships and projects
// stay in place; the workspace stops resolving as a tenant, which
// takes everything under it out of reach.
func (s *OrganizationService) DeleteWorkspace(ctx context.Context, org *models.Organization, actorRole models.OrganizationRole) error {
	if actorRole != models.RoleOwner {
		return ErrOnlyOwnerMayDelete
	}

	ctx, trail := audit.WithTrail(ctx)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		org.IsActive = false
		if err := tx.Model(org).Update("is_active", false).Error; err != nil {
			return fmt.Errorf("failed to deactivate workspace: %w", err)
		}
		if err := tx.Delete(org).Error; err != nil {
			return fmt.Errorf("failed to delete workspace: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.dispatcher.Dispatch(ctx, trail.Drain())

	return nil
}

// SwitchWorkspace verifies the user may operate inside the workspace
// and returns the membership that grants access. The caller stores the
// result as the session's active workspace.
func (s *OrganizationService) SwitchWorkspace(ctx context.Context, userID, organizationID uint64) (*models.Organization, *models.OrganizationMember, error) {
	// The target is not the active tenant yet, so the lookup runs
	// outside tenant scoping.
	lookupCtx := tenantctx.WithoutTenant(ctx)

	org, err := s.orgRepo.FindByID(lookupCtx, organizationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrWorkspaceNotFound
		}
		return nil, nil, fmt.Errorf("failed to find workspace: %w", err)
	}
	if !org.IsActive {
		return nil, nil, ErrWorkspaceInactive
	}

	member, err := s.orgRepo.FindActiveMember(lookupCtx, organizationID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrNotWorkspaceMember
		}
		return nil, nil, fmt.Errorf("failed to find membership: %w", err)
	}

	return org, member, nil
}
