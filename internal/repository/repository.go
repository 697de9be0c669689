package repository

import (
	"context"

	"github.com/clearcomply/compliance-api/internal/models"
	"github.com/clearcomply/compliance-api/internal/utils"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create creates a new user
	Create(ctx context.Context, user *models.User) error

	// CreateWithPersonalWorkspace creates a user, their personal
	// workspace, and the self-owner membership within one transaction.
	CreateWithPersonalWorkspace(ctx context.Context, user *models.User, org *models.Organization, member *models.OrganizationMember) error

	// FindByID finds a user by ID
	FindByID(ctx context.Context, id uint64) (*models.User, error)

	// FindByEmail finds a user by email
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// OrganizationRepository defines the interface for workspace data access
type OrganizationRepository interface {
	// Create creates a new organization
	Create(ctx context.Context, org *models.Organization) error

	// FindByID finds an organization by ID
	FindByID(ctx context.Context, id uint64) (*models.Organization, error)

	// FindBySlug finds an organization by slug
	FindBySlug(ctx context.Context, slug string) (*models.Organization, error)

	// Update updates an organization
	Update(ctx context.Context, org *models.Organization) error

	// Delete soft deletes an organization
	Delete(ctx context.Context, org *models.Organization) error

	// AddMember adds a member to an organization
	AddMember(ctx context.Context, member *models.OrganizationMember) error

	// SaveMember persists changes to an existing membership
	SaveMember(ctx context.Context, member *models.OrganizationMember) error

	// FindActiveMember finds an active membership
	FindActiveMember(ctx context.Context, organizationID, userID uint64) (*models.OrganizationMember, error)

	// FindMemberAnyState finds a membership regardless of IsActive
	FindMemberAnyState(ctx context.Context, organizationID, userID uint64) (*models.OrganizationMember, error)

	// ListMembers lists active members of an organization
	ListMembers(ctx context.Context, organizationID uint64) ([]models.OrganizationMember, error)

	// ListMembershipsByUserID lists all active memberships of a user
	ListMembershipsByUserID(ctx context.Context, userID uint64) ([]models.OrganizationMember, error)

	// CountActiveMembers counts active members of an organization
	CountActiveMembers(ctx context.Context, organizationID uint64) (int64, error)
}

// InvitationRepository defines the interface for invitation data access
type InvitationRepository interface {
	Create(ctx context.Context, invitation *models.Invitation) error
	FindByID(ctx context.Context, id uint64) (*models.Invitation, error)
	FindByToken(ctx context.Context, token string) (*models.Invitation, error)
	FindPendingByEmail(ctx context.Context, organizationID uint64, email string) (*models.Invitation, error)
	Save(ctx context.Context, invitation *models.Invitation) error
	ListByOrganization(ctx context.Context, organizationID uint64, params utils.PaginationParams) ([]models.Invitation, int64, error)
}

// ProjectRepository defines the interface for project data access
type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	FindByID(ctx context.Context, id uint64) (*models.Project, error)
	Update(ctx context.Context, project *models.Project) error
	Delete(ctx context.Context, project *models.Project) error
	List(ctx context.Context, organizationID uint64, params utils.PaginationParams) ([]models.Project, int64, error)
	CountByOrganization(ctx context.Context, organizationID uint64) (int64, error)

	AddMember(ctx context.Context, member *models.ProjectMember) error
	SaveMember(ctx context.Context, member *models.ProjectMember) error
	FindActiveMember(ctx context.Context, projectID, userID uint64) (*models.ProjectMember, error)
	FindMemberAnyState(ctx context.Context, projectID, userID uint64) (*models.ProjectMember, error)
	ListMembers(ctx context.Context, projectID uint64) ([]models.ProjectMember, error)
}

// AuditLogRepository defines read access to the audit trail
type AuditLogRepository interface {
	ListByOrganization(ctx context.Context, organizationID uint64, params utils.PaginationParams) ([]models.AuditLog, int64, error)
}
