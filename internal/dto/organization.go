package dto

import (
	"time"

	"github.com/clearcomply/compliance-api/internal/models"
	"github.com/clearcomply/compliance-api/internal/utils"
)

// OrganizationDTO represents a workspace in API responses
type OrganizationDTO struct {
	ID          uint64                  `json:"id"`
	Name        string                  `json:"name"`
	Slug        string                  `json:"slug"`
	Tier        models.SubscriptionTier `json:"tier"`
	MaxMembers  int                     `json:"max_members,omitempty"`
	MaxProjects int                     `json:"max_projects,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
}

// OrganizationWithRoleDTO represents a workspace with the user's role
type OrganizationWithRoleDTO struct {
	OrganizationDTO
	Role models.OrganizationRole `json:"role"`
}

// OrganizationMemberDTO represents a member in a workspace
type OrganizationMemberDTO struct {
	User     UserDTO                 `json:"user"`
	Role     models.OrganizationRole `json:"role"`
	JoinedAt time.Time               `json:"joined_at"`
}

// OrganizationDetailDTO represents detailed workspace information
type OrganizationDetailDTO struct {
	OrganizationDTO
	Members  []OrganizationMemberDTO `json:"members"`
	YourRole models.OrganizationRole `json:"your_role"`
}

// AuditLogDTO represents an audit trail entry in API responses
type AuditLogDTO struct {
	ID          uint64    `json:"id"`
	ActorID     *uint64   `json:"actor_id,omitempty"`
	Action      string    `json:"action"`
	EntityTable string    `json:"entity_table"`
	EntityID    uint64    `json:"entity_id"`
	Description string    `json:"description"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// AuditLogListResponse represents a paginated audit trail
type AuditLogListResponse struct {
	Entries    []AuditLogDTO            `json:"entries"`
	Pagination utils.PaginationResponse `json:"pagination"`
}

// ToOrganizationDTO converts an Organization model to OrganizationDTO
func ToOrganizationDTO(org models.Organization, includeQuotas bool) OrganizationDTO {
	d := OrganizationDTO{
		ID:        org.ID,
		Name:      org.Name,
		Slug:      org.Slug,
		Tier:      org.Tier,
		CreatedAt: org.CreatedAt,
	}
	if includeQuotas {
		d.MaxMembers = org.MaxMembers
		d.MaxProjects = org.MaxProjects
	}
	return d
}

// ToOrganizationWithRoleDTO converts a membership to DTO with role
func ToOrganizationWithRoleDTO(member models.OrganizationMember) OrganizationWithRoleDTO {
	return OrganizationWithRoleDTO{
		OrganizationDTO: ToOrganizationDTO(member.Organization, false),
		Role:            member.Role,
	}
}

// ToOrganizationMemberDTO converts a member to DTO
func ToOrganizationMemberDTO(member models.OrganizationMember) OrganizationMemberDTO {
	return OrganizationMemberDTO{
		User:     ToUserDTO(member.User),
		Role:     member.Role,
		JoinedAt: member.JoinedAt,
	}
}

// ToOrganizationDetailDTO converts a workspace with members to detailed DTO
func ToOrganizationDetailDTO(org models.Organization, members []models.OrganizationMember, yourRole models.OrganizationRole) OrganizationDetailDTO {
	memberDTOs := make([]OrganizationMemberDTO, len(members))
	for i, member := range members {
		memberDTOs[i] = ToOrganizationMemberDTO(member)
	}

	return OrganizationDetailDTO{
		OrganizationDTO: ToOrganizationDTO(org, true),
		Members:         memberDTOs,
		YourRole:        yourRole,
	}
}

// ToAuditLogDTO converts an AuditLog model to AuditLogDTO
func ToAuditLogDTO(entry models.AuditLog) AuditLogDTO {
	return AuditLogDTO{
		ID:          entry.ID,
		ActorID:     entry.ActorID,
		Action:      entry.Action,
		EntityTable: entry.EntityTable,
		EntityID:    entry.EntityID,
		Description: entry.Description,
		OccurredAt:  entry.OccurredAt,
	}
}
