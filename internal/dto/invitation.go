package dto

import (
	"time"

	"github.com/clearcomply/compliance-api/internal/models"
	"github.com/clearcomply/compliance-api/internal/utils"
)

// InvitationDTO represents an invitation in API responses
type InvitationDTO struct {
	ID         uint64                  `json:"id"`
	Email      string                  `json:"email"`
	Role       models.OrganizationRole `json:"role"`
	Status     models.InvitationStatus `json:"status"`
	InvitedBy  uint64                  `json:"invited_by"`
	ExpiresAt  time.Time               `json:"expires_at"`
	AcceptedAt *time.Time              `json:"accepted_at,omitempty"`
	CreatedAt  time.Time               `json:"created_at"`
}

// InvitationCreatedDTO is the response to creating an invitation. The
// token is only disclosed here, once, to the inviter.
type InvitationCreatedDTO struct {
	InvitationDTO
	Token string `json:"token"`
}

// InvitationListResponse represents a paginated list of invitations
type InvitationListResponse struct {
	Invitations []InvitationDTO          `json:"invitations"`
	Pagination  utils.PaginationResponse `json:"pagination"`
}

// ToInvitationDTO converts an Invitation model to InvitationDTO
func ToInvitationDTO(invitation models.Invitation) InvitationDTO {
	return InvitationDTO{
		ID:         invitation.ID,
		Email:      invitation.Email,
		Role:       invitation.Role,
		Status:     invitation.Status,
		InvitedBy:  invitation.InvitedByID,
		ExpiresAt:  invitation.ExpiresAt,
		AcceptedAt: invitation.AcceptedAt,
		CreatedAt:  invitation.CreatedAt,
	}
}

// ToInvitationCreatedDTO converts a freshly created invitation,
// including its token.
func ToInvitationCreatedDTO(invitation models.Invitation) InvitationCreatedDTO {
	return InvitationCreatedDTO{
		InvitationDTO: ToInvitationDTO(invitation),
		Token:         invitation.Token,
	}
}

// ToInvitationListResponse converts invitations to a paginated response
func ToInvitationListResponse(invitations []models.Invitation, params utils.PaginationParams, total int64) InvitationListResponse {
	dtos := make([]InvitationDTO, len(invitations))
	for i, inv := range invitations {
		dtos[i] = ToInvitationDTO(inv)
	}

	return InvitationListResponse{
		Invitations: dtos,
		Pagination:  params.Response(total),
	}
}
