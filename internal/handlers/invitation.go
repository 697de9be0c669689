package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/clearcomply/compliance-api/internal/database"
	"github.com/clearcomply/compliance-api/internal/dto"
	apierrors "github.com/clearcomply/compliance-api/internal/errors"
	"github.com/clearcomply/compliance-api/internal/middleware"
	"github.com/clearcomply/compliance-api/internal/models"
	"github.com/clearcomply/compliance-api/internal/services"
	"github.com/clearcomply/compliance-api/internal/utils"
	"github.com/gin-gonic/gin"
)

// InvitationHandler coordinates invitation HTTP handlers.
type InvitationHandler struct {
	invitationService *services.InvitationService
	authService       *services.AuthService
}

// NewInvitationHandler creates a new InvitationHandler.
func NewInvitationHandler(invitationService *services.InvitationService, authService *services.AuthService) *InvitationHandler {
	return &InvitationHandler{
		invitationService: invitationService,
		authService:       authService,
	}
}

// CreateInvitation invites an email address into the workspace.
func (h *InvitationHandler) CreateInvitation(c *gin.Context) {
	type CreateRequest struct {
		Email string `json:"email" binding:"required,email"`
		Role  string `json:"role" binding:"required"`
	}

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	role, err := models.ParseOrganizationRole(req.Role)
	if err != nil {
		apierrors.BadRequest(c, err.Error())
		return
	}

	org, ok := middleware.GetOrganization(c)
	if !ok {
		apierrors.NotFound(c, "Workspace not found")
		return
	}
	actor, ok := middleware.GetMembership(c)
	if !ok {
		apierrors.Forbidden(c, "Workspace access required")
		return
	}

	invitation, err := h.invitationService.Create(c.Request.Context(), &org, &actor, services.CreateInvitationInput{
		Email: req.Email,
		Role:  role,
	})
	if err != nil {
		respondInvitationError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToInvitationCreatedDTO(*invitation))
}

// ListInvitations lists the workspace's invitations.
func (h *InvitationHandler) ListInvitations(c *gin.Context) {
	org, ok := middleware.GetOrganization(c)
	if !ok {
		apierrors.NotFound(c, "Workspace not found")
		return
	}

	params := utils.GetPaginationParams(c)
	invitations, total, err := h.invitationService.List(c.Request.Context(), org.ID, params)
	if err != nil {
		respondInvitationError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToInvitationListResponse(invitations, params, total))
}

// AcceptInvitation accepts an invitation by token on behalf of the
// authenticated user.
func (h *InvitationHandler) AcceptInvitation(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	member, err := h.invitationService.Accept(c.Request.Context(), user, c.Param("token"))
	if err != nil {
		respondInvitationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"organization_id": member.OrganizationID,
		"role":            member.Role,
	})
}

// DeclineInvitation declines an invitation by token.
func (h *InvitationHandler) DeclineInvitation(c *gin.Context) {
	type DeclineRequest struct {
		Reason string `json:"reason" binding:"max=500"`
	}

	// Body is optional for declines.
	var req DeclineRequest
	_ = c.ShouldBindJSON(&req)

	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	if err := h.invitationService.Decline(c.Request.Context(), user, c.Param("token"), req.Reason); err != nil {
		respondInvitationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Invitation declined"})
}

// RevokeInvitation withdraws a pending invitation.
func (h *InvitationHandler) RevokeInvitation(c *gin.Context) {
	invitationID, err := strconv.ParseUint(c.Param("invitationId"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid invitation ID")
		return
	}

	actor, ok := middleware.GetMembership(c)
	if !ok {
		apierrors.Forbidden(c, "Workspace access required")
		return
	}

	invitation, err := h.invitationService.Revoke(c.Request.Context(), invitationID, &actor)
	if err != nil {
		respondInvitationError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToInvitationDTO(*invitation))
}

func (h *InvitationHandler) currentUser(c *gin.Context) (*models.User, bool) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return nil, false
	}

	user, err := h.authService.GetUser(c.Request.Context(), userID)
	if err != nil {
		respondAuthError(c, err)
		return nil, false
	}
	return user, true
}

func respondInvitationError(c *gin.Context, err error) {
	switch {
	case database.IsIntegrityViolation(err):
		apierrors.IntegrityViolation(c, err)
	case errors.Is(err, services.ErrInvitationNotFound):
		apierrors.NotFound(c, err.Error())
	case errors.Is(err, services.ErrInvitationEmailMismatch),
		errors.Is(err, services.ErrInsufficientRole),
		errors.Is(err, services.ErrRoleEscalation),
		errors.Is(err, services.ErrOnlyOwnerGrantsOwner):
		apierrors.Forbidden(c, err.Error())
	case errors.Is(err, services.ErrInvitationAlreadyAccepted),
		errors.Is(err, services.ErrInvitationDeclined),
		errors.Is(err, services.ErrInvitationRevoked),
		errors.Is(err, services.ErrInvitationExpired),
		errors.Is(err, services.ErrInvitationNotPending):
		apierrors.UnprocessableEntity(c, err.Error())
	case errors.Is(err, services.ErrAlreadyMember),
		errors.Is(err, services.ErrPendingInvitationExists):
		apierrors.Conflict(c, err.Error())
	case errors.Is(err, services.ErrMemberQuotaReached):
		apierrors.RespondWithError(c, http.StatusUnprocessableEntity,
			apierrors.NewAPIError(apierrors.ErrCodeQuotaExceeded, err.Error()))
	case errors.Is(err, services.ErrInvalidRole):
		apierrors.BadRequest(c, err.Error())
	default:
		apierrors.InternalError(c, "Internal server error")
	}
}
