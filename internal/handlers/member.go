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
	"github.com/gin-gonic/gin"
)

// MemberHandler coordinates workspace membership HTTP handlers.
type MemberHandler struct {
	membershipService *services.MembershipService
	orgService        *services.OrganizationService
}

// NewMemberHandler creates a new MemberHandler.
func NewMemberHandler(membershipService *services.MembershipService, orgService *services.OrganizationService) *MemberHandler {
	return &MemberHandler{
		membershipService: membershipService,
		orgService:        orgService,
	}
}

// ListMembers lists the workspace's active members.
func (h *MemberHandler) ListMembers(c *gin.Context) {
	org, ok := middleware.GetOrganization(c)
	if !ok {
		apierrors.NotFound(c, "Workspace not found")
		return
	}

	_, members, err := h.orgService.GetWorkspaceWithMembers(c.Request.Context(), org.ID)
	if err != nil {
		respondWorkspaceError(c, err)
		return
	}

	dtos := make([]dto.OrganizationMemberDTO, len(members))
	for i, m := range members {
		dtos[i] = dto.ToOrganizationMemberDTO(m)
	}

	c.JSON(http.StatusOK, gin.H{"members": dtos})
}

// ChangeMemberRole assigns a new workspace role to a member.
func (h *MemberHandler) ChangeMemberRole(c *gin.Context) {
	type ChangeRoleRequest struct {
		Role string `json:"role" binding:"required"`
	}

	var req ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	role, err := models.ParseOrganizationRole(req.Role)
	if err != nil {
		apierrors.BadRequest(c, err.Error())
		return
	}

	org, targetUserID, actorUserID, ok := memberActionContext(c)
	if !ok {
		return
	}

	member, err := h.membershipService.ChangeMemberRole(c.Request.Context(), org.ID, actorUserID, targetUserID, role)
	if err != nil {
		respondMemberError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id": member.UserID,
		"role":    member.Role,
	})
}

// RemoveMember deactivates a member's workspace membership.
func (h *MemberHandler) RemoveMember(c *gin.Context) {
	org, targetUserID, actorUserID, ok := memberActionContext(c)
	if !ok {
		return
	}

	if err := h.membershipService.RemoveMember(c.Request.Context(), org.ID, actorUserID, targetUserID); err != nil {
		respondMemberError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Member removed"})
}

// LeaveWorkspace removes the caller's own membership.
func (h *MemberHandler) LeaveWorkspace(c *gin.Context) {
	org, ok := middleware.GetOrganization(c)
	if !ok {
		apierrors.NotFound(c, "Workspace not found")
		return
	}

	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	if err := h.membershipService.LeaveWorkspace(c.Request.Context(), org.ID, userID); err != nil {
		respondMemberError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Left workspace"})
}

// memberActionContext pulls the workspace, target user and acting user
// out of the request, responding with the right error when absent.
func memberActionContext(c *gin.Context) (models.Organization, uint64, uint64, bool) {
	org, ok := middleware.GetOrganization(c)
	if !ok {
		apierrors.NotFound(c, "Workspace not found")
		return models.Organization{}, 0, 0, false
	}

	targetUserID, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid user ID")
		return models.Organization{}, 0, 0, false
	}

	actorUserID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return models.Organization{}, 0, 0, false
	}

	return org, targetUserID, actorUserID, true
}

func respondMemberError(c *gin.Context, err error) {
	switch {
	case database.IsIntegrityViolation(err):
		apierrors.IntegrityViolation(c, err)
	case errors.Is(err, services.ErrNotWorkspaceMember),
		errors.Is(err, services.ErrMemberNotFound):
		apierrors.NotFound(c, err.Error())
	case errors.Is(err, services.ErrInsufficientRole),
		errors.Is(err, services.ErrCannotActOnPeer),
		errors.Is(err, services.ErrRoleEscalation),
		errors.Is(err, services.ErrOnlyOwnerGrantsOwner):
		apierrors.Forbidden(c, err.Error())
	case errors.Is(err, services.ErrLastOwner):
		apierrors.UnprocessableEntity(c, err.Error())
	case errors.Is(err, services.ErrInvalidRole):
		apierrors.BadRequest(c, err.Error())
	default:
		apierrors.InternalError(c, "Internal server error")
	}
}
