package handlers

import (
	"errors"
	"net/http"

	"github.com/clearcomply/compliance-api/internal/database"
	"github.com/clearcomply/compliance-api/internal/dto"
	apierrors "github.com/clearcomply/compliance-api/internal/errors"
	"github.com/clearcomply/compliance-api/internal/middleware"
	"github.com/clearcomply/compliance-api/internal/models"
	"github.com/clearcomply/compliance-api/internal/repository"
	"github.com/clearcomply/compliance-api/internal/services"
	"github.com/clearcomply/compliance-api/internal/utils"
	"github.com/gin-gonic/gin"
)

// OrganizationHandler coordinates workspace HTTP handlers.
type OrganizationHandler struct {
	orgService   *services.OrganizationService
	auditLogRepo repository.AuditLogRepository
}

// NewOrganizationHandler creates a new OrganizationHandler.
func NewOrganizationHandler(orgService *services.OrganizationService, auditLogRepo repository.AuditLogRepository) *OrganizationHandler {
	return &OrganizationHandler{
		orgService:   orgService,
		auditLogRepo: auditLogRepo,
	}
}

// CreateWorkspace creates a new workspace owned by the caller.
func (h *OrganizationHandler) CreateWorkspace(c *gin.Context) {
	type CreateRequest struct {
		Name string `json:"name" binding:"required,min=1,max=255"`
		Tier string `json:"tier"`
	}

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	org, err := h.orgService.CreateWorkspace(c.Request.Context(), userID, services.CreateWorkspaceInput{
		Name: req.Name,
		Tier: models.SubscriptionTier(req.Tier),
	})
	if err != nil {
		respondWorkspaceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToOrganizationDTO(*org, true))
}

// ListWorkspaces lists the caller's workspaces with their roles.
func (h *OrganizationHandler) ListWorkspaces(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	memberships, err := h.orgService.ListWorkspacesForUser(c.Request.Context(), userID)
	if err != nil {
		respondWorkspaceError(c, err)
		return
	}

	workspaces := make([]dto.OrganizationWithRoleDTO, len(memberships))
	for i, m := range memberships {
		workspaces[i] = dto.ToOrganizationWithRoleDTO(m)
	}

	c.JSON(http.StatusOK, gin.H{"organizations": workspaces})
}

// GetWorkspace returns workspace detail with its member roster.
func (h *OrganizationHandler) GetWorkspace(c *gin.Context) {
	org, ok := middleware.GetOrganization(c)
	if !ok {
		apierrors.NotFound(c, "Workspace not found")
		return
	}
	membership, _ := middleware.GetMembership(c)

	full, members, err := h.orgService.GetWorkspaceWithMembers(c.Request.Context(), org.ID)
	if err != nil {
		respondWorkspaceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToOrganizationDetailDTO(*full, members, membership.Role))
}

// UpdateWorkspace renames the workspace.
func (h *OrganizationHandler) UpdateWorkspace(c *gin.Context) {
	type UpdateRequest struct {
		Name string `json:"name" binding:"required,min=1,max=255"`
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	org, ok := middleware.GetOrganization(c)
	if !ok {
		apierrors.NotFound(c, "Workspace not found")
		return
	}

	updated, err := h.orgService.UpdateWorkspaceName(c.Request.Context(), &org, req.Name)
	if err != nil {
		respondWorkspaceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToOrganizationDTO(*updated, true))
}

// DeleteWorkspace soft deletes the workspace.
func (h *OrganizationHandler) DeleteWorkspace(c *gin.Context) {
	org, ok := middleware.GetOrganization(c)
	if !ok {
		apierrors.NotFound(c, "Workspace not found")
		return
	}
	membership, _ := middleware.GetMembership(c)

	if err := h.orgService.DeleteWorkspace(c.Request.Context(), &org, membership.Role); err != nil {
		respondWorkspaceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Workspace deleted"})
}

// ListAuditLog returns the workspace's audit trail, newest first.
func (h *OrganizationHandler) ListAuditLog(c *gin.Context) {
	org, ok := middleware.GetOrganization(c)
	if !ok {
		apierrors.NotFound(c, "Workspace not found")
		return
	}

	params := utils.GetPaginationParams(c)
	entries, total, err := h.auditLogRepo.ListByOrganization(c.Request.Context(), org.ID, params)
	if err != nil {
		apierrors.InternalError(c, "Failed to load audit log")
		return
	}

	dtos := make([]dto.AuditLogDTO, len(entries))
	for i, e := range entries {
		dtos[i] = dto.ToAuditLogDTO(e)
	}

	c.JSON(http.StatusOK, dto.AuditLogListResponse{
		Entries:    dtos,
		Pagination: params.Response(total),
	})
}

func respondWorkspaceError(c *gin.Context, err error) {
	switch {
	case database.IsIntegrityViolation(err):
		apierrors.IntegrityViolation(c, err)
	case errors.Is(err, services.ErrWorkspaceNotFound):
		apierrors.NotFound(c, err.Error())
	case errors.Is(err, services.ErrWorkspaceInactive),
		errors.Is(err, services.ErrNotWorkspaceMember):
		apierrors.NotFound(c, "Workspace not found")
	case errors.Is(err, services.ErrInvalidTier):
		apierrors.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrOnlyOwnerMayDelete):
		apierrors.Forbidden(c, err.Error())
	default:
		apierrors.InternalError(c, "Internal server error")
	}
}
