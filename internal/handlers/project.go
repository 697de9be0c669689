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

// ProjectHandler coordinates project HTTP handlers.
type ProjectHandler struct {
	projectService  *services.ProjectService
	analysisService *services.AnalysisService
}

// NewProjectHandler creates a new ProjectHandler.
func NewProjectHandler(projectService *services.ProjectService, analysisService *services.AnalysisService) *ProjectHandler {
	return &ProjectHandler{
		projectService:  projectService,
		analysisService: analysisService,
	}
}

// CreateProject creates a project in the workspace.
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	type CreateRequest struct {
		Name        string `json:"name" binding:"required,min=1,max=255"`
		Description string `json:"description" binding:"max=2000"`
		Framework   string `json:"framework" binding:"max=100"`
	}

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

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

	project, err := h.projectService.CreateProject(c.Request.Context(), &org, userID, services.CreateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		Framework:   req.Framework,
	})
	if err != nil {
		respondProjectError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToProjectDTO(*project))
}

// ListProjects lists the workspace's projects.
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	org, ok := middleware.GetOrganization(c)
	if !ok {
		apierrors.NotFound(c, "Workspace not found")
		return
	}

	params := utils.GetPaginationParams(c)
	projects, total, err := h.projectService.ListProjects(c.Request.Context(), org.ID, params)
	if err != nil {
		respondProjectError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToProjectListResponse(projects, params, total))
}

// GetProject returns a project.
func (h *ProjectHandler) GetProject(c *gin.Context) {
	project, ok := middleware.GetProject(c)
	if !ok {
		apierrors.NotFound(c, "Project not found")
		return
	}

	c.JSON(http.StatusOK, dto.ToProjectDTO(project))
}

// UpdateProject applies changes to a project.
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	type UpdateRequest struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		Framework   *string `json:"framework"`
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	project, ok := middleware.GetProject(c)
	if !ok {
		apierrors.NotFound(c, "Project not found")
		return
	}

	updated, err := h.projectService.UpdateProject(c.Request.Context(), &project, services.UpdateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		Framework:   req.Framework,
	})
	if err != nil {
		respondProjectError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToProjectDTO(*updated))
}

// DeleteProject soft deletes a project.
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	project, ok := middleware.GetProject(c)
	if !ok {
		apierrors.NotFound(c, "Project not found")
		return
	}

	if err := h.projectService.DeleteProject(c.Request.Context(), &project); err != nil {
		respondProjectError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Project deleted"})
}

// ListProjectMembers lists the project's active members.
func (h *ProjectHandler) ListProjectMembers(c *gin.Context) {
	project, ok := middleware.GetProject(c)
	if !ok {
		apierrors.NotFound(c, "Project not found")
		return
	}

	members, err := h.projectService.ListProjectMembers(c.Request.Context(), project.ID)
	if err != nil {
		respondProjectError(c, err)
		return
	}

	dtos := make([]dto.ProjectMemberDTO, len(members))
	for i, m := range members {
		dtos[i] = dto.ToProjectMemberDTO(m)
	}

	c.JSON(http.StatusOK, gin.H{"members": dtos})
}

// AddProjectMember adds a workspace member to the project.
func (h *ProjectHandler) AddProjectMember(c *gin.Context) {
	type AddRequest struct {
		UserID uint64 `json:"user_id" binding:"required"`
		Role   string `json:"role" binding:"required"`
	}

	var req AddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	role, err := models.ParseProjectRole(req.Role)
	if err != nil {
		apierrors.BadRequest(c, err.Error())
		return
	}

	project, ok := middleware.GetProject(c)
	if !ok {
		apierrors.NotFound(c, "Project not found")
		return
	}
	actor, ok := middleware.GetProjectMembership(c)
	if !ok {
		apierrors.Forbidden(c, "Project membership required")
		return
	}

	member, err := h.projectService.AddProjectMember(c.Request.Context(), &project, &actor, req.UserID, role)
	if err != nil {
		respondProjectError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user_id": member.UserID,
		"role":    member.Role,
	})
}

// ChangeProjectMemberRole assigns a new project role to a member.
func (h *ProjectHandler) ChangeProjectMemberRole(c *gin.Context) {
	type ChangeRoleRequest struct {
		Role string `json:"role" binding:"required"`
	}

	var req ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	role, err := models.ParseProjectRole(req.Role)
	if err != nil {
		apierrors.BadRequest(c, err.Error())
		return
	}

	project, targetUserID, actorUserID, ok := projectActionContext(c)
	if !ok {
		return
	}

	member, err := h.projectService.ChangeProjectMemberRole(c.Request.Context(), project.ID, actorUserID, targetUserID, role)
	if err != nil {
		respondProjectError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id": member.UserID,
		"role":    member.Role,
	})
}

// RemoveProjectMember deactivates a member's project membership.
func (h *ProjectHandler) RemoveProjectMember(c *gin.Context) {
	project, targetUserID, actorUserID, ok := projectActionContext(c)
	if !ok {
		return
	}

	if err := h.projectService.RemoveProjectMember(c.Request.Context(), project.ID, actorUserID, targetUserID); err != nil {
		respondProjectError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Project member removed"})
}

// AnalyzeDocument runs an AI compliance review of the submitted text
// against the project's framework.
func (h *ProjectHandler) AnalyzeDocument(c *gin.Context) {
	type AnalyzeRequest struct {
		Text      string `json:"text" binding:"required"`
		Framework string `json:"framework"`
	}

	// The analyzer is optional; without an API key it is never wired.
	if h.analysisService == nil {
		apierrors.ServiceUnavailable(c, "Document analysis is not configured")
		return
	}

	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	project, ok := middleware.GetProject(c)
	if !ok {
		apierrors.NotFound(c, "Project not found")
		return
	}

	framework := req.Framework
	if framework == "" {
		framework = project.Framework
	}
	if framework == "" {
		apierrors.BadRequest(c, "No compliance framework set")
		return
	}

	findings, err := h.analysisService.AnalyzeDocument(c.Request.Context(), framework, req.Text)
	if err != nil {
		apierrors.InternalError(c, "Analysis failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"framework": framework,
		"findings":  findings,
	})
}

func projectActionContext(c *gin.Context) (models.Project, uint64, uint64, bool) {
	project, ok := middleware.GetProject(c)
	if !ok {
		apierrors.NotFound(c, "Project not found")
		return models.Project{}, 0, 0, false
	}

	targetUserID, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid user ID")
		return models.Project{}, 0, 0, false
	}

	actorUserID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return models.Project{}, 0, 0, false
	}

	return project, targetUserID, actorUserID, true
}

func respondProjectError(c *gin.Context, err error) {
	switch {
	case database.IsIntegrityViolation(err):
		apierrors.IntegrityViolation(c, err)
	case errors.Is(err, services.ErrProjectNotFound),
		errors.Is(err, services.ErrNotProjectMember),
		errors.Is(err, services.ErrProjectMemberNotFound),
		errors.Is(err, services.ErrNotWorkspaceMember):
		apierrors.NotFound(c, err.Error())
	case errors.Is(err, services.ErrInsufficientRole),
		errors.Is(err, services.ErrCannotActOnPeer),
		errors.Is(err, services.ErrRoleEscalation):
		apierrors.Forbidden(c, err.Error())
	case errors.Is(err, services.ErrProjectLastOwner):
		apierrors.UnprocessableEntity(c, err.Error())
	case errors.Is(err, services.ErrAlreadyProjectMember):
		apierrors.Conflict(c, err.Error())
	case errors.Is(err, services.ErrProjectQuotaReached):
		apierrors.RespondWithError(c, http.StatusUnprocessableEntity,
			apierrors.NewAPIError(apierrors.ErrCodeQuotaExceeded, err.Error()))
	case errors.Is(err, services.ErrInvalidRole):
		apierrors.BadRequest(c, err.Error())
	default:
		apierrors.InternalError(c, "Internal server error")
	}
}
