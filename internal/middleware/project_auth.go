package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/clearcomply/compliance-api/internal/constants"
	apierrors "github.com/clearcomply/compliance-api/internal/errors"
	"github.com/clearcomply/compliance-api/internal/models"
	"github.com/clearcomply/compliance-api/internal/tenantctx"
)

// RequireProjectAccess checks that the caller may see the project
// named by the :id parameter. Workspace membership grants read access;
// the caller's project membership, when present, is stored alongside
// for role-gated routes.
func RequireProjectAccess(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid project ID")
			c.Abort()
			return
		}

		userID, exists := GetUserID(c)
		if !exists {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		ctx := tenantctx.WithoutTenant(c.Request.Context())

		var project models.Project
		if err := db.WithContext(ctx).First(&project, projectID).Error; err != nil {
			apierrors.NotFound(c, "Project not found")
			c.Abort()
			return
		}

		var member models.OrganizationMember
		err = db.WithContext(ctx).
			Where("organization_id = ? AND user_id = ? AND is_active = ?", project.OrganizationID, userID, true).
			First(&member).Error
		if err != nil {
			// 404 instead of 403 to avoid leaking project existence
			apierrors.NotFound(c, "Project not found")
			c.Abort()
			return
		}

		var projectMember models.ProjectMember
		err = db.WithContext(ctx).
			Where("project_id = ? AND user_id = ? AND is_active = ?", projectID, userID, true).
			First(&projectMember).Error
		if err == nil {
			c.Set(constants.ContextKeyProjectMember, projectMember)
		}

		c.Set(constants.ContextKeyProject, project)
		c.Set(constants.ContextKeyMembership, member)
		c.Request = c.Request.WithContext(tenantctx.WithTenant(c.Request.Context(), project.OrganizationID))
		c.Next()
	}
}

// GetProject retrieves the project loaded by RequireProjectAccess.
func GetProject(c *gin.Context) (models.Project, bool) {
	raw, exists := c.Get(constants.ContextKeyProject)
	if !exists {
		return models.Project{}, false
	}
	project, ok := raw.(models.Project)
	return project, ok
}

// GetProjectMembership retrieves the caller's project membership, if
// they hold one.
func GetProjectMembership(c *gin.Context) (models.ProjectMember, bool) {
	raw, exists := c.Get(constants.ContextKeyProjectMember)
	if !exists {
		return models.ProjectMember{}, false
	}
	member, ok := raw.(models.ProjectMember)
	return member, ok
}
