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

// RequireWorkspaceAccess checks that the caller holds an active
// membership in the workspace named by the :id parameter. The
// workspace and membership are stored in the gin context for handlers
// further down the chain.
func RequireWorkspaceAccess(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid workspace ID")
			c.Abort()
			return
		}

		userID, exists := GetUserID(c)
		if !exists {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		// Membership checks run outside tenant scoping: the request's
		// active tenant may differ from the workspace in the URL.
		ctx := tenantctx.WithoutTenant(c.Request.Context())

		var org models.Organization
		if err := db.WithContext(ctx).First(&org, orgID).Error; err != nil || !org.IsActive {
			apierrors.NotFound(c, "Workspace not found")
			c.Abort()
			return
		}

		var member models.OrganizationMember
		err = db.WithContext(ctx).
			Where("organization_id = ? AND user_id = ? AND is_active = ?", orgID, userID, true).
			First(&member).Error
		if err != nil {
			// 404 instead of 403 to avoid leaking workspace existence
			apierrors.NotFound(c, "Workspace not found")
			c.Abort()
			return
		}

		c.Set(constants.ContextKeyOrganization, org)
		c.Set(constants.ContextKeyMembership, member)
		c.Request = c.Request.WithContext(tenantctx.WithTenant(c.Request.Context(), org.ID))
		c.Next()
	}
}

// RequireWorkspaceRole restricts the route to members whose role is
// one of the given set. Must run after RequireWorkspaceAccess.
func RequireWorkspaceRole(roles ...models.OrganizationRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		member, ok := GetMembership(c)
		if !ok {
			apierrors.Forbidden(c, "Workspace access required")
			c.Abort()
			return
		}

		for _, role := range roles {
			if member.Role == role {
				c.Next()
				return
			}
		}

		apierrors.Forbidden(c, "Insufficient workspace role")
		c.Abort()
	}
}

// GetOrganization retrieves the workspace loaded by
// RequireWorkspaceAccess.
func GetOrganization(c *gin.Context) (models.Organization, bool) {
	raw, exists := c.Get(constants.ContextKeyOrganization)
	if !exists {
		return models.Organization{}, false
	}
	org, ok := raw.(models.Organization)
	return org, ok
}

// GetMembership retrieves the caller's membership loaded by
// RequireWorkspaceAccess.
func GetMembership(c *gin.Context) (models.OrganizationMember, bool) {
	raw, exists := c.Get(constants.ContextKeyMembership)
	if !exists {
		return models.OrganizationMember{}, false
	}
	member, ok := raw.(models.OrganizationMember)
	return member, ok
}
