package middleware

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/clearcomply/compliance-api/internal/constants"
	"github.com/clearcomply/compliance-api/internal/models"
	"github.com/clearcomply/compliance-api/internal/tenantctx"
)

// ResolveTenant derives the active workspace for the request from the
// session (or a workspace-scoped token) and attaches it to the request
// context. Every tenant-scoped query and mutation downstream is bound
// to it by the persistence interceptors. An unknown, deleted or
// inactive workspace resolves to no tenant; handlers that require one
// respond through the workspace-access middleware instead.
func ResolveTenant(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID, ok := activeOrganizationID(c)
		if !ok {
			c.Next()
			return
		}

		var org models.Organization
		err := db.WithContext(tenantctx.WithoutTenant(c.Request.Context())).
			First(&org, orgID).Error
		if err != nil || !org.IsActive {
			c.Next()
			return
		}

		c.Set(constants.ContextKeyActiveOrgID, org.ID)
		c.Request = c.Request.WithContext(tenantctx.WithTenant(c.Request.Context(), org.ID))
		c.Next()
	}
}

func activeOrganizationID(c *gin.Context) (uint64, bool) {
	// A token-scoped workspace set during authentication wins over the
	// session value.
	if raw, exists := c.Get(constants.ContextKeyActiveOrgID); exists {
		if id, ok := raw.(uint64); ok {
			return id, true
		}
	}

	session := sessions.Default(c)
	raw := session.Get(constants.ContextKeyActiveOrgID)
	if raw == nil {
		return 0, false
	}

	switch v := raw.(type) {
	case uint64:
		return v, true
	case uint:
		return uint64(v), true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	default:
		return 0, false
	}
}

// ActiveOrganizationID returns the resolved active workspace id, if
// the request has one.
func ActiveOrganizationID(c *gin.Context) (uint64, bool) {
	raw, exists := c.Get(constants.ContextKeyActiveOrgID)
	if !exists {
		return 0, false
	}
	id, ok := raw.(uint64)
	return id, ok
}
