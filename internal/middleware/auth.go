package middleware

import (
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/clearcomply/compliance-api/internal/constants"
	apierrors "github.com/clearcomply/compliance-api/internal/errors"
	"github.com/clearcomply/compliance-api/internal/services"
	"github.com/clearcomply/compliance-api/internal/tenantctx"
)

// RequireAuth checks if the user is authenticated via session or a
// bearer token. The resolved actor id is stored in the gin context and
// on the request context, where the persistence interceptors read it
// for audit stamping.
func RequireAuth(tokens *services.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := sessionUserID(c)
		if !ok {
			userID, ok = bearerUserID(c, tokens)
		}
		if !ok {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		c.Set(constants.ContextKeyUserID, userID)
		c.Request = c.Request.WithContext(tenantctx.WithActor(c.Request.Context(), userID))
		c.Next()
	}
}

func sessionUserID(c *gin.Context) (uint64, bool) {
	session := sessions.Default(c)
	raw := session.Get(constants.ContextKeyUserID)
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

func bearerUserID(c *gin.Context, tokens *services.TokenService) (uint64, bool) {
	header := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return 0, false
	}

	claims, err := tokens.Parse(strings.TrimPrefix(header, prefix))
	if err != nil {
		return 0, false
	}

	// A workspace-scoped token pins the active workspace without a
	// session round trip.
	if claims.OrganizationID != 0 {
		c.Set(constants.ContextKeyActiveOrgID, claims.OrganizationID)
	}
	return claims.UserID, true
}

// GetUserID retrieves the current user ID from context
func GetUserID(c *gin.Context) (uint64, bool) {
	userID, exists := c.Get(constants.ContextKeyUserID)
	if !exists {
		return 0, false
	}

	id, ok := userID.(uint64)
	return id, ok
}
