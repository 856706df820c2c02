// Package middleware provides gin HTTP middleware for the node's ops
// REST surface: bearer-token auth and rate limiting.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ruvnet/parsec/internal/auth"
	parsecerrors "github.com/ruvnet/parsec/internal/errors"
)

var publicPaths = []string{
	"/health",
	"/metrics",
	"/api/v1/auth/login",
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func abortWithError(c *gin.Context, status int, err *parsecerrors.Error) {
	c.JSON(status, err)
	c.Abort()
}

// Auth validates the Authorization: Bearer <token> header against
// svc and, on success, stashes the operator's id and role in the gin
// context for downstream handlers.
func Auth(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if isPublicPath(c.Request.URL.Path) {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if header == "" {
			abortWithError(c, http.StatusUnauthorized, parsecerrors.New(parsecerrors.Unauthorized, "authorization header is required"))
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortWithError(c, http.StatusUnauthorized, parsecerrors.New(parsecerrors.Unauthorized, "authorization header must be \"Bearer <token>\""))
			return
		}

		claims, err := svc.ValidateToken(parts[1])
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, parsecerrors.Wrap(parsecerrors.Unauthorized, "token validation failed", err))
			return
		}

		c.Set("operator_id", claims.OperatorID)
		c.Set("operator_role", claims.Role)
		c.Next()
	}
}

// RequireAction aborts with 403 unless svc's role policy permits the
// named action for the caller authenticated by Auth.
func RequireAction(svc *auth.Service, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := GetOperatorRole(c)
		if !svc.IsAuthorized(role, action) {
			abortWithError(c, http.StatusForbidden, parsecerrors.New(parsecerrors.Forbidden, "insufficient permissions for this operation"))
			return
		}
		c.Next()
	}
}

// GetOperatorID extracts the authenticated operator id set by Auth.
func GetOperatorID(c *gin.Context) (string, bool) {
	v, ok := c.Get("operator_id")
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// GetOperatorRole extracts the authenticated operator role set by Auth.
func GetOperatorRole(c *gin.Context) (string, bool) {
	v, ok := c.Get("operator_role")
	if !ok {
		return "", false
	}
	role, ok := v.(string)
	return role, ok
}
