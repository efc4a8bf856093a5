package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/expensio/expense-approval/internal/approval"
	"github.com/expensio/expense-approval/internal/models"
)

const callerKey = "caller"

// Middleware parses the Authorization header and stores the caller identity
// in the request context. Requests without a valid bearer token are rejected.
func Middleware(issuer *TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		claims, err := issuer.Verify(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(callerKey, approval.CallerIdentity{
			UserID: claims.UserID,
			Role:   claims.Role,
		})
		c.Next()
	}
}

// CallerFrom returns the authenticated caller stored by Middleware
func CallerFrom(c *gin.Context) (approval.CallerIdentity, bool) {
	v, ok := c.Get(callerKey)
	if !ok {
		return approval.CallerIdentity{}, false
	}
	caller, ok := v.(approval.CallerIdentity)
	return caller, ok
}

// RequireAdmin aborts requests whose caller does not hold the admin role.
// It must run after Middleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := CallerFrom(c)
		if !ok || caller.Role != models.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			return
		}
		c.Next()
	}
}
