package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Roles carried in the token's role claim.
const (
	RoleAdmin    = "admin"
	RoleStaff    = "staff"
	RoleCustomer = "customer"
)

// RequireRole admits only callers whose role is one of roles. It must run after JWTAuthMiddleware.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		role := c.GetString(ContextRole)
		if !allowed[role] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			return
		}
		c.Next()
	}
}

// IsStaff reports whether the authenticated caller is staff or admin.
func IsStaff(c *gin.Context) bool {
	role := c.GetString(ContextRole)
	return role == RoleAdmin || role == RoleStaff
}
