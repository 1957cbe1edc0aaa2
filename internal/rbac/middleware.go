package rbac

import (
	"net/http"

	"agent-console/internal/auth"
	"agent-console/internal/phone"

	"github.com/gin-gonic/gin"
)

// RequireLineOwner enforces that the caller's agent number is the console's line.
// Supervisors and admins may act on any line.
func RequireLineOwner(lineNumber string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := auth.Role(c.Request.Context())
		if CanActForAnyLine(role) {
			c.Next()
			return
		}
		agent, err := auth.AgentNumber(c.Request.Context())
		if err != nil || agent == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "agent_number required"})
			return
		}
		if !phone.Same(agent, lineNumber) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "not the owner of this line"})
			return
		}
		c.Next()
	}
}

// RequireAnyRole allows access if the caller has any of the provided roles.
// admin bypasses all checks.
func RequireAnyRole(allowed ...string) gin.HandlerFunc {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role, err := auth.Role(c.Request.Context())
		if err != nil || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
			return
		}

		if IsAdmin(role) {
			c.Next()
			return
		}

		if _, ok := allowedSet[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
