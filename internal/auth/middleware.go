package auth

import (
	"net/http"
	"strings"
	"time"

	"agent-console/pkg/logger"

	"github.com/gin-gonic/gin"
)

const authorizationHeader = "Authorization"
const bearerPrefix = "Bearer "

// RequireAccessToken verifies an access token and puts the caller's identity on the
// request context. The agent number is reduced to its digits, so later line checks and
// report filters compare like with like. Line ownership itself is enforced by internal/rbac.
func RequireAccessToken(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(authorizationHeader))
		if raw == "" || !strings.HasPrefix(raw, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := m.Verify(strings.TrimPrefix(raw, bearerPrefix), TokenTypeAccess, time.Now())
		if err != nil {
			logger.FromGin(c).Debug("access token rejected", "err", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		line := claims.Line()
		if line == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token carries no agent line"})
			return
		}

		reqLogger := logger.FromGin(c).With("employee_id", claims.EmployeeID, "agent_number", line, "role", claims.Role)
		c.Set("logger", reqLogger)

		ctx := WithIdentity(c.Request.Context(), claims.EmployeeID, line, claims.Role)
		c.Request = c.Request.WithContext(logger.With(ctx, reqLogger))

		c.Set("employee_id", claims.EmployeeID)
		c.Set("agent_number", line)
		c.Set("role", claims.Role)

		c.Next()
	}
}
