package httpapi

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"agent-console/internal/auth"
	"agent-console/internal/calls"
	"agent-console/internal/console"
	"agent-console/internal/crmapi"
	"agent-console/internal/forms"
	"agent-console/internal/rbac"
	"agent-console/internal/reporting"
	"agent-console/pkg/logger"
	"agent-console/pkg/utils"

	"github.com/gin-gonic/gin"
)

// Console is what the handlers drive. console.Loop implements it.
type Console interface {
	Snapshot(ctx context.Context) (console.Snapshot, error)
	History(ctx context.Context) ([]calls.Record, error)
	ConsumeOutgoingCallEnded(ctx context.Context) (bool, error)
	Decline(ctx context.Context, employeeID string) error
	HangUp(ctx context.Context) error
	ForceReset(ctx context.Context, employeeID string) error
	StartOutbound(ctx context.Context, customerNumber string) (string, error)
	EditInbound(ctx context.Context, data forms.InboundRemarks) error
	EditOutbound(ctx context.Context, data forms.OutboundRemarks) error
	SubmitInbound(ctx context.Context, data forms.InboundRemarks) (forms.SubmitOutcome, error)
	SubmitOutbound(ctx context.Context, data forms.OutboundRemarks) (forms.SubmitOutcome, error)
	CancelForm(ctx context.Context, dir forms.Direction, confirm bool, employeeID string) (forms.CancelOutcome, error)
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth    *auth.Manager
	Console Console
	Reports *reporting.Service
	DB      *sql.DB

	// AgentNumber is the line this process serves.
	AgentNumber string
	// DevLogin enables the credential-less login used outside production.
	DevLogin bool
}

// Health reports liveness, plus the database when one is configured.
func (h Handlers) Health(c *gin.Context) {
	if h.DB != nil {
		if err := utils.HealthCheck(c.Request.Context(), h.DB, 2*time.Second); err != nil {
			logger.FromGin(c).Warn("database health check failed", "err", err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": "database unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// --- Auth ---

type loginRequest struct {
	EmployeeID  string `json:"employee_id"`
	AgentNumber string `json:"agent_number"`
	Role        string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: development only. Credentials are checked by the CRM's identity service in production.
func (h Handlers) Login(c *gin.Context) {
	if !h.DevLogin {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "login is not available"})
		return
	}
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.EmployeeID == "" || req.AgentNumber == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "employee_id, agent_number, role required"})
		return
	}
	switch req.Role {
	case rbac.RoleAgent, rbac.RoleSupervisor, rbac.RoleAdmin:
	default:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.EmployeeID, req.AgentNumber, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
	Role         string `json:"role"`
}

// Refresh exchanges a refresh token for a new pair.
func (h Handlers) Refresh(c *gin.Context) {
	if !h.DevLogin {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "refresh is not available"})
		return
	}
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "refresh_token and role required"})
		return
	}
	pair, err := h.Auth.Refresh(req.RefreshToken, req.Role, time.Now())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Reports ---

// CallsSummary aggregates persisted call records for a time range.
// RBAC: supervisor or admin.
func (h Handlers) CallsSummary(c *gin.Context) {
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	from, errFrom := time.Parse(time.RFC3339, c.Query("from"))
	to, errTo := time.Parse(time.RFC3339, c.Query("to"))
	if errFrom != nil || errTo != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from and to must be RFC3339 timestamps"})
		return
	}
	agentNumber := c.DefaultQuery("agent_number", h.AgentNumber)

	sum, err := h.Reports.CallsSummary(c.Request.Context(), reporting.CallsSummaryRequest{
		AgentNumber: agentNumber,
		Range:       reporting.TimeRange{From: from, To: to},
	})
	if err != nil {
		if errors.Is(err, reporting.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logger.FromGin(c).Error("calls summary failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "summary failed"})
		return
	}
	c.JSON(http.StatusOK, sum)
}

// writeError maps console and form errors to HTTP responses.
func writeError(c *gin.Context, err error) {
	var verr *forms.ValidationError
	switch {
	case errors.As(err, &verr):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": forms.MsgValidationFailed, "field_errors": verr.Fields})
	case errors.Is(err, forms.ErrCompletionRequired), errors.Is(err, forms.ErrUnsavedChanges):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error(), "confirmation_required": true})
	case errors.Is(err, console.ErrGuardRejected),
		errors.Is(err, console.ErrNoActiveCall),
		errors.Is(err, forms.ErrFormNotOpen),
		errors.Is(err, forms.ErrSubmitInProgress),
		errors.Is(err, forms.ErrAlreadySubmitted),
		errors.Is(err, forms.ErrStaleSubmission):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, console.ErrInvalidRequest):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, crmapi.ErrBackend):
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case errors.Is(err, console.ErrStopped), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "console unavailable"})
	default:
		logger.FromGin(c).Error("console request failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
