package main

import (
	"agent-console/internal/httpapi"
	"agent-console/internal/rbac"
	"agent-console/internal/telephony"

	"github.com/gin-gonic/gin"
)

// Route registration only. Handlers delegate to internal modules.

func registerPublicRoutes(r *gin.Engine, h httpapi.Handlers, webhook telephony.WebhookHandler) {
	r.GET("/healthz", h.Health)

	// Telephony backends that cannot hold the push websocket post the same events here.
	r.POST("/webhooks/telephony/events", webhook.Handle)
}

func registerAuthRoutes(r *gin.Engine, h httpapi.Handlers) {
	authGroup := r.Group("/v1/auth")
	{
		authGroup.POST("/login", h.Login)
		authGroup.POST("/refresh", h.Refresh)
	}
}

func registerProtectedRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc, lineNumber string) {
	v1 := r.Group("/v1")
	v1.Use(authMW)

	// CONSOLE routes
	// Agents operate only their own line; supervisors and admins may operate any.
	con := v1.Group("/console")
	con.Use(rbac.RequireAnyRole(rbac.RoleAgent, rbac.RoleSupervisor))
	con.Use(rbac.RequireLineOwner(lineNumber))
	{
		con.GET("/state", h.State)
		con.GET("/history", h.History)

		con.POST("/calls/decline", h.Decline)
		con.POST("/calls/hangup", h.HangUp)
		con.POST("/calls/outbound", h.StartOutbound)
		con.POST("/calls/outbound/ack", h.AckOutboundEnded)
		con.POST("/reset", h.ForceReset)

		con.PUT("/forms/:direction", h.EditForm)
		con.POST("/forms/:direction/submit", h.SubmitForm)
		con.POST("/forms/:direction/cancel", h.CancelForm)
	}

	// REPORTS routes
	reports := v1.Group("/reports")
	reports.Use(rbac.RequireAnyRole(rbac.RoleSupervisor))
	{
		reports.GET("/calls/summary", h.CallsSummary)
	}
}
