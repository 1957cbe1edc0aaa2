package httpapi

import (
	"net/http"
	"strconv"

	"agent-console/internal/auth"
	"agent-console/internal/forms"
	"agent-console/pkg/logger"

	"github.com/gin-gonic/gin"
)

func (h Handlers) State(c *gin.Context) {
	snap, err := h.Console.Snapshot(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h Handlers) History(c *gin.Context) {
	recs, err := h.Console.History(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": recs})
}

func (h Handlers) Decline(c *gin.Context) {
	employeeID, _ := auth.EmployeeID(c.Request.Context())
	if err := h.Console.Decline(c.Request.Context(), employeeID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "declined"})
}

func (h Handlers) HangUp(c *gin.Context) {
	if err := h.Console.HangUp(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ended"})
}

// ForceReset returns the console to idle and discards both forms.
func (h Handlers) ForceReset(c *gin.Context) {
	employeeID, _ := auth.EmployeeID(c.Request.Context())
	if err := h.Console.ForceReset(c.Request.Context(), employeeID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "idle"})
}

type outboundRequest struct {
	CustomerNumber string `json:"customer_phone_number"`
}

// StartOutbound places a call to a customer. It returns once the backend has accepted it.
func (h Handlers) StartOutbound(c *gin.Context) {
	var req outboundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	id, err := h.Console.StartOutbound(c.Request.Context(), req.CustomerNumber)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": id})
}

// AckOutboundEnded reports and clears the one-shot "outbound call ended" flag.
func (h Handlers) AckOutboundEnded(c *gin.Context) {
	ended, err := h.Console.ConsumeOutgoingCallEnded(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"outgoing_call_ended": ended})
}

func direction(c *gin.Context) (forms.Direction, bool) {
	dir, ok := forms.ParseDirection(c.Param("direction"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown form direction"})
	}
	return dir, ok
}

// EditForm saves the agent's draft for the open form.
func (h Handlers) EditForm(c *gin.Context) {
	dir, ok := direction(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	var err error
	switch dir {
	case forms.DirectionInbound:
		var data forms.InboundRemarks
		if bindErr := c.ShouldBindJSON(&data); bindErr != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		err = h.Console.EditInbound(ctx, data)
	case forms.DirectionOutbound:
		var data forms.OutboundRemarks
		if bindErr := c.ShouldBindJSON(&data); bindErr != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		err = h.Console.EditOutbound(ctx, data)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}

// SubmitForm validates the remarks and posts them to the CRM.
func (h Handlers) SubmitForm(c *gin.Context) {
	dir, ok := direction(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	var (
		outcome forms.SubmitOutcome
		err     error
	)
	switch dir {
	case forms.DirectionInbound:
		var data forms.InboundRemarks
		if bindErr := c.ShouldBindJSON(&data); bindErr != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		outcome, err = h.Console.SubmitInbound(ctx, data)
	case forms.DirectionOutbound:
		var data forms.OutboundRemarks
		if bindErr := c.ShouldBindJSON(&data); bindErr != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		outcome, err = h.Console.SubmitOutbound(ctx, data)
	}
	if outcome == forms.SubmitFailed {
		logger.FromGin(c).Error("remarks submission failed", "direction", dir, "err", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": err.Error(), "outcome": outcome})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcome": outcome})
}

type cancelRequest struct {
	Confirm bool `json:"confirm"`
}

// CancelForm closes a form. confirm comes from ?confirm= or the JSON body.
func (h Handlers) CancelForm(c *gin.Context) {
	dir, ok := direction(c)
	if !ok {
		return
	}
	confirm, _ := strconv.ParseBool(c.Query("confirm"))
	if !confirm && c.Request.ContentLength > 0 {
		var req cancelRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		confirm = req.Confirm
	}
	employeeID, _ := auth.EmployeeID(c.Request.Context())

	out, err := h.Console.CancelForm(c.Request.Context(), dir, confirm, employeeID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "closed", "abandoned": out.Abandoned, "session_cleared": out.ClearSession})
}
