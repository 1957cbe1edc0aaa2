package telephony

import (
	"crypto/subtle"
	"errors"
	"io"
	"net/http"

	"agent-console/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	headerWebhookSecret = "X-Webhook-Secret"
	maxWebhookBody      = 64 << 10
)

// WebhookHandler accepts the push events over HTTP POST, for backends that cannot
// hold a websocket. The body is the same envelope the push channel sends.
//
// No business logic here; events go to Sink as-is.
type WebhookHandler struct {
	// Secret, when set, must match the X-Webhook-Secret header.
	Secret string
	Sink   Sink
}

func (h WebhookHandler) Handle(c *gin.Context) {
	log := logger.FromGin(c)

	if h.Sink == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "event sink not configured"})
		return
	}
	if h.Secret != "" {
		got := c.GetHeader(headerWebhookSecret)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.Secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook secret"})
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	ev, err := Decode(body)
	switch {
	case errors.Is(err, ErrUnknownEvent):
		log.Debug("unknown webhook event ignored", "err", err)
		c.JSON(http.StatusAccepted, gin.H{"status": "ignored"})
		return
	case err != nil:
		log.Warn("malformed webhook event", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "malformed event"})
		return
	}

	h.Sink.Deliver(ev)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}
