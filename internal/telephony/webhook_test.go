package telephony

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"agent-console/internal/callstate"

	"github.com/gin-gonic/gin"
)

func webhookRouter(h WebhookHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhooks/telephony/events", h.Handle)
	return r
}

func post(r *gin.Engine, body, secret string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/telephony/events", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set("X-Webhook-Secret", secret)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookHandler(t *testing.T) {
	var got []callstate.Event
	r := webhookRouter(WebhookHandler{
		Secret: "s3cret",
		Sink:   SinkFunc(func(ev callstate.Event) { got = append(got, ev) }),
	})
	valid := `{"event":"incoming-call-ringing","data":{"callId":"S1","agentPhoneNumber":"100"}}`

	if w := post(r, valid, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without secret, got %d", w.Code)
	}
	if w := post(r, valid, "wrong"); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong secret, got %d", w.Code)
	}
	if w := post(r, `{`, "s3cret"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed, got %d", w.Code)
	}
	if w := post(r, `{"event":"agent-status","data":{}}`, "s3cret"); w.Code != http.StatusAccepted {
		t.Fatalf("expected 202 for unknown event, got %d", w.Code)
	}
	if len(got) != 0 {
		t.Fatalf("nothing should be delivered yet, got %+v", got)
	}

	if w := post(r, valid, "s3cret"); w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	if len(got) != 1 || got[0].SessionID != "S1" {
		t.Fatalf("expected delivered event, got %+v", got)
	}
}
