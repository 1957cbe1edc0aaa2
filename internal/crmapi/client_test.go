package crmapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"agent-console/internal/forms"

	"github.com/goccy/go-json"
)

func TestMakeCall(t *testing.T) {
	var got MakeCallRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/make-call" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing bearer token")
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_, _ = w.Write([]byte(`{"callSessionId":"cs-1"}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "tok", time.Second)
	res, err := c.MakeCall(context.Background(), MakeCallRequest{From: "100", To: "555", CallerID: "080", Record: true, Callbacks: []string{"http://cb"}})
	if err != nil {
		t.Fatalf("make call: %v", err)
	}
	if res.CallSessionID != "cs-1" {
		t.Fatalf("unexpected response: %+v", res)
	}
	if got.From != "100" || got.To != "555" || got.CallerID != "080" || !got.Record || len(got.Callbacks) != 1 {
		t.Fatalf("unexpected request body: %+v", got)
	}
}

func TestMakeCall_BackendFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"message":"dialer down"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	_, err := c.MakeCall(context.Background(), MakeCallRequest{From: "100", To: "555"})
	var be *BackendError
	if !errors.As(err, &be) || be.Status != http.StatusBadGateway || be.Message != "dialer down" {
		t.Fatalf("expected backend error with message, got %v", err)
	}
	if !errors.Is(err, ErrBackend) {
		t.Fatalf("expected ErrBackend")
	}

	if _, err := c.MakeCall(context.Background(), MakeCallRequest{From: "100"}); err == nil || errors.Is(err, ErrBackend) {
		t.Fatalf("expected argument error, got %v", err)
	}
}

func TestSubmitForms(t *testing.T) {
	paths := map[string]int{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths[r.URL.Path]++
		var body map[string]any
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		if body["callId"] != "S1" {
			t.Errorf("expected callId in payload, got %v", body)
		}
		if r.URL.Path == "/outbound-form-details" {
			_, _ = w.Write([]byte(`{"success":false,"message":"duplicate"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	call := forms.CallInfo{CallID: "S1"}

	ack, err := c.SubmitInboundForm(context.Background(), forms.InboundRemarks{CallInfo: call, Remarks: "customer called"})
	if err != nil || !ack.Success {
		t.Fatalf("inbound submit: %+v %v", ack, err)
	}
	ack, err = c.SubmitOutboundForm(context.Background(), forms.OutboundRemarks{CallInfo: call})
	if err != nil || ack.Success || ack.Message != "duplicate" {
		t.Fatalf("outbound submit should return rejection ack: %+v %v", ack, err)
	}
	if paths["/form-details"] != 1 || paths["/outbound-form-details"] != 1 {
		t.Fatalf("unexpected paths: %v", paths)
	}
}
