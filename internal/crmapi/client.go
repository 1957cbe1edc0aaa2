package crmapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"agent-console/internal/forms"

	"github.com/goccy/go-json"
)

// ErrBackend wraps every failure reported by the CRM backend.
var ErrBackend = errors.New("crmapi: backend error")

// BackendError carries the status and message of a failed call.
type BackendError struct {
	Op      string
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("crmapi: %s: status %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("crmapi: %s: %s", e.Op, e.Message)
}

func (e *BackendError) Unwrap() error { return ErrBackend }

const (
	pathMakeCall     = "/make-call"
	pathInboundForm  = "/form-details"
	pathOutboundForm = "/outbound-form-details"

	maxResponseBody = 1 << 20
)

// Client talks to the CRM REST backend. Safe for concurrent use.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// MakeCallRequest places an outbound call from the agent line.
type MakeCallRequest struct {
	From      string   `json:"from"`
	To        string   `json:"to"`
	CallerID  string   `json:"caller_id,omitempty"`
	Record    bool     `json:"record"`
	Callbacks []string `json:"callbacks,omitempty"`
}

type MakeCallResponse struct {
	CallSessionID string `json:"callSessionId"`
}

func (c *Client) MakeCall(ctx context.Context, req MakeCallRequest) (MakeCallResponse, error) {
	if req.From == "" || req.To == "" {
		return MakeCallResponse{}, errors.New("crmapi: from and to are required")
	}
	var out MakeCallResponse
	if err := c.post(ctx, "make call", pathMakeCall, req, &out); err != nil {
		return MakeCallResponse{}, err
	}
	if out.CallSessionID == "" {
		return MakeCallResponse{}, &BackendError{Op: "make call", Message: "response has no callSessionId"}
	}
	return out, nil
}

func (c *Client) SubmitInboundForm(ctx context.Context, r forms.InboundRemarks) (forms.Ack, error) {
	return c.submit(ctx, pathInboundForm, r)
}

func (c *Client) SubmitOutboundForm(ctx context.Context, r forms.OutboundRemarks) (forms.Ack, error) {
	return c.submit(ctx, pathOutboundForm, r)
}

// submit returns the decoded ack even when success is false; the form controller
// decides what a rejection means.
func (c *Client) submit(ctx context.Context, path string, payload any) (forms.Ack, error) {
	var ack forms.Ack
	if err := c.post(ctx, "submit form", path, payload, &ack); err != nil {
		return forms.Ack{}, err
	}
	return ack, nil
}

func (c *Client) post(ctx context.Context, op, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("crmapi: encode %s: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("crmapi: build %s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &BackendError{Op: op, Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return &BackendError{Op: op, Status: resp.StatusCode, Message: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &BackendError{Op: op, Status: resp.StatusCode, Message: errorMessage(data, resp.Status)}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return &BackendError{Op: op, Status: resp.StatusCode, Message: "empty response"}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &BackendError{Op: op, Status: resp.StatusCode, Message: "invalid response: " + err.Error()}
	}
	return nil
}

func errorMessage(body []byte, fallback string) string {
	var e struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil {
		if e.Message != "" {
			return e.Message
		}
		if e.Error != "" {
			return e.Error
		}
	}
	return fallback
}
