package console

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"agent-console/internal/audit"
	"agent-console/internal/callstate"
	"agent-console/internal/forms"
	"agent-console/internal/sessions"
)

// lifecycle is the direction-independent part of forms.Controller.
type lifecycle interface {
	Direction() forms.Direction
	IsOpen() bool
	Blocking() bool
	CallID() string
	OnConnected(info forms.CallInfo) bool
	OnTerminal() forms.TerminalOutcome
	Cancel(confirm bool) (forms.CancelOutcome, error)
	Reset()
}

func (c *Console) form(dir forms.Direction) (lifecycle, error) {
	switch dir {
	case forms.DirectionInbound:
		return c.inbound, nil
	case forms.DirectionOutbound:
		return c.outbound, nil
	default:
		return nil, fmt.Errorf("%w: unknown form direction %q", ErrInvalidRequest, dir)
	}
}

// Snapshot is everything the presentation layer renders.
type Snapshot struct {
	Call     callstate.State                    `json:"call"`
	Session  *sessions.CallSession              `json:"session,omitempty"`
	Inbound  forms.State[forms.InboundRemarks]  `json:"inboundForm"`
	Outbound forms.State[forms.OutboundRemarks] `json:"outboundForm"`
}

func (c *Console) Snapshot() Snapshot {
	out := Snapshot{
		Call:     c.state,
		Inbound:  c.inbound.Snapshot(),
		Outbound: c.outbound.Snapshot(),
	}
	if c.state.SessionID != "" {
		if s, ok := c.registry.Get(c.state.SessionID); ok {
			out.Session = &s
		}
	}
	return out
}

// Decline rejects the ringing inbound call.
func (c *Console) Decline(employeeID string) error {
	callID := c.state.SessionID
	if out := c.HandleEvent(callstate.Event{Kind: callstate.EventDecline}); !out.Applied {
		return fmt.Errorf("%w: %s", ErrNoActiveCall, out.Reason)
	}
	c.logAudit(audit.EventTypeCallDeclined, employeeID, callID, "inbound call declined")
	return nil
}

// HangUp ends the current connected call (or a ringing outbound call) locally.
func (c *Console) HangUp() error {
	if out := c.HandleEvent(callstate.Event{Kind: callstate.EventHangup}); !out.Applied {
		return fmt.Errorf("%w: %s", ErrNoActiveCall, out.Reason)
	}
	return nil
}

// ForceReset returns the console to idle from any state and discards both forms.
func (c *Console) ForceReset(employeeID string) {
	prev := c.state
	c.HandleEvent(callstate.Event{Kind: callstate.EventForceReset})
	if prev.Status != callstate.StatusIdle {
		c.logAudit(audit.EventTypeCallForceReset, employeeID, prev.SessionID, "forced reset from "+string(prev.Status))
	}
}

// BeginOutbound moves the idle console to outgoing-ringing under a locally generated id,
// before the placement request is sent.
func (c *Console) BeginOutbound(customerNumber string) (string, error) {
	customerNumber = strings.TrimSpace(customerNumber)
	if customerNumber == "" {
		return "", fmt.Errorf("%w: customer number is required", ErrInvalidRequest)
	}
	if !callstate.CanMakeOutgoingCall(c.state) {
		return "", ErrGuardRejected
	}
	id := callstate.NewOutgoingSessionID(c.clock.Now(), c.rand)
	out := c.HandleEvent(callstate.Event{
		Kind:           callstate.EventInitiateOutbound,
		SessionID:      id,
		CustomerNumber: customerNumber,
		AgentNumber:    c.cfg.AgentNumber,
	})
	if !out.Applied {
		return "", ErrGuardRejected
	}
	return id, nil
}

// CompleteOutbound applies the placement result for the call BeginOutbound started.
// A failure ends the attempt; a backend id replaces the local one. A result for a call
// that already ended locally is ErrNoActiveCall. It returns the current session id.
func (c *Console) CompleteOutbound(localID, backendID string, err error) (string, error) {
	cur := c.state
	current := cur.Status.Outbound() && (cur.SessionID == localID || (backendID != "" && cur.SessionID == backendID))
	if !current {
		if err != nil {
			c.log.Info("placement failed for a call that already ended", "local_id", localID, "err", err)
			return "", err
		}
		c.log.Warn("call placed after it ended locally, the customer may still be rung",
			"local_id", localID, "session_id", backendID, "status", cur.Status)
		return "", fmt.Errorf("%w: call %s ended before placement completed", ErrNoActiveCall, localID)
	}
	if err != nil {
		c.log.Error("outbound call placement failed", "session_id", localID, "err", err)
		c.HandleEvent(callstate.Event{Kind: callstate.EventForceReset})
		return "", err
	}
	if backendID != "" && cur.SessionID == localID && backendID != localID {
		c.registry.Rekey(localID, backendID)
		c.state.SessionID = backendID
	}
	return c.state.SessionID, nil
}

func (c *Console) EditInbound(data forms.InboundRemarks) error { return c.inbound.Edit(data) }

func (c *Console) EditOutbound(data forms.OutboundRemarks) error { return c.outbound.Edit(data) }

func (c *Console) BeginSubmitInbound(data forms.InboundRemarks) (forms.Submission[forms.InboundRemarks], error) {
	return c.inbound.BeginSubmit(data)
}

func (c *Console) BeginSubmitOutbound(data forms.OutboundRemarks) (forms.Submission[forms.OutboundRemarks], error) {
	return c.outbound.BeginSubmit(data)
}

func (c *Console) CompleteSubmitInbound(sub forms.Submission[forms.InboundRemarks], ack forms.Ack, err error) (forms.SubmitOutcome, error) {
	return completeSubmit(c, c.inbound, sub, ack, err)
}

func (c *Console) CompleteSubmitOutbound(sub forms.Submission[forms.OutboundRemarks], ack forms.Ack, err error) (forms.SubmitOutcome, error) {
	return completeSubmit(c, c.outbound, sub, ack, err)
}

func completeSubmit[T forms.Remarks[T]](c *Console, ctl *forms.Controller[T], sub forms.Submission[T], ack forms.Ack, err error) (forms.SubmitOutcome, error) {
	outcome, err := ctl.CompleteSubmit(sub, ack, err)
	if errors.Is(err, forms.ErrStaleSubmission) {
		return outcome, err
	}
	delete(c.inflight, ctl.Direction())
	if err != nil {
		c.log.Warn("remarks submission failed", "direction", ctl.Direction(), "call_id", ctl.CallID(), "err", err)
		return outcome, err
	}
	c.logAudit(audit.EventTypeFormSubmitted, "", ctl.CallID(), string(ctl.Direction())+" remarks submitted")
	c.settle()
	return outcome, nil
}

// CancelForm closes a form. A form whose completion is required is abandoned only with
// confirm; its session is then cleared and the call may settle.
func (c *Console) CancelForm(dir forms.Direction, confirm bool, employeeID string) (forms.CancelOutcome, error) {
	f, err := c.form(dir)
	if err != nil {
		return forms.CancelOutcome{}, err
	}
	out, err := f.Cancel(confirm)
	if err != nil {
		return out, err
	}
	c.cancelSubmit(dir)
	if out.ClearSession {
		c.logAudit(audit.EventTypeFormAbandoned, employeeID, out.CallID, string(dir)+" remarks abandoned after call ended")
		c.registry.Clear(out.CallID)
	}
	c.settle()
	return out, nil
}

// TrackSubmit remembers the cancel func of an in-flight submission so a reset can abort it.
func (c *Console) TrackSubmit(dir forms.Direction, cancel context.CancelFunc) {
	c.cancelSubmit(dir)
	c.inflight[dir] = cancel
}

func (c *Console) cancelSubmit(dir forms.Direction) {
	if cancel, ok := c.inflight[dir]; ok {
		cancel()
		delete(c.inflight, dir)
	}
}
