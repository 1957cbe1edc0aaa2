package forms

import (
	"errors"
	"testing"
	"time"

	"agent-console/internal/clock"
)

var t0 = time.Unix(1700000000, 0).UTC()

func newInbound(t *testing.T) (*Controller[InboundRemarks], *clock.Fake) {
	t.Helper()
	fc := clock.NewFake(t0)
	return NewController[InboundRemarks](fc, DefaultCloseDelay, nil), fc
}

func call(id string) CallInfo {
	return CallInfo{CallID: id, CallerNumber: "+15550001", AgentNumber: "111", EmployeeID: "E1", Timestamp: t0}
}

func validInbound() InboundRemarks {
	return InboundRemarks{
		SupportTypeID: "1",
		QueryTypeID:   "7",
		Remarks:       "customer asked about a refund",
		Status:        "resolved",
	}
}

func TestOnConnected_OpensPrepopulatedForm(t *testing.T) {
	c, _ := newInbound(t)
	if !c.OnConnected(call("S1")) {
		t.Fatalf("expected form to open")
	}
	st := c.Snapshot()
	if !st.IsOpen || st.Data == nil {
		t.Fatalf("expected open form: %+v", st)
	}
	if st.Data.CallID != "S1" || st.Data.EmployeeID != "E1" || st.Data.CallerNumber != "+15550001" {
		t.Fatalf("expected call fields pre-populated: %+v", st.Data.CallInfo)
	}
	if st.Data.Unsaved() {
		t.Fatalf("a fresh form has no unsaved data")
	}
}

func TestOnConnected_SameCallIsNoop(t *testing.T) {
	c, _ := newInbound(t)
	c.OnConnected(call("S1"))
	d := validInbound()
	_ = c.Edit(d)
	if c.OnConnected(call("S1")) {
		t.Fatalf("re-entering the same call must not reopen")
	}
	if c.Snapshot().Data.Remarks == "" {
		t.Fatalf("draft must survive a duplicate connect")
	}
}

func TestOnConnected_ResetsFormFromPreviousCall(t *testing.T) {
	c, _ := newInbound(t)
	c.OnConnected(call("S1"))
	_ = c.Edit(validInbound())

	c.OnConnected(call("S2"))
	st := c.Snapshot()
	if st.Data.CallID != "S2" || st.Data.Remarks != "" {
		t.Fatalf("expected fresh form for S2, got %+v", st.Data)
	}
	if st.MustComplete || st.CompletionRequired {
		t.Fatalf("completion flags are per call")
	}
}

func TestOnTerminal_UnsavedDataRequiresCompletion(t *testing.T) {
	c, _ := newInbound(t)
	c.OnConnected(call("S1"))
	_ = c.Edit(InboundRemarks{Remarks: "half typed"})

	if out := c.OnTerminal(); out != TerminalMustComplete {
		t.Fatalf("expected must complete, got %s", out)
	}
	st := c.Snapshot()
	if !st.MustComplete || !st.CompletionRequired || !st.IsOpen {
		t.Fatalf("unexpected state: %+v", st)
	}
	if st.Message != MsgMustComplete {
		t.Fatalf("expected blocking message, got %q", st.Message)
	}
}

func TestOnTerminal_EmptyFormCloses(t *testing.T) {
	c, _ := newInbound(t)
	c.OnConnected(call("S1"))
	if out := c.OnTerminal(); out != TerminalClosed {
		t.Fatalf("expected closed, got %s", out)
	}
	if c.IsOpen() {
		t.Fatalf("expected form to close")
	}
}

func TestBeginSubmit_ValidationBlocksBackend(t *testing.T) {
	c, _ := newInbound(t)
	c.OnConnected(call("S1"))

	_, err := c.BeginSubmit(InboundRemarks{Remarks: "short", Status: FollowUp})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, f := range []string{"supportTypeId", "queryTypeId", "remarks", "followUpDate"} {
		if _, ok := verr.Fields[f]; !ok {
			t.Fatalf("expected %s in field errors: %v", f, verr.Fields)
		}
	}
	st := c.Snapshot()
	if st.IsSubmitting || st.Error != MsgValidationFailed {
		t.Fatalf("unexpected state: %+v", st)
	}
}

func TestBeginSubmit_BlankRemarksRejected(t *testing.T) {
	c, _ := newInbound(t)
	c.OnConnected(call("S1"))

	for _, remarks := range []string{"          ", "   too short   "} {
		_, err := c.BeginSubmit(InboundRemarks{SupportTypeID: "1", QueryTypeID: "7", Remarks: remarks, Status: "resolved"})
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected validation error for %q, got %v", remarks, err)
		}
		if _, ok := verr.Fields["remarks"]; !ok || len(verr.Fields) != 1 {
			t.Fatalf("expected only remarks for %q, got %v", remarks, verr.Fields)
		}
	}
}

func TestSubmitWhileCallActiveKeepsFormOpen(t *testing.T) {
	c, fc := newInbound(t)
	c.OnConnected(call("S1"))

	sub, err := c.BeginSubmit(validInbound())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if sub.Payload.CallID != "S1" {
		t.Fatalf("payload must carry call fields")
	}
	out, err := c.CompleteSubmit(sub, Ack{Success: true}, nil)
	if err != nil || out != SubmitSaved {
		t.Fatalf("expected saved, got %s %v", out, err)
	}

	fc.Advance(10 * time.Second)
	st := c.Snapshot()
	if !st.IsOpen || !st.IsSubmitted {
		t.Fatalf("form must stay open while the call is active: %+v", st)
	}

	if got := c.OnTerminal(); got != TerminalClosing {
		t.Fatalf("expected closing, got %s", got)
	}
	fc.Advance(DefaultCloseDelay)
	if c.IsOpen() || c.Snapshot().IsSubmitted {
		t.Fatalf("expected form closed and reset after delay")
	}
}

func TestSubmitAfterTerminalClosesAfterDelay(t *testing.T) {
	c, fc := newInbound(t)
	c.OnConnected(call("S1"))
	_ = c.Edit(InboundRemarks{Remarks: "typed something"})
	c.OnTerminal()

	sub, err := c.BeginSubmit(validInbound())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	out, err := c.CompleteSubmit(sub, Ack{Success: true}, nil)
	if err != nil || out != SubmitClosing {
		t.Fatalf("expected closing, got %s %v", out, err)
	}
	if c.Blocking() {
		t.Fatalf("submission clears completion")
	}
	fc.Advance(DefaultCloseDelay - time.Millisecond)
	if !c.IsOpen() {
		t.Fatalf("form should show success until the delay passes")
	}
	fc.Advance(time.Millisecond)
	if c.IsOpen() {
		t.Fatalf("expected form closed")
	}
}

func TestBackendFailureKeepsDataForRetry(t *testing.T) {
	c, _ := newInbound(t)
	c.OnConnected(call("S1"))
	sub, _ := c.BeginSubmit(validInbound())

	out, err := c.CompleteSubmit(sub, Ack{Success: false, Message: "db down"}, nil)
	if err == nil || out != SubmitFailed {
		t.Fatalf("expected failure, got %s %v", out, err)
	}
	st := c.Snapshot()
	if !st.IsOpen || st.IsSubmitting || st.IsSubmitted || st.Data.Remarks == "" || st.Error == "" {
		t.Fatalf("unexpected state after failure: %+v", st)
	}
	if _, err := c.BeginSubmit(*st.Data); err != nil {
		t.Fatalf("retry should be allowed: %v", err)
	}
}

func TestLateResponseAfterResetIsStale(t *testing.T) {
	c, _ := newInbound(t)
	c.OnConnected(call("S1"))
	sub, _ := c.BeginSubmit(validInbound())

	c.Reset()
	c.OnConnected(call("S2"))

	out, err := c.CompleteSubmit(sub, Ack{Success: true}, nil)
	if !errors.Is(err, ErrStaleSubmission) || out != SubmitStale {
		t.Fatalf("expected stale, got %s %v", out, err)
	}
	if c.Snapshot().IsSubmitted {
		t.Fatalf("late response must not mark the new form submitted")
	}
}

func TestCancel_RequiresConfirmation(t *testing.T) {
	c, _ := newInbound(t)
	c.OnConnected(call("S1"))
	_ = c.Edit(InboundRemarks{Remarks: "typed"})

	if _, err := c.Cancel(false); !errors.Is(err, ErrUnsavedChanges) {
		t.Fatalf("expected unsaved changes, got %v", err)
	}

	c.OnTerminal()
	if _, err := c.Cancel(false); !errors.Is(err, ErrCompletionRequired) {
		t.Fatalf("expected completion required, got %v", err)
	}
	if !c.IsOpen() {
		t.Fatalf("unconfirmed cancel must not close the form")
	}

	out, err := c.Cancel(true)
	if err != nil {
		t.Fatalf("confirmed cancel: %v", err)
	}
	if !out.ClearSession || !out.Abandoned || out.CallID != "S1" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if c.IsOpen() || c.Blocking() {
		t.Fatalf("expected closed form")
	}
}

func TestCancel_EmptyFormClosesSilently(t *testing.T) {
	c, _ := newInbound(t)
	c.OnConnected(call("S1"))
	out, err := c.Cancel(false)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.ClearSession || out.Abandoned {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestOutboundValidation(t *testing.T) {
	c := NewController[OutboundRemarks](clock.NewFake(t0), 0, nil)
	c.OnConnected(call("CS-1"))

	_, err := c.BeginSubmit(OutboundRemarks{CallType: "sales", AttemptStatus: "connected", Disposition: FollowUp})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, ok := verr.Fields["followUpDate"]; !ok || len(verr.Fields) != 1 {
		t.Fatalf("expected only followUpDate, got %v", verr.Fields)
	}

	if _, err := c.BeginSubmit(OutboundRemarks{CallType: "sales", AttemptStatus: "connected", Disposition: FollowUp, FollowUpDate: "2026-10-20"}); err != nil {
		t.Fatalf("expected valid outbound form: %v", err)
	}
}
