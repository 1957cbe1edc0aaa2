package forms

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"agent-console/internal/clock"
)

var (
	ErrFormNotOpen        = errors.New("forms: no form is open")
	ErrSubmitInProgress   = errors.New("forms: submission already in progress")
	ErrAlreadySubmitted   = errors.New("forms: form already submitted")
	ErrStaleSubmission    = errors.New("forms: submission belongs to a closed form")
	ErrCompletionRequired = errors.New("forms: completion required; cancelling may affect reporting")
	ErrUnsavedChanges     = errors.New("forms: form has unsaved changes")
)

// Messages surfaced to the agent.
const (
	MsgMustComplete     = "The call has ended. Complete and submit the remarks form before taking another call."
	MsgValidationFailed = "Please fill in all required fields."
	MsgSubmitted        = "Remarks saved."
)

// DefaultCloseDelay lets the success message render before a submitted form closes.
const DefaultCloseDelay = 1500 * time.Millisecond

// Ack is the backend's reply to a form submission.
type Ack struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// State is a snapshot of one direction's form.
type State[T any] struct {
	Direction          Direction         `json:"direction"`
	IsOpen             bool              `json:"isOpen"`
	Data               *T                `json:"data"`
	IsSubmitted        bool              `json:"isSubmitted"`
	IsSubmitting       bool              `json:"isSubmitting"`
	MustComplete       bool              `json:"mustComplete"`
	CompletionRequired bool              `json:"completionRequired"`
	CallEnded          bool              `json:"callEnded"`
	Error              string            `json:"error,omitempty"`
	FieldErrors        map[string]string `json:"fieldErrors,omitempty"`
	Message            string            `json:"message,omitempty"`
}

// Submission is handed out by BeginSubmit and must be returned to CompleteSubmit.
// The generation pins it to the form instance that produced it.
type Submission[T any] struct {
	Payload T
	gen     uint64
}

type TerminalOutcome string

const (
	TerminalNotOpen      TerminalOutcome = "not_open"
	TerminalClosed       TerminalOutcome = "closed"
	TerminalMustComplete TerminalOutcome = "must_complete"
	// TerminalClosing means the form was already submitted; the session can go.
	TerminalClosing TerminalOutcome = "closing_after_submit"
)

type SubmitOutcome string

const (
	SubmitSaved   SubmitOutcome = "saved"   // call still active, form stays open
	SubmitClosing SubmitOutcome = "closing" // call over, form closes after the delay
	SubmitFailed  SubmitOutcome = "failed"
	SubmitStale   SubmitOutcome = "stale"
)

// CancelOutcome tells the owner what a successful cancel implies.
type CancelOutcome struct {
	// ClearSession is set when completion was required; the linked session is abandoned.
	ClearSession bool
	// Abandoned is set when filled-in or required data was discarded.
	Abandoned bool
	CallID    string
}

// Controller drives the lifecycle of one direction's remarks form.
// It is not safe for concurrent use; the console calls it from its event loop.
type Controller[T Remarks[T]] struct {
	dir        Direction
	clock      clock.Clock
	closeDelay time.Duration
	log        *slog.Logger

	st         State[T]
	info       CallInfo
	gen        uint64
	closeTimer clock.Timer
}

func NewController[T Remarks[T]](c clock.Clock, closeDelay time.Duration, log *slog.Logger) *Controller[T] {
	var zero T
	if c == nil {
		c = clock.Real{}
	}
	if closeDelay <= 0 {
		closeDelay = DefaultCloseDelay
	}
	if log == nil {
		log = slog.Default()
	}
	dir := zero.Direction()
	return &Controller[T]{
		dir:        dir,
		clock:      c,
		closeDelay: closeDelay,
		log:        log.With("component", "forms", "direction", string(dir)),
		st:         State[T]{Direction: dir},
	}
}

func (c *Controller[T]) Direction() Direction { return c.dir }

// Snapshot returns a copy of the form state.
func (c *Controller[T]) Snapshot() State[T] {
	out := c.st
	if c.st.Data != nil {
		d := *c.st.Data
		out.Data = &d
	}
	if c.st.FieldErrors != nil {
		out.FieldErrors = make(map[string]string, len(c.st.FieldErrors))
		for k, v := range c.st.FieldErrors {
			out.FieldErrors[k] = v
		}
	}
	return out
}

func (c *Controller[T]) IsOpen() bool { return c.st.IsOpen }
func (c *Controller[T]) Blocking() bool { return c.st.MustComplete }
func (c *Controller[T]) CallID() string { return c.info.CallID }

// OnConnected opens a fresh form for the call that just connected.
// A form left over from an earlier call is reset first. It reports whether a form was opened.
func (c *Controller[T]) OnConnected(info CallInfo) bool {
	if c.st.IsOpen && c.info.CallID == info.CallID {
		return false
	}
	if c.st.IsOpen || c.st.IsSubmitted {
		c.log.Info("resetting form left from previous call", "previous_call_id", c.info.CallID, "call_id", info.CallID)
		c.Reset()
	}

	var zero T
	data := zero.WithCall(info)
	c.info = info
	c.st = State[T]{Direction: c.dir, IsOpen: true, Data: &data}
	c.log.Debug("form opened", "call_id", info.CallID)
	return true
}

// OnTerminal reacts to the linked call reaching its terminal status.
func (c *Controller[T]) OnTerminal() TerminalOutcome {
	if !c.st.IsOpen {
		return TerminalNotOpen
	}
	c.st.CallEnded = true

	if c.st.IsSubmitted {
		c.scheduleClose()
		return TerminalClosing
	}
	if c.st.Data != nil && (*c.st.Data).Unsaved() {
		c.st.MustComplete = true
		c.st.CompletionRequired = true
		c.st.Message = MsgMustComplete
		c.log.Info("form completion required", "call_id", c.info.CallID)
		return TerminalMustComplete
	}
	c.Reset()
	return TerminalClosed
}

// Edit stores the agent's draft. Call fields stay as pre-populated.
func (c *Controller[T]) Edit(data T) error {
	if !c.st.IsOpen {
		return ErrFormNotOpen
	}
	if c.st.IsSubmitted {
		return ErrAlreadySubmitted
	}
	data = data.WithCall(c.info)
	c.st.Data = &data
	c.st.Error = ""
	return nil
}

// BeginSubmit validates data and marks the form as submitting.
// On validation failure the backend must not be contacted.
func (c *Controller[T]) BeginSubmit(data T) (Submission[T], error) {
	if !c.st.IsOpen {
		return Submission[T]{}, ErrFormNotOpen
	}
	if c.st.IsSubmitting {
		return Submission[T]{}, ErrSubmitInProgress
	}
	if c.st.IsSubmitted {
		return Submission[T]{}, ErrAlreadySubmitted
	}

	data = data.WithCall(c.info)
	c.st.Data = &data

	if err := Validate(data); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			c.st.FieldErrors = verr.Fields
		}
		c.st.Error = MsgValidationFailed
		return Submission[T]{}, err
	}

	c.st.Error = ""
	c.st.FieldErrors = nil
	c.st.IsSubmitting = true
	return Submission[T]{Payload: data, gen: c.gen}, nil
}

// CompleteSubmit applies the backend result of a submission.
// Results for a form that has since been reset are rejected with ErrStaleSubmission.
func (c *Controller[T]) CompleteSubmit(sub Submission[T], ack Ack, err error) (SubmitOutcome, error) {
	if sub.gen != c.gen || !c.st.IsOpen {
		c.log.Warn("ignoring late submission result")
		return SubmitStale, ErrStaleSubmission
	}
	c.st.IsSubmitting = false

	if err == nil && !ack.Success {
		msg := ack.Message
		if msg == "" {
			msg = "backend rejected the form"
		}
		err = errors.New(msg)
	}
	if err != nil {
		c.st.Error = fmt.Sprintf("Failed to submit form: %v", err)
		return SubmitFailed, err
	}

	c.st.IsSubmitted = true
	c.st.MustComplete = false
	c.st.CompletionRequired = false
	c.st.Message = MsgSubmitted
	if ack.Message != "" {
		c.st.Message = ack.Message
	}

	if c.st.CallEnded {
		c.scheduleClose()
		return SubmitClosing, nil
	}
	return SubmitSaved, nil
}

// Cancel closes the form. Required or unsaved forms need confirm.
func (c *Controller[T]) Cancel(confirm bool) (CancelOutcome, error) {
	if !c.st.IsOpen {
		return CancelOutcome{}, ErrFormNotOpen
	}
	unsaved := !c.st.IsSubmitted && c.st.Data != nil && (*c.st.Data).Unsaved()

	if c.st.CompletionRequired && !confirm {
		return CancelOutcome{}, ErrCompletionRequired
	}
	if unsaved && !confirm {
		return CancelOutcome{}, ErrUnsavedChanges
	}

	out := CancelOutcome{
		ClearSession: c.st.CompletionRequired,
		Abandoned:    c.st.CompletionRequired || unsaved,
		CallID:       c.info.CallID,
	}
	c.Reset()
	return out, nil
}

// Reset closes the form unconditionally. Pending submissions become stale.
func (c *Controller[T]) Reset() {
	c.gen++
	if c.closeTimer != nil {
		c.closeTimer.Stop()
		c.closeTimer = nil
	}
	c.info = CallInfo{}
	c.st = State[T]{Direction: c.dir}
}

func (c *Controller[T]) scheduleClose() {
	if c.closeTimer != nil {
		c.closeTimer.Stop()
	}
	gen := c.gen
	c.closeTimer = c.clock.AfterFunc(c.closeDelay, func() {
		if c.gen != gen {
			return
		}
		c.log.Debug("closing submitted form", "call_id", c.info.CallID)
		c.Reset()
	})
}
