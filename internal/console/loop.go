package console

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"agent-console/internal/callstate"
	"agent-console/internal/calls"
	"agent-console/internal/clock"
	"agent-console/internal/crmapi"
	"agent-console/internal/forms"
)

var ErrStopped = errors.New("console: loop stopped")

const (
	defaultLoopBuffer = 128
	backendTimeout    = 15 * time.Second
)

// Backend is the slice of the CRM API the loop calls. crmapi.Client implements it.
type Backend interface {
	MakeCall(ctx context.Context, req crmapi.MakeCallRequest) (crmapi.MakeCallResponse, error)
	SubmitInboundForm(ctx context.Context, r forms.InboundRemarks) (forms.Ack, error)
	SubmitOutboundForm(ctx context.Context, r forms.OutboundRemarks) (forms.Ack, error)
}

// CallOptions are sent with every outbound placement request.
type CallOptions struct {
	CallerID  string
	Record    bool
	Callbacks []string
}

// Loop owns the Console and runs every operation on a single goroutine, in submission
// order. Transport events for one session are therefore applied in arrival order.
// Backend requests run outside the loop; their results are posted back.
type Loop struct {
	console *Console
	backend Backend
	opts    CallOptions
	log     *slog.Logger

	cmds chan func()
	done chan struct{}
}

func NewLoop(backend Backend, opts CallOptions, log *slog.Logger) *Loop {
	if log == nil {
		log = slog.Default()
	}
	return &Loop{
		backend: backend,
		opts:    opts,
		log:     log.With("component", "console.loop"),
		cmds:    make(chan func(), defaultLoopBuffer),
		done:    make(chan struct{}),
	}
}

// Clock wraps base so timer callbacks run on the loop. Give it to the Console.
func (l *Loop) Clock(base clock.Clock) clock.Clock { return clock.Dispatch(base, l.post) }

// Bind attaches the console. It must be called before Run.
func (l *Loop) Bind(c *Console) { l.console = c }

// Run processes commands until ctx is done. Pending timers are dropped after it returns.
func (l *Loop) Run(ctx context.Context) error {
	if l.console == nil {
		return errors.New("console: loop has no console bound")
	}
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.cmds:
			fn()
		}
	}
}

func (l *Loop) post(fn func()) {
	select {
	case l.cmds <- fn:
	case <-l.done:
	}
}

// do runs fn on the loop and waits for it.
func (l *Loop) do(ctx context.Context, fn func(c *Console)) error {
	finished := make(chan struct{})
	cmd := func() {
		defer close(finished)
		fn(l.console)
	}
	select {
	case l.cmds <- cmd:
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Deliver queues a transport event. It blocks while the queue is full so order is kept.
func (l *Loop) Deliver(ev callstate.Event) {
	l.post(func() { l.console.HandleEvent(ev) })
}

func (l *Loop) Snapshot(ctx context.Context) (Snapshot, error) {
	var out Snapshot
	err := l.do(ctx, func(c *Console) { out = c.Snapshot() })
	return out, err
}

func (l *Loop) History(ctx context.Context) ([]calls.Record, error) {
	var out []calls.Record
	err := l.do(ctx, func(c *Console) { out = c.History() })
	return out, err
}

func (l *Loop) ConsumeOutgoingCallEnded(ctx context.Context) (bool, error) {
	var ended bool
	err := l.do(ctx, func(c *Console) { ended = c.ConsumeOutgoingCallEnded() })
	return ended, err
}

func (l *Loop) Decline(ctx context.Context, employeeID string) error {
	var opErr error
	if err := l.do(ctx, func(c *Console) { opErr = c.Decline(employeeID) }); err != nil {
		return err
	}
	return opErr
}

func (l *Loop) HangUp(ctx context.Context) error {
	var opErr error
	if err := l.do(ctx, func(c *Console) { opErr = c.HangUp() }); err != nil {
		return err
	}
	return opErr
}

func (l *Loop) ForceReset(ctx context.Context, employeeID string) error {
	return l.do(ctx, func(c *Console) { c.ForceReset(employeeID) })
}

// StartOutbound places an outbound call and returns its session id.
// The request is not aborted when ctx ends; the call may already be ringing.
func (l *Loop) StartOutbound(ctx context.Context, customerNumber string) (string, error) {
	var (
		localID string
		from    string
		opErr   error
	)
	if err := l.do(ctx, func(c *Console) {
		localID, opErr = c.BeginOutbound(customerNumber)
		from = c.cfg.AgentNumber
	}); err != nil {
		return "", err
	}
	if opErr != nil {
		return "", opErr
	}

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), backendTimeout)
	defer cancel()
	res, callErr := l.backend.MakeCall(callCtx, crmapi.MakeCallRequest{
		From:      from,
		To:        customerNumber,
		CallerID:  l.opts.CallerID,
		Record:    l.opts.Record,
		Callbacks: l.opts.Callbacks,
	})

	var id string
	// The result must be applied even if the HTTP caller went away.
	if err := l.do(context.Background(), func(c *Console) {
		id, opErr = c.CompleteOutbound(localID, res.CallSessionID, callErr)
	}); err != nil {
		return "", err
	}
	return id, opErr
}

func (l *Loop) EditInbound(ctx context.Context, data forms.InboundRemarks) error {
	var opErr error
	if err := l.do(ctx, func(c *Console) { opErr = c.EditInbound(data) }); err != nil {
		return err
	}
	return opErr
}

func (l *Loop) EditOutbound(ctx context.Context, data forms.OutboundRemarks) error {
	var opErr error
	if err := l.do(ctx, func(c *Console) { opErr = c.EditOutbound(data) }); err != nil {
		return err
	}
	return opErr
}

func (l *Loop) SubmitInbound(ctx context.Context, data forms.InboundRemarks) (forms.SubmitOutcome, error) {
	return submit(ctx, l, forms.DirectionInbound, data,
		(*Console).BeginSubmitInbound, l.backend.SubmitInboundForm, (*Console).CompleteSubmitInbound)
}

func (l *Loop) SubmitOutbound(ctx context.Context, data forms.OutboundRemarks) (forms.SubmitOutcome, error) {
	return submit(ctx, l, forms.DirectionOutbound, data,
		(*Console).BeginSubmitOutbound, l.backend.SubmitOutboundForm, (*Console).CompleteSubmitOutbound)
}

// submit validates on the loop, posts outside it, and applies the result on the loop.
// A form reset while the POST is in flight cancels it and the late result is rejected.
func submit[T forms.Remarks[T]](
	ctx context.Context,
	l *Loop,
	dir forms.Direction,
	data T,
	begin func(*Console, T) (forms.Submission[T], error),
	send func(context.Context, T) (forms.Ack, error),
	complete func(*Console, forms.Submission[T], forms.Ack, error) (forms.SubmitOutcome, error),
) (forms.SubmitOutcome, error) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), backendTimeout)
	defer cancel()

	var (
		sub   forms.Submission[T]
		opErr error
	)
	if err := l.do(ctx, func(c *Console) {
		sub, opErr = begin(c, data)
		if opErr == nil {
			c.TrackSubmit(dir, cancel)
		}
	}); err != nil {
		return "", err
	}
	if opErr != nil {
		return "", opErr
	}

	ack, sendErr := send(sendCtx, sub.Payload)

	var outcome forms.SubmitOutcome
	if err := l.do(context.Background(), func(c *Console) {
		outcome, opErr = complete(c, sub, ack, sendErr)
	}); err != nil {
		return "", err
	}
	return outcome, opErr
}

func (l *Loop) CancelForm(ctx context.Context, dir forms.Direction, confirm bool, employeeID string) (forms.CancelOutcome, error) {
	var (
		out   forms.CancelOutcome
		opErr error
	)
	if err := l.do(ctx, func(c *Console) { out, opErr = c.CancelForm(dir, confirm, employeeID) }); err != nil {
		return forms.CancelOutcome{}, err
	}
	return out, opErr
}
