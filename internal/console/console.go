package console

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"agent-console/internal/audit"
	"agent-console/internal/callstate"
	"agent-console/internal/calls"
	"agent-console/internal/clock"
	"agent-console/internal/forms"
	"agent-console/internal/sessions"
)

var (
	ErrGuardRejected  = errors.New("console: line is busy")
	ErrNoActiveCall   = errors.New("console: no call allows this action")
	ErrInvalidRequest = errors.New("console: invalid request")
)

const (
	DefaultEndedGrace = 2 * time.Second
	DefaultTick       = time.Second

	DefaultGuardRefresh = 10 * time.Second

	guardTimeout = 250 * time.Millisecond
	auditTimeout = 2 * time.Second
)

// RecordSink receives every call record the console produces. calls.Writer implements it.
type RecordSink interface {
	Enqueue(r calls.Record) bool
}

// Auditor records reporting-affecting agent actions. Implementations must not block for long.
type Auditor interface {
	Log(ctx context.Context, typ audit.EventType, agentNumber, employeeID, callID, message string) error
}

// LineGuard marks the agent line busy outside this process. owner is the call's id.
// A hold expires unless Refresh is called while the call lasts.
type LineGuard interface {
	Acquire(ctx context.Context, owner string) (bool, error)
	Refresh(ctx context.Context, owner string) (bool, error)
	Release(ctx context.Context, owner string) error
}

type Config struct {
	AgentNumber string
	EmployeeID  string

	EndedGrace       time.Duration
	SubmitCloseDelay time.Duration
	Tick             time.Duration
	// GuardRefresh is how often a held line is refreshed. Keep it well under the guard's TTL.
	GuardRefresh time.Duration
}

type Deps struct {
	Clock   clock.Clock
	Log     *slog.Logger
	Records RecordSink
	Audit   Auditor
	Guard   LineGuard
	Rand    *rand.Rand
}

// Console wires the session registry, the call state machine and the two remarks forms
// for one agent line.
//
// It is not safe for concurrent use. Loop serialises every call onto one goroutine,
// and the clock in Deps must post timer callbacks onto that same goroutine.
type Console struct {
	cfg   Config
	clock clock.Clock
	log   *slog.Logger
	rand  *rand.Rand

	registry *sessions.Registry
	state    callstate.State
	inbound  *forms.Controller[forms.InboundRemarks]
	outbound *forms.Controller[forms.OutboundRemarks]
	history  *calls.History

	records RecordSink
	audit   Auditor
	guard   LineGuard

	tickTimer    clock.Timer
	tickEpoch    uint64
	graceTimer   clock.Timer
	graceEpoch   uint64
	graceElapsed bool
	guardOwner   string
	guardTimer   clock.Timer
	guardEpoch   uint64

	inflight map[forms.Direction]context.CancelFunc
}

func New(cfg Config, deps Deps) *Console {
	if cfg.EndedGrace <= 0 {
		cfg.EndedGrace = DefaultEndedGrace
	}
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	if cfg.GuardRefresh <= 0 {
		cfg.GuardRefresh = DefaultGuardRefresh
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewSource(deps.Clock.Now().UnixNano()))
	}
	log := deps.Log.With("component", "console", "agent_number", cfg.AgentNumber)

	return &Console{
		cfg:      cfg,
		clock:    deps.Clock,
		log:      log,
		rand:     deps.Rand,
		registry: sessions.NewRegistryWithClock(deps.Clock.Now),
		state:    callstate.Initial(),
		inbound:  forms.NewController[forms.InboundRemarks](deps.Clock, cfg.SubmitCloseDelay, deps.Log),
		outbound: forms.NewController[forms.OutboundRemarks](deps.Clock, cfg.SubmitCloseDelay, deps.Log),
		history:  calls.NewHistory(),
		records:  deps.Records,
		audit:    deps.Audit,
		guard:    deps.Guard,
		inflight: map[forms.Direction]context.CancelFunc{},
	}
}

func (c *Console) State() callstate.State { return c.state }

func (c *Console) Session(id string) (sessions.CallSession, bool) { return c.registry.Get(id) }

func (c *Console) Inbound() *forms.Controller[forms.InboundRemarks] { return c.inbound }

func (c *Console) Outbound() *forms.Controller[forms.OutboundRemarks] { return c.outbound }

func (c *Console) History() []calls.Record { return c.history.Records() }

// ConsumeOutgoingCallEnded reports the one-shot "outbound call ended" flag and clears it.
func (c *Console) ConsumeOutgoingCallEnded() bool {
	next, ended := callstate.ConsumeOutgoingCallEnded(c.state)
	c.state = next
	return ended
}

// HandleEvent runs one event through the state machine and performs its effects.
// Transport events are stamped with the local clock; the transport timestamp is kept
// on the session log.
func (c *Console) HandleEvent(ev callstate.Event) callstate.Outcome {
	remoteAt := ev.At
	ev.At = c.clock.Now()
	if remoteAt.IsZero() {
		remoteAt = ev.At
	}

	prev := c.state
	next, effects, out := callstate.Transition(prev, ev)
	if !out.Applied {
		c.dropped(prev, ev, remoteAt, out)
		return out
	}
	if prev.Status == callstate.StatusIdle && next.Status != callstate.StatusIdle && !c.takeLine(next.SessionID) {
		out = callstate.Outcome{Reason: callstate.ReasonLineBusy}
		c.dropped(prev, ev, remoteAt, out)
		return out
	}

	if has(effects, callstate.EffectRekeySession) {
		c.log.Info("adopting transport session id", "local_id", prev.SessionID, "session_id", next.SessionID)
		c.registry.Rekey(prev.SessionID, next.SessionID)
	}
	c.recordSession(prev, ev, remoteAt)

	c.state = next
	if ev.Kind != callstate.EventTick {
		c.log.Info("call transition",
			"event", ev.Kind,
			"from", prev.Status,
			"to", next.Status,
			"session_id", next.SessionID,
			"reason", out.Reason,
		)
	}

	callID := next.SessionID
	if callID == "" {
		callID = prev.SessionID
	}
	for _, e := range effects {
		switch e {
		case callstate.EffectStartTimer:
			c.startTick()
		case callstate.EffectStopTimer:
			c.stopTick()
		case callstate.EffectScheduleReset:
			c.scheduleGrace()
		case callstate.EffectRecordCompleted:
			c.appendRecord(prev, callID, calls.StatusCompleted)
		case callstate.EffectRecordMissed:
			c.appendRecord(prev, callID, calls.StatusMissed)
		case callstate.EffectClearSession:
			c.registry.Clear(prev.SessionID)
		}
	}

	c.reactForms(prev, ev)

	if next.Status == callstate.StatusIdle && prev.Status != callstate.StatusIdle {
		c.stopGrace()
		c.releaseLine()
	}
	if has(effects, callstate.EffectSettle) {
		c.settle()
	}
	return out
}

// dropped logs a rejected event. Its session log still gets the event when the session is live.
func (c *Console) dropped(prev callstate.State, ev callstate.Event, remoteAt time.Time, out callstate.Outcome) {
	switch out.Reason {
	case callstate.ReasonMissingSession:
		c.log.Warn("malformed event ignored", "event", ev.Kind, "reason", out.Reason)
		return
	case callstate.ReasonInvalidForStatus:
		if ev.Kind == callstate.EventTick || ev.Kind == callstate.EventReset {
			return
		}
	}
	c.log.Debug("event dropped", "event", ev.Kind, "status", prev.Status, "session_id", ev.SessionID, "reason", out.Reason)
	if ev.SessionID != "" {
		if _, ok := c.registry.Get(ev.SessionID); ok {
			c.registry.RecordEvent(ev.SessionID, update(ev, remoteAt))
		}
	}
}

func (c *Console) recordSession(prev callstate.State, ev callstate.Event, remoteAt time.Time) {
	switch ev.Kind {
	case callstate.EventTick, callstate.EventReset:
		return
	}
	id := ev.SessionID
	if id == "" {
		id = prev.SessionID
	}
	if id == "" {
		return
	}
	c.registry.RecordEvent(id, update(ev, remoteAt))
}

func update(ev callstate.Event, at time.Time) sessions.Update {
	return sessions.Update{
		Type:         string(ev.Kind),
		CallerNumber: ev.CustomerNumber,
		AgentNumber:  ev.AgentNumber,
		Timestamp:    at,
		Data:         ev.Data,
	}
}

// reactForms keeps the remarks forms in step with the call. prev is the state before ev.
func (c *Console) reactForms(prev callstate.State, ev callstate.Event) {
	cur := c.state
	if ev.Kind == callstate.EventForceReset {
		c.resetForm(c.inbound)
		c.resetForm(c.outbound)
		return
	}
	if cur.Status == prev.Status {
		return
	}

	switch cur.Status {
	case callstate.StatusConnected:
		c.openForm(c.inbound, c.outbound, cur)
	case callstate.StatusOutgoingConnected:
		c.openForm(c.outbound, c.inbound, cur)
	case callstate.StatusEnded:
		if prev.Status == callstate.StatusConnected {
			c.terminal(c.inbound)
		}
	case callstate.StatusOutgoingEnded:
		if prev.Status == callstate.StatusOutgoingConnected {
			c.terminal(c.outbound)
		}
	}
}

func (c *Console) openForm(f, other lifecycle, cur callstate.State) {
	if other.IsOpen() && !other.Blocking() {
		c.resetForm(other)
	}
	if f.IsOpen() && f.CallID() != cur.SessionID {
		c.cancelSubmit(f.Direction())
	}
	info := forms.CallInfo{
		CallID:      cur.SessionID,
		AgentNumber: c.cfg.AgentNumber,
		EmployeeID:  c.cfg.EmployeeID,
		Timestamp:   c.clock.Now(),
	}
	if s, ok := c.registry.Get(cur.SessionID); ok {
		info.CallerNumber = s.CallerNumber
	}
	f.OnConnected(info)
}

func (c *Console) terminal(f lifecycle) {
	switch f.OnTerminal() {
	case forms.TerminalMustComplete:
		c.log.Info("call ended with unsaved remarks, holding line", "direction", f.Direction(), "call_id", f.CallID())
	case forms.TerminalClosed:
		c.cancelSubmit(f.Direction())
	}
}

func (c *Console) resetForm(f lifecycle) {
	c.cancelSubmit(f.Direction())
	f.Reset()
}

// settle returns a concluded call to idle once nothing holds it: the grace period for
// inbound calls, and a remarks form that must still be completed for both directions.
func (c *Console) settle() {
	switch c.state.Status {
	case callstate.StatusEnded:
		if !c.graceElapsed || c.inbound.Blocking() {
			return
		}
	case callstate.StatusOutgoingEnded:
		if c.outbound.Blocking() {
			return
		}
	default:
		return
	}
	c.HandleEvent(callstate.Event{Kind: callstate.EventReset})
}

func (c *Console) startTick() {
	c.stopTick()
	epoch := c.tickEpoch
	var fire func()
	fire = func() {
		if epoch != c.tickEpoch {
			return
		}
		c.HandleEvent(callstate.Event{Kind: callstate.EventTick})
		if epoch != c.tickEpoch || !c.state.Status.Connected() {
			return
		}
		c.tickTimer = c.clock.AfterFunc(c.cfg.Tick, fire)
	}
	c.tickTimer = c.clock.AfterFunc(c.cfg.Tick, fire)
}

func (c *Console) stopTick() {
	c.tickEpoch++
	if c.tickTimer != nil {
		c.tickTimer.Stop()
		c.tickTimer = nil
	}
}

func (c *Console) scheduleGrace() {
	c.stopGrace()
	epoch := c.graceEpoch
	c.graceTimer = c.clock.AfterFunc(c.cfg.EndedGrace, func() {
		if epoch != c.graceEpoch {
			return
		}
		c.graceTimer = nil
		c.graceElapsed = true
		c.settle()
	})
}

func (c *Console) stopGrace() {
	c.graceEpoch++
	c.graceElapsed = false
	if c.graceTimer != nil {
		c.graceTimer.Stop()
		c.graceTimer = nil
	}
}

// appendRecord builds the record of the call that prev describes.
func (c *Console) appendRecord(prev callstate.State, sessionID string, status calls.Status) {
	now := c.clock.Now()
	r := calls.Record{
		ID:          sessionID,
		Direction:   calls.DirectionInbound,
		AgentNumber: c.cfg.AgentNumber,
		StartTime:   prev.StartedAt,
		EndTime:     now,
		Status:      status,
	}
	if prev.Status.Outbound() {
		r.Direction = calls.DirectionOutbound
	}
	if s, ok := c.registry.Get(sessionID); ok {
		r.CallerNumber = s.CallerNumber
		if r.StartTime.IsZero() {
			r.StartTime = s.CreatedAt
		}
	}
	if status == calls.StatusCompleted {
		r.DurationSeconds = callstate.ElapsedSeconds(prev.StartedAt, now)
	}

	c.history.Append(r)
	if c.records != nil {
		c.records.Enqueue(r)
	}
}

func (c *Console) takeLine(owner string) bool {
	if c.guard == nil {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), guardTimeout)
	defer cancel()
	ok, err := c.guard.Acquire(ctx, owner)
	if err != nil {
		c.log.Warn("line guard unavailable, continuing without it", "err", err)
		return true
	}
	if !ok {
		return false
	}
	c.guardOwner = owner
	c.scheduleGuardRefresh()
	return true
}

// scheduleGuardRefresh keeps the line hold alive until releaseLine.
func (c *Console) scheduleGuardRefresh() {
	epoch := c.guardEpoch
	owner := c.guardOwner
	c.guardTimer = c.clock.AfterFunc(c.cfg.GuardRefresh, func() {
		if epoch != c.guardEpoch || owner != c.guardOwner {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), guardTimeout)
		ok, err := c.guard.Refresh(ctx, owner)
		cancel()
		switch {
		case err != nil:
			c.log.Warn("line guard refresh failed", "owner", owner, "err", err)
		case !ok:
			c.log.Warn("line guard hold lost", "owner", owner)
		}
		c.scheduleGuardRefresh()
	})
}

// releaseLine runs on the loop so the next call's Acquire never sees this hold.
func (c *Console) releaseLine() {
	c.guardEpoch++
	if c.guardTimer != nil {
		c.guardTimer.Stop()
		c.guardTimer = nil
	}
	if c.guard == nil || c.guardOwner == "" {
		return
	}
	owner := c.guardOwner
	c.guardOwner = ""
	ctx, cancel := context.WithTimeout(context.Background(), guardTimeout)
	defer cancel()
	if err := c.guard.Release(ctx, owner); err != nil {
		c.log.Warn("line guard release failed", "owner", owner, "err", err)
	}
}

func (c *Console) logAudit(typ audit.EventType, employeeID, callID, message string) {
	if c.audit == nil {
		return
	}
	if employeeID == "" {
		employeeID = c.cfg.EmployeeID
	}
	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()
	if err := c.audit.Log(ctx, typ, c.cfg.AgentNumber, employeeID, callID, message); err != nil {
		c.log.Warn("audit failed", "type", typ, "call_id", callID, "err", err)
	}
}

func has(effects []callstate.Effect, e callstate.Effect) bool {
	for _, v := range effects {
		if v == e {
			return true
		}
	}
	return false
}
