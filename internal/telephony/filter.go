package telephony

import (
	"log/slog"

	"agent-console/internal/callstate"
	"agent-console/internal/phone"
)

// Sink receives decoded transport events in arrival order.
type Sink interface {
	Deliver(ev callstate.Event)
}

type SinkFunc func(ev callstate.Event)

func (f SinkFunc) Deliver(ev callstate.Event) { f(ev) }

// AgentFilter forwards only events addressed to this console's agent line.
// Numbers are compared digits-only; an event without an agent number is dropped.
type AgentFilter struct {
	agentNumber string
	next        Sink
	log         *slog.Logger
}

func NewAgentFilter(agentNumber string, next Sink, log *slog.Logger) *AgentFilter {
	if log == nil {
		log = slog.Default()
	}
	return &AgentFilter{agentNumber: agentNumber, next: next, log: log.With("component", "telephony.filter")}
}

func (f *AgentFilter) Deliver(ev callstate.Event) {
	if !phone.Same(ev.AgentNumber, f.agentNumber) {
		f.log.Debug("event for another agent dropped", "event", ev.Kind, "session_id", ev.SessionID, "agent_number", ev.AgentNumber)
		return
	}
	f.next.Deliver(ev)
}
