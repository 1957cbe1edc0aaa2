package callstate

import "time"

// EventKind tags an Event. Transport kinds use the push channel's event names.
type EventKind string

const (
	EventIncomingRinging      EventKind = "incoming-call-ringing"
	EventAnswered             EventKind = "call-answered"
	EventDisconnected         EventKind = "call-disconnected"
	EventOutgoingInitiated    EventKind = "outgoing-call-initiated"
	EventOutgoingConnected    EventKind = "outgoing-call-connected"
	EventOutgoingDisconnected EventKind = "outgoing-call-disconnected"
	EventOutgoingNotReachable EventKind = "outgoing-call-not-reachable"

	// Agent actions.
	EventDecline          EventKind = "decline"
	EventHangup           EventKind = "hangup"
	EventInitiateOutbound EventKind = "initiate-outbound"
	EventForceReset       EventKind = "force-reset"

	// Raised by the console itself.
	EventReset EventKind = "reset"
	EventTick  EventKind = "tick"
)

// TransportKinds are the kinds a push channel may deliver.
var TransportKinds = []EventKind{
	EventIncomingRinging,
	EventAnswered,
	EventDisconnected,
	EventOutgoingInitiated,
	EventOutgoingConnected,
	EventOutgoingDisconnected,
	EventOutgoingNotReachable,
}

// IsTransport reports whether k arrives from the telephony backend.
func (k EventKind) IsTransport() bool {
	for _, t := range TransportKinds {
		if k == t {
			return true
		}
	}
	return false
}

// Event is the tagged union the state machine consumes.
// SessionID is required for transport kinds and initiate-outbound.
type Event struct {
	Kind           EventKind      `json:"kind"`
	SessionID      string         `json:"sessionId,omitempty"`
	CustomerNumber string         `json:"customerPhoneNumber,omitempty"`
	AgentNumber    string         `json:"agentPhoneNumber,omitempty"`
	At             time.Time      `json:"timestamp"`
	Data           map[string]any `json:"data,omitempty"`
}

func (k EventKind) needsSessionID() bool {
	return k.IsTransport() || k == EventInitiateOutbound
}
