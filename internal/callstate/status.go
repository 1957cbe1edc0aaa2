package callstate

import "time"

// Status is the single global call status of the console. Exactly one holds at a time.
type Status string

const (
	StatusIdle              Status = "idle"
	StatusRinging           Status = "ringing"
	StatusConnected         Status = "connected"
	StatusEnded             Status = "ended"
	StatusOutgoingRinging   Status = "outgoing-ringing"
	StatusOutgoingConnected Status = "outgoing-connected"
	StatusOutgoingEnded     Status = "outgoing-ended"
)

// Statuses lists every valid status.
var Statuses = []Status{
	StatusIdle,
	StatusRinging,
	StatusConnected,
	StatusEnded,
	StatusOutgoingRinging,
	StatusOutgoingConnected,
	StatusOutgoingEnded,
}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether the call has concluded.
func (s Status) Terminal() bool { return s == StatusEnded || s == StatusOutgoingEnded }

// Connected reports whether audio is up.
func (s Status) Connected() bool { return s == StatusConnected || s == StatusOutgoingConnected }

// Outbound reports whether the status belongs to an agent-placed call.
func (s Status) Outbound() bool {
	switch s {
	case StatusOutgoingRinging, StatusOutgoingConnected, StatusOutgoingEnded:
		return true
	default:
		return false
	}
}

// State is owned by the console and only changed through Transition.
type State struct {
	Status    Status    `json:"status"`
	SessionID string    `json:"sessionId,omitempty"`
	StartedAt time.Time `json:"callStartTime"`
	// Duration is whole seconds since StartedAt, refreshed by ticks while connected.
	Duration int `json:"callDuration"`
	// OutgoingCallEnded is a one-shot flag for the dialer; see Consume.
	OutgoingCallEnded bool `json:"outgoingCallEnded"`
}

// Initial is the idle state.
func Initial() State { return State{Status: StatusIdle} }

// CanAcceptNewCall guards inbound ringing: a single-line console takes one call at a time.
func CanAcceptNewCall(s State) bool { return s.Status == StatusIdle }

// CanMakeOutgoingCall guards outbound initiation.
func CanMakeOutgoingCall(s State) bool { return s.Status == StatusIdle }

// ConsumeOutgoingCallEnded returns the flag and the state with it cleared.
func ConsumeOutgoingCallEnded(s State) (State, bool) {
	ended := s.OutgoingCallEnded
	s.OutgoingCallEnded = false
	return s, ended
}
