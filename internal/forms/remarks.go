package forms

import (
	"strings"
	"time"
)

// Direction selects which of the two remarks forms a controller drives.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

func ParseDirection(s string) (Direction, bool) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case DirectionInbound:
		return DirectionInbound, true
	case DirectionOutbound:
		return DirectionOutbound, true
	default:
		return "", false
	}
}

// FollowUp is the status/disposition value that makes a follow-up date mandatory.
const FollowUp = "follow_up"

// CallInfo is pre-populated from the live session when a form opens.
// The controller owns these fields; agent edits cannot change them.
type CallInfo struct {
	CallID       string    `json:"callId"`
	CallerNumber string    `json:"callerNumber"`
	AgentNumber  string    `json:"agentNumber"`
	EmployeeID   string    `json:"employeeId"`
	Timestamp    time.Time `json:"timestamp"`
}

// Remarks is implemented by the per-direction form payloads.
type Remarks[T any] interface {
	Direction() Direction
	// Unsaved reports whether the agent has typed or selected anything.
	Unsaved() bool
	WithCall(CallInfo) T
}

// InboundRemarks is posted to /form-details.
type InboundRemarks struct {
	CallInfo

	SupportTypeID string   `json:"supportTypeId" validate:"required"`
	QueryTypeID   string   `json:"queryTypeId" validate:"required"`
	Remarks       string   `json:"remarks" validate:"notblank,trimmed_min=10"`
	Status        string   `json:"status" validate:"required"`
	FollowUpDate  string   `json:"followUpDate,omitempty" validate:"required_if=Status follow_up"`
	Attachments   []string `json:"attachments,omitempty"`
}

func (InboundRemarks) Direction() Direction { return DirectionInbound }

func (r InboundRemarks) Unsaved() bool {
	return anyFilled(r.Remarks, r.SupportTypeID, r.QueryTypeID) || len(r.Attachments) > 0
}

func (r InboundRemarks) WithCall(info CallInfo) InboundRemarks {
	r.CallInfo = info
	return r
}

// OutboundRemarks is posted to /outbound-form-details.
type OutboundRemarks struct {
	CallInfo

	CallType      string   `json:"callType" validate:"required"`
	AttemptStatus string   `json:"attemptStatus" validate:"required"`
	Disposition   string   `json:"disposition" validate:"required"`
	FollowUpDate  string   `json:"followUpDate,omitempty" validate:"required_if=Disposition follow_up"`
	Remarks       string   `json:"remarks,omitempty"`
	Attachments   []string `json:"attachments,omitempty"`
}

func (OutboundRemarks) Direction() Direction { return DirectionOutbound }

func (r OutboundRemarks) Unsaved() bool {
	return anyFilled(r.Remarks, r.CallType, r.AttemptStatus, r.Disposition) || len(r.Attachments) > 0
}

func (r OutboundRemarks) WithCall(info CallInfo) OutboundRemarks {
	r.CallInfo = info
	return r
}

func anyFilled(vals ...string) bool {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}
