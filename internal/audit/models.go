package audit

import "time"

// Event is an immutable, append-only audit log record of agent actions that affect reporting.
//
// Invariants:
// - Events are never updated or deleted.
// - agent_number is required; one console serves one agent line.
// - audit is best-effort; callers never block call handling on audit failures.
//
// Storage (Postgres):
//
//	CREATE TABLE audit_events (
//	  id           TEXT PRIMARY KEY,
//	  agent_number TEXT NOT NULL,
//	  employee_id  TEXT NOT NULL DEFAULT '',
//	  type         TEXT NOT NULL,
//	  call_id      TEXT NOT NULL DEFAULT '',
//	  message      TEXT NOT NULL DEFAULT '',
//	  metadata     JSONB NULL,
//	  created_at   TIMESTAMPTZ NOT NULL
//	);
type Event struct {
	ID          string `json:"id" db:"id"`
	AgentNumber string `json:"agent_number" db:"agent_number"`
	EmployeeID  string `json:"employee_id,omitempty" db:"employee_id"`

	Type EventType `json:"type" db:"type"`

	CallID string `json:"call_id,omitempty" db:"call_id"`

	// Message is a short human-readable description for supervisors.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeCallDeclined   EventType = "call_declined"
	EventTypeCallForceReset EventType = "call_force_reset"
	EventTypeFormAbandoned  EventType = "form_abandoned"
	EventTypeFormSubmitted  EventType = "form_submitted"
)
