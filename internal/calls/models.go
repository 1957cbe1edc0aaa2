package calls

import "time"

// Record is the historical snapshot of a call that reached a terminal status.
//
// The backend holds the authoritative history; records here are the console's local view
// plus what it forwards to storage. Records are never updated once written.
type Record struct {
	ID           string    `json:"id" db:"id"`
	Direction    Direction `json:"direction" db:"direction"`
	CallerNumber string    `json:"callerNumber" db:"caller_number"`
	AgentNumber  string    `json:"agentNumber" db:"agent_number"`

	// DurationSeconds is talk time; zero for missed calls.
	DurationSeconds int `json:"duration" db:"duration_seconds"`

	StartTime time.Time `json:"startTime" db:"start_time"`
	EndTime   time.Time `json:"endTime" db:"end_time"`

	Status Status `json:"status" db:"status"`
}

type Status string

const (
	StatusCompleted Status = "completed"
	StatusMissed    Status = "missed"
)

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)
