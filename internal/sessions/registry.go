package sessions

import (
	"strings"
	"sync"
	"time"
)

// Event is one entry of a session's append-only log.
type Event struct {
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Update is what a caller records against a session.
// Empty numbers never overwrite known ones.
type Update struct {
	Type         string
	CallerNumber string
	AgentNumber  string
	Timestamp    time.Time
	Data         map[string]any
}

// CallSession is a single call's identity and event history, inbound or outbound.
//
// Invariant: Events is non-empty once the session exists and is only ever appended to.
type CallSession struct {
	SessionID    string    `json:"sessionId"`
	CallerNumber string    `json:"callerNumber,omitempty"`
	AgentNumber  string    `json:"agentNumber,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	LastUpdated  time.Time `json:"lastUpdated"`
	Status       string    `json:"status"`
	Events       []Event   `json:"events"`
}

// Registry is a keyed store of call sessions.
// It has no notion of the "current" call; that pointer belongs to the state machine.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*CallSession
	clock    func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{sessions: map[string]*CallSession{}, clock: time.Now}
}

// NewRegistryWithClock is NewRegistry with an injectable clock.
func NewRegistryWithClock(now func() time.Time) *Registry {
	r := NewRegistry()
	if now != nil {
		r.clock = now
	}
	return r
}

// RecordEvent creates the session on first sight and merges every later event into it.
// sessionID must be non-empty; callers validate it at the transport boundary.
func (r *Registry) RecordEvent(sessionID string, u Update) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock().UTC()
	ts := u.Timestamp
	if ts.IsZero() {
		ts = now
	}

	s, ok := r.sessions[sessionID]
	if !ok {
		s = &CallSession{SessionID: sessionID, CreatedAt: now}
		r.sessions[sessionID] = s
	}
	if v := strings.TrimSpace(u.CallerNumber); v != "" {
		s.CallerNumber = v
	}
	if v := strings.TrimSpace(u.AgentNumber); v != "" {
		s.AgentNumber = v
	}
	s.Status = u.Type
	s.LastUpdated = now
	s.Events = append(s.Events, Event{Type: u.Type, Timestamp: ts, Data: copyData(u.Data)})
}

// Get returns a copy of the session. Unknown ids report false.
func (r *Registry) Get(sessionID string) (CallSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return CallSession{}, false
	}
	out := *s
	out.Events = make([]Event, len(s.Events))
	copy(out.Events, s.Events)
	return out, true
}

// Clear removes the session. Unknown ids are a no-op.
func (r *Registry) Clear(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}

// Rekey moves a session to a new id, keeping its log.
// If newID already exists the two logs are merged in order old then new.
func (r *Registry) Rekey(oldID, newID string) {
	if oldID == newID || newID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.sessions[oldID]
	if !ok {
		return
	}
	delete(r.sessions, oldID)
	old.SessionID = newID
	if cur, exists := r.sessions[newID]; exists {
		old.Events = append(old.Events, cur.Events...)
		if cur.CallerNumber != "" {
			old.CallerNumber = cur.CallerNumber
		}
		if cur.AgentNumber != "" {
			old.AgentNumber = cur.AgentNumber
		}
		old.Status = cur.Status
		old.LastUpdated = cur.LastUpdated
	}
	r.sessions[newID] = old
}

// Len reports how many sessions are held.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func copyData(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
