package sessions

import (
	"testing"
	"time"
)

func fixedClock() func() time.Time {
	t := time.Unix(1700000000, 0).UTC()
	return func() time.Time { return t }
}

func TestRecordEvent_CreatesThenMerges(t *testing.T) {
	r := NewRegistryWithClock(fixedClock())

	r.RecordEvent("S1", Update{Type: "incoming-call-ringing", CallerNumber: "+15550001", AgentNumber: "111"})
	r.RecordEvent("S1", Update{Type: "call-answered"})

	s, ok := r.Get("S1")
	if !ok {
		t.Fatalf("expected session")
	}
	if s.CallerNumber != "+15550001" || s.AgentNumber != "111" {
		t.Fatalf("empty values must not overwrite numbers: %+v", s)
	}
	if len(s.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(s.Events))
	}
	if s.Status != "call-answered" {
		t.Fatalf("expected status to follow last event, got %q", s.Status)
	}
	if s.CreatedAt.IsZero() {
		t.Fatalf("expected createdAt")
	}
}

func TestRecordEvent_DuplicateEventAppendsButKeepsCoreFields(t *testing.T) {
	r := NewRegistry()
	u := Update{Type: "incoming-call-ringing", CallerNumber: "555", AgentNumber: "111"}
	r.RecordEvent("S1", u)
	r.RecordEvent("S1", u)

	s, _ := r.Get("S1")
	if len(s.Events) != 2 {
		t.Fatalf("expected both occurrences logged, got %d", len(s.Events))
	}
	if s.CallerNumber != "555" || s.AgentNumber != "111" {
		t.Fatalf("unexpected core fields: %+v", s)
	}
}

func TestGet_UnknownIsNotAnError(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Get("nope"); ok {
		t.Fatalf("expected unknown session")
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	r := NewRegistry()
	r.RecordEvent("S1", Update{Type: "a"})
	s, _ := r.Get("S1")
	s.Events[0].Type = "mutated"

	again, _ := r.Get("S1")
	if again.Events[0].Type != "a" {
		t.Fatalf("log must not be mutable through Get")
	}
}

func TestClear(t *testing.T) {
	r := NewRegistry()
	r.RecordEvent("S1", Update{Type: "a"})
	r.Clear("S1")
	r.Clear("S1")
	if r.Len() != 0 {
		t.Fatalf("expected empty registry")
	}
}

func TestRekey_MovesLog(t *testing.T) {
	r := NewRegistry()
	r.RecordEvent("outgoing_1_abc", Update{Type: "initiate-outbound", CallerNumber: "555"})
	r.RecordEvent("CS-9", Update{Type: "outgoing-call-initiated", AgentNumber: "111"})
	r.Rekey("outgoing_1_abc", "CS-9")

	if _, ok := r.Get("outgoing_1_abc"); ok {
		t.Fatalf("old id should be gone")
	}
	s, ok := r.Get("CS-9")
	if !ok {
		t.Fatalf("expected rekeyed session")
	}
	if len(s.Events) != 2 || s.Events[0].Type != "initiate-outbound" {
		t.Fatalf("unexpected log: %+v", s.Events)
	}
	if s.CallerNumber != "555" || s.AgentNumber != "111" {
		t.Fatalf("unexpected numbers: %+v", s)
	}
}
