package telephony

import (
	"errors"
	"testing"
	"time"

	"agent-console/internal/callstate"
)

func TestDecode_IncomingRinging(t *testing.T) {
	raw := []byte(`{"event":"incoming-call-ringing","data":{"callId":"S1","customerPhoneNumber":"555","agentPhoneNumber":"+91 98765 43210","timestamp":"2024-01-02T03:04:05Z","queue":"support"}}`)

	ev, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Kind != callstate.EventIncomingRinging || ev.SessionID != "S1" || ev.CustomerNumber != "555" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if !ev.At.Equal(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Fatalf("unexpected timestamp: %v", ev.At)
	}
	if ev.Data["queue"] != "support" {
		t.Fatalf("extra data should be kept, got %+v", ev.Data)
	}
}

func TestDecode_NumericIDsAndNulls(t *testing.T) {
	raw := []byte(`{"event":"outgoing-call-connected","data":{"callId":12345,"customerPhoneNumber":null,"agentPhoneNumber":"100","timestamp":1700000000000}}`)

	ev, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.SessionID != "12345" || ev.CustomerNumber != "" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if !ev.At.Equal(time.UnixMilli(1700000000000)) {
		t.Fatalf("unexpected timestamp: %v", ev.At)
	}
}

func TestDecode_Errors(t *testing.T) {
	cases := []struct {
		raw  string
		want error
	}{
		{`not json`, ErrMalformedEvent},
		{`{"data":{}}`, ErrMalformedEvent},
		{`{"event":"call-answered","data":{"timestamp":"yesterday"}}`, ErrMalformedEvent},
		{`{"event":"agent-status","data":{}}`, ErrUnknownEvent},
		{`{"event":"decline","data":{}}`, ErrUnknownEvent},
	}
	for _, tc := range cases {
		if _, err := Decode([]byte(tc.raw)); !errors.Is(err, tc.want) {
			t.Fatalf("Decode(%s): expected %v, got %v", tc.raw, tc.want, err)
		}
	}
}

func TestDecode_MissingCallIDPassesThrough(t *testing.T) {
	ev, err := Decode([]byte(`{"event":"call-answered","data":{"agentPhoneNumber":"100"}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.SessionID != "" {
		t.Fatalf("expected empty session id, got %q", ev.SessionID)
	}
}

func TestEncodeDecode(t *testing.T) {
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	raw, err := Encode(callstate.Event{Kind: callstate.EventDisconnected, SessionID: "S9", AgentNumber: "100", At: at})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	ev, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Kind != callstate.EventDisconnected || ev.SessionID != "S9" || !ev.At.Equal(at) {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestAgentFilter(t *testing.T) {
	var got []callstate.Event
	f := NewAgentFilter("222", SinkFunc(func(ev callstate.Event) { got = append(got, ev) }), nil)

	f.Deliver(callstate.Event{Kind: callstate.EventIncomingRinging, SessionID: "S1", AgentNumber: "111"})
	f.Deliver(callstate.Event{Kind: callstate.EventIncomingRinging, SessionID: "S2"})
	f.Deliver(callstate.Event{Kind: callstate.EventIncomingRinging, SessionID: "S3", AgentNumber: "+222"})

	if len(got) != 1 || got[0].SessionID != "S3" {
		t.Fatalf("expected only S3 forwarded, got %+v", got)
	}
}
