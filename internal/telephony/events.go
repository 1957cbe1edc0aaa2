package telephony

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"time"

	"agent-console/internal/callstate"

	"github.com/goccy/go-json"
)

var (
	ErrMalformedEvent = errors.New("telephony: malformed event")
	ErrUnknownEvent   = errors.New("telephony: unknown event")
)

// Envelope is one push message: {"event": "<name>", "data": {...}}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Payload is the subset of event data the console reads. Other keys are kept
// on the decoded event's Data map.
type Payload struct {
	CallID              flexString `json:"callId"`
	CustomerPhoneNumber flexString `json:"customerPhoneNumber"`
	AgentPhoneNumber    flexString `json:"agentPhoneNumber"`
	Timestamp           flexTime   `json:"timestamp"`
}

// Decode turns a raw push message into a state machine event.
// A missing callId is not a decode error; the state machine rejects it.
func Decode(raw []byte) (callstate.Event, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return callstate.Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if env.Event == "" {
		return callstate.Event{}, fmt.Errorf("%w: missing event name", ErrMalformedEvent)
	}
	kind := callstate.EventKind(env.Event)
	if !kind.IsTransport() {
		return callstate.Event{}, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}

	ev := callstate.Event{Kind: kind}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return ev, nil
	}

	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return callstate.Event{}, fmt.Errorf("%w: data: %v", ErrMalformedEvent, err)
	}
	var extra map[string]any
	if err := json.Unmarshal(data, &extra); err != nil {
		return callstate.Event{}, fmt.Errorf("%w: data: %v", ErrMalformedEvent, err)
	}

	ev.SessionID = string(p.CallID)
	ev.CustomerNumber = string(p.CustomerPhoneNumber)
	ev.AgentNumber = string(p.AgentPhoneNumber)
	ev.At = time.Time(p.Timestamp)
	ev.Data = extra
	return ev, nil
}

// Encode builds the envelope for an event. Used by tests and local replay tooling.
func Encode(ev callstate.Event) ([]byte, error) {
	data := map[string]any{}
	for k, v := range ev.Data {
		data[k] = v
	}
	data["callId"] = ev.SessionID
	data["customerPhoneNumber"] = ev.CustomerNumber
	data["agentPhoneNumber"] = ev.AgentNumber
	if !ev.At.IsZero() {
		data["timestamp"] = ev.At.UTC().Format(time.RFC3339Nano)
	}
	return json.Marshal(map[string]any{"event": string(ev.Kind), "data": data})
}

// flexString accepts a JSON string, number or null.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*s = flexString(n.String())
	return nil
}

// flexTime accepts an RFC 3339 string, unix milliseconds, or null.
type flexTime time.Time

func (t *flexTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = flexTime{}
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		if v == "" {
			*t = flexTime{}
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return err
		}
		*t = flexTime(parsed)
		return nil
	}
	ms, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	*t = flexTime(time.UnixMilli(ms).UTC())
	return nil
}
