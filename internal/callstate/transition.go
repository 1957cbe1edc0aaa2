package callstate

import "time"

// Effect is a side effect the owner of the State must perform after a transition.
// Transition itself never touches timers, storage or the session registry.
type Effect string

const (
	EffectStartTimer      Effect = "start_timer"
	EffectStopTimer       Effect = "stop_timer"
	EffectScheduleReset   Effect = "schedule_reset" // reset after the grace period
	EffectSettle          Effect = "settle"         // reset as soon as nothing blocks it
	EffectRecordCompleted Effect = "record_completed"
	EffectRecordMissed    Effect = "record_missed"
	EffectClearSession    Effect = "clear_session"
	EffectRekeySession    Effect = "rekey_session"
)

// Drop reasons.
const (
	ReasonLineBusy         = "line_busy"
	ReasonStaleSession     = "stale_session"
	ReasonInvalidForStatus = "invalid_for_status"
	ReasonMissingSession   = "missing_session_id"
	ReasonUnknownKind      = "unknown_kind"
	ReasonAwaitingNumber   = "awaiting_customer_number"
)

// Outcome says whether the event took effect. Dropped events leave the state untouched.
type Outcome struct {
	Applied bool
	Reason  string
}

func applied() Outcome { return Outcome{Applied: true} }
func dropped(reason string) Outcome { return Outcome{Reason: reason} }

// Transition is the call state machine: a pure function of the current state and one event.
func Transition(s State, ev Event) (State, []Effect, Outcome) {
	if ev.Kind.needsSessionID() && ev.SessionID == "" {
		return s, nil, dropped(ReasonMissingSession)
	}

	switch ev.Kind {
	case EventIncomingRinging:
		if !CanAcceptNewCall(s) {
			return s, nil, dropped(ReasonLineBusy)
		}
		return State{Status: StatusRinging, SessionID: ev.SessionID}, nil, applied()

	case EventAnswered:
		if s.Status != StatusRinging {
			return s, nil, dropped(ReasonInvalidForStatus)
		}
		if ev.SessionID != s.SessionID {
			return s, nil, dropped(ReasonStaleSession)
		}
		next := s
		next.Status = StatusConnected
		next.StartedAt = ev.At
		next.Duration = 0
		return next, []Effect{EffectStartTimer}, applied()

	case EventDisconnected:
		if ev.SessionID != s.SessionID {
			return s, nil, dropped(ReasonStaleSession)
		}
		return inboundEnd(s)

	case EventDecline:
		if s.Status != StatusRinging {
			return s, nil, dropped(ReasonInvalidForStatus)
		}
		return State{Status: StatusIdle}, []Effect{EffectRecordMissed, EffectClearSession}, applied()

	case EventHangup:
		switch s.Status {
		case StatusConnected:
			return inboundEnd(s)
		case StatusOutgoingRinging, StatusOutgoingConnected:
			return outboundEnd(s, ev)
		default:
			return s, nil, dropped(ReasonInvalidForStatus)
		}

	case EventInitiateOutbound:
		if !CanMakeOutgoingCall(s) {
			return s, nil, dropped(ReasonLineBusy)
		}
		return State{Status: StatusOutgoingRinging, SessionID: ev.SessionID}, nil, applied()

	case EventOutgoingInitiated:
		switch s.Status {
		case StatusIdle:
			return State{Status: StatusOutgoingRinging, SessionID: ev.SessionID}, nil, applied()
		case StatusOutgoingRinging:
			return adopt(s, ev.SessionID)
		default:
			return s, nil, dropped(ReasonLineBusy)
		}

	case EventOutgoingConnected:
		switch s.Status {
		case StatusOutgoingRinging:
			next, effects, out := adopt(s, ev.SessionID)
			if !out.Applied {
				return s, nil, out
			}
			if ev.CustomerNumber == "" {
				// Backend answered without a number; keep ringing until a complete event arrives.
				return next, effects, Outcome{Applied: true, Reason: ReasonAwaitingNumber}
			}
			next.Status = StatusOutgoingConnected
			next.StartedAt = ev.At
			next.Duration = 0
			return next, append(effects, EffectStartTimer), applied()
		case StatusOutgoingConnected:
			if ev.SessionID != s.SessionID {
				return s, nil, dropped(ReasonStaleSession)
			}
			return s, nil, dropped(ReasonInvalidForStatus)
		default:
			return s, nil, dropped(ReasonInvalidForStatus)
		}

	case EventOutgoingDisconnected, EventOutgoingNotReachable:
		switch s.Status {
		case StatusOutgoingRinging:
			next, effects, out := adopt(s, ev.SessionID)
			if !out.Applied {
				return s, nil, out
			}
			end, endEffects, out := outboundEnd(next, ev)
			return end, append(effects, endEffects...), out
		case StatusOutgoingConnected:
			if ev.SessionID != s.SessionID {
				return s, nil, dropped(ReasonStaleSession)
			}
			return outboundEnd(s, ev)
		default:
			return s, nil, dropped(ReasonInvalidForStatus)
		}

	case EventReset:
		switch s.Status {
		case StatusEnded:
			return State{Status: StatusIdle, OutgoingCallEnded: s.OutgoingCallEnded}, []Effect{EffectStopTimer, EffectClearSession}, applied()
		case StatusOutgoingEnded:
			return State{Status: StatusIdle, OutgoingCallEnded: true}, []Effect{EffectStopTimer, EffectClearSession}, applied()
		default:
			return s, nil, dropped(ReasonInvalidForStatus)
		}

	case EventForceReset:
		effects := []Effect{EffectStopTimer}
		if s.SessionID != "" {
			effects = append(effects, EffectClearSession)
		}
		next := State{Status: StatusIdle, OutgoingCallEnded: s.OutgoingCallEnded || s.Status.Outbound()}
		return next, effects, applied()

	case EventTick:
		if !s.Status.Connected() || s.StartedAt.IsZero() {
			return s, nil, dropped(ReasonInvalidForStatus)
		}
		next := s
		next.Duration = ElapsedSeconds(s.StartedAt, ev.At)
		return next, nil, applied()
	}

	return s, nil, dropped(ReasonUnknownKind)
}

// ElapsedSeconds is floor((now-start)/1s), never negative.
func ElapsedSeconds(start, now time.Time) int {
	if start.IsZero() || now.Before(start) {
		return 0
	}
	return int(now.Sub(start) / time.Second)
}

func inboundEnd(s State) (State, []Effect, Outcome) {
	switch s.Status {
	case StatusConnected:
		next := s
		next.Status = StatusEnded
		next.Duration = 0
		effects := []Effect{EffectStopTimer}
		if !s.StartedAt.IsZero() {
			effects = append(effects, EffectRecordCompleted)
		}
		return next, append(effects, EffectScheduleReset), applied()
	case StatusRinging:
		// Caller gave up before the agent answered.
		next := s
		next.Status = StatusEnded
		next.Duration = 0
		return next, []Effect{EffectRecordMissed, EffectScheduleReset}, applied()
	default:
		return s, nil, dropped(ReasonInvalidForStatus)
	}
}

func outboundEnd(s State, _ Event) (State, []Effect, Outcome) {
	next := s
	next.Status = StatusOutgoingEnded
	next.Duration = 0
	record := EffectRecordMissed
	if s.Status == StatusOutgoingConnected && !s.StartedAt.IsZero() {
		record = EffectRecordCompleted
	}
	return next, []Effect{EffectStopTimer, record, EffectSettle}, applied()
}

// adopt switches a ringing outbound call to the id the transport uses for it.
// Only a locally generated id is replaced; once the backend id is known any other id
// belongs to an earlier call.
func adopt(s State, sessionID string) (State, []Effect, Outcome) {
	if sessionID == "" || sessionID == s.SessionID {
		return s, nil, applied()
	}
	if !IsLocalSessionID(s.SessionID) {
		return s, nil, dropped(ReasonStaleSession)
	}
	next := s
	next.SessionID = sessionID
	return next, []Effect{EffectRekeySession}, applied()
}
