package audit

import (
	"context"
	"log/slog"
	"time"
)

// Queue hands events to the Service on its own goroutine so callers never wait on storage.
// Log returns immediately; a full queue drops the event with a warning.
type Queue struct {
	svc     *Service
	events  chan Event
	log     *slog.Logger
	timeout time.Duration
}

func NewQueue(svc *Service, buffer int, log *slog.Logger) *Queue {
	if buffer <= 0 {
		buffer = 64
	}
	if log == nil {
		log = slog.Default()
	}
	return &Queue{svc: svc, events: make(chan Event, buffer), log: log.With("component", "audit"), timeout: 5 * time.Second}
}

func (q *Queue) Log(_ context.Context, typ EventType, agentNumber, employeeID, callID, message string) error {
	e := Event{AgentNumber: agentNumber, EmployeeID: employeeID, Type: typ, CallID: callID, Message: message}
	if e.AgentNumber == "" || e.Type == "" {
		return ErrInvalidEvent
	}
	// stamp now; the worker may run later
	e.CreatedAt = q.svc.clock().UTC()
	select {
	case q.events <- e:
	default:
		q.log.Warn("audit event dropped, queue full", "type", typ, "call_id", callID)
	}
	return nil
}

// Run drains the queue until ctx is done, then flushes what is buffered.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case e := <-q.events:
			q.append(e)
		case <-ctx.Done():
			for {
				select {
				case e := <-q.events:
					q.append(e)
				default:
					return
				}
			}
		}
	}
}

func (q *Queue) append(e Event) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	if err := q.svc.Append(ctx, e); err != nil {
		q.log.Error("audit append failed", "type", e.Type, "call_id", e.CallID, "err", err)
	}
}
