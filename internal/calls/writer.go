package calls

import (
	"context"
	"log/slog"
	"time"
)

const DefaultWriterBuffer = 64

// Writer persists records off the console's goroutine.
// Enqueue never blocks; a full buffer drops the record with a warning.
type Writer struct {
	repo    Repository
	queue   chan Record
	log     *slog.Logger
	timeout time.Duration
}

func NewWriter(repo Repository, buffer int, log *slog.Logger) *Writer {
	if buffer <= 0 {
		buffer = DefaultWriterBuffer
	}
	if log == nil {
		log = slog.Default()
	}
	return &Writer{
		repo:    repo,
		queue:   make(chan Record, buffer),
		log:     log.With("component", "calls.writer"),
		timeout: 5 * time.Second,
	}
}

func (w *Writer) Enqueue(r Record) bool {
	select {
	case w.queue <- r:
		return true
	default:
		w.log.Warn("call record dropped, writer buffer full", "call_id", r.ID)
		return false
	}
}

// Run drains the queue until ctx is done, then flushes what is already buffered.
func (w *Writer) Run(ctx context.Context) {
	for {
		select {
		case r := <-w.queue:
			w.insert(r)
		case <-ctx.Done():
			for {
				select {
				case r := <-w.queue:
					w.insert(r)
				default:
					return
				}
			}
		}
	}
}

func (w *Writer) insert(r Record) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	if err := w.repo.Insert(ctx, r); err != nil {
		w.log.Error("call record insert failed", "call_id", r.ID, "err", err)
	}
}
