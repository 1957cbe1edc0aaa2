package calls

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"
)

var ErrInvalidRecord = errors.New("calls: invalid record")

// Repository persists call records.
// Implementations must treat Insert as idempotent on Record.ID.
type Repository interface {
	Insert(ctx context.Context, r Record) error
	List(ctx context.Context, agentNumber string, from, to time.Time) ([]Record, error)
}

func validate(r Record) error {
	if r.ID == "" || r.AgentNumber == "" || r.Status == "" || r.Direction == "" {
		return ErrInvalidRecord
	}
	return nil
}

// MemoryRepo is an in-memory Repository for tests and local runs.
type MemoryRepo struct {
	mu      sync.Mutex
	records []Record
	seen    map[string]struct{}
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{seen: map[string]struct{}{}} }

func (r *MemoryRepo) Insert(ctx context.Context, rec Record) error {
	if err := validate(rec); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[rec.ID]; ok {
		return nil
	}
	r.seen[rec.ID] = struct{}{}
	r.records = append(r.records, rec)
	return nil
}

// List returns the agent's records whose end time falls in [from, to).
func (r *MemoryRepo) List(ctx context.Context, agentNumber string, from, to time.Time) ([]Record, error) {
	if agentNumber == "" {
		return nil, errors.New("calls: agent_number required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, 0)
	for _, rec := range r.records {
		if rec.AgentNumber != agentNumber {
			continue
		}
		if rec.EndTime.Before(from) || !rec.EndTime.Before(to) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// PostgresRepo stores records in Postgres.
//
// Assumes:
//
//	CREATE TABLE call_records (
//	  id               TEXT PRIMARY KEY,
//	  direction        TEXT NOT NULL,
//	  caller_number    TEXT NOT NULL DEFAULT '',
//	  agent_number     TEXT NOT NULL,
//	  duration_seconds INT  NOT NULL DEFAULT 0,
//	  start_time       TIMESTAMPTZ NULL,
//	  end_time         TIMESTAMPTZ NOT NULL,
//	  status           TEXT NOT NULL
//	);
//	CREATE INDEX call_records_agent_end ON call_records (agent_number, end_time);
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Insert(ctx context.Context, rec Record) error {
	if err := validate(rec); err != nil {
		return err
	}
	const q = `
INSERT INTO call_records (
  id, direction, caller_number, agent_number, duration_seconds, start_time, end_time, status
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8
)
ON CONFLICT (id) DO NOTHING
`
	_, err := r.db.ExecContext(ctx, q,
		rec.ID,
		rec.Direction,
		rec.CallerNumber,
		rec.AgentNumber,
		rec.DurationSeconds,
		nullTime(rec.StartTime),
		rec.EndTime,
		rec.Status,
	)
	return err
}

func (r *PostgresRepo) List(ctx context.Context, agentNumber string, from, to time.Time) ([]Record, error) {
	if agentNumber == "" {
		return nil, errors.New("calls: agent_number required")
	}
	const q = `
SELECT id, direction, caller_number, agent_number, duration_seconds, start_time, end_time, status
FROM call_records
WHERE agent_number = $1 AND end_time >= $2 AND end_time < $3
ORDER BY end_time
`
	rows, err := r.db.QueryContext(ctx, q, agentNumber, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Record, 0)
	for rows.Next() {
		var rec Record
		var start sql.NullTime
		if err := rows.Scan(
			&rec.ID,
			&rec.Direction,
			&rec.CallerNumber,
			&rec.AgentNumber,
			&rec.DurationSeconds,
			&start,
			&rec.EndTime,
			&rec.Status,
		); err != nil {
			return nil, err
		}
		if start.Valid {
			rec.StartTime = start.Time
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
