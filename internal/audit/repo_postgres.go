package audit

import (
	"context"
	"database/sql"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (
  id, agent_number, employee_id, type, call_id, message, metadata, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,NULLIF($7,'')::jsonb,$8
)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.AgentNumber,
		e.EmployeeID,
		e.Type,
		e.CallID,
		e.Message,
		e.Metadata,
		e.CreatedAt,
	)
	return err
}
