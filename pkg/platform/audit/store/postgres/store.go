package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	audit "keyhaven/pkg/platform/audit"
)

// Store persists audit events in PostgreSQL in append-only form.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Schema creates the audit table. Applied by the integration test harness and
// by deployments that manage migrations out of band.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id         BIGSERIAL PRIMARY KEY,
	category   TEXT NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL,
	address    TEXT NOT NULL,
	action     TEXT NOT NULL,
	outcome    TEXT NOT NULL DEFAULT '',
	reason     TEXT NOT NULL DEFAULT '',
	request_id TEXT NOT NULL DEFAULT '',
	client_ip  TEXT NOT NULL DEFAULT '',
	device     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS audit_events_address_idx ON audit_events (address, occurred_at)`

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	query := `
		INSERT INTO audit_events (category, occurred_at, address, action, outcome, reason, request_id, client_ip, device)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.pool.Exec(ctx, query,
		string(event.Category),
		event.Timestamp,
		event.Address,
		event.Action,
		event.Outcome,
		event.Reason,
		event.RequestID,
		event.ClientIP,
		event.Device,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *Store) ListByAddress(ctx context.Context, address string) ([]audit.Event, error) {
	query := `
		SELECT category, occurred_at, address, action, outcome, reason, request_id, client_ip, device
		FROM audit_events
		WHERE address = $1
		ORDER BY occurred_at
	`
	rows, err := s.pool.Query(ctx, query, address)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []audit.Event
	for rows.Next() {
		var e audit.Event
		if err := rows.Scan(&e.Category, &e.Timestamp, &e.Address, &e.Action,
			&e.Outcome, &e.Reason, &e.RequestID, &e.ClientIP, &e.Device); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
