package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"keyhaven/internal/recovery/models"
	"keyhaven/pkg/platform/sentinel"
)

// PostgresStore persists escrow records in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs a PostgreSQL-backed escrow store.
func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Schema creates the escrow table. Applied by the integration test harness
// and by deployments that manage migrations out of band.
const Schema = `
CREATE TABLE IF NOT EXISTS escrow_records (
	id                UUID PRIMARY KEY,
	address           TEXT NOT NULL UNIQUE,
	sealed_name       TEXT NOT NULL,
	sealed_identity   TEXT NOT NULL,
	sealed_birth_date TEXT NOT NULL DEFAULT '',
	sealed_gender     TEXT NOT NULL DEFAULT '',
	sealed_vault_key  TEXT NOT NULL,
	attempt_count     INT NOT NULL DEFAULT 0,
	last_attempt_at   TIMESTAMPTZ,
	created_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL
)`

const recordColumns = `id, address, sealed_name, sealed_identity, sealed_birth_date,
	sealed_gender, sealed_vault_key, attempt_count, last_attempt_at, created_at, updated_at`

func (s *PostgresStore) FindByAddress(ctx context.Context, address string) (*models.EscrowRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM escrow_records WHERE address = $1`
	record, err := scanRecord(s.pool.QueryRow(ctx, query, models.NormalizeAddress(address)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find escrow record: %w", err)
	}
	return record, nil
}

// Upsert inserts or updates the single record for an address. The sealed
// fields are replaced wholesale; attempt state and creation time survive an
// update. Reports whether a new row was inserted.
func (s *PostgresStore) Upsert(ctx context.Context, record *models.EscrowRecord, now time.Time) (bool, error) {
	id := record.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	// xmax = 0 only holds for freshly inserted rows, which distinguishes
	// created from updated without a second round trip.
	query := `
		INSERT INTO escrow_records (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, NULL, $8, $8)
		ON CONFLICT (address) DO UPDATE SET
			sealed_name       = EXCLUDED.sealed_name,
			sealed_identity   = EXCLUDED.sealed_identity,
			sealed_birth_date = EXCLUDED.sealed_birth_date,
			sealed_gender     = EXCLUDED.sealed_gender,
			sealed_vault_key  = EXCLUDED.sealed_vault_key,
			updated_at        = EXCLUDED.updated_at
		RETURNING (xmax = 0)
	`
	var inserted bool
	err := s.pool.QueryRow(ctx, query,
		id,
		models.NormalizeAddress(record.Address),
		record.SealedName,
		record.SealedIdentity,
		record.SealedBirthDate,
		record.SealedGender,
		record.SealedVaultKey,
		now,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("upsert escrow record: %w", err)
	}
	return inserted, nil
}

// RecordAttempt applies the window-reset-or-increment as one conditional
// UPDATE, so concurrent verifications for the same address can never
// under-count attempts. Returns the updated record or sentinel.ErrNotFound.
func (s *PostgresStore) RecordAttempt(ctx context.Context, address string, now time.Time, window time.Duration) (*models.EscrowRecord, error) {
	query := `
		UPDATE escrow_records SET
			attempt_count = CASE
				WHEN last_attempt_at IS NULL OR last_attempt_at <= $2 THEN 1
				ELSE attempt_count + 1
			END,
			last_attempt_at = $3,
			updated_at      = $3
		WHERE address = $1
		RETURNING ` + recordColumns
	record, err := scanRecord(s.pool.QueryRow(ctx, query,
		models.NormalizeAddress(address), now.Add(-window), now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("record escrow attempt: %w", err)
	}
	return record, nil
}

func scanRecord(row pgx.Row) (*models.EscrowRecord, error) {
	var r models.EscrowRecord
	err := row.Scan(
		&r.ID,
		&r.Address,
		&r.SealedName,
		&r.SealedIdentity,
		&r.SealedBirthDate,
		&r.SealedGender,
		&r.SealedVaultKey,
		&r.AttemptCount,
		&r.LastAttemptAt,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
