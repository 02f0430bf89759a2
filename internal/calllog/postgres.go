package calllog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists call records in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS call_records (
			id TEXT PRIMARY KEY,
			call_sid TEXT NOT NULL,
			tenant_id TEXT NOT NULL,
			caller_number TEXT NOT NULL DEFAULT '',
			started_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ NOT NULL,
			end_reason TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_call_records_tenant_started ON call_records (tenant_id, started_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Record(ctx context.Context, rec CallRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.EndedAt.IsZero() {
		rec.EndedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO call_records (id, call_sid, tenant_id, caller_number, started_at, ended_at, end_reason)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID,
		rec.CallSID,
		rec.TenantID,
		rec.CallerNumber,
		rec.StartedAt,
		rec.EndedAt,
		rec.EndReason,
	)
	if err != nil {
		return fmt.Errorf("record call: %w", err)
	}
	return nil
}

func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]CallRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, call_sid, tenant_id, caller_number, started_at, ended_at, end_reason
		 FROM call_records ORDER BY ended_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query call records: %w", err)
	}
	defer rows.Close()

	records := make([]CallRecord, 0, limit)
	for rows.Next() {
		var r CallRecord
		if err := rows.Scan(&r.ID, &r.CallSID, &r.TenantID, &r.CallerNumber, &r.StartedAt, &r.EndedAt, &r.EndReason); err != nil {
			return nil, fmt.Errorf("scan call record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate call records: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
