// Package audit appends one durable row per /execute call to Postgres via
// github.com/jackc/pgx/v5, the same driver the teacher's
// internal/store/postgres.go uses. This is observability, not the system
// of record the spec's non-goals disclaim: a failed write is logged and
// never affects the response.
package audit

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oriys/sandboxd/internal/logging"
)

// Entry is one recorded evaluation.
type Entry struct {
	RequestID    string
	SandboxID    *string
	Stage        string
	Status       string
	FuelConsumed uint64
	DurationMS   int64
	StdoutLen    int
	StderrLen    int
	CreatedAt    time.Time
}

// Sink records Entry rows.
type Sink interface {
	Record(ctx context.Context, e Entry)
}

// PostgresSink is the pgx/v5-backed Sink.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink connects to dsn and ensures the audit table exists.
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := ensureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresSink{pool: pool}, nil
}

func ensureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS execution_audit_log (
			request_id    TEXT PRIMARY KEY,
			sandbox_id    TEXT,
			stage         TEXT NOT NULL,
			status        TEXT NOT NULL,
			fuel_consumed BIGINT NOT NULL,
			duration_ms   BIGINT NOT NULL,
			stdout_len    INT NOT NULL,
			stderr_len    INT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL
		)`)
	return err
}

// Record inserts one row, fire-and-forget from the caller's perspective:
// errors are logged, never returned.
func (s *PostgresSink) Record(ctx context.Context, e Entry) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO execution_audit_log
			(request_id, sandbox_id, stage, status, fuel_consumed, duration_ms, stdout_len, stderr_len, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (request_id) DO NOTHING`,
		e.RequestID, e.SandboxID, e.Stage, e.Status, e.FuelConsumed, e.DurationMS, e.StdoutLen, e.StderrLen, e.CreatedAt)
	if err != nil {
		logging.Op().Error("audit: failed to record evaluation", "request_id", e.RequestID, "error", err)
	}
}

// Close releases the connection pool.
func (s *PostgresSink) Close() {
	s.pool.Close()
}

// NoopSink discards every entry; used when Postgres auditing is disabled.
type NoopSink struct{}

func (NoopSink) Record(context.Context, Entry) {}
