package calls

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Mirror receives a copy of every record the dashboard writes. It is a
// write-through sink for inspection only; the in-memory state stays
// authoritative and mirror errors never roll it back.
type Mirror interface {
	// Reset discards everything previously mirrored and writes seed.
	Reset(ctx context.Context, seed []Record) error

	// Upsert writes r, replacing any earlier copy with the same id.
	Upsert(ctx context.Context, r Record) error
}

// MirrorSchema is the SQL DDL for the voxpulse_calls table. Execute it via
// [PostgresMirror.Migrate].
const MirrorSchema = `
CREATE TABLE IF NOT EXISTS voxpulse_calls (
    id               TEXT PRIMARY KEY,
    customer_name    TEXT NOT NULL DEFAULT '',
    customer_phone   TEXT NOT NULL DEFAULT '',
    agent_name       TEXT NOT NULL DEFAULT '',
    agent_type       TEXT NOT NULL,
    duration_seconds INTEGER NOT NULL DEFAULT 0,
    status           TEXT NOT NULL,
    started_at       TIMESTAMPTZ NOT NULL,
    transcript       TEXT NOT NULL DEFAULT '',
    analysis         JSONB NOT NULL DEFAULT '{"state":"not_run"}',
    mirrored_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_voxpulse_calls_started_at ON voxpulse_calls(started_at DESC);
`

// DB is the database interface used by [PostgresMirror]. Both *pgxpool.Pool
// and *pgx.Conn satisfy it.
type DB interface {
	execer
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// execer is the statement runner shared by [DB] and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresMirror is a [Mirror] backed by a PostgreSQL table.
type PostgresMirror struct {
	db   DB
	pool *pgxpool.Pool
}

var _ Mirror = (*PostgresMirror)(nil)

// NewPostgresMirror returns a mirror that writes through db. The caller owns
// db and must run [PostgresMirror.Migrate] before the first write.
func NewPostgresMirror(db DB) *PostgresMirror {
	return &PostgresMirror{db: db}
}

// OpenPostgresMirror connects a pool to dsn, applies the schema and returns
// the mirror. Close releases the pool.
func OpenPostgresMirror(ctx context.Context, dsn string) (*PostgresMirror, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("calls: open mirror: %w", err)
	}
	m := &PostgresMirror{db: pool, pool: pool}
	if err := m.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return m, nil
}

// Close releases the pool opened by [OpenPostgresMirror]. It is a no-op for
// mirrors built with [NewPostgresMirror].
func (m *PostgresMirror) Close() {
	if m.pool != nil {
		m.pool.Close()
	}
}

// Migrate executes [MirrorSchema].
func (m *PostgresMirror) Migrate(ctx context.Context) error {
	if _, err := m.db.Exec(ctx, MirrorSchema); err != nil {
		return fmt.Errorf("calls: migrate mirror: %w", err)
	}
	return nil
}

// Ping checks the connection. It backs the readiness check.
func (m *PostgresMirror) Ping(ctx context.Context) error {
	if err := m.db.Ping(ctx); err != nil {
		return fmt.Errorf("calls: ping mirror: %w", err)
	}
	return nil
}

// Reset truncates the table and writes seed in one transaction. On error
// the previous contents are left untouched.
func (m *PostgresMirror) Reset(ctx context.Context, seed []Record) error {
	err := pgx.BeginFunc(ctx, m.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `TRUNCATE voxpulse_calls`); err != nil {
			return err
		}
		for _, r := range seed {
			if err := upsert(ctx, tx, r); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("calls: reset mirror: %w", err)
	}
	return nil
}

const upsertQuery = `
	INSERT INTO voxpulse_calls (
		id, customer_name, customer_phone, agent_name, agent_type,
		duration_seconds, status, started_at, transcript, analysis
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	ON CONFLICT (id) DO UPDATE SET
		customer_name    = EXCLUDED.customer_name,
		customer_phone   = EXCLUDED.customer_phone,
		agent_name       = EXCLUDED.agent_name,
		agent_type       = EXCLUDED.agent_type,
		duration_seconds = EXCLUDED.duration_seconds,
		status           = EXCLUDED.status,
		started_at       = EXCLUDED.started_at,
		transcript       = EXCLUDED.transcript,
		analysis         = EXCLUDED.analysis,
		mirrored_at      = now()`

// Upsert writes r, replacing the row with the same id.
func (m *PostgresMirror) Upsert(ctx context.Context, r Record) error {
	return upsert(ctx, m.db, r)
}

func upsert(ctx context.Context, db execer, r Record) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("calls: mirror %q: %w", r.ID, err)
	}
	analysisJSON, err := json.Marshal(r.Analysis)
	if err != nil {
		return fmt.Errorf("calls: marshal analysis: %w", err)
	}
	_, err = db.Exec(ctx, upsertQuery,
		r.ID, r.CustomerName, r.CustomerPhone, r.AgentName, string(r.AgentType),
		r.DurationSeconds, string(r.Status), r.Timestamp, r.Transcript, analysisJSON,
	)
	if err != nil {
		return fmt.Errorf("calls: upsert %q: %w", r.ID, err)
	}
	return nil
}
