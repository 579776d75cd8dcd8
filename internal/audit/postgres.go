package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/cpleditor/internal/core"
	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS audit_log (
    id            TEXT PRIMARY KEY,
    session_id    TEXT NOT NULL,
    action        TEXT NOT NULL,
    severity      TEXT NOT NULL,
    file_name     TEXT NOT NULL DEFAULT '',
    preset        TEXT NOT NULL DEFAULT '',
    commentary_id INTEGER,
    old_value     TEXT NOT NULL DEFAULT '',
    new_value     TEXT NOT NULL DEFAULT '',
    record_count  INTEGER NOT NULL DEFAULT 0,
    ip_address    TEXT NOT NULL DEFAULT '',
    user_agent    TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_log_created_at ON audit_log (created_at);
CREATE INDEX IF NOT EXISTS idx_audit_log_session ON audit_log (session_id, created_at);
`

var postgresDialect = dialect{
	placeholder: squirrel.Dollar,
	timeArg: func(t time.Time) any {
		return t.UTC()
	},
}

// PostgresStore writes audit entries to PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn, verifies the connection and applies the
// schema.
func OpenPostgres(ctx context.Context, dsn string, maxConns int) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply audit schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Record inserts one entry.
func (s *PostgresStore) Record(ctx context.Context, entry core.AuditEntry) error {
	query, args, err := postgresDialect.buildInsert(entry)
	if err != nil {
		return fmt.Errorf("build audit insert: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// List returns matching entries, newest first.
func (s *PostgresStore) List(ctx context.Context, q Query) (*Result, error) {
	q = q.normalized()

	countQuery, countArgs, err := postgresDialect.buildCount(q)
	if err != nil {
		return nil, fmt.Errorf("build audit count: %w", err)
	}
	var total int64
	if err := s.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count audit entries: %w", err)
	}

	query, args, err := postgresDialect.buildList(q)
	if err != nil {
		return nil, fmt.Errorf("build audit list: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]core.AuditEntry, 0, q.Limit)
	for rows.Next() {
		var created time.Time
		entry, err := scanEntry(rows, &created)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.CreatedAt = created.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}

	return newResult(entries, total, q), nil
}

// Purge deletes entries created before cutoff.
func (s *PostgresStore) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args, err := postgresDialect.buildPurge(cutoff)
	if err != nil {
		return 0, fmt.Errorf("build audit purge: %w", err)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("purge audit entries: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
