package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/JonMunkholm/cpleditor/internal/core"
	"github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"
)

// sqliteTime is fixed width so text timestamps sort chronologically.
const sqliteTime = "2006-01-02T15:04:05.000000000Z"

const sqliteSchema = `
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
    created_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_log_created_at ON audit_log (created_at);
CREATE INDEX IF NOT EXISTS idx_audit_log_session ON audit_log (session_id, created_at);
`

var sqliteDialect = dialect{
	placeholder: squirrel.Question,
	timeArg: func(t time.Time) any {
		return t.UTC().Format(sqliteTime)
	},
}

// SQLiteStore writes audit entries to a local SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create audit dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply audit schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Record inserts one entry.
func (s *SQLiteStore) Record(ctx context.Context, entry core.AuditEntry) error {
	query, args, err := sqliteDialect.buildInsert(entry)
	if err != nil {
		return fmt.Errorf("build audit insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// List returns matching entries, newest first.
func (s *SQLiteStore) List(ctx context.Context, q Query) (*Result, error) {
	q = q.normalized()

	countQuery, countArgs, err := sqliteDialect.buildCount(q)
	if err != nil {
		return nil, fmt.Errorf("build audit count: %w", err)
	}
	var total int64
	if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count audit entries: %w", err)
	}

	query, args, err := sqliteDialect.buildList(q)
	if err != nil {
		return nil, fmt.Errorf("build audit list: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]core.AuditEntry, 0, q.Limit)
	for rows.Next() {
		var created string
		entry, err := scanEntry(rows, &created)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if entry.CreatedAt, err = time.Parse(sqliteTime, created); err != nil {
			return nil, fmt.Errorf("parse audit timestamp %q: %w", created, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}

	return newResult(entries, total, q), nil
}

// Purge deletes entries created before cutoff.
func (s *SQLiteStore) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args, err := sqliteDialect.buildPurge(cutoff)
	if err != nil {
		return 0, fmt.Errorf("build audit purge: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("purge audit entries: %w", err)
	}
	return res.RowsAffected()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
