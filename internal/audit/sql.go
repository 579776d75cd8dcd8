package audit

import (
	"database/sql"
	"time"

	"github.com/JonMunkholm/cpleditor/internal/core"
	"github.com/Masterminds/squirrel"
)

const auditTable = "audit_log"

var auditColumns = []string{
	"id",
	"session_id",
	"action",
	"severity",
	"file_name",
	"preset",
	"commentary_id",
	"old_value",
	"new_value",
	"record_count",
	"ip_address",
	"user_agent",
	"created_at",
}

// dialect captures what differs between the SQL stores: placeholder style
// and how timestamps are bound.
type dialect struct {
	placeholder squirrel.PlaceholderFormat
	timeArg     func(time.Time) any
}

func (d dialect) buildInsert(e core.AuditEntry) (string, []any, error) {
	var commentaryID any
	if e.CommentaryID != nil {
		commentaryID = *e.CommentaryID
	}
	return squirrel.
		Insert(auditTable).
		Columns(auditColumns...).
		Values(
			e.ID,
			e.SessionID,
			string(e.Action),
			string(e.Severity),
			e.FileName,
			e.Preset,
			commentaryID,
			e.OldValue,
			e.NewValue,
			e.RecordCount,
			e.IPAddress,
			e.UserAgent,
			d.timeArg(e.CreatedAt),
		).
		PlaceholderFormat(d.placeholder).
		ToSql()
}

func (d dialect) where(b squirrel.SelectBuilder, q Query) squirrel.SelectBuilder {
	if q.SessionID != "" {
		b = b.Where(squirrel.Eq{"session_id": q.SessionID})
	}
	if q.Action != "" {
		b = b.Where(squirrel.Eq{"action": string(q.Action)})
	}
	if q.Severity != "" {
		b = b.Where(squirrel.Eq{"severity": string(q.Severity)})
	}
	if !q.Since.IsZero() {
		b = b.Where(squirrel.GtOrEq{"created_at": d.timeArg(q.Since)})
	}
	if !q.Until.IsZero() {
		b = b.Where(squirrel.Lt{"created_at": d.timeArg(q.Until)})
	}
	return b
}

func (d dialect) buildList(q Query) (string, []any, error) {
	b := squirrel.Select(auditColumns...).From(auditTable)
	return d.where(b, q).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(q.Limit)).
		Offset(uint64(q.Offset)).
		PlaceholderFormat(d.placeholder).
		ToSql()
}

func (d dialect) buildCount(q Query) (string, []any, error) {
	b := squirrel.Select("COUNT(*)").From(auditTable)
	return d.where(b, q).
		PlaceholderFormat(d.placeholder).
		ToSql()
}

func (d dialect) buildPurge(cutoff time.Time) (string, []any, error) {
	return squirrel.
		Delete(auditTable).
		Where(squirrel.Lt{"created_at": d.timeArg(cutoff)}).
		PlaceholderFormat(d.placeholder).
		ToSql()
}

// rowScanner is satisfied by *sql.Rows and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanEntry reads one row in auditColumns order. createdAt receives the
// created_at column in the driver's native type.
func scanEntry(s rowScanner, createdAt any) (core.AuditEntry, error) {
	var (
		e            core.AuditEntry
		action       string
		severity     string
		commentaryID sql.NullInt64
	)
	err := s.Scan(
		&e.ID,
		&e.SessionID,
		&action,
		&severity,
		&e.FileName,
		&e.Preset,
		&commentaryID,
		&e.OldValue,
		&e.NewValue,
		&e.RecordCount,
		&e.IPAddress,
		&e.UserAgent,
		createdAt,
	)
	if err != nil {
		return core.AuditEntry{}, err
	}
	e.Action = core.AuditAction(action)
	e.Severity = core.AuditSeverity(severity)
	if commentaryID.Valid {
		id := int(commentaryID.Int64)
		e.CommentaryID = &id
	}
	return e, nil
}
