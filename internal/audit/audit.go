// Package audit persists the editor's audit trail: every load, mutation,
// export and close performed in an editing session.
//
// Three stores are provided. MemoryStore keeps a bounded ring in process,
// SQLiteStore writes to a local file and PostgresStore writes to a shared
// database. All of them satisfy core.AuditSink so a Session can write to
// them directly.
package audit

import (
	"context"
	"time"

	"github.com/JonMunkholm/cpleditor/internal/core"
)

// DefaultLimit is the page size used when Query.Limit is not set.
const DefaultLimit = 50

// MaxLimit caps Query.Limit.
const MaxLimit = 500

// Store records and lists audit entries.
type Store interface {
	core.AuditSink

	// List returns entries matching q, newest first.
	List(ctx context.Context, q Query) (*Result, error)

	// Purge deletes entries created before cutoff and reports how many
	// were removed.
	Purge(ctx context.Context, cutoff time.Time) (int64, error)

	Close() error
}

// Query filters an audit listing. Zero values match everything.
type Query struct {
	SessionID string
	Action    core.AuditAction
	Severity  core.AuditSeverity
	Since     time.Time
	Until     time.Time
	Limit     int
	Offset    int
}

func (q Query) normalized() Query {
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

func (q Query) matches(e core.AuditEntry) bool {
	if q.SessionID != "" && e.SessionID != q.SessionID {
		return false
	}
	if q.Action != "" && e.Action != q.Action {
		return false
	}
	if q.Severity != "" && e.Severity != q.Severity {
		return false
	}
	if !q.Since.IsZero() && e.CreatedAt.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && !e.CreatedAt.Before(q.Until) {
		return false
	}
	return true
}

// Result is one page of an audit listing.
type Result struct {
	Entries    []core.AuditEntry `json:"entries"`
	TotalCount int64             `json:"totalCount"`
	Page       int               `json:"page"`
	PageSize   int               `json:"pageSize"`
	TotalPages int               `json:"totalPages"`
}

func newResult(entries []core.AuditEntry, total int64, q Query) *Result {
	if entries == nil {
		entries = []core.AuditEntry{}
	}
	totalPages := int((total + int64(q.Limit) - 1) / int64(q.Limit))
	if totalPages < 1 {
		totalPages = 1
	}
	return &Result{
		Entries:    entries,
		TotalCount: total,
		Page:       q.Offset/q.Limit + 1,
		PageSize:   q.Limit,
		TotalPages: totalPages,
	}
}
