package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of session event being audited.
type AuditAction string

const (
	ActionLoad   AuditAction = "load"
	ActionCreate AuditAction = "create"
	ActionUpdate AuditAction = "update"
	ActionDelete AuditAction = "delete"
	ActionSave   AuditAction = "save"
	ActionClear  AuditAction = "clear"
)

// AuditSeverity represents the severity level of an audit entry.
type AuditSeverity string

const (
	SeverityLow    AuditSeverity = "low"
	SeverityMedium AuditSeverity = "medium"
	SeverityHigh   AuditSeverity = "high"
)

// AuditEntry is one recorded session event.
type AuditEntry struct {
	ID           string        `json:"id"`
	SessionID    string        `json:"sessionId"`
	Action       AuditAction   `json:"action"`
	Severity     AuditSeverity `json:"severity"`
	FileName     string        `json:"fileName,omitempty"`
	Preset       string        `json:"preset,omitempty"`
	CommentaryID *int          `json:"commentaryId,omitempty"`
	OldValue     string        `json:"oldValue,omitempty"`
	NewValue     string        `json:"newValue,omitempty"`
	RecordCount  int           `json:"recordCount"`
	IPAddress    string        `json:"ipAddress,omitempty"`
	UserAgent    string        `json:"userAgent,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// AuditSink receives audit entries. Implementations must be safe for
// concurrent use.
type AuditSink interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// determineSeverity returns the appropriate severity for an action.
func determineSeverity(action AuditAction) AuditSeverity {
	switch action {
	case ActionDelete, ActionClear:
		return SeverityHigh
	case ActionLoad, ActionSave:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// newAuditEntry stamps id, severity, time and request metadata onto entry.
func newAuditEntry(ctx context.Context, sessionID string, entry AuditEntry) AuditEntry {
	entry.ID = uuid.NewString()
	entry.SessionID = sessionID
	entry.Severity = determineSeverity(entry.Action)
	entry.IPAddress = IPAddressFromContext(ctx)
	entry.UserAgent = UserAgentFromContext(ctx)
	entry.CreatedAt = time.Now().UTC()
	return entry
}

func intPtr(v int) *int {
	return &v
}
