package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/cpleditor/internal/config"
	"github.com/JonMunkholm/cpleditor/internal/core"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func entry(n int, session string, action core.AuditAction, severity core.AuditSeverity) core.AuditEntry {
	id := n
	return core.AuditEntry{
		ID:           fmt.Sprintf("00000000-0000-0000-0000-%012d", n),
		SessionID:    session,
		Action:       action,
		Severity:     severity,
		FileName:     "cpl.bin",
		CommentaryID: &id,
		NewValue:     fmt.Sprintf("Player %d", n),
		RecordCount:  n,
		CreatedAt:    baseTime.Add(time.Duration(n) * time.Minute),
	}
}

func seed(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	for i := 1; i <= 6; i++ {
		action, sev := core.ActionUpdate, core.SeverityMedium
		if i%3 == 0 {
			action, sev = core.ActionDelete, core.SeverityHigh
		}
		session := "a"
		if i > 4 {
			session = "b"
		}
		if err := s.Record(ctx, entry(i, session, action, sev)); err != nil {
			t.Fatalf("Record(%d): %v", i, err)
		}
	}
}

func openSQLiteForTest(t *testing.T) Store {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "audit", "audit.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var stores = []struct {
	name string
	open func(t *testing.T) Store
}{
	{name: "memory", open: func(*testing.T) Store { return NewMemoryStore(100) }},
	{name: "sqlite", open: openSQLiteForTest},
}

func TestStore_List(t *testing.T) {
	tests := []struct {
		name      string
		query     Query
		wantIDs   []int
		wantTotal int64
	}{
		{name: "all newest first", query: Query{}, wantIDs: []int{6, 5, 4, 3, 2, 1}, wantTotal: 6},
		{name: "by session", query: Query{SessionID: "b"}, wantIDs: []int{6, 5}, wantTotal: 2},
		{name: "by action", query: Query{Action: core.ActionDelete}, wantIDs: []int{6, 3}, wantTotal: 2},
		{name: "by severity", query: Query{Severity: core.SeverityMedium}, wantIDs: []int{5, 4, 2, 1}, wantTotal: 4},
		{
			name:      "time window",
			query:     Query{Since: baseTime.Add(2 * time.Minute), Until: baseTime.Add(5 * time.Minute)},
			wantIDs:   []int{4, 3, 2},
			wantTotal: 3,
		},
		{name: "paged", query: Query{Limit: 2, Offset: 2}, wantIDs: []int{4, 3}, wantTotal: 6},
	}

	for _, st := range stores {
		t.Run(st.name, func(t *testing.T) {
			s := st.open(t)
			seed(t, s)

			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					res, err := s.List(context.Background(), tt.query)
					if err != nil {
						t.Fatalf("List: %v", err)
					}
					if res.TotalCount != tt.wantTotal {
						t.Errorf("TotalCount = %d, want %d", res.TotalCount, tt.wantTotal)
					}
					if len(res.Entries) != len(tt.wantIDs) {
						t.Fatalf("got %d entries, want %d", len(res.Entries), len(tt.wantIDs))
					}
					for i, want := range tt.wantIDs {
						got := res.Entries[i]
						if got.CommentaryID == nil || *got.CommentaryID != want {
							t.Errorf("Entries[%d].CommentaryID = %v, want %d", i, got.CommentaryID, want)
						}
					}
				})
			}
		})
	}
}

func TestStore_RoundTripsFields(t *testing.T) {
	for _, st := range stores {
		t.Run(st.name, func(t *testing.T) {
			s := st.open(t)
			ctx := context.Background()

			in := entry(7, "sess", core.ActionUpdate, core.SeverityMedium)
			in.OldValue = "Old"
			in.IPAddress = "10.0.0.1"
			in.UserAgent = "test-agent"
			if err := s.Record(ctx, in); err != nil {
				t.Fatalf("Record: %v", err)
			}

			noID := entry(8, "sess", core.ActionLoad, core.SeverityLow)
			noID.CommentaryID = nil
			if err := s.Record(ctx, noID); err != nil {
				t.Fatalf("Record: %v", err)
			}

			res, err := s.List(ctx, Query{})
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(res.Entries) != 2 {
				t.Fatalf("got %d entries, want 2", len(res.Entries))
			}

			if res.Entries[0].CommentaryID != nil {
				t.Errorf("nil CommentaryID came back as %d", *res.Entries[0].CommentaryID)
			}
			got := res.Entries[1]
			if got.ID != in.ID || got.OldValue != "Old" || got.NewValue != in.NewValue ||
				got.IPAddress != "10.0.0.1" || got.UserAgent != "test-agent" || got.Action != core.ActionUpdate {
				t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, in)
			}
			if !got.CreatedAt.Equal(in.CreatedAt) {
				t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, in.CreatedAt)
			}
		})
	}
}

func TestStore_Purge(t *testing.T) {
	for _, st := range stores {
		t.Run(st.name, func(t *testing.T) {
			s := st.open(t)
			seed(t, s)
			ctx := context.Background()

			purged, err := s.Purge(ctx, baseTime.Add(3*time.Minute))
			if err != nil {
				t.Fatalf("Purge: %v", err)
			}
			if purged != 2 {
				t.Errorf("purged = %d, want 2", purged)
			}

			res, err := s.List(ctx, Query{})
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if res.TotalCount != 4 {
				t.Errorf("TotalCount after purge = %d, want 4", res.TotalCount)
			}
		})
	}
}

func TestMemoryStore_RingOverwritesOldest(t *testing.T) {
	s := NewMemoryStore(3)
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		_ = s.Record(ctx, entry(i, "a", core.ActionUpdate, core.SeverityMedium))
	}

	if s.Len() != 3 {
		t.Fatalf("Len = %d, want 3", s.Len())
	}
	res, _ := s.List(ctx, Query{})
	var ids []int
	for _, e := range res.Entries {
		ids = append(ids, *e.CommentaryID)
	}
	if fmt.Sprint(ids) != "[5 4 3]" {
		t.Errorf("ids = %v, want [5 4 3]", ids)
	}

	// Purge on a wrapped ring keeps order.
	if n, _ := s.Purge(ctx, baseTime.Add(4*time.Minute)); n != 1 {
		t.Errorf("purged = %d, want 1", n)
	}
	_ = s.Record(ctx, entry(6, "a", core.ActionUpdate, core.SeverityMedium))
	res, _ = s.List(ctx, Query{})
	ids = ids[:0]
	for _, e := range res.Entries {
		ids = append(ids, *e.CommentaryID)
	}
	if fmt.Sprint(ids) != "[6 5 4]" {
		t.Errorf("ids after purge = %v, want [6 5 4]", ids)
	}
}

func TestResultPaging(t *testing.T) {
	q := Query{Limit: 10, Offset: 20}.normalized()
	res := newResult(nil, 45, q)
	if res.Page != 3 || res.TotalPages != 5 || res.PageSize != 10 {
		t.Errorf("result = %+v, want page 3 of 5", res)
	}
	if res.Entries == nil {
		t.Error("Entries is nil")
	}

	if got := (Query{Limit: 10000}).normalized().Limit; got != MaxLimit {
		t.Errorf("Limit = %d, want %d", got, MaxLimit)
	}
}

func TestDialect_BuildList(t *testing.T) {
	q := Query{SessionID: "s1", Action: core.ActionDelete, Limit: 5, Offset: 10}

	sqlText, args, err := postgresDialect.buildList(q)
	if err != nil {
		t.Fatalf("buildList: %v", err)
	}
	for _, want := range []string{"FROM audit_log", "session_id = $1", "action = $2", "ORDER BY created_at DESC", "LIMIT 5", "OFFSET 10"} {
		if !strings.Contains(sqlText, want) {
			t.Errorf("query %q missing %q", sqlText, want)
		}
	}
	if len(args) != 2 {
		t.Errorf("args = %v, want 2", args)
	}

	sqlText, _, err = sqliteDialect.buildCount(q)
	if err != nil {
		t.Fatalf("buildCount: %v", err)
	}
	if !strings.Contains(sqlText, "session_id = ?") {
		t.Errorf("sqlite query %q should use ? placeholders", sqlText)
	}
}

func TestPurgeOnce(t *testing.T) {
	s := NewMemoryStore(10)
	seed(t, s)

	now := func() time.Time { return baseTime.Add(10 * time.Minute) }
	if got := purgeOnce(context.Background(), s, 5*time.Minute, now); got != 4 {
		t.Errorf("purgeOnce = %d, want 4", got)
	}
}

func TestRunPurger_StopsOnCancel(t *testing.T) {
	s := NewMemoryStore(10)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunPurger(ctx, s, PurgeConfig{Retention: time.Hour, Interval: time.Hour})
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunPurger did not stop after cancel")
	}
}

func TestWriteCSV(t *testing.T) {
	e := entry(1, "s", core.ActionUpdate, core.SeverityMedium)
	e.NewValue = `He said "hi", twice`

	var buf bytes.Buffer
	if err := WriteCSV(&buf, []core.AuditEntry{e}); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want header + 1", len(rows))
	}
	if rows[1][8] != e.NewValue {
		t.Errorf("new_value = %q, want %q", rows[1][8], e.NewValue)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.AuditConfig{Driver: config.DriverMemory, MemoryCapacity: 5})
	if err != nil {
		t.Fatalf("Open(memory): %v", err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Errorf("Open(memory) = %T", s)
	}

	s, err = Open(ctx, config.AuditConfig{Driver: config.DriverSQLite, DSN: filepath.Join(t.TempDir(), "a.db")})
	if err != nil {
		t.Fatalf("Open(sqlite): %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if _, ok := s.(*SQLiteStore); !ok {
		t.Errorf("Open(sqlite) = %T", s)
	}

	if _, err := Open(ctx, config.AuditConfig{Driver: "mysql"}); err == nil {
		t.Error("Open(mysql) expected error")
	}
}
