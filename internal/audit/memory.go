package audit

import (
	"context"
	"sync"
	"time"

	"github.com/JonMunkholm/cpleditor/internal/core"
)

// DefaultMemoryCapacity is used when NewMemoryStore is given a non-positive
// capacity.
const DefaultMemoryCapacity = 10000

// MemoryStore keeps the most recent entries in a fixed-size ring. When full,
// the oldest entry is overwritten.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []core.AuditEntry
	next    int
	full    bool
}

// NewMemoryStore creates a ring holding up to capacity entries.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryStore{entries: make([]core.AuditEntry, capacity)}
}

// Record appends an entry.
func (m *MemoryStore) Record(_ context.Context, entry core.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[m.next] = entry
	m.next = (m.next + 1) % len(m.entries)
	if m.next == 0 {
		m.full = true
	}
	return nil
}

// List returns matching entries, newest first.
func (m *MemoryStore) List(_ context.Context, q Query) (*Result, error) {
	q = q.normalized()

	m.mu.RLock()
	defer m.mu.RUnlock()

	var (
		page  []core.AuditEntry
		total int64
	)
	m.newestFirst(func(e core.AuditEntry) {
		if !q.matches(e) {
			return
		}
		if total >= int64(q.Offset) && len(page) < q.Limit {
			page = append(page, e)
		}
		total++
	})

	return newResult(page, total, q), nil
}

// Purge drops entries created before cutoff.
func (m *MemoryStore) Purge(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var kept []core.AuditEntry
	var purged int64
	m.oldestFirst(func(e core.AuditEntry) {
		if e.CreatedAt.Before(cutoff) {
			purged++
			return
		}
		kept = append(kept, e)
	})
	if purged == 0 {
		return 0, nil
	}

	capacity := len(m.entries)
	m.entries = make([]core.AuditEntry, capacity)
	copy(m.entries, kept)
	m.next = len(kept) % capacity
	m.full = len(kept) == capacity
	return purged, nil
}

// Len returns the number of entries held.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.full {
		return len(m.entries)
	}
	return m.next
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) newestFirst(fn func(core.AuditEntry)) {
	n := m.next
	if m.full {
		n = len(m.entries)
	}
	for i := 1; i <= n; i++ {
		idx := (m.next - i + len(m.entries)) % len(m.entries)
		fn(m.entries[idx])
	}
}

func (m *MemoryStore) oldestFirst(fn func(core.AuditEntry)) {
	if m.full {
		for i := 0; i < len(m.entries); i++ {
			fn(m.entries[(m.next+i)%len(m.entries)])
		}
		return
	}
	for i := 0; i < m.next; i++ {
		fn(m.entries[i])
	}
}
