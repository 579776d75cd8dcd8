package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/JonMunkholm/cpleditor/internal/codec"
)

// memStore is an in-memory codec.Store whose names are "X" + six digits.
type memStore struct {
	records   []codec.Record
	failNext  error
	serialize func([]codec.Record) ([]byte, error)
}

func newMemStore(records ...codec.Record) *memStore {
	return &memStore{records: slices.Clone(records)}
}

func (m *memStore) Records() []codec.Record {
	return m.records
}

func (m *memStore) index(id int) int {
	for i, r := range m.records {
		if rid, ok := RecordID(r); ok && rid == id {
			return i
		}
	}
	return -1
}

func (m *memStore) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *memStore) Create(data codec.Upsert) error {
	if err := m.takeFailure(); err != nil {
		return err
	}
	if m.index(data.CommentaryID) >= 0 {
		return codec.ErrDuplicateIdentifier
	}
	m.records = append(m.records, codec.Record{
		CommentaryName: fmt.Sprintf("X%06d", data.CommentaryID),
		PlayerName:     data.PlayerName,
	})
	return nil
}

func (m *memStore) Update(data codec.Upsert) error {
	if err := m.takeFailure(); err != nil {
		return err
	}
	i := m.index(data.CommentaryID)
	if i < 0 {
		return codec.ErrNotFound
	}
	m.records[i].PlayerName = data.PlayerName
	return nil
}

func (m *memStore) Delete(id int) error {
	if err := m.takeFailure(); err != nil {
		return err
	}
	i := m.index(id)
	if i < 0 {
		return codec.ErrNotFound
	}
	m.records = slices.Delete(m.records, i, i+1)
	return nil
}

// Serialize writes one "name=player" line per record.
func (m *memStore) Serialize() ([]byte, error) {
	if m.serialize != nil {
		return m.serialize(m.records)
	}
	var b strings.Builder
	for _, r := range m.records {
		fmt.Fprintf(&b, "%s=%s\n", r.CommentaryName, r.PlayerName)
	}
	return []byte(b.String()), nil
}

// lineCodec parses the memStore Serialize format.
type lineCodec struct {
	// gate, when set, blocks Parse until it is closed or ctx is done.
	gate chan struct{}
}

func (c lineCodec) Parse(ctx context.Context, data []byte, _ any) (codec.Store, error) {
	if c.gate != nil {
		select {
		case <-c.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	store := newMemStore()
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		name, player, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("line %q has no separator", line)
		}
		store.records = append(store.records, codec.Record{CommentaryName: name, PlayerName: player})
	}
	return store, nil
}

func linePreset() codec.Preset {
	return codec.Preset{Key: "test", Label: "Test", Codec: lineCodec{}}
}

func fileOf(records ...codec.Record) []byte {
	data, _ := newMemStore(records...).Serialize()
	return data
}

func rec(name, player string) CommentaryRecord {
	return CommentaryRecord{CommentaryName: name, PlayerName: player}
}

// captureExporter records what was exported and how the handle was used.
type captureExporter struct {
	acquireErr error
	triggerErr error

	mu       sync.Mutex
	name     string
	data     []byte
	triggers int
	releases int
}

func (e *captureExporter) Acquire(fileName string) (ExportHandle, error) {
	if e.acquireErr != nil {
		return nil, e.acquireErr
	}
	e.mu.Lock()
	e.name = fileName
	e.data = nil
	e.mu.Unlock()
	return &captureHandle{exp: e}, nil
}

type captureHandle struct {
	exp *captureExporter
}

func (h *captureHandle) Write(p []byte) (int, error) {
	h.exp.mu.Lock()
	defer h.exp.mu.Unlock()
	h.exp.data = append(h.exp.data, p...)
	return len(p), nil
}

func (h *captureHandle) Trigger() error {
	h.exp.mu.Lock()
	defer h.exp.mu.Unlock()
	if h.exp.triggerErr != nil {
		return h.exp.triggerErr
	}
	h.exp.triggers++
	return nil
}

func (h *captureHandle) Release() error {
	h.exp.mu.Lock()
	defer h.exp.mu.Unlock()
	h.exp.releases++
	return nil
}

// memorySink collects audit entries.
type memorySink struct {
	mu      sync.Mutex
	entries []AuditEntry
	err     error
}

func (s *memorySink) Record(_ context.Context, e AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, e)
	return nil
}

func (s *memorySink) actions() []AuditAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AuditAction, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Action
	}
	return out
}

func newTestSession(t *testing.T, opts Options) *Session {
	t.Helper()
	s, err := NewSession(opts)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s
}

func loadedSession(t *testing.T, records ...codec.Record) *Session {
	t.Helper()
	s := newTestSession(t, Options{ID: "test"})
	if err := s.Load(context.Background(), "list.bin", fileOf(records...), linePreset()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return s
}

func playerNames(records []CommentaryRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.PlayerName
	}
	return out
}

var errInjected = errors.New("injected failure")
