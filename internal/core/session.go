package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/JonMunkholm/cpleditor/internal/codec"
	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	// ErrNotLoaded is returned by mutations while no file is open.
	ErrNotLoaded = errors.New("no file loaded")

	// ErrLoadSuperseded is returned by a Load whose result was discarded
	// because a newer Load or a Clear started after it.
	ErrLoadSuperseded = errors.New("load superseded")

	// ErrUnsavedChanges is returned by ClearIfSaved when the open file has
	// changes that were never exported.
	ErrUnsavedChanges = errors.New("file has unsaved changes")
)

// DefaultViewCacheSize is the number of memoized projections kept per session.
const DefaultViewCacheSize = 8

// Status is the session lifecycle state.
type Status int

const (
	Unloaded Status = iota
	Loaded
)

func (s Status) String() string {
	if s == Loaded {
		return "loaded"
	}
	return "unloaded"
}

// State is a snapshot of the session lifecycle.
type State struct {
	Status   Status `json:"-"`
	FileName string `json:"fileName,omitempty"`
	Preset   string `json:"preset,omitempty"`
	// Dirty is set by any successful mutation and cleared only by Clear or
	// a new Load.
	Dirty bool `json:"dirty"`
	// Unsaved is Dirty minus what the last Save exported.
	Unsaved bool   `json:"unsaved"`
	Records int    `json:"records"`
	Version uint64 `json:"version"`
}

// IsLoaded reports whether a file is open.
func (st State) IsLoaded() bool {
	return st.Status == Loaded
}

// View is everything a UI needs to render the editor.
type View struct {
	State      State           `json:"state"`
	Page       Page            `json:"page"`
	Filters    FilterSpec      `json:"filters"`
	Sorting    SortSpec        `json:"sorting"`
	Pagination PaginationState `json:"pagination"`
}

// Options configures a Session.
type Options struct {
	ID            string    // Session id recorded on audit entries
	PageSize      int       // Default page size (default: DefaultPageSize)
	ViewCacheSize int       // Memoized projections (default: DefaultViewCacheSize)
	Audit         AuditSink // Optional audit sink
	Logger        *slog.Logger
}

type viewKey struct {
	version uint64
	filters string
	sorting string
}

// Session is the controller for one editing session: it owns the Record
// Store of the open file and the filter, sort and pagination state of the
// editor view.
//
// The session behaves as a single UI thread. Methods may be called from
// several goroutines; they are serialized internally so no caller observes
// a partially applied mutation. Only Load blocks, and it parses outside the
// lock.
type Session struct {
	id       string
	pageSize int
	audit    AuditSink
	logger   *slog.Logger

	mu           sync.Mutex
	store        *RecordStore // nil while Unloaded
	fileName     string
	preset       string
	dirty        bool
	savedVersion uint64
	filters      FilterSpec
	sorting      SortSpec
	pagination   PaginationState
	loadGen      uint64
	cancelLoad   context.CancelFunc

	views       *lru.Cache[viewKey, []CommentaryRecord]
	projections int // number of projections computed, for cache checks
}

// NewSession creates an Unloaded session.
func NewSession(opts Options) (*Session, error) {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.ViewCacheSize <= 0 {
		opts.ViewCacheSize = DefaultViewCacheSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	views, err := lru.New[viewKey, []CommentaryRecord](opts.ViewCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create view cache: %w", err)
	}

	return &Session{
		id:         opts.ID,
		pageSize:   opts.PageSize,
		audit:      opts.Audit,
		logger:     opts.Logger.With("session_id", opts.ID),
		pagination: PaginationState{PageSize: opts.PageSize},
		views:      views,
	}, nil
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Load parses data with the preset's codec and, on success, replaces the
// session contents with the decoded file. On failure the session keeps its
// previous state.
//
// Only the most recent Load may commit: starting a Load cancels the context
// of any Load still in flight, and a Load that finishes after being
// superseded (by another Load or by Clear) discards its result and returns
// ErrLoadSuperseded.
func (s *Session) Load(ctx context.Context, fileName string, data []byte, preset codec.Preset) error {
	s.mu.Lock()
	if s.cancelLoad != nil {
		s.cancelLoad()
	}
	s.loadGen++
	gen := s.loadGen
	loadCtx, cancel := context.WithCancel(ctx)
	s.cancelLoad = cancel
	s.mu.Unlock()
	defer cancel()

	store, err := codec.Parse(loadCtx, data, preset)

	s.mu.Lock()
	if gen != s.loadGen {
		s.mu.Unlock()
		s.logger.Info("load superseded", "file", fileName)
		return ErrLoadSuperseded
	}
	s.cancelLoad = nil
	if err != nil {
		s.mu.Unlock()
		s.logger.Warn("load failed", "file", fileName, "preset", preset.Key, "error", err)
		return err
	}

	s.store = newRecordStore(store)
	s.fileName = fileName
	s.preset = preset.Key
	s.dirty = false
	s.savedVersion = s.store.Version()
	s.resetViewLocked()
	count := s.store.Len()
	s.mu.Unlock()

	s.logger.Info("file loaded", "file", fileName, "preset", preset.Key, "records", count)
	s.record(ctx, AuditEntry{Action: ActionLoad, FileName: fileName, Preset: preset.Key, RecordCount: count})
	return nil
}

// Clear closes the file and resets filters, sorting and pagination to
// their defaults. Any Load in flight is superseded.
func (s *Session) Clear(ctx context.Context) {
	s.mu.Lock()
	prev := s.clearLocked()
	s.mu.Unlock()
	s.closed(ctx, prev)
}

// ClearIfSaved closes the file unless it has unsaved changes and force is
// false, in which case it returns ErrUnsavedChanges and leaves the session
// untouched. The check and the close happen under one lock, so a mutation
// cannot slip in between. It returns the state as it was before the call.
func (s *Session) ClearIfSaved(ctx context.Context, force bool) (State, error) {
	s.mu.Lock()
	if !force && s.unsavedLocked() {
		prev := s.stateLocked()
		s.mu.Unlock()
		return prev, ErrUnsavedChanges
	}
	prev := s.clearLocked()
	s.mu.Unlock()
	s.closed(ctx, prev)
	return prev, nil
}

// clearLocked drops the file and view state and returns the state it
// replaced. Any in-flight Load is cancelled and can no longer commit.
func (s *Session) clearLocked() State {
	prev := s.stateLocked()
	if s.cancelLoad != nil {
		s.cancelLoad()
		s.cancelLoad = nil
	}
	s.loadGen++
	s.store = nil
	s.fileName = ""
	s.preset = ""
	s.dirty = false
	s.savedVersion = 0
	s.resetViewLocked()
	return prev
}

func (s *Session) closed(ctx context.Context, prev State) {
	if !prev.IsLoaded() {
		return
	}
	s.logger.Info("file closed", "file", prev.FileName, "discarded", prev.Unsaved)
	s.record(ctx, AuditEntry{Action: ActionClear, FileName: prev.FileName})
}

// Save serializes the record set and exports it under the original file
// name. It returns false without error when no file is open.
func (s *Session) Save(ctx context.Context, exp Exporter) (bool, error) {
	s.mu.Lock()
	if s.store == nil {
		s.mu.Unlock()
		return false, nil
	}
	gen := s.loadGen
	fileName := s.fileName
	version := s.store.Version()
	count := s.store.Len()
	data, err := s.store.Serialize()
	s.mu.Unlock()

	if err != nil {
		return false, fmt.Errorf("serialize %s: %w", fileName, err)
	}
	if err := export(exp, fileName, data); err != nil {
		s.logger.Warn("export failed", "file", fileName, "error", err)
		return false, err
	}

	s.mu.Lock()
	if gen == s.loadGen {
		s.savedVersion = version
	}
	s.mu.Unlock()

	s.logger.Info("file exported", "file", fileName, "records", count, "bytes", len(data))
	s.record(ctx, AuditEntry{Action: ActionSave, FileName: fileName, RecordCount: count})
	return true, nil
}

// Create validates in and inserts a new record.
func (s *Session) Create(ctx context.Context, in UpsertInput) error {
	if err := ValidateUpsert(in); err != nil {
		return err
	}
	return s.mutate(ctx, ActionCreate, in.CommentaryID, func(rs *RecordStore) (AuditEntry, error) {
		if err := rs.Create(in.toCodec()); err != nil {
			return AuditEntry{}, err
		}
		return AuditEntry{NewValue: in.PlayerName}, nil
	})
}

// Update validates in and replaces the player name of an existing record.
func (s *Session) Update(ctx context.Context, in UpsertInput) error {
	if err := ValidateUpsert(in); err != nil {
		return err
	}
	return s.mutate(ctx, ActionUpdate, in.CommentaryID, func(rs *RecordStore) (AuditEntry, error) {
		old, _ := rs.Find(in.CommentaryID)
		if err := rs.Update(in.toCodec()); err != nil {
			return AuditEntry{}, err
		}
		return AuditEntry{OldValue: old.PlayerName, NewValue: in.PlayerName}, nil
	})
}

// Delete removes the record with the given commentary id.
func (s *Session) Delete(ctx context.Context, commentaryID int) error {
	return s.mutate(ctx, ActionDelete, commentaryID, func(rs *RecordStore) (AuditEntry, error) {
		old, _ := rs.Find(commentaryID)
		if err := rs.Delete(commentaryID); err != nil {
			return AuditEntry{}, err
		}
		return AuditEntry{OldValue: old.PlayerName}, nil
	})
}

func (s *Session) mutate(ctx context.Context, action AuditAction, id int, fn func(*RecordStore) (AuditEntry, error)) error {
	s.mu.Lock()
	if s.store == nil {
		s.mu.Unlock()
		return ErrNotLoaded
	}
	entry, err := fn(s.store)
	if err != nil {
		s.mu.Unlock()
		s.logger.Debug("mutation rejected", "action", action, "commentary_id", id, "error", err)
		return err
	}
	s.dirty = true
	entry.FileName = s.fileName
	entry.RecordCount = s.store.Len()
	version := s.store.Version()
	s.mu.Unlock()

	s.logger.Debug("mutation applied", "action", action, "commentary_id", id, "version", version)
	entry.Action = action
	entry.CommentaryID = intPtr(id)
	s.record(ctx, entry)
	return nil
}

// State returns the lifecycle snapshot.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// HasUnsavedChanges reports whether mutations were made since the file was
// loaded or last exported.
func (s *Session) HasUnsavedChanges() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsavedLocked()
}

// Filters returns the current filter spec.
func (s *Session) Filters() FilterSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.filters)
}

// Sorting returns the current sort spec.
func (s *Session) Sorting() SortSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.sorting)
}

// Pagination returns the current pagination state.
func (s *Session) Pagination() PaginationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pagination
}

// SetFilter sets the term for one field. An empty term removes the field's
// filter. A change to the filter spec moves the view back to page 0.
func (s *Session) SetFilter(field string, term string) error {
	id, err := ParseFieldID(field)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyFiltersLocked(s.filters.With(id, term))
	return nil
}

// SetFilters replaces the whole filter spec. A change moves the view back
// to page 0.
func (s *Session) SetFilters(filters FilterSpec) error {
	normalized, err := filters.normalize()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyFiltersLocked(normalized)
	return nil
}

// ResetFilters removes every filter and moves the view back to page 0.
func (s *Session) ResetFilters() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = nil
	s.pagination.PageIndex = 0
}

func (s *Session) applyFiltersLocked(next FilterSpec) {
	if next.Equal(s.filters) {
		return
	}
	s.filters = next
	s.pagination.PageIndex = 0
}

// SetSorting replaces the sort spec. The page index is kept.
func (s *Session) SetSorting(sorting SortSpec) error {
	if err := sorting.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sorting = slices.Clone(sorting)
	return nil
}

// ToggleSort cycles one field through ascending, descending and unsorted.
func (s *Session) ToggleSort(field string) error {
	id, err := ParseFieldID(field)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sorting = s.sorting.Toggle(id)
	return nil
}

// SetPagination selects a page. The projection is not recomputed.
func (s *Session) SetPagination(p PaginationState) error {
	if err := p.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pagination = p
	return nil
}

// ResetPagination moves the view back to page 0.
func (s *Session) ResetPagination() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pagination.PageIndex = 0
}

// View returns the current page of the projection along with the state
// needed to render it.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	return View{
		State:      s.stateLocked(),
		Page:       Paginate(s.projectionLocked(), s.pagination),
		Filters:    slices.Clone(s.filters),
		Sorting:    slices.Clone(s.sorting),
		Pagination: s.pagination,
	}
}

// Projection returns the whole filtered and sorted record set.
func (s *Session) Projection() []CommentaryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.projectionLocked())
}

// projectionLocked returns the memoized projection for the current
// (version, filters, sorting), computing it on a miss.
func (s *Session) projectionLocked() []CommentaryRecord {
	if s.store == nil {
		return nil
	}

	key := viewKey{
		version: s.store.Version(),
		filters: s.filters.key(),
		sorting: s.sorting.key(),
	}
	if cached, ok := s.views.Get(key); ok {
		return cached
	}

	projected := Project(s.store.Records(), s.filters, s.sorting)
	s.projections++
	s.views.Add(key, projected)
	return projected
}

func (s *Session) stateLocked() State {
	if s.store == nil {
		return State{Status: Unloaded}
	}
	return State{
		Status:   Loaded,
		FileName: s.fileName,
		Preset:   s.preset,
		Dirty:    s.dirty,
		Unsaved:  s.unsavedLocked(),
		Records:  s.store.Len(),
		Version:  s.store.Version(),
	}
}

func (s *Session) unsavedLocked() bool {
	return s.store != nil && s.dirty && s.store.Version() != s.savedVersion
}

func (s *Session) resetViewLocked() {
	s.filters = nil
	s.sorting = nil
	s.pagination = PaginationState{PageIndex: 0, PageSize: s.pageSize}
	s.views.Purge()
}

// record sends an audit entry to the sink. Audit failures are logged and
// never fail the operation that produced them.
func (s *Session) record(ctx context.Context, entry AuditEntry) {
	if s.audit == nil {
		return
	}
	entry = newAuditEntry(ctx, s.id, entry)
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("audit record failed", "action", entry.Action, "error", err)
	}
}
