package core

import (
	"errors"
	"fmt"
	"slices"

	"github.com/JonMunkholm/cpleditor/internal/codec"
)

// Errors surfaced by RecordStore mutations. They are the codec's sentinels,
// so errors.Is works across both layers.
var (
	ErrDuplicateIdentifier = codec.ErrDuplicateIdentifier
	ErrNotFound            = codec.ErrNotFound
)

// RecordError is the failure of a single Record Store mutation.
type RecordError struct {
	Op           string // "create", "update" or "delete"
	CommentaryID int
	Err          error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s commentary %d: %v", e.Op, e.CommentaryID, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// Kind returns ErrDuplicateIdentifier, ErrNotFound, or nil when the failure
// is neither.
func (e *RecordError) Kind() error {
	switch {
	case errors.Is(e.Err, ErrDuplicateIdentifier):
		return ErrDuplicateIdentifier
	case errors.Is(e.Err, ErrNotFound):
		return ErrNotFound
	default:
		return nil
	}
}

// RecordStore owns the decoded record set of one loaded session and
// mediates every mutation against the codec store. Version increases by one
// after each successful mutation and never on failure.
//
// RecordStore is not safe for concurrent use; Session serializes access.
type RecordStore struct {
	store   codec.Store
	version uint64
	records []CommentaryRecord // snapshot of store.Records() at version
}

func newRecordStore(store codec.Store) *RecordStore {
	rs := &RecordStore{store: store, version: 1}
	rs.refresh()
	return rs
}

// Version returns the current raw-set version.
func (rs *RecordStore) Version() uint64 {
	return rs.version
}

// Records returns the ordered record set at the current version. The slice
// is shared; callers must not modify it.
func (rs *RecordStore) Records() []CommentaryRecord {
	return rs.records
}

// Len returns the number of records.
func (rs *RecordStore) Len() int {
	return len(rs.records)
}

// Find returns the record whose derived id equals id.
func (rs *RecordStore) Find(id int) (CommentaryRecord, bool) {
	for _, rec := range rs.records {
		if rid, ok := RecordID(rec); ok && rid == id {
			return rec, true
		}
	}
	return CommentaryRecord{}, false
}

// Create inserts a new record. The codec builds its commentary name.
func (rs *RecordStore) Create(data codec.Upsert) error {
	if _, exists := rs.Find(data.CommentaryID); exists {
		return &RecordError{Op: "create", CommentaryID: data.CommentaryID,
			Err: fmt.Errorf("%w: %d", ErrDuplicateIdentifier, data.CommentaryID)}
	}
	return rs.apply("create", data.CommentaryID, func() error { return rs.store.Create(data) })
}

// Update replaces the player name of the record with data.CommentaryID.
func (rs *RecordStore) Update(data codec.Upsert) error {
	return rs.apply("update", data.CommentaryID, func() error { return rs.store.Update(data) })
}

// Delete removes the record with the given id.
func (rs *RecordStore) Delete(id int) error {
	return rs.apply("delete", id, func() error { return rs.store.Delete(id) })
}

// Serialize asks the codec to encode the current record set.
func (rs *RecordStore) Serialize() ([]byte, error) {
	return rs.store.Serialize()
}

func (rs *RecordStore) apply(op string, id int, fn func() error) error {
	if err := fn(); err != nil {
		return &RecordError{Op: op, CommentaryID: id, Err: err}
	}
	rs.version++
	rs.refresh()
	return nil
}

func (rs *RecordStore) refresh() {
	rs.records = slices.Clone(rs.store.Records())
}
