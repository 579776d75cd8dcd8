// Package core provides the record layer of the commentary player list
// editor.
//
// It sits between the file codec (package codec) and any front end. The
// web server and the cplist command both drive it the same way and never
// touch file bytes or codec stores themselves.
//
// # Architecture
//
//   - Identifier: [DeriveID] reads the commentary id from the trailing
//     six digits of a commentary name.
//   - Record Store: [RecordStore] wraps a codec store, keeps a snapshot of
//     its records and bumps a version on every successful mutation.
//   - Pipeline: [Project] filters and sorts records; [Paginate] slices the
//     projection into a [Page].
//   - Session: [Session] is the controller. It owns the loaded file, the
//     filter, sort and pagination state and the dirty flag, and serializes
//     every operation behind one mutex.
//
// # Session lifecycle
//
// A session starts Unloaded. [Session.Load] parses a file with the chosen
// preset and moves it to Loaded; only the most recent Load may commit.
// [Session.Clear] returns it to Unloaded and resets the view. Mutations made
// through [Session.Create], [Session.Update] and [Session.Delete] set the
// dirty flag, and [Session.Save] hands the serialized bytes to an
// [Exporter].
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages by [MapError]. Each
// category has a code for support reference:
//
//   - FILE001-FILE004: File errors (decode, size, missing file, preset)
//   - REC001-REC002: Record errors (duplicate id, id not found)
//   - VAL001-VAL006: Validation errors (id, player name, field, paging)
//   - SES001-SES004: Session errors (no file, superseded load, timeout)
//   - RATE001-RATE003: Capacity errors (rate limit, loads, sessions)
//
// # Audit Logging
//
// Every load, mutation, save and close is written to the session's
// [AuditSink] with a severity:
//
//   - Low: Load, Save
//   - Medium: Create, Update
//   - High: Delete, Clear
package core
