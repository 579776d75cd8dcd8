// Package codec is the boundary between the editor and the commentary list
// codec that decodes and encodes the game's binary file.
//
// The editor never looks at bytes itself. It hands the uploaded file to a
// [Codec] together with a [Preset] and receives a [Store]: the decoded,
// ordered record set plus the create/update/delete/serialize operations the
// codec supports on it. Codec implementations register their presets at init
// time with [Register].
package codec

import (
	"context"
	"errors"
	"fmt"
)

// ErrDuplicateIdentifier is returned by Store.Create when the commentary id
// is already present in the record set.
var ErrDuplicateIdentifier = errors.New("duplicate commentary id")

// ErrNotFound is returned by Store.Update and Store.Delete when no record
// carries the requested commentary id.
var ErrNotFound = errors.New("commentary id not found")

// ErrFieldTooLong is returned when a value does not fit the fixed-width
// field the file format reserves for it.
var ErrFieldTooLong = errors.New("field too long")

// Record is one player-name to commentary-slot association as decoded from
// the file. CommentaryName is the encoded name field; its trailing digits
// carry the commentary id.
type Record struct {
	CommentaryName string `json:"commentaryName"`
	PlayerName     string `json:"playerName"`
}

// Upsert carries the data for a create or update. The codec owns the
// commentary name format and builds it from CommentaryID.
type Upsert struct {
	CommentaryID int    `json:"commentaryId"`
	PlayerName   string `json:"playerName"`
}

// Store is the codec's in-memory representation of one decoded file.
// Create, Update and Delete are atomic: on error the record set is unchanged.
type Store interface {
	// Records returns the ordered record set. Callers must not modify it.
	Records() []Record
	Create(data Upsert) error
	Update(data Upsert) error
	Delete(commentaryID int) error
	// Serialize encodes the current record set back to file bytes.
	Serialize() ([]byte, error)
}

// Codec parses file bytes into a Store. The config argument is the opaque
// token carried by a Preset and is only meaningful to the codec that
// registered it.
type Codec interface {
	Parse(ctx context.Context, data []byte, config any) (Store, error)
}

// DecodeError reports a failed Parse.
type DecodeError struct {
	Preset string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error (preset %s): %v", e.Preset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Parse runs the preset's codec over data. Any codec failure is returned as a
// *DecodeError; context errors are returned unwrapped.
func Parse(ctx context.Context, data []byte, preset Preset) (Store, error) {
	if preset.Codec == nil {
		return nil, &DecodeError{Preset: preset.Key, Err: errors.New("preset has no codec")}
	}

	store, err := preset.Codec.Parse(ctx, data, preset.Config)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		var de *DecodeError
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, &DecodeError{Preset: preset.Key, Err: err}
	}
	return store, nil
}
