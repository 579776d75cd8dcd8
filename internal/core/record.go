package core

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/JonMunkholm/cpleditor/internal/codec"
)

// IDDigits is the number of trailing characters of a commentary name that
// carry the commentary id.
const IDDigits = 6

// MaxCommentaryID is the largest id representable in IDDigits digits.
const MaxCommentaryID = 999999

// ErrMalformedName is returned by DeriveID when the commentary name does not
// end in IDDigits decimal digits.
var ErrMalformedName = errors.New("malformed commentary name")

// CommentaryRecord is one row of the player list.
type CommentaryRecord = codec.Record

// DeriveID returns the commentary id encoded in the trailing IDDigits
// characters of name. Names shorter than IDDigits characters, or whose tail
// is not all decimal digits, are rejected rather than parsed partially.
func DeriveID(name string) (int, error) {
	if len(name) < IDDigits {
		return 0, fmt.Errorf("%w: %q is shorter than %d characters", ErrMalformedName, name, IDDigits)
	}

	tail := name[len(name)-IDDigits:]
	for i := 0; i < len(tail); i++ {
		if tail[i] < '0' || tail[i] > '9' {
			return 0, fmt.Errorf("%w: %q does not end in %d digits", ErrMalformedName, name, IDDigits)
		}
	}

	id, err := strconv.Atoi(tail)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedName, err)
	}
	return id, nil
}

// RecordID returns the derived id of rec, or -1 and false when its
// commentary name is malformed.
func RecordID(rec CommentaryRecord) (int, bool) {
	id, err := DeriveID(rec.CommentaryName)
	if err != nil {
		return -1, false
	}
	return id, true
}
