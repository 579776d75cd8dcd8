package core

import (
	"cmp"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownField is returned when a filter or sort addresses a field id
// that is not in the field table.
var ErrUnknownField = errors.New("unknown field")

// FieldID addresses a record field in filter and sort specs.
type FieldID string

const (
	FieldCommentaryName FieldID = "commentaryName"
	FieldPlayerName     FieldID = "playerName"
	FieldCommentaryID   FieldID = "commentaryId"
)

// FieldInfo describes a field for display.
type FieldInfo struct {
	ID         FieldID `json:"id"`
	Label      string  `json:"label"`
	Filterable bool    `json:"filterable"`
}

// fieldAccessor reads one field of a record. text is the string form used
// for substring filtering, compare orders two records by the field.
type fieldAccessor struct {
	info    FieldInfo
	text    func(CommentaryRecord) string
	compare func(a, b CommentaryRecord) int
}

var fieldOrder, fieldTable = buildFieldTable([]fieldAccessor{
	{
		info: FieldInfo{ID: FieldCommentaryName, Label: "Commentary Name", Filterable: true},
		text: func(r CommentaryRecord) string { return r.CommentaryName },
		compare: func(a, b CommentaryRecord) int {
			return strings.Compare(a.CommentaryName, b.CommentaryName)
		},
	},
	{
		info: FieldInfo{ID: FieldPlayerName, Label: "Player Name", Filterable: true},
		text: func(r CommentaryRecord) string { return r.PlayerName },
		compare: func(a, b CommentaryRecord) int {
			return strings.Compare(a.PlayerName, b.PlayerName)
		},
	},
	{
		// Malformed names derive to -1 and sort ahead of every valid id.
		info: FieldInfo{ID: FieldCommentaryID, Label: "Commentary Id", Filterable: true},
		text: func(r CommentaryRecord) string {
			id, _ := RecordID(r)
			return strconv.Itoa(id)
		},
		compare: func(a, b CommentaryRecord) int {
			ia, _ := RecordID(a)
			ib, _ := RecordID(b)
			return cmp.Compare(ia, ib)
		},
	},
})

// buildFieldTable indexes accessors by id. It panics on duplicate ids or
// missing functions so a bad table fails at startup.
func buildFieldTable(defs []fieldAccessor) ([]FieldID, map[FieldID]fieldAccessor) {
	order := make([]FieldID, 0, len(defs))
	table := make(map[FieldID]fieldAccessor, len(defs))
	for _, def := range defs {
		if def.info.ID == "" || def.text == nil || def.compare == nil {
			panic(fmt.Sprintf("core: incomplete field definition %+v", def.info))
		}
		if _, dup := table[def.info.ID]; dup {
			panic(fmt.Sprintf("core: duplicate field id %q", def.info.ID))
		}
		table[def.info.ID] = def
		order = append(order, def.info.ID)
	}
	return order, table
}

// ParseFieldID validates a field id supplied by a caller.
func ParseFieldID(s string) (FieldID, error) {
	id := FieldID(s)
	if _, ok := fieldTable[id]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
	}
	return id, nil
}

// Fields lists the known fields in display order.
func Fields() []FieldInfo {
	out := make([]FieldInfo, len(fieldOrder))
	for i, id := range fieldOrder {
		out[i] = fieldTable[id].info
	}
	return out
}
