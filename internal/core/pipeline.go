package core

import (
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// Filter keeps records whose field contains Term, ignoring case.
type Filter struct {
	Field FieldID `json:"id"`
	Term  string  `json:"value"`
}

// FilterSpec is an ordered set of filters, at most one per field. All
// filters with a non-empty term must match (AND).
type FilterSpec []Filter

// With returns a copy of f with field's term replaced in place, or appended
// when field has no entry yet. An empty term removes the entry.
func (f FilterSpec) With(field FieldID, term string) FilterSpec {
	out := make(FilterSpec, 0, len(f)+1)
	replaced := false
	for _, flt := range f {
		if flt.Field != field {
			out = append(out, flt)
			continue
		}
		replaced = true
		if term != "" {
			out = append(out, Filter{Field: field, Term: term})
		}
	}
	if !replaced && term != "" {
		out = append(out, Filter{Field: field, Term: term})
	}
	return out
}

// Term returns the filter term for field, or "".
func (f FilterSpec) Term(field FieldID) string {
	for _, flt := range f {
		if flt.Field == field {
			return flt.Term
		}
	}
	return ""
}

// Equal reports whether f and o hold the same filters in the same order.
func (f FilterSpec) Equal(o FilterSpec) bool {
	return slices.Equal(f, o)
}

// normalize validates field ids and collapses repeated fields so the last
// term for a field wins at the position of its first occurrence.
func (f FilterSpec) normalize() (FilterSpec, error) {
	var out FilterSpec
	for _, flt := range f {
		if _, err := ParseFieldID(string(flt.Field)); err != nil {
			return nil, err
		}
		out = out.With(flt.Field, flt.Term)
	}
	return out, nil
}

func (f FilterSpec) key() string {
	var b strings.Builder
	for _, flt := range f {
		b.WriteString(string(flt.Field))
		b.WriteByte('=')
		b.WriteString(strconv.Quote(flt.Term))
		b.WriteByte(';')
	}
	return b.String()
}

// Sort orders records by Field, descending when Descending is set.
type Sort struct {
	Field      FieldID `json:"id"`
	Descending bool    `json:"desc"`
}

// SortSpec is an ordered list of sort keys; earlier entries take priority.
type SortSpec []Sort

// Direction reports whether field is sorted and in which direction.
func (s SortSpec) Direction(field FieldID) (descending, ok bool) {
	for _, srt := range s {
		if srt.Field == field {
			return srt.Descending, true
		}
	}
	return false, false
}

// Toggle cycles field through ascending, descending and unsorted, keeping
// the position of the other keys.
func (s SortSpec) Toggle(field FieldID) SortSpec {
	out := make(SortSpec, 0, len(s)+1)
	found := false
	for _, srt := range s {
		if srt.Field != field {
			out = append(out, srt)
			continue
		}
		found = true
		if !srt.Descending {
			out = append(out, Sort{Field: field, Descending: true})
		}
	}
	if !found {
		out = append(out, Sort{Field: field})
	}
	return out
}

// Equal reports whether s and o hold the same keys in the same order.
func (s SortSpec) Equal(o SortSpec) bool {
	return slices.Equal(s, o)
}

func (s SortSpec) validate() error {
	for _, srt := range s {
		if _, err := ParseFieldID(string(srt.Field)); err != nil {
			return err
		}
	}
	return nil
}

func (s SortSpec) key() string {
	var b strings.Builder
	for _, srt := range s {
		b.WriteString(string(srt.Field))
		if srt.Descending {
			b.WriteString(":desc;")
		} else {
			b.WriteString(":asc;")
		}
	}
	return b.String()
}

// Project filters and sorts records into a new slice. records is not
// modified. With no active filters and no sort keys the result equals the
// input order. Sorting is stable, so fully tied records keep their relative
// order.
func Project(records []CommentaryRecord, filters FilterSpec, sorting SortSpec) []CommentaryRecord {
	result := make([]CommentaryRecord, 0, len(records))

	type activeFilter struct {
		acc  fieldAccessor
		term string
	}
	fold := cases.Fold()
	var active []activeFilter
	for _, flt := range filters {
		if flt.Term == "" {
			continue
		}
		acc, ok := fieldTable[flt.Field]
		if !ok {
			continue
		}
		active = append(active, activeFilter{acc: acc, term: fold.String(flt.Term)})
	}

	if len(active) == 0 {
		result = append(result, records...)
	} else {
	rows:
		for _, rec := range records {
			for _, af := range active {
				if !strings.Contains(fold.String(af.acc.text(rec)), af.term) {
					continue rows
				}
			}
			result = append(result, rec)
		}
	}

	if len(sorting) > 0 {
		slices.SortStableFunc(result, compareBy(sorting))
	}

	return result
}

// compareBy builds a comparator that walks the sort keys in priority order
// and returns at the first unequal key.
func compareBy(sorting SortSpec) func(a, b CommentaryRecord) int {
	type key struct {
		compare func(a, b CommentaryRecord) int
		desc    bool
	}
	keys := make([]key, 0, len(sorting))
	for _, srt := range sorting {
		if acc, ok := fieldTable[srt.Field]; ok {
			keys = append(keys, key{compare: acc.compare, desc: srt.Descending})
		}
	}

	return func(a, b CommentaryRecord) int {
		for _, k := range keys {
			c := k.compare(a, b)
			if c == 0 {
				continue
			}
			if k.desc {
				return -c
			}
			return c
		}
		return 0
	}
}
