package core

import (
	"errors"
	"fmt"
)

// DefaultPageSize is the page size of a fresh or cleared session.
const DefaultPageSize = 50

// ErrInvalidPagination is returned for a negative page index or a
// non-positive page size.
var ErrInvalidPagination = errors.New("invalid pagination")

// PaginationState selects one page of the projection.
type PaginationState struct {
	PageIndex int `json:"pageIndex"`
	PageSize  int `json:"pageSize"`
}

// DefaultPagination returns {0, DefaultPageSize}.
func DefaultPagination() PaginationState {
	return PaginationState{PageIndex: 0, PageSize: DefaultPageSize}
}

func (p PaginationState) validate() error {
	if p.PageIndex < 0 {
		return fmt.Errorf("%w: page index %d is negative", ErrInvalidPagination, p.PageIndex)
	}
	if p.PageSize <= 0 {
		return fmt.Errorf("%w: page size %d must be positive", ErrInvalidPagination, p.PageSize)
	}
	return nil
}

// Page is one slice of the projection.
type Page struct {
	Items     []CommentaryRecord `json:"items"`
	PageIndex int                `json:"pageIndex"`
	PageSize  int                `json:"pageSize"`
	PageCount int                `json:"pageCount"`
	Total     int                `json:"total"` // records after filtering, before slicing
}

// HasPrev reports whether a page precedes this one.
func (p Page) HasPrev() bool {
	return p.PageIndex > 0
}

// HasNext reports whether a page follows this one.
func (p Page) HasNext() bool {
	return p.PageIndex < p.PageCount-1
}

// Paginate slices list according to state. An out-of-range page yields no
// items rather than an error. Items is a copy; list is not retained.
func Paginate(list []CommentaryRecord, state PaginationState) Page {
	page := Page{
		PageIndex: state.PageIndex,
		PageSize:  state.PageSize,
		Total:     len(list),
		Items:     []CommentaryRecord{},
	}
	if state.PageSize <= 0 {
		return page
	}

	page.PageCount = len(list) / state.PageSize
	if len(list)%state.PageSize != 0 {
		page.PageCount++
	}

	// Bounds are checked before multiplying so huge indexes cannot wrap.
	if state.PageIndex < 0 || state.PageIndex >= page.PageCount {
		return page
	}
	start := state.PageIndex * state.PageSize
	end := start + min(state.PageSize, len(list)-start)

	page.Items = append(page.Items, list[start:end]...)
	return page
}
