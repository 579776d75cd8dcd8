package web

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/cpleditor/internal/core"
)

// handleSetFilter sets one column filter from the editor's filter row.
func (s *Server) handleSetFilter(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.SetFilter(r.FormValue("field"), r.FormValue("term")); err != nil {
		s.fail(w, r, sess, err, "/editor")
		return
	}
	s.done(w, r, sess, http.StatusOK)
}

func (s *Server) handleResetFilters(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.ResetFilters()
	s.done(w, r, sess, http.StatusOK)
}

// handleToggleSort cycles a column through ascending, descending and
// unsorted. Other sorted columns keep their priority.
func (s *Server) handleToggleSort(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.ToggleSort(r.FormValue("field")); err != nil {
		s.fail(w, r, sess, err, "/editor")
		return
	}
	s.done(w, r, sess, http.StatusOK)
}

func (s *Server) handleResetSorting(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.SetSorting(nil); err != nil {
		s.fail(w, r, sess, err, "/editor")
		return
	}
	s.done(w, r, sess, http.StatusOK)
}

// handleSetPage selects a page and page size.
func (s *Server) handleSetPage(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := s.session(w, r)
	if !ok {
		return
	}

	p, err := formPagination(r, sess.Pagination())
	if err == nil {
		err = sess.SetPagination(p)
	}
	if err != nil {
		s.fail(w, r, sess, err, "/editor")
		return
	}
	s.done(w, r, sess, http.StatusOK)
}

// formPagination reads pageIndex and pageSize, keeping current values for
// fields the form left out.
func formPagination(r *http.Request, current core.PaginationState) (core.PaginationState, error) {
	p := current
	if raw := r.FormValue("pageIndex"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return p, fmt.Errorf("%w: page index %q", core.ErrInvalidPagination, raw)
		}
		p.PageIndex = v
	}
	if raw := r.FormValue("pageSize"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return p, fmt.Errorf("%w: page size %q", core.ErrInvalidPagination, raw)
		}
		p.PageSize = v
	}
	return p, nil
}
