package web

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/cpleditor/internal/codec"
	"github.com/JonMunkholm/cpleditor/internal/core"
	"github.com/JonMunkholm/cpleditor/internal/web/templates"
	"github.com/go-chi/chi/v5"
)

// handleCreateRecord adds a player from the editor form.
func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	sess, ctx, ok := s.session(w, r)
	if !ok {
		return
	}

	id, err := formCommentaryID(r.FormValue("commentaryId"))
	if err != nil {
		s.fail(w, r, sess, err, "/editor")
		return
	}
	in := core.UpsertInput{CommentaryID: id, PlayerName: strings.TrimSpace(r.FormValue("playerName"))}

	err = sess.Create(ctx, in)
	s.metrics.observeMutation(core.ActionCreate, err)
	if err != nil {
		s.fail(w, r, sess, err, "/editor")
		return
	}
	s.sessions.AddFlash(sess.ID(), templates.Flash{Kind: "info", Message: fmt.Sprintf("Added %s as commentary id %d.", in.PlayerName, id)})
	http.Redirect(w, r, "/editor", http.StatusSeeOther)
}

// handleUpdateRecord renames the player stored under {id}.
func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	sess, ctx, ok := s.session(w, r)
	if !ok {
		return
	}

	id, err := urlCommentaryID(r)
	if err != nil {
		s.fail(w, r, sess, err, "/editor")
		return
	}

	err = sess.Update(ctx, core.UpsertInput{CommentaryID: id, PlayerName: strings.TrimSpace(r.FormValue("playerName"))})
	s.metrics.observeMutation(core.ActionUpdate, err)
	if err != nil {
		s.fail(w, r, sess, err, "/editor")
		return
	}
	http.Redirect(w, r, "/editor", http.StatusSeeOther)
}

// handleDeleteRecord removes the player stored under {id}.
func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	sess, ctx, ok := s.session(w, r)
	if !ok {
		return
	}

	id, err := urlCommentaryID(r)
	if err != nil {
		s.fail(w, r, sess, err, "/editor")
		return
	}

	err = sess.Delete(ctx, id)
	s.metrics.observeMutation(core.ActionDelete, err)
	if err != nil {
		s.fail(w, r, sess, err, "/editor")
		return
	}
	s.sessions.AddFlash(sess.ID(), templates.Flash{Kind: "info", Message: fmt.Sprintf("Deleted commentary id %d.", id)})
	http.Redirect(w, r, "/editor", http.StatusSeeOther)
}

// formCommentaryID parses the id typed into the create form. A non-number
// is reported like any other rule violation.
func formCommentaryID(raw string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, &core.ValidationError{Fields: []core.FieldError{{
			Field:   "commentaryId",
			Message: "Commentary id must be a whole number.",
		}}}
	}
	return id, nil
}

// urlCommentaryID parses {id}. An id that is not a number cannot name a
// record, so it is reported as not found.
func urlCommentaryID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", codec.ErrNotFound, raw)
	}
	return id, nil
}
