package web

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/JonMunkholm/cpleditor/internal/codec"
	"github.com/JonMunkholm/cpleditor/internal/core"
)

// maxJSONBody bounds API request bodies.
const maxJSONBody = 1 << 20

type presetResponse struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

type recordsResponse struct {
	Records []core.CommentaryRecord `json:"records"`
	Total   int                     `json:"total"`
}

func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	presets := codec.Presets()
	out := make([]presetResponse, len(presets))
	for i, p := range presets {
		out[i] = presetResponse{Key: p.Key, Label: p.Label}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListFields(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, core.Fields())
}

func (s *Server) handleLoadStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.loads.Status())
}

func (s *Server) handleAPIState(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.State())
}

func (s *Server) handleAPIView(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

// handleAPIRecords returns the whole projection, unpaginated.
func (s *Server) handleAPIRecords(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := s.session(w, r)
	if !ok {
		return
	}
	if !sess.State().IsLoaded() {
		s.respondError(w, r, core.ErrNotLoaded, statusFor(core.ErrNotLoaded))
		return
	}
	records := sess.Projection()
	writeJSON(w, http.StatusOK, recordsResponse{Records: records, Total: len(records)})
}

func (s *Server) handleAPIHistory(w http.ResponseWriter, r *http.Request) {
	sess, ctx, ok := s.session(w, r)
	if !ok {
		return
	}
	_, q := parseHistoryQuery(r, sess.ID())
	result, err := s.audit.List(ctx, q)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAPICreateRecord(w http.ResponseWriter, r *http.Request) {
	sess, ctx, ok := s.session(w, r)
	if !ok {
		return
	}

	var in core.UpsertInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	err := sess.Create(ctx, in)
	s.metrics.observeMutation(core.ActionCreate, err)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusCreated, sess.State())
}

func (s *Server) handleAPIUpdateRecord(w http.ResponseWriter, r *http.Request) {
	sess, ctx, ok := s.session(w, r)
	if !ok {
		return
	}

	id, err := urlCommentaryID(r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	var body struct {
		PlayerName string `json:"playerName"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	err = sess.Update(ctx, core.UpsertInput{CommentaryID: id, PlayerName: body.PlayerName})
	s.metrics.observeMutation(core.ActionUpdate, err)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, sess.State())
}

func (s *Server) handleAPIDeleteRecord(w http.ResponseWriter, r *http.Request) {
	sess, ctx, ok := s.session(w, r)
	if !ok {
		return
	}

	id, err := urlCommentaryID(r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	err = sess.Delete(ctx, id)
	s.metrics.observeMutation(core.ActionDelete, err)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, sess.State())
}

func (s *Server) handleAPISetFilters(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := s.session(w, r)
	if !ok {
		return
	}
	var filters core.FilterSpec
	if err := decodeJSON(w, r, &filters); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	if err := sess.SetFilters(filters); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

func (s *Server) handleAPISetSorting(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := s.session(w, r)
	if !ok {
		return
	}
	var sorting core.SortSpec
	if err := decodeJSON(w, r, &sorting); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	if err := sess.SetSorting(sorting); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

func (s *Server) handleAPISetPagination(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := s.session(w, r)
	if !ok {
		return
	}
	var p core.PaginationState
	if err := decodeJSON(w, r, &p); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	if err := sess.SetPagination(p); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

// decodeJSON reads a bounded JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}
