package web

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/cpleditor/internal/audit"
	"github.com/JonMunkholm/cpleditor/internal/codec"
	"github.com/JonMunkholm/cpleditor/internal/core"
	"github.com/JonMunkholm/cpleditor/internal/web/templates"
	"github.com/a-h/templ"
)

// handleIndex shows the upload form, or the editor when a file is open.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess, ctx, ok := s.session(w, r)
	if !ok {
		return
	}
	if sess.State().IsLoaded() {
		http.Redirect(w, r, "/editor", http.StatusSeeOther)
		return
	}

	presets := codec.Presets()
	options := make([]templates.PresetOption, len(presets))
	for i, p := range presets {
		options[i] = templates.PresetOption{
			Key:      p.Key,
			Label:    p.Label,
			Selected: p.Key == s.cfg.Upload.DefaultPreset,
		}
	}

	render(ctx, w, r, templates.UploadPage(templates.UploadParams{
		Presets:     options,
		MaxFileSize: s.cfg.Upload.MaxFileSize,
		Flashes:     s.sessions.TakeFlashes(sess.ID()),
	}))
}

// handleEditor renders the current page of the open file.
func (s *Server) handleEditor(w http.ResponseWriter, r *http.Request) {
	sess, ctx, ok := s.session(w, r)
	if !ok {
		return
	}
	view := sess.View()
	if !view.State.IsLoaded() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	render(ctx, w, r, templates.EditorPage(templates.EditorParams{
		View:    view,
		Fields:  core.Fields(),
		Flashes: s.sessions.TakeFlashes(sess.ID()),
	}))
}

// handleHistory renders the audit trail with filtering and pagination.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sess, ctx, ok := s.session(w, r)
	if !ok {
		return
	}

	filter, q := parseHistoryQuery(r, sess.ID())
	result, err := s.audit.List(ctx, q)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	render(ctx, w, r, templates.HistoryPage(templates.HistoryParams{
		Filter: filter,
		Result: result,
	}))
}

// handleHistoryExport downloads every entry matching the history filter as
// CSV.
func (s *Server) handleHistoryExport(w http.ResponseWriter, r *http.Request) {
	sess, ctx, ok := s.session(w, r)
	if !ok {
		return
	}

	_, q := parseHistoryQuery(r, sess.ID())
	q.Limit = audit.MaxLimit
	q.Offset = 0

	var entries []core.AuditEntry
	for {
		page, err := s.audit.List(ctx, q)
		if err != nil {
			s.respondError(w, r, err, http.StatusInternalServerError)
			return
		}
		entries = append(entries, page.Entries...)
		if len(page.Entries) < q.Limit {
			break
		}
		q.Offset += q.Limit
	}

	filename := fmt.Sprintf("cpl_history_%s.csv", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	if err := audit.WriteCSV(w, entries); err != nil {
		// Headers are gone; only the log can see this.
		logError(r, err, http.StatusOK, core.MapError(err).Code)
	}
}

// handleHealth reports liveness plus session and decode load.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Count(),
		"loads":    s.loads.Status(),
	})
}

// parseHistoryQuery reads the history filter from the query string. The
// default scope is the caller's own session.
func parseHistoryQuery(r *http.Request, sessionID string) (templates.HistoryFilter, audit.Query) {
	params := r.URL.Query()
	filter := templates.HistoryFilter{
		Action:   params.Get("action"),
		Severity: params.Get("severity"),
		From:     params.Get("from"),
		To:       params.Get("to"),
		All:      params.Get("scope") == "all",
	}

	page := parseIntParam(r, "page", 1)
	q := audit.Query{
		Action:   core.AuditAction(filter.Action),
		Severity: core.AuditSeverity(filter.Severity),
		Limit:    audit.DefaultLimit,
		Offset:   (page - 1) * audit.DefaultLimit,
	}
	if !filter.All {
		q.SessionID = sessionID
	}
	if t, err := time.ParseInLocation(time.DateOnly, filter.From, time.Local); err == nil {
		q.Since = t
	}
	if t, err := time.ParseInLocation(time.DateOnly, filter.To, time.Local); err == nil {
		q.Until = t.AddDate(0, 0, 1)
	}
	return filter, q
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// render writes an HTML page. A failure after the first byte can only be
// logged.
func render(ctx context.Context, w http.ResponseWriter, r *http.Request, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := c.Render(ctx, w); err != nil {
		logError(r, err, http.StatusOK, core.MapError(err).Code)
	}
}
