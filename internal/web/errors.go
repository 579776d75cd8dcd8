package web

// errors.go provides unified error response handling for the web layer.
//
// It ensures all errors are:
//   - Logged with full technical details for debugging (server-side)
//   - Returned to clients as user-friendly messages with action suggestions
//   - Formatted appropriately based on request type (HTMX, JSON, form or page)
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls s.fail (form posts) or s.respondError (everything else)
//  3. Error is mapped via core.MapError to get user-friendly message
//  4. Technical error + context is logged with request ID for correlation
//  5. User message is rendered in appropriate format for the client

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/cpleditor/internal/codec"
	"github.com/JonMunkholm/cpleditor/internal/core"
	"github.com/JonMunkholm/cpleditor/internal/web/templates"
	"github.com/go-chi/chi/v5/middleware"
)

var (
	errFileTooLarge = errors.New("file too large")
	errNoFile       = errors.New("no file provided")
	errBadRequest   = errors.New("invalid request body")
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Action  string            `json:"action,omitempty"`
	Code    string            `json:"code"`
	Fields  []core.FieldError `json:"fields,omitempty"`
}

// statusFor picks the HTTP status for an error returned by the session.
func statusFor(err error) int {
	var verr *core.ValidationError
	var derr *codec.DecodeError
	switch {
	case errors.As(err, &verr), errors.As(err, &derr), errors.Is(err, codec.ErrFieldTooLong):
		return http.StatusUnprocessableEntity
	case errors.Is(err, codec.ErrDuplicateIdentifier),
		errors.Is(err, core.ErrNotLoaded),
		errors.Is(err, core.ErrLoadSuperseded),
		errors.Is(err, core.ErrUnsavedChanges):
		return http.StatusConflict
	case errors.Is(err, codec.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrUnknownField),
		errors.Is(err, core.ErrInvalidPagination),
		errors.Is(err, errNoFile),
		errors.Is(err, errBadRequest),
		errors.Is(err, codec.ErrUnknownPreset):
		return http.StatusBadRequest
	case errors.Is(err, errFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrTooManyLoads), errors.Is(err, ErrTooManySessions):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError handles error responses with user-friendly messages.
// It logs the technical error server-side and returns an appropriate response
// based on the request type (HTMX, JSON, or HTML).
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := core.MapError(err)
	logError(r, err, statusCode, userMsg.Code)

	if isHTMX(r) {
		renderErrorPartial(w, r, userMsg, statusCode)
	} else if wantsJSON(r) {
		resp := ErrorResponse{
			Error:   userMsg.Message,
			Message: userMsg.Message,
			Action:  userMsg.Action,
			Code:    userMsg.Code,
		}
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			resp.Fields = verr.Fields
		}
		writeJSON(w, statusCode, resp)
	} else {
		respondErrorHTML(w, userMsg, statusCode)
	}
}

// fail reports a failed form post. Browsers get the message as a flash on
// the page at redirect; API and HTMX clients get respondError.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, sess *core.Session, err error, redirect string) {
	if sess == nil || isHTMX(r) || wantsJSON(r) {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	userMsg := core.MapError(err)
	logError(r, err, http.StatusSeeOther, userMsg.Code)

	flash := templates.Flash{Kind: "error", Message: userMsg.Message, Action: userMsg.Action, Code: userMsg.Code}
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		flash.Message = verr.Message()
	}
	s.sessions.AddFlash(sess.ID(), flash)
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}

func logError(r *http.Request, err error, statusCode int, code string) {
	level := slog.LevelWarn
	if statusCode >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	slog.Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", code,
		"request_id", middleware.GetReqID(r.Context()),
	)
}

// respondErrorHTML writes a full error page.
func respondErrorHTML(w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	_ = templates.ErrorPage(msg.Message, msg.Action, msg.Code).Render(context.Background(), w)
}

// renderErrorPartial renders an HTMX-compatible error fragment.
func renderErrorPartial(w http.ResponseWriter, r *http.Request, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	_ = templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w)
}

// isHTMX checks if the request is an HTMX request.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON checks if the client prefers JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	// API routes default to JSON
	return strings.HasPrefix(r.URL.Path, "/api/")
}
