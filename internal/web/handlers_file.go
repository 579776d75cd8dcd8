package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/JonMunkholm/cpleditor/internal/codec"
	"github.com/JonMunkholm/cpleditor/internal/core"
	"github.com/JonMunkholm/cpleditor/internal/logging"
	"github.com/JonMunkholm/cpleditor/internal/web/templates"
)

// multipartOverhead allows for form fields and part headers on top of the
// file itself.
const multipartOverhead = 1 << 20

// handleLoad decodes an uploaded file with the selected preset and opens it
// in the caller's session.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	sess, ctx, ok := s.session(w, r)
	if !ok {
		return
	}

	fileName, data, err := s.readUpload(w, r)
	if err != nil {
		s.fail(w, r, sess, err, "/")
		return
	}

	key := r.FormValue("preset")
	if key == "" {
		key = s.cfg.Upload.DefaultPreset
	}
	preset, err := codec.Resolve(key)
	if err != nil {
		s.fail(w, r, sess, err, "/")
		return
	}

	logger := logging.WithFields(ctx, "file", fileName, "preset", preset.Key, "bytes", len(data))

	release, err := s.loads.Acquire(ctx, core.LoadInfo{
		SessionID: sess.ID(),
		Preset:    preset.Key,
		FileName:  fileName,
		Bytes:     len(data),
	})
	if err != nil {
		s.metrics.observeLoad(preset.Key, err)
		logger.Warn("no decode slot available", "in_flight", s.loads.InFlight())
		s.fail(w, r, sess, err, "/")
		return
	}
	defer release()

	loadCtx, cancel := context.WithTimeout(ctx, s.cfg.Upload.Timeout)
	defer cancel()

	err = sess.Load(loadCtx, fileName, data, preset)
	s.metrics.observeLoad(preset.Key, err)
	if err != nil {
		s.fail(w, r, sess, err, "/")
		return
	}

	logger.Debug("load request complete")
	s.done(w, r, sess, http.StatusOK)
}

// readUpload extracts the "file" part of a multipart upload.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	limit := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return "", nil, fmt.Errorf("%w: limit is %d bytes", errFileTooLarge, limit)
		}
		return "", nil, fmt.Errorf("%w: %v", errNoFile, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, errNoFile
	}
	defer file.Close()

	if header.Size > limit {
		return "", nil, fmt.Errorf("%w: %d bytes, limit is %d", errFileTooLarge, header.Size, limit)
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	return filepath.Base(header.Filename), data, nil
}

// handleSave sends the serialized file back as a download under its
// original name.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	sess, ctx, ok := s.session(w, r)
	if !ok {
		return
	}

	exp := &downloadExporter{w: w}
	saved, err := sess.Save(ctx, exp)
	s.metrics.observeSave(err)
	if err != nil {
		if exp.triggered {
			// The download has started; the status line is already sent.
			logError(r, err, http.StatusOK, core.MapError(err).Code)
			return
		}
		s.fail(w, r, sess, err, "/editor")
		return
	}
	if !saved {
		s.fail(w, r, sess, core.ErrNotLoaded, "/")
	}
}

// handleClose closes the open file. Unsaved changes are only discarded
// when the request carries confirm=yes.
func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	sess, ctx, ok := s.session(w, r)
	if !ok {
		return
	}

	st, err := sess.ClearIfSaved(ctx, r.FormValue("confirm") == "yes")
	if errors.Is(err, core.ErrUnsavedChanges) {
		if wantsJSON(r) || isHTMX(r) {
			s.respondError(w, r, err, statusFor(err))
			return
		}
		render(ctx, w, r, templates.ConfirmClosePage(templates.ConfirmCloseParams{FileName: st.FileName}))
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, sess.State())
		return
	}
	if st.IsLoaded() {
		s.sessions.AddFlash(sess.ID(), templates.Flash{Kind: "info", Message: st.FileName + " closed."})
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// done finishes a successful state change: API clients get the new view,
// browsers are redirected to the editor.
func (s *Server) done(w http.ResponseWriter, r *http.Request, sess *core.Session, status int) {
	if wantsJSON(r) {
		writeJSON(w, status, sess.View())
		return
	}
	http.Redirect(w, r, "/editor", http.StatusSeeOther)
}

// downloadExporter delivers an export as the HTTP response body.
type downloadExporter struct {
	w         http.ResponseWriter
	triggered bool
}

func (e *downloadExporter) Acquire(fileName string) (core.ExportHandle, error) {
	return &downloadHandle{exp: e, name: fileName}, nil
}

// downloadHandle buffers the export so headers can carry its length.
type downloadHandle struct {
	exp  *downloadExporter
	name string
	buf  bytes.Buffer
}

func (h *downloadHandle) Write(p []byte) (int, error) {
	return h.buf.Write(p)
}

func (h *downloadHandle) Trigger() error {
	header := h.exp.w.Header()
	header.Set("Content-Type", "application/octet-stream")
	header.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": h.name}))
	header.Set("Content-Length", strconv.Itoa(h.buf.Len()))
	header.Set("Cache-Control", "no-store")

	h.exp.triggered = true
	h.exp.w.WriteHeader(http.StatusOK)
	_, err := h.buf.WriteTo(h.exp.w)
	return err
}

func (h *downloadHandle) Release() error {
	h.buf.Reset()
	return nil
}
