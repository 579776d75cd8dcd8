package web

// sessions.go maps browser cookies to editor sessions.
//
// Each browser gets one core.Session, created on first contact and evicted
// after SessionConfig.IdleTimeout without a request. A session's open file
// lives only in memory, so eviction discards unsaved edits; the janitor
// logs when that happens.

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/JonMunkholm/cpleditor/internal/config"
	"github.com/JonMunkholm/cpleditor/internal/core"
	"github.com/JonMunkholm/cpleditor/internal/web/templates"
	"github.com/google/uuid"
)

// ErrTooManySessions is returned when MaxSessions browsers already hold a
// session.
var ErrTooManySessions = errors.New("too many active sessions")

type sessionEntry struct {
	session  *core.Session
	lastSeen time.Time
	flashes  []templates.Flash
}

// SessionRegistry owns every live editor session.
type SessionRegistry struct {
	cfg   config.SessionConfig
	audit core.AuditSink
	now   func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

// NewSessionRegistry creates an empty registry. sink may be nil.
func NewSessionRegistry(cfg config.SessionConfig, sink core.AuditSink) *SessionRegistry {
	return &SessionRegistry{
		cfg:      cfg,
		audit:    sink,
		now:      time.Now,
		sessions: make(map[string]*sessionEntry),
	}
}

// Get returns the caller's session, creating one and setting the cookie
// when the request carries no known session id.
func (sr *SessionRegistry) Get(w http.ResponseWriter, r *http.Request) (*core.Session, error) {
	if c, err := r.Cookie(sr.cfg.CookieName); err == nil {
		if sess := sr.touch(c.Value); sess != nil {
			return sess, nil
		}
	}

	sr.mu.Lock()
	defer sr.mu.Unlock()

	if sr.cfg.MaxSessions > 0 && len(sr.sessions) >= sr.cfg.MaxSessions {
		return nil, ErrTooManySessions
	}

	id := uuid.NewString()
	sess, err := core.NewSession(core.Options{
		ID:            id,
		PageSize:      sr.cfg.PageSize,
		ViewCacheSize: sr.cfg.ViewCacheSize,
		Audit:         sr.audit,
		Logger:        slog.Default().With("session_id", id),
	})
	if err != nil {
		return nil, err
	}
	sr.sessions[id] = &sessionEntry{session: sess, lastSeen: sr.now()}

	http.SetCookie(w, &http.Cookie{
		Name:     sr.cfg.CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   sr.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return sess, nil
}

// Lookup returns the session for id without creating one.
func (sr *SessionRegistry) Lookup(id string) (*core.Session, bool) {
	sess := sr.touch(id)
	return sess, sess != nil
}

func (sr *SessionRegistry) touch(id string) *core.Session {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	e, ok := sr.sessions[id]
	if !ok {
		return nil
	}
	e.lastSeen = sr.now()
	return e.session
}

// AddFlash queues a message for the next page rendered for session id.
func (sr *SessionRegistry) AddFlash(id string, f templates.Flash) {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	if e, ok := sr.sessions[id]; ok {
		e.flashes = append(e.flashes, f)
	}
}

// TakeFlashes returns and clears the queued messages for session id.
func (sr *SessionRegistry) TakeFlashes(id string) []templates.Flash {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	e, ok := sr.sessions[id]
	if !ok {
		return nil
	}
	out := e.flashes
	e.flashes = nil
	return out
}

// Count returns the number of live sessions.
func (sr *SessionRegistry) Count() int {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	return len(sr.sessions)
}

// UnsavedCount returns the number of sessions holding unsaved edits.
func (sr *SessionRegistry) UnsavedCount() int {
	sr.mu.Lock()
	sessions := make([]*core.Session, 0, len(sr.sessions))
	for _, e := range sr.sessions {
		sessions = append(sessions, e.session)
	}
	sr.mu.Unlock()

	n := 0
	for _, sess := range sessions {
		if sess.HasUnsavedChanges() {
			n++
		}
	}
	return n
}

// Sweep evicts sessions idle for longer than IdleTimeout and returns how
// many were removed. Evicted sessions are cleared so any load in flight is
// cancelled.
func (sr *SessionRegistry) Sweep(ctx context.Context) int {
	cutoff := sr.now().Add(-sr.cfg.IdleTimeout)

	sr.mu.Lock()
	var idle []*core.Session
	for id, e := range sr.sessions {
		if e.lastSeen.Before(cutoff) {
			idle = append(idle, e.session)
			delete(sr.sessions, id)
		}
	}
	sr.mu.Unlock()

	for _, sess := range idle {
		if sess.HasUnsavedChanges() {
			slog.Warn("evicting idle session with unsaved changes",
				"session_id", sess.ID(),
				"file", sess.State().FileName,
			)
		}
		sess.Clear(ctx)
	}
	return len(idle)
}

// RunJanitor sweeps idle sessions every JanitorInterval until ctx is
// cancelled.
func (sr *SessionRegistry) RunJanitor(ctx context.Context) {
	interval := sr.cfg.JanitorInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sr.Sweep(ctx); n > 0 {
				slog.Info("evicted idle sessions", "count", n)
			}
		}
	}
}
