// Package web provides the HTTP server and handlers for the commentary
// player list editor.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/JonMunkholm/cpleditor/internal/audit"
	"github.com/JonMunkholm/cpleditor/internal/config"
	"github.com/JonMunkholm/cpleditor/internal/core"
	webmw "github.com/JonMunkholm/cpleditor/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP server for the editor.
type Server struct {
	cfg      *config.Config
	sessions *SessionRegistry
	audit    audit.Store
	loads    *core.LoadLimiter
	metrics  *Metrics
	router   *chi.Mux
	server   *http.Server
}

// NewServer creates a Server writing audit entries to store.
func NewServer(cfg *config.Config, store audit.Store) *Server {
	s := &Server{
		cfg:      cfg,
		sessions: NewSessionRegistry(cfg.Session, store),
		audit:    store,
		loads:    core.NewLoadLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		router:   chi.NewRouter(),
	}
	s.metrics = NewMetrics(s.sessions, s.loads)
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(webmw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(webmw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.metrics.Middleware)
	s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(s.securityHeaders)

	if s.cfg.Rate.Enabled {
		s.router.Use(s.rateLimit(s.cfg.Rate.RequestsPerMinute))
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", s.metrics.Handler())

	// Pages
	s.router.Get("/", s.handleIndex)
	s.router.Get("/editor", s.handleEditor)
	s.router.Get("/history", s.handleHistory)
	s.router.Get("/history.csv", s.handleHistoryExport)

	// File lifecycle
	s.router.With(s.loadRateLimit()).Post("/load", s.handleLoad)
	s.router.Post("/save", s.handleSave)
	s.router.Post("/close", s.handleClose)

	// Record mutations
	s.router.Post("/records", s.handleCreateRecord)
	s.router.Post("/records/{id}", s.handleUpdateRecord)
	s.router.Post("/records/{id}/delete", s.handleDeleteRecord)

	// View state
	s.router.Post("/view/filter", s.handleSetFilter)
	s.router.Post("/view/filters/reset", s.handleResetFilters)
	s.router.Post("/view/sort", s.handleToggleSort)
	s.router.Post("/view/sort/reset", s.handleResetSorting)
	s.router.Post("/view/page", s.handleSetPage)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(webmw.APIKeyAuth(&s.cfg.Security))

		r.Get("/presets", s.handleListPresets)
		r.Get("/fields", s.handleListFields)
		r.Get("/state", s.handleAPIState)
		r.Get("/view", s.handleAPIView)
		r.Get("/history", s.handleAPIHistory)
		r.Get("/loads", s.handleLoadStatus)

		r.With(s.loadRateLimit()).Post("/load", s.handleLoad)
		r.Post("/save", s.handleSave)
		r.Post("/close", s.handleClose)

		r.Get("/records", s.handleAPIRecords)
		r.Post("/records", s.handleAPICreateRecord)
		r.Put("/records/{id}", s.handleAPIUpdateRecord)
		r.Delete("/records/{id}", s.handleAPIDeleteRecord)

		r.Put("/view/filters", s.handleAPISetFilters)
		r.Put("/view/sorting", s.handleAPISetSorting)
		r.Put("/view/pagination", s.handleAPISetPagination)
	})
}

func (s *Server) loadRateLimit() func(http.Handler) http.Handler {
	if !s.cfg.Rate.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return s.rateLimit(s.cfg.Rate.UploadLimit)
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests, then waits for decodes in flight.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return err
		}
	}
	for _, load := range s.loads.Status().Loads {
		slog.Info("waiting for file load", "file", load.FileName, "preset", load.Preset, "running", time.Since(load.Started))
	}
	return s.loads.Drain(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Sessions returns the session registry.
func (s *Server) Sessions() *SessionRegistry {
	return s.sessions
}

// securityHeaders adds security headers to all responses.
func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		// Pages carry their CSS inline and one inline submit handler.
		if s.cfg.Security.EnableCSP {
			w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data:")
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
