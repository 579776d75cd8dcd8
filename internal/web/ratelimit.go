package web

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

var errRateLimited = errors.New("rate limit exceeded")

// rateLimit returns middleware allowing limit requests per minute per
// client IP. The client IP is RemoteAddr as rewritten by TrustedRealIP.
func (s *Server) rateLimit(limit int) func(http.Handler) http.Handler {
	instance := limiter.New(memory.NewStore(), limiter.Rate{
		Period: time.Minute,
		Limit:  int64(limit),
	})

	mw := stdlib.NewMiddleware(instance,
		stdlib.WithKeyGetter(clientIP),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			s.metrics.rateLimited.WithLabelValues(routePattern(r)).Inc()
			w.Header().Set("Retry-After", "60")
			s.respondError(w, r, errRateLimited, http.StatusTooManyRequests)
		}),
		stdlib.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			s.respondError(w, r, err, http.StatusInternalServerError)
		}),
	)
	return mw.Handler
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
