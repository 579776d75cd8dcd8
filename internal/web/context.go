package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/cpleditor/internal/core"
	"github.com/JonMunkholm/cpleditor/internal/logging"
)

// WithRequestMetadata adds IP and User-Agent to context for audit logging.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ip := clientIP(r) // RemoteAddr already rewritten by TrustedRealIP
	ctx = core.ContextWithIPAddress(ctx, ip)
	ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
	return ctx
}

// session resolves the caller's editor session and returns a context
// carrying the request metadata and session id. On failure the error
// response has been written and ok is false.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (sess *core.Session, ctx context.Context, ok bool) {
	sess, err := s.sessions.Get(w, r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return nil, nil, false
	}
	ctx = WithRequestMetadata(r.Context(), r)
	ctx = logging.ContextWithSessionID(ctx, sess.ID())
	return sess, ctx, true
}
