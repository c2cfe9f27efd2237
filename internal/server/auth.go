package server

import (
	"crypto/subtle"
	"net/http"

	"github.com/jvanloon/google-actions-proxy/internal/logger"
)

// requireAPIKey guards a handler with the caller shared secret from the
// x-api-key header. With no secret configured the gateway runs in the
// explicitly-enabled open mode and the guard passes everything through.
func (s *Server) requireAPIKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIKey == "" {
			next(w, r)
			return
		}

		given := r.Header.Get("x-api-key")
		if subtle.ConstantTimeCompare([]byte(given), []byte(s.cfg.APIKey)) != 1 {
			logger.Get().Warn().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Msg("Rejected request with missing or invalid API key")
			writeError(w, http.StatusForbidden, "Forbidden")
			return
		}

		next(w, r)
	}
}
