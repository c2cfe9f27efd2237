package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jvanloon/google-actions-proxy/internal/credentials"
	"github.com/jvanloon/google-actions-proxy/internal/google"
	"github.com/jvanloon/google-actions-proxy/internal/logger"
)

const needAuthMessage = "Not authorized. Open /auth/start first."

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Get().Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// relay forwards an upstream result to the caller verbatim, or maps a proxy
// error onto the gateway's error taxonomy.
func (s *Server) relay(w http.ResponseWriter, res *google.Result, err error) {
	if err != nil {
		switch {
		case errors.Is(err, credentials.ErrNotAuthorized):
			writeError(w, http.StatusUnauthorized, needAuthMessage)
		case errors.Is(err, credentials.ErrStorage):
			logger.Get().Error().Err(err).Msg("Credential storage failure")
			writeError(w, http.StatusInternalServerError, "credential storage failure")
		default:
			logger.Get().Error().Err(err).Msg("Upstream request failed")
			writeError(w, http.StatusBadGateway, "upstream request failed")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(res.Status)
	if _, err := w.Write(res.Body); err != nil {
		logger.Get().Error().Err(err).Msg("Failed to write relayed response")
	}
}

// decodeBody decodes a JSON request body into v. A missing or malformed body
// leaves v zero-valued, matching the lenient behaviour callers expect; field
// validation happens in the handlers.
func decodeBody(r *http.Request, v interface{}) {
	if r.Body == nil {
		return
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		logger.Get().Debug().Err(err).Msg("Ignoring malformed request body")
	}
}
