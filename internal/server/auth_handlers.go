package server

import (
	"net/http"

	"github.com/jvanloon/google-actions-proxy/internal/logger"
)

// authStartHandler redirects the browser to the Google consent screen.
func (s *Server) authStartHandler(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.flow.ConsentURL(), http.StatusFound)
}

// authCallbackHandler completes the authorization-code exchange. Google
// redirects here, so the route carries no API-key guard.
func (s *Server) authCallbackHandler(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "code required")
		return
	}

	if _, err := s.flow.ExchangeCode(r.Context(), code); err != nil {
		logger.Get().Error().Err(err).Msg("Authorization code exchange failed")
		writeError(w, http.StatusBadRequest, "code exchange failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"message": "Google account linked. Try /gmail/unread, /calendar/events or /contacts/list.",
	})
}
