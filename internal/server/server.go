package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jvanloon/google-actions-proxy/internal/config"
	"github.com/jvanloon/google-actions-proxy/internal/credentials"
	"github.com/jvanloon/google-actions-proxy/internal/google"
	"github.com/jvanloon/google-actions-proxy/internal/logger"
)

// endpoints is the list reported by the index handler.
var endpoints = []string{
	"/auth/start",
	"/gmail/unread",
	"/gmail/message",
	"/gmail/send",
	"/gmail/unread_detail",
	"/gmail/reply",
	"/gmail/mark_read",
	"/gmail/archive",
	"/calendar/events",
	"/calendar/create",
	"/contacts/list",
	"/contacts/search",
	"/contacts/get",
}

// Server is the gateway's HTTP surface. Handlers hold no credential state of
// their own; everything flows through the injected flow and upstream client.
type Server struct {
	cfg     *config.Config
	flow    *credentials.Flow
	google  *google.Client
	mux     *http.ServeMux
	handler http.Handler
}

// NewServer wires routes for the given configuration and collaborators.
func NewServer(cfg *config.Config, flow *credentials.Flow, gclient *google.Client) *Server {
	s := &Server{
		cfg:    cfg,
		flow:   flow,
		google: gclient,
		mux:    http.NewServeMux(),
	}
	s.setupRoutes()
	s.handler = s.loggingMiddleware(s.mux)
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/", s.indexHandler)
	s.mux.Handle("/metrics", promhttp.Handler())

	s.mux.HandleFunc("/auth/start", s.requireAPIKey(s.authStartHandler))
	s.mux.HandleFunc("/auth/callback", s.authCallbackHandler)

	s.mux.HandleFunc("/gmail/unread", s.requireAPIKey(s.gmailUnreadHandler))
	s.mux.HandleFunc("/gmail/message", s.requireAPIKey(s.gmailMessageHandler))
	s.mux.HandleFunc("/gmail/send", s.requireAPIKey(s.gmailSendHandler))
	s.mux.HandleFunc("/gmail/unread_detail", s.requireAPIKey(s.gmailUnreadDetailHandler))
	s.mux.HandleFunc("/gmail/reply", s.requireAPIKey(s.gmailReplyHandler))
	s.mux.HandleFunc("/gmail/mark_read", s.requireAPIKey(s.gmailMarkReadHandler))
	s.mux.HandleFunc("/gmail/archive", s.requireAPIKey(s.gmailArchiveHandler))

	s.mux.HandleFunc("/calendar/events", s.requireAPIKey(s.calendarEventsHandler))
	s.mux.HandleFunc("/calendar/create", s.requireAPIKey(s.calendarCreateHandler))

	s.mux.HandleFunc("/contacts/list", s.requireAPIKey(s.contactsListHandler))
	s.mux.HandleFunc("/contacts/search", s.requireAPIKey(s.contactsSearchHandler))
	s.mux.HandleFunc("/contacts/get", s.requireAPIKey(s.contactsGetHandler))
}

// ServeHTTP implements http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Start launches the gateway on the given address.
func (s *Server) Start(addr string) error {
	if s.cfg.APIKey == "" {
		logger.Get().Warn().Msg("INSECURE_OPEN_ACCESS enabled: no caller API key is required")
	}
	logger.Get().Info().Str("addr", addr).Msg("Starting gateway")
	return http.ListenAndServe(addr, s.handler)
}

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	// "/" is the mux catch-all; anything unrouted lands here.
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":        true,
		"endpoints": endpoints,
	})
}
