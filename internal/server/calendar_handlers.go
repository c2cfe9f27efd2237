package server

import (
	"net/http"
	"net/url"
)

// calendarEventsHandler lists upcoming events on the primary calendar.
func (s *Server) calendarEventsHandler(w http.ResponseWriter, r *http.Request) {
	params := url.Values{}
	for _, key := range []string{"timeMin", "timeMax", "maxResults"} {
		if v := r.URL.Query().Get(key); v != "" {
			params.Set(key, v)
		}
	}
	res, err := s.google.ListEvents(r.Context(), params)
	s.relay(w, res, err)
}

// calendarCreateHandler creates an event on the primary calendar.
func (s *Server) calendarCreateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		Summary   string   `json:"summary"`
		Start     string   `json:"start"`
		End       string   `json:"end"`
		Attendees []string `json:"attendees"`
	}
	decodeBody(r, &body)
	if body.Summary == "" || body.Start == "" || body.End == "" {
		writeError(w, http.StatusBadRequest, "summary, start, end required")
		return
	}

	res, err := s.google.CreateEvent(r.Context(), body.Summary, body.Start, body.End, body.Attendees)
	s.relay(w, res, err)
}
