package server

import (
	"net/http"
)

// contactsListHandler lists "other contacts".
func (s *Server) contactsListHandler(w http.ResponseWriter, r *http.Request) {
	limit := queryOrDefault(r, "limit", "50")
	res, err := s.google.ListOtherContacts(r.Context(), limit)
	s.relay(w, res, err)
}

// contactsSearchHandler searches contacts by free-text query.
func (s *Server) contactsSearchHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "q required")
		return
	}
	limit := queryOrDefault(r, "limit", "25")
	res, err := s.google.SearchOtherContacts(r.Context(), q, limit)
	s.relay(w, res, err)
}

// contactsGetHandler fetches one contact by resource name.
func (s *Server) contactsGetHandler(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id required")
		return
	}
	res, err := s.google.GetContact(r.Context(), id)
	s.relay(w, res, err)
}
