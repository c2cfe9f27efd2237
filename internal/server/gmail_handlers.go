package server

import (
	"net/http"

	"github.com/jvanloon/google-actions-proxy/internal/google"
)

func queryOrDefault(r *http.Request, key, def string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return def
}

// gmailUnreadHandler lists unread message ids.
func (s *Server) gmailUnreadHandler(w http.ResponseWriter, r *http.Request) {
	q := queryOrDefault(r, "q", "is:unread")
	maxResults := queryOrDefault(r, "maxResults", "10")
	res, err := s.google.ListMessages(r.Context(), q, maxResults)
	s.relay(w, res, err)
}

// gmailMessageHandler fetches one message by id.
func (s *Server) gmailMessageHandler(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id required")
		return
	}
	res, err := s.google.GetMessage(r.Context(), id)
	s.relay(w, res, err)
}

// gmailSendHandler sends a plain-text message.
func (s *Server) gmailSendHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		To      string `json:"to"`
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	decodeBody(r, &body)
	if body.To == "" {
		writeError(w, http.StatusBadRequest, "to required")
		return
	}

	raw := google.EncodeRaw(google.BuildMessage(body.To, body.Subject, body.Body))
	res, err := s.google.SendRaw(r.Context(), raw, "")
	s.relay(w, res, err)
}

// gmailUnreadDetailHandler lists unread messages with flattened headers.
func (s *Server) gmailUnreadDetailHandler(w http.ResponseWriter, r *http.Request) {
	q := queryOrDefault(r, "q", "is:unread")
	maxResults := queryOrDefault(r, "maxResults", "10")
	res, err := s.google.UnreadDetail(r.Context(), q, maxResults)
	s.relay(w, res, err)
}

// gmailReplyHandler replies in-thread to a message.
func (s *Server) gmailReplyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		ID      string `json:"id"`
		Body    string `json:"body"`
		To      string `json:"to"`
		Subject string `json:"subject"`
	}
	decodeBody(r, &body)
	if body.ID == "" || body.Body == "" {
		writeError(w, http.StatusBadRequest, "id and body are required")
		return
	}

	res, err := s.google.Reply(r.Context(), body.ID, body.Body, body.To, body.Subject)
	s.relay(w, res, err)
}

// gmailMarkReadHandler removes the UNREAD label.
func (s *Server) gmailMarkReadHandler(w http.ResponseWriter, r *http.Request) {
	s.gmailModify(w, r, "UNREAD")
}

// gmailArchiveHandler removes the INBOX label.
func (s *Server) gmailArchiveHandler(w http.ResponseWriter, r *http.Request) {
	s.gmailModify(w, r, "INBOX")
}

func (s *Server) gmailModify(w http.ResponseWriter, r *http.Request, label string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		ID string `json:"id"`
	}
	decodeBody(r, &body)
	if body.ID == "" {
		writeError(w, http.StatusBadRequest, "id required")
		return
	}

	res, err := s.google.ModifyMessage(r.Context(), body.ID, []string{label})
	s.relay(w, res, err)
}
