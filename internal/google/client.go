package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	serverhttp "github.com/jvanloon/google-actions-proxy/internal/http"
	"github.com/jvanloon/google-actions-proxy/internal/logger"
)

// Default API bases. Fields on Client so tests can point them elsewhere.
const (
	DefaultGmailBase    = "https://gmail.googleapis.com/gmail/v1"
	DefaultCalendarBase = "https://www.googleapis.com/calendar/v3"
	DefaultPeopleBase   = "https://people.googleapis.com/v1"

	// contactReadMask selects the People API fields the gateway exposes.
	contactReadMask = "names,emailAddresses,phoneNumbers"
)

// TokenSource yields bearer tokens for upstream calls.
type TokenSource interface {
	// AccessToken returns a currently valid token, refreshing if needed.
	AccessToken(ctx context.Context) (string, error)

	// ForceRefresh refreshes regardless of the stored expiry.
	ForceRefresh(ctx context.Context) (string, error)
}

// Result is an upstream response relayed verbatim: status code and raw body,
// untouched.
type Result struct {
	Status int
	Body   []byte
}

// OK reports whether the upstream call succeeded.
func (r *Result) OK() bool {
	return r.Status >= 200 && r.Status <= 299
}

// Client proxies calls to the Gmail, Calendar and People REST APIs, injecting
// a bearer token per call. A downstream 401 triggers exactly one forced
// refresh and one retry; anything beyond that is relayed to the caller as-is.
type Client struct {
	httpClient serverhttp.HTTPClient
	tokens     TokenSource

	GmailBase    string
	CalendarBase string
	PeopleBase   string
}

// NewClient creates a client against the Google API endpoints.
func NewClient(tokens TokenSource) *Client {
	return &Client{
		httpClient:   serverhttp.NewHTTPClient(),
		tokens:       tokens,
		GmailBase:    DefaultGmailBase,
		CalendarBase: DefaultCalendarBase,
		PeopleBase:   DefaultPeopleBase,
	}
}

// do performs one upstream call with the single-retry policy. It returns
// credentials.ErrNotAuthorized (wrapped) without calling upstream when no
// token is available.
func (c *Client) do(ctx context.Context, method, rawURL string, query url.Values, body []byte) (*Result, error) {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	res, err := c.send(ctx, method, rawURL, query, body, token)
	if err != nil {
		return nil, err
	}

	if res.Status == http.StatusUnauthorized {
		token, err = c.tokens.ForceRefresh(ctx)
		if err != nil {
			// Refresh is not retried; the provider's rejection stands.
			logger.Get().Warn().Err(err).Msg("Forced token refresh failed, relaying upstream 401")
			return res, nil
		}
		retry, err := c.send(ctx, method, rawURL, query, body, token)
		if err != nil {
			return nil, err
		}
		return retry, nil
	}

	return res, nil
}

// send issues one HTTP request and captures the full response.
func (c *Client) send(ctx context.Context, method, rawURL string, query url.Values, body []byte, token string) (*Result, error) {
	u := rawURL
	if len(query) > 0 {
		u = rawURL + "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read upstream response: %w", err)
	}

	return &Result{Status: resp.StatusCode, Body: respBody}, nil
}

// ListMessages lists Gmail message ids matching the query.
func (c *Client) ListMessages(ctx context.Context, q, maxResults string) (*Result, error) {
	query := url.Values{}
	query.Set("q", q)
	query.Set("maxResults", maxResults)
	return c.do(ctx, http.MethodGet, c.GmailBase+"/users/me/messages", query, nil)
}

// GetMessage fetches one message in full format.
func (c *Client) GetMessage(ctx context.Context, id string) (*Result, error) {
	query := url.Values{}
	query.Set("format", "full")
	return c.do(ctx, http.MethodGet, c.GmailBase+"/users/me/messages/"+url.PathEscape(id), query, nil)
}

// SendRaw sends a base64url-encoded RFC 2822 message, optionally into an
// existing thread.
func (c *Client) SendRaw(ctx context.Context, raw, threadID string) (*Result, error) {
	payload := map[string]string{"raw": raw}
	if threadID != "" {
		payload["threadId"] = threadID
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("could not marshal send payload: %w", err)
	}
	return c.do(ctx, http.MethodPost, c.GmailBase+"/users/me/messages/send", nil, body)
}

// ModifyMessage removes labels from a message. Removing UNREAD marks it read,
// removing INBOX archives it.
func (c *Client) ModifyMessage(ctx context.Context, id string, removeLabelIDs []string) (*Result, error) {
	body, err := json.Marshal(map[string][]string{"removeLabelIds": removeLabelIDs})
	if err != nil {
		return nil, fmt.Errorf("could not marshal modify payload: %w", err)
	}
	return c.do(ctx, http.MethodPost, c.GmailBase+"/users/me/messages/"+url.PathEscape(id)+"/modify", nil, body)
}

// MessageSummary is one flattened unread message.
type MessageSummary struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
	From     string `json:"from"`
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Date     string `json:"date"`
	Snippet  string `json:"snippet"`
}

type messageList struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type fullMessage struct {
	ThreadID string `json:"threadId"`
	Snippet  string `json:"snippet"`
	Payload  struct {
		Headers []Header `json:"headers"`
	} `json:"payload"`
}

// UnreadDetail lists matching messages and flattens each one's key headers
// and snippet into a single response. Any failing upstream call is relayed
// instead of a partial aggregate.
func (c *Client) UnreadDetail(ctx context.Context, q, maxResults string) (*Result, error) {
	lst, err := c.ListMessages(ctx, q, maxResults)
	if err != nil {
		return nil, err
	}
	if !lst.OK() {
		return lst, nil
	}

	var list messageList
	if err := json.Unmarshal(lst.Body, &list); err != nil {
		return nil, fmt.Errorf("could not parse message list: %w", err)
	}

	out := make([]MessageSummary, 0, len(list.Messages))
	for _, m := range list.Messages {
		full, err := c.GetMessage(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		if !full.OK() {
			return full, nil
		}

		var msg fullMessage
		if err := json.Unmarshal(full.Body, &msg); err != nil {
			return nil, fmt.Errorf("could not parse message %s: %w", m.ID, err)
		}
		out = append(out, MessageSummary{
			ID:       m.ID,
			ThreadID: msg.ThreadID,
			From:     HeaderValue(msg.Payload.Headers, "From"),
			To:       HeaderValue(msg.Payload.Headers, "To"),
			Subject:  HeaderValue(msg.Payload.Headers, "Subject"),
			Date:     HeaderValue(msg.Payload.Headers, "Date"),
			Snippet:  msg.Snippet,
		})
	}

	body, err := json.Marshal(map[string][]MessageSummary{"messages": out})
	if err != nil {
		return nil, fmt.Errorf("could not marshal unread detail: %w", err)
	}
	return &Result{Status: http.StatusOK, Body: body}, nil
}

// Reply sends a plain-text reply into the thread of an existing message. The
// recipient and subject derive from the original unless overridden.
func (c *Client) Reply(ctx context.Context, id, body, toOverride, subjectOverride string) (*Result, error) {
	orig, err := c.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	if !orig.OK() {
		return orig, nil
	}

	var msg fullMessage
	if err := json.Unmarshal(orig.Body, &msg); err != nil {
		return nil, fmt.Errorf("could not parse message %s: %w", id, err)
	}
	headers := msg.Payload.Headers

	to := toOverride
	if to == "" {
		to = HeaderValue(headers, "From")
	}
	if to == "" {
		to = HeaderValue(headers, "To")
	}

	subject := subjectOverride
	if subject == "" {
		if orig := HeaderValue(headers, "Subject"); orig != "" {
			subject = "Re: " + orig
		} else {
			subject = "Re:"
		}
	}

	raw := EncodeRaw(BuildReply(to, subject, HeaderValue(headers, "Message-ID"), body))
	return c.SendRaw(ctx, raw, msg.ThreadID)
}

// ListEvents lists events on the primary calendar. Only timeMin, timeMax and
// maxResults pass through.
func (c *Client) ListEvents(ctx context.Context, query url.Values) (*Result, error) {
	return c.do(ctx, http.MethodGet, c.CalendarBase+"/calendars/primary/events", query, nil)
}

// CreateEvent inserts an event on the primary calendar.
func (c *Client) CreateEvent(ctx context.Context, summary, start, end string, attendees []string) (*Result, error) {
	payload := map[string]interface{}{
		"summary": summary,
		"start":   map[string]string{"dateTime": start},
		"end":     map[string]string{"dateTime": end},
	}
	if len(attendees) > 0 {
		list := make([]map[string]string, 0, len(attendees))
		for _, a := range attendees {
			list = append(list, map[string]string{"email": a})
		}
		payload["attendees"] = list
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("could not marshal event payload: %w", err)
	}
	return c.do(ctx, http.MethodPost, c.CalendarBase+"/calendars/primary/events", nil, body)
}

// ListOtherContacts lists "other contacts" (interaction history).
func (c *Client) ListOtherContacts(ctx context.Context, pageSize string) (*Result, error) {
	query := url.Values{}
	query.Set("pageSize", pageSize)
	query.Set("readMask", contactReadMask)
	return c.do(ctx, http.MethodGet, c.PeopleBase+"/otherContacts", query, nil)
}

// SearchOtherContacts searches "other contacts" by free-text query.
func (c *Client) SearchOtherContacts(ctx context.Context, q, pageSize string) (*Result, error) {
	query := url.Values{}
	query.Set("query", q)
	query.Set("pageSize", pageSize)
	query.Set("readMask", contactReadMask)
	return c.do(ctx, http.MethodGet, c.PeopleBase+"/otherContacts:search", query, nil)
}

// GetContact fetches one person by resource name (e.g. "otherContacts/c123").
func (c *Client) GetContact(ctx context.Context, resourceName string) (*Result, error) {
	query := url.Values{}
	query.Set("readMask", contactReadMask)
	return c.do(ctx, http.MethodGet, c.PeopleBase+"/"+resourceName, query, nil)
}
