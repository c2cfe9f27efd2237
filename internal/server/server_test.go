package server

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvanloon/google-actions-proxy/internal/config"
	"github.com/jvanloon/google-actions-proxy/internal/credentials"
	"github.com/jvanloon/google-actions-proxy/internal/google"
)

// testGateway is a fully wired server with fake token and upstream endpoints.
type testGateway struct {
	server        *Server
	store         *credentials.FileStore
	tokenCalls    atomic.Int64
	upstreamCalls atomic.Int64
	upstream      http.HandlerFunc
}

func newTestGateway(t *testing.T, apiKey string) *testGateway {
	t.Helper()
	g := &testGateway{}

	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.tokenCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"fresh-token","refresh_token":"rt-1","expires_in":3600}`))
	}))
	t.Cleanup(tokenSrv.Close)

	upstreamSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.upstreamCalls.Add(1)
		if g.upstream != nil {
			g.upstream(w, r)
			return
		}
		w.Write([]byte(`{}`))
	}))
	t.Cleanup(upstreamSrv.Close)

	g.store = credentials.NewFileStore(filepath.Join(t.TempDir(), "tokens.json"))
	oauthCfg := credentials.Config{
		ClientID:      "client-id",
		ClientSecret:  "client-secret",
		RedirectURI:   "https://example.com/auth/callback",
		Scopes:        config.DefaultScopes,
		TokenEndpoint: tokenSrv.URL,
	}
	manager := credentials.NewManager(g.store, oauthCfg)
	flow := credentials.NewFlow(g.store, oauthCfg)

	gclient := google.NewClient(manager)
	gclient.GmailBase = upstreamSrv.URL
	gclient.CalendarBase = upstreamSrv.URL
	gclient.PeopleBase = upstreamSrv.URL

	cfg := &config.Config{APIKey: apiKey, Scopes: config.DefaultScopes}
	g.server = NewServer(cfg, flow, gclient)
	return g
}

func (g *testGateway) request(t *testing.T, method, target, apiKey, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, reader)
	if apiKey != "" {
		req.Header.Set("x-api-key", apiKey)
	}
	rec := httptest.NewRecorder()
	g.server.ServeHTTP(rec, req)
	return rec
}

func (g *testGateway) seedToken(t *testing.T, expiresAt int64) {
	t.Helper()
	require.NoError(t, g.store.Save(&credentials.TokenSet{
		AccessToken:  "stored-token",
		RefreshToken: "rt-1",
		ExpiresAt:    expiresAt,
	}))
}

func TestAPIKeyGuard(t *testing.T) {
	g := newTestGateway(t, "secret")

	rec := g.request(t, http.MethodGet, "/gmail/unread", "", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"Forbidden"}`, rec.Body.String())

	rec = g.request(t, http.MethodGet, "/gmail/unread", "wrong", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	assert.Equal(t, int64(0), g.upstreamCalls.Load())
}

func TestOpenModeSkipsAPIKeyGuard(t *testing.T) {
	g := newTestGateway(t, "")
	g.seedToken(t, time.Now().Add(time.Hour).Unix())

	rec := g.request(t, http.MethodGet, "/gmail/unread", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), g.upstreamCalls.Load())
}

func TestIndexListsEndpoints(t *testing.T) {
	g := newTestGateway(t, "secret")

	rec := g.request(t, http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/gmail/unread")
}

func TestUnknownPathIsNotFound(t *testing.T) {
	g := newTestGateway(t, "secret")

	rec := g.request(t, http.MethodGet, "/nope", "secret", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthStartRedirectsToConsent(t *testing.T) {
	g := newTestGateway(t, "secret")

	rec := g.request(t, http.MethodGet, "/auth/start", "secret", "")
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "accounts.google.com", loc.Host)
	assert.Equal(t, "consent", loc.Query().Get("prompt"))
	assert.Equal(t, "offline", loc.Query().Get("access_type"))
}

func TestAuthCallbackMissingCode(t *testing.T) {
	g := newTestGateway(t, "secret")

	rec := g.request(t, http.MethodGet, "/auth/callback", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"code required"}`, rec.Body.String())
}

func TestAuthCallbackExchangesAndPersists(t *testing.T) {
	g := newTestGateway(t, "secret")

	rec := g.request(t, http.MethodGet, "/auth/callback?code=valid-code", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), g.tokenCalls.Load())

	persisted, err := g.store.Load()
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, "fresh-token", persisted.AccessToken)
}

func TestUnreadWithEmptyStoreIsNotAuthorized(t *testing.T) {
	g := newTestGateway(t, "secret")

	rec := g.request(t, http.MethodGet, "/gmail/unread", "secret", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "/auth/start")
	assert.Equal(t, int64(0), g.upstreamCalls.Load(), "no downstream call without credentials")
}

func TestSendMissingToIsBadRequest(t *testing.T) {
	g := newTestGateway(t, "secret")
	g.seedToken(t, time.Now().Add(time.Hour).Unix())

	rec := g.request(t, http.MethodPost, "/gmail/send", "secret", `{"subject":"Hi","body":"text"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"to required"}`, rec.Body.String())
	assert.Equal(t, int64(0), g.upstreamCalls.Load())
}

func TestCalendarEventsRefreshesExpiredToken(t *testing.T) {
	g := newTestGateway(t, "secret")
	g.seedToken(t, time.Now().Add(-time.Minute).Unix())
	g.upstream = func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer fresh-token", r.Header.Get("Authorization"))
		assert.Equal(t, "/calendars/primary/events", r.URL.Path)
		w.Write([]byte(`{"items":[]}`))
	}

	rec := g.request(t, http.MethodGet, "/calendar/events?maxResults=5", "secret", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[]}`, rec.Body.String())
	assert.Equal(t, int64(1), g.tokenCalls.Load(), "exactly one refresh")
	assert.Equal(t, int64(1), g.upstreamCalls.Load(), "exactly one downstream call")
}

func TestDownstreamFailureRelayedVerbatim(t *testing.T) {
	g := newTestGateway(t, "secret")
	g.seedToken(t, time.Now().Add(time.Hour).Unix())
	g.upstream = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":{"code":503,"message":"backend"}}`))
	}

	rec := g.request(t, http.MethodGet, "/contacts/list", "secret", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"error":{"code":503,"message":"backend"}}`, rec.Body.String())
}

func TestContactsSearchRequiresQuery(t *testing.T) {
	g := newTestGateway(t, "secret")
	g.seedToken(t, time.Now().Add(time.Hour).Unix())

	rec := g.request(t, http.MethodGet, "/contacts/search", "secret", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"q required"}`, rec.Body.String())
	assert.Equal(t, int64(0), g.upstreamCalls.Load())
}

func TestCalendarCreateRequiresFields(t *testing.T) {
	g := newTestGateway(t, "secret")
	g.seedToken(t, time.Now().Add(time.Hour).Unix())

	rec := g.request(t, http.MethodPost, "/calendar/create", "secret", `{"summary":"standup"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, int64(0), g.upstreamCalls.Load())
}

func TestMarkReadRequiresPost(t *testing.T) {
	g := newTestGateway(t, "secret")
	g.seedToken(t, time.Now().Add(time.Hour).Unix())

	rec := g.request(t, http.MethodGet, "/gmail/mark_read", "secret", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
