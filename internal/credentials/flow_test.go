package credentials

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsentURLIsDeterministic(t *testing.T) {
	flow := NewFlow(tempStore(t), Config{
		ClientID:    "client-id",
		RedirectURI: "https://example.com/auth/callback",
		Scopes:      []string{"scope-a", "scope-b"},
	})

	first := flow.ConsentURL()
	second := flow.ConsentURL()
	assert.Equal(t, first, second, "identical inputs must produce byte-identical URLs")

	parsed, err := url.Parse(first)
	require.NoError(t, err)
	assert.Equal(t, "accounts.google.com", parsed.Host)

	q := parsed.Query()
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "https://example.com/auth/callback", q.Get("redirect_uri"))
	assert.Equal(t, "scope-a scope-b", q.Get("scope"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "true", q.Get("include_granted_scopes"))
}

func TestExchangeCodePersistsTokenSet(t *testing.T) {
	te := newTokenEndpoint(t, http.StatusOK,
		`{"access_token":"at-1","refresh_token":"rt-1","expires_in":3600,"scope":"scope-a","token_type":"Bearer"}`)

	store := tempStore(t)
	flow := NewFlow(store, Config{
		ClientID:      "client-id",
		ClientSecret:  "client-secret",
		RedirectURI:   "https://example.com/auth/callback",
		TokenEndpoint: te.srv.URL,
	})

	ts, err := flow.ExchangeCode(context.Background(), "valid-code")
	require.NoError(t, err)
	assert.Equal(t, "at-1", ts.AccessToken)
	assert.Equal(t, "authorization_code", te.lastForm["grant_type"])
	assert.Equal(t, "valid-code", te.lastForm["code"])
	assert.Equal(t, "https://example.com/auth/callback", te.lastForm["redirect_uri"])

	persisted, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, "at-1", persisted.AccessToken)
	assert.Equal(t, "rt-1", persisted.RefreshToken)
	assert.Greater(t, persisted.ExpiresAt, int64(0))
	assert.JSONEq(t, `"scope-a"`, string(persisted.Extra["scope"]))
}

func TestExchangeCodeFailurePersistsNothing(t *testing.T) {
	te := newTokenEndpoint(t, http.StatusBadRequest, `{"error":"invalid_grant"}`)

	store := tempStore(t)
	flow := NewFlow(store, Config{
		ClientID:      "client-id",
		ClientSecret:  "client-secret",
		TokenEndpoint: te.srv.URL,
	})

	_, err := flow.ExchangeCode(context.Background(), "bad-code")
	require.Error(t, err)

	persisted, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, persisted)
}
