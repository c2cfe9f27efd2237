package credentials

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	serverhttp "github.com/jvanloon/google-actions-proxy/internal/http"
)

// Flow handles the one-time authorization: building the consent URL and
// exchanging the returned code for the first TokenSet. Re-running the flow is
// the only way to replace a credential whose refresh token has been revoked.
type Flow struct {
	store      Store
	cfg        Config
	httpClient serverhttp.HTTPClient
	now        func() time.Time
}

// NewFlow creates a Flow persisting into the given store.
func NewFlow(store Store, cfg Config) *Flow {
	return &Flow{
		store:      store,
		cfg:        cfg,
		httpClient: serverhttp.NewHTTPClient(),
		now:        time.Now,
	}
}

// ConsentURL builds the provider consent URL. Pure URL construction, no
// network. prompt=consent forces Google to reissue a refresh token even when
// the user has consented before.
func (f *Flow) ConsentURL() string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", f.cfg.ClientID)
	q.Set("redirect_uri", f.cfg.RedirectURI)
	q.Set("scope", strings.Join(f.cfg.Scopes, " "))
	q.Set("access_type", "offline")
	q.Set("prompt", "consent")
	q.Set("include_granted_scopes", "true")
	return f.cfg.authEndpoint() + "?" + q.Encode()
}

// ExchangeCode trades the authorization code for a TokenSet and persists it.
// Nothing is persisted on failure.
func (f *Flow) ExchangeCode(ctx context.Context, code string) (*TokenSet, error) {
	form := url.Values{}
	form.Set("code", code)
	form.Set("client_id", f.cfg.ClientID)
	form.Set("client_secret", f.cfg.ClientSecret)
	form.Set("redirect_uri", f.cfg.RedirectURI)
	form.Set("grant_type", "authorization_code")

	body, err := postForm(ctx, f.httpClient, f.cfg.tokenEndpoint(), form)
	if err != nil {
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}

	ts, err := tokenSetFromResponse(body, f.now())
	if err != nil {
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}

	if err := f.store.Save(ts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return ts, nil
}
