package credentials

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	serverhttp "github.com/jvanloon/google-actions-proxy/internal/http"
	"github.com/jvanloon/google-actions-proxy/internal/logger"
)

// ErrNotAuthorized means no usable credential exists and none could be
// obtained by refreshing. The caller must run the authorization flow.
var ErrNotAuthorized = errors.New("not authorized")

// ErrStorage means a refreshed credential could not be persisted. The refresh
// must not be reported as success in that case.
var ErrStorage = errors.New("credential storage failure")

var refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "token_refresh_total",
	Help: "Token refresh attempts against the OAuth token endpoint.",
}, []string{"outcome"})

// Config holds the OAuth client settings shared by the Manager and the Flow.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string

	// AuthEndpoint and TokenEndpoint default to the Google endpoints.
	AuthEndpoint  string
	TokenEndpoint string
}

func (c Config) authEndpoint() string {
	if c.AuthEndpoint != "" {
		return c.AuthEndpoint
	}
	return DefaultAuthEndpoint
}

func (c Config) tokenEndpoint() string {
	if c.TokenEndpoint != "" {
		return c.TokenEndpoint
	}
	return DefaultTokenEndpoint
}

// Manager owns the credential lifecycle: it decides when the stored token is
// usable as-is, refreshes it when it is not, and keeps the store consistent
// while doing so. The whole read-decide-refresh-write sequence runs under one
// mutex so concurrent requests cannot race each other into redundant
// refreshes.
type Manager struct {
	store      Store
	cfg        Config
	httpClient serverhttp.HTTPClient

	mu  sync.Mutex
	now func() time.Time
}

// NewManager creates a Manager on top of the given store.
func NewManager(store Store, cfg Config) *Manager {
	return &Manager{
		store:      store,
		cfg:        cfg,
		httpClient: serverhttp.NewHTTPClient(),
		now:        time.Now,
	}
}

// AccessToken returns a bearer token that is valid right now. An expired
// record triggers exactly one refresh attempt; if that fails the stale record
// is left in place and ErrNotAuthorized is returned.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ts, err := m.store.Load()
	if err != nil {
		return "", err
	}
	if ts == nil || ts.AccessToken == "" {
		return "", ErrNotAuthorized
	}

	if m.now().Unix() >= ts.ExpiresAt {
		refreshed, err := m.refreshLocked(ctx, ts)
		if err != nil {
			if errors.Is(err, ErrStorage) {
				return "", err
			}
			logger.Get().Warn().Err(err).Msg("Token refresh failed")
			return "", ErrNotAuthorized
		}
		return refreshed.AccessToken, nil
	}

	return ts.AccessToken, nil
}

// ForceRefresh refreshes regardless of the stored expiry. The dispatcher uses
// it after a downstream 401, where the provider has already rejected a token
// we still considered valid.
func (m *Manager) ForceRefresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ts, err := m.store.Load()
	if err != nil {
		return "", err
	}
	if ts == nil {
		return "", ErrNotAuthorized
	}

	refreshed, err := m.refreshLocked(ctx, ts)
	if err != nil {
		return "", err
	}
	return refreshed.AccessToken, nil
}

// refreshLocked exchanges the stored refresh token for a new access token and
// persists the result. The caller must hold m.mu. On any failure the store is
// left untouched so the stale record remains inspectable.
func (m *Manager) refreshLocked(ctx context.Context, prev *TokenSet) (*TokenSet, error) {
	if prev.RefreshToken == "" {
		refreshTotal.WithLabelValues("failure").Inc()
		return nil, errors.New("no refresh token stored")
	}

	form := url.Values{}
	form.Set("client_id", m.cfg.ClientID)
	form.Set("client_secret", m.cfg.ClientSecret)
	form.Set("refresh_token", prev.RefreshToken)
	form.Set("grant_type", "refresh_token")

	body, err := postForm(ctx, m.httpClient, m.cfg.tokenEndpoint(), form)
	if err != nil {
		refreshTotal.WithLabelValues("failure").Inc()
		return nil, err
	}

	next, err := tokenSetFromResponse(body, m.now())
	if err != nil {
		refreshTotal.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("invalid token response: %w", err)
	}

	// Google does not always reissue the refresh token; never lose the one
	// we already have.
	if next.RefreshToken == "" {
		next.RefreshToken = prev.RefreshToken
	}

	if err := m.store.Save(next); err != nil {
		refreshTotal.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	refreshTotal.WithLabelValues("success").Inc()
	logger.Get().Info().Msg("Refreshed OAuth token")
	return next, nil
}

// postForm posts a form to the token endpoint and returns the body of a 2xx
// response.
func postForm(ctx context.Context, client serverhttp.HTTPClient, endpoint string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token endpoint request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read token response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
