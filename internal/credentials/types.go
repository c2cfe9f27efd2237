package credentials

import (
	"encoding/json"
	"errors"
	"time"
)

// OAuth endpoint defaults. Overridable through Config for tests.
const (
	DefaultAuthEndpoint  = "https://accounts.google.com/o/oauth2/auth"
	DefaultTokenEndpoint = "https://oauth2.googleapis.com/token"

	// expirySafetyMargin is subtracted from the provider TTL so a token is
	// treated as expired before requests that are already in flight can
	// outlive it.
	expirySafetyMargin = 60 * time.Second

	// defaultExpiresIn is assumed when the token response omits expires_in.
	defaultExpiresIn = 3600
)

// TokenSet is the single persisted OAuth credential record: access token,
// refresh token and the absolute expiry instant in unix seconds. Provider
// fields the gateway does not interpret (scope, token_type, expires_in, ...)
// survive load/save round trips untouched in Extra.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64

	Extra map[string]json.RawMessage
}

type tokenSetFields struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresAt    int64  `json:"expires_at"`
}

// UnmarshalJSON splits the record into the fields the gateway interprets and
// the opaque remainder.
func (t *TokenSet) UnmarshalJSON(data []byte) error {
	var known tokenSetFields
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	delete(raw, "access_token")
	delete(raw, "refresh_token")
	delete(raw, "expires_at")

	t.AccessToken = known.AccessToken
	t.RefreshToken = known.RefreshToken
	t.ExpiresAt = known.ExpiresAt
	if len(raw) > 0 {
		t.Extra = raw
	} else {
		t.Extra = nil
	}
	return nil
}

// MarshalJSON recombines the interpreted fields with the opaque remainder
// into one flat JSON object.
func (t TokenSet) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(t.Extra)+3)
	for k, v := range t.Extra {
		out[k] = v
	}

	known, err := json.Marshal(tokenSetFields{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    t.ExpiresAt,
	})
	if err != nil {
		return nil, err
	}
	var knownRaw map[string]json.RawMessage
	if err := json.Unmarshal(known, &knownRaw); err != nil {
		return nil, err
	}
	for k, v := range knownRaw {
		out[k] = v
	}

	return json.Marshal(out)
}

// tokenSetFromResponse builds a TokenSet from a token endpoint response body,
// computing the absolute expiry from expires_in minus the safety margin.
func tokenSetFromResponse(body []byte, now time.Time) (*TokenSet, error) {
	var ts TokenSet
	if err := json.Unmarshal(body, &ts); err != nil {
		return nil, err
	}
	if ts.AccessToken == "" {
		return nil, errors.New("token response has no access_token")
	}

	ttl := int64(defaultExpiresIn)
	if raw, ok := ts.Extra["expires_in"]; ok {
		var n int64
		if err := json.Unmarshal(raw, &n); err == nil && n > 0 {
			ttl = n
		}
	}
	ts.ExpiresAt = now.Unix() + ttl - int64(expirySafetyMargin/time.Second)

	return &ts, nil
}
