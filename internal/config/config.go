package config

import (
	"errors"
	"strings"

	"github.com/jvanloon/google-actions-proxy/internal/credentials"
	"github.com/jvanloon/google-actions-proxy/internal/env"
)

// DefaultScopes is the scope set requested when GOOGLE_SCOPES is unset.
var DefaultScopes = []string{
	"https://mail.google.com/",
	"https://www.googleapis.com/auth/gmail.modify",
	"https://www.googleapis.com/auth/gmail.send",
	"https://www.googleapis.com/auth/calendar",
	"https://www.googleapis.com/auth/contacts.other.readonly",
}

// Config is the gateway's environment-driven configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string

	// APIKey is the shared secret callers present in the x-api-key header.
	// Empty means open mode, which must be enabled explicitly via
	// INSECURE_OPEN_ACCESS.
	APIKey             string
	InsecureOpenAccess bool

	Port       string
	TokensFile string
}

// FromEnv loads and validates the configuration from the environment.
func FromEnv() (*Config, error) {
	cfg := &Config{
		ClientID:           env.GetOrDefault("GOOGLE_CLIENT_ID", ""),
		ClientSecret:       env.GetOrDefault("GOOGLE_CLIENT_SECRET", ""),
		RedirectURI:        env.GetOrDefault("OAUTH_REDIRECT_URI", ""),
		Scopes:             ParseScopes(env.GetOrDefault("GOOGLE_SCOPES", "")),
		APIKey:             env.GetOrDefault("ACTION_API_KEY", ""),
		InsecureOpenAccess: env.GetBool("INSECURE_OPEN_ACCESS"),
		Port:               env.GetOrDefault("PORT", "8000"),
		TokensFile:         env.GetOrDefault("TOKENS_FILE", credentials.DefaultPath()),
	}

	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set")
	}
	if cfg.RedirectURI == "" {
		return nil, errors.New("OAUTH_REDIRECT_URI must be set")
	}
	if cfg.APIKey == "" && !cfg.InsecureOpenAccess {
		return nil, errors.New("ACTION_API_KEY is not set; set it, or set INSECURE_OPEN_ACCESS=true to run without caller authentication")
	}

	return cfg, nil
}

// ParseScopes splits a comma- or space-separated scope list. An empty input
// yields the default scope set.
func ParseScopes(s string) []string {
	fields := strings.Fields(strings.ReplaceAll(s, ",", " "))
	if len(fields) == 0 {
		return DefaultScopes
	}
	return fields
}
