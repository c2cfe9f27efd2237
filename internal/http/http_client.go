package http

import (
	"net"
	"net/http"
	"time"
)

// HTTPClient interface abstracts HTTP client operations
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewHTTPClient creates the HTTP client used for all outbound Google calls.
// Every call carries an overall timeout so a hung token or API endpoint
// cannot stall a request forever.
func NewHTTPClient() HTTPClient {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			ForceAttemptHTTP2:   true,
		},
	}
}
