package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// requestsTotal counts gateway requests by route and response code. Exposed
// on /metrics alongside the token refresh counter from the credentials
// package.
var requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "proxy_requests_total",
	Help: "Gateway requests by route and status code.",
}, []string{"route", "code"})
