// Package metrics holds the Prometheus collectors of the user service.
// Collectors register with the default registry on import.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "usersvc"

// HTTPRequestDuration measures request latency.
// Labels:
//   - method: HTTP method
//   - route: chi route pattern (e.g. "/api/v1/users/{id}")
//   - status: response status code
var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests by route and status.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "route", "status"},
)

// TokensIssuedTotal counts signed tokens.
// Label:
//   - kind: "access" or "refresh"
var TokensIssuedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tokens_issued_total",
		Help:      "Total number of session tokens issued.",
	},
	[]string{"kind"},
)

// AuthFailuresTotal counts rejected logins, refreshes and bearer tokens.
// Label:
//   - reason: "invalid_credentials", "invalid_token" or "malformed_claims"
var AuthFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_failures_total",
		Help:      "Total number of failed authentication attempts.",
	},
	[]string{"reason"},
)

// UserAPIRequestsTotal counts calls to the upstream user API.
// Labels:
//   - operation: "get_user" or "update_balance"
//   - status: HTTP status code, or "error" on transport failure
var UserAPIRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "userapi_requests_total",
		Help:      "Total number of requests sent to the upstream user API.",
	},
	[]string{"operation", "status"},
)

// UserWritesTotal counts user mutations by outcome.
// Labels:
//   - operation: "create", "update", "balance", "delete"
//   - status: "success" or "failure"
var UserWritesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "user_writes_total",
		Help:      "Total number of user write operations.",
	},
	[]string{"operation", "status"},
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
