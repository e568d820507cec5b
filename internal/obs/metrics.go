package obs

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	authzDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_decisions_total",
			Help: "Permission checks by result and deny reason.",
		},
		[]string{"result", "reason"},
	)

	auditAppends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_appends_total",
			Help: "Audit log appends by action and outcome.",
		},
		[]string{"action", "outcome"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// Init registers the service metrics in the default registry.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(authzDecisions, auditAppends, httpRequestsTotal, httpRequestDuration)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordDecision(allowed bool, reason string) {
	result := "deny"
	if allowed {
		result = "allow"
	}
	authzDecisions.WithLabelValues(result, reason).Inc()
}

func RecordAuditAppend(action string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	auditAppends.WithLabelValues(action, outcome).Inc()
}

// Instrument measures every echo route by its registered path.
func Instrument() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := strconv.Itoa(c.Response().Status)
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			httpRequestDuration.WithLabelValues(method, route, status).Observe(time.Since(start).Seconds())
			httpRequestsTotal.WithLabelValues(method, route, status).Inc()
			return nil
		}
	}
}
