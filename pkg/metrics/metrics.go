package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	oauthLoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oauth_logins_total",
			Help: "Total number of OAuth login redirects issued",
		},
		[]string{"provider"},
	)

	oauthCallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oauth_callbacks_total",
			Help: "Total number of OAuth callbacks by outcome",
		},
		[]string{"provider", "outcome"},
	)

	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total number of domain events published",
		},
		[]string{"topic", "status"},
	)
)

func init() {
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	registry.MustRegister(httpRequestsTotal)
	registry.MustRegister(httpRequestDuration)
	registry.MustRegister(oauthLoginsTotal)
	registry.MustRegister(oauthCallbacksTotal)
	registry.MustRegister(eventsPublished)
}

// Registry returns the prometheus registry
func Registry() *prometheus.Registry {
	return registry
}

// Handler returns a Fiber handler for the /metrics endpoint
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
}

// OAuthLogin records an issued login redirect.
func OAuthLogin(provider string) {
	oauthLoginsTotal.WithLabelValues(provider).Inc()
}

// OAuthCallback records a callback outcome ("success" or an error code).
func OAuthCallback(provider, outcome string) {
	oauthCallbacksTotal.WithLabelValues(provider, outcome).Inc()
}

// EventPublished records a domain event publish attempt.
func EventPublished(topic, status string) {
	eventsPublished.WithLabelValues(topic, status).Inc()
}

// Middleware returns Fiber middleware that records HTTP metrics.
func Middleware(skipPaths ...string) fiber.Handler {
	skip := make(map[string]bool, len(skipPaths))
	for _, path := range skipPaths {
		skip[path] = true
	}

	return func(c *fiber.Ctx) error {
		if skip[c.Path()] {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()

		path := c.Route().Path
		status := strconv.Itoa(c.Response().StatusCode())
		httpRequestsTotal.WithLabelValues(c.Method(), path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Method(), path).Observe(time.Since(start).Seconds())

		return err
	}
}
