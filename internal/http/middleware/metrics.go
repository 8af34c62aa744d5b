package middleware

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tbourn/go-followup-backend/internal/auth"
)

// MetricsOptions configures Metrics.
type MetricsOptions struct {
	// Registerer receives the collectors; nil means the default registry.
	Registerer prometheus.Registerer
	// SkipPaths are not measured (the scrape endpoint itself, usually).
	SkipPaths []string
}

type httpMetrics struct {
	reqs     *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	inflight prometheus.Gauge
	size     *prometheus.HistogramVec
}

// Metrics instruments requests with Prometheus. Labels stay bounded: path is
// the registered route (raw path only for unmatched requests), status is the
// numeric code and role is anonymous, user or admin as resolved by Identify.
// Calling Metrics again against the same registry reuses the collectors.
func Metrics(opts MetricsOptions) gin.HandlerFunc {
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := httpMetrics{
		reqs: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status", "role"})),
		latency: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"})),
		inflight: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		})),
		size: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Size of HTTP responses in bytes.",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8), // 256B..4MiB
		}, []string{"method", "path"})),
	}
	skip := make(map[string]struct{}, len(opts.SkipPaths))
	for _, p := range opts.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}
		start := time.Now()
		m.inflight.Inc()
		defer m.inflight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		m.reqs.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status()), roleLabel(c)).Inc()
		m.latency.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		if size := c.Writer.Size(); size >= 0 {
			m.size.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}

func roleLabel(c *gin.Context) string {
	if UserID(c) == "" {
		return "anonymous"
	}
	if strings.EqualFold(asString(c.Value(ctxKeyRole)), auth.RoleAdmin) {
		return auth.RoleAdmin
	}
	return auth.RoleUser
}

// register adds c to reg, handing back the existing collector when an
// identical one is already registered.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}
