package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/kirillkom/catalog-assistant/internal/core/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "catalog"

// HTTPServerMetrics owns the API process registry. It also implements
// ports.PipelineObserver so chat turns are measured alongside requests.
type HTTPServerMetrics struct {
	service  string
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	ragTurnsTotal     *prometheus.CounterVec
	ragSources        *prometheus.HistogramVec
	ragRewritesTotal  *prometheus.CounterVec
	ragNoContextTotal *prometheus.CounterVec
	ragTurnDuration   *prometheus.HistogramVec
	nodeDuration      *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	ragTurnsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "turns_total",
			Help:      "Total completed chat turns by route.",
		},
		[]string{"service", "route"},
	)
	ragSources := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "sources",
			Help:      "Distribution of cited sources per search turn.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		},
		[]string{"service"},
	)
	ragRewritesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "rewrites_total",
			Help:      "Total search turns that rewrote the query at least once.",
		},
		[]string{"service"},
	)
	ragNoContextTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "no_context_total",
			Help:      "Total search turns answered without relevant catalog context.",
		},
		[]string{"service"},
	)
	ragTurnDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "turn_duration_seconds",
			Help:      "Chat turn duration in seconds by route.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"service", "route"},
	)
	nodeDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "node_duration_seconds",
			Help:      "Pipeline node duration in seconds by node and status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "node", "status"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		ragTurnsTotal,
		ragSources,
		ragRewritesTotal,
		ragNoContextTotal,
		ragTurnDuration,
		nodeDuration,
	)

	return &HTTPServerMetrics{
		service:           service,
		registry:          registry,
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		requestInFlight:   requestInFlight,
		ragTurnsTotal:     ragTurnsTotal,
		ragSources:        ragSources,
		ragRewritesTotal:  ragRewritesTotal,
		ragNoContextTotal: ragNoContextTotal,
		ragTurnDuration:   ragTurnDuration,
		nodeDuration:      nodeDuration,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requestTotal.WithLabelValues(m.service, r.Method, path, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(m.service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/index/runs/"):
		return "/v1/index/runs/{run_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) ObserveNode(node string, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.nodeDuration.WithLabelValues(m.service, node, status).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) ObserveTurn(route domain.Route, sources int, rewritten bool, duration time.Duration) {
	if route == "" {
		route = domain.RouteSearch
	}
	m.ragTurnsTotal.WithLabelValues(m.service, string(route)).Inc()
	m.ragTurnDuration.WithLabelValues(m.service, string(route)).Observe(duration.Seconds())
	if route != domain.RouteSearch {
		return
	}

	m.ragSources.WithLabelValues(m.service).Observe(float64(sources))
	if rewritten {
		m.ragRewritesTotal.WithLabelValues(m.service).Inc()
	}
	if sources == 0 {
		m.ragNoContextTotal.WithLabelValues(m.service).Inc()
	}
}
