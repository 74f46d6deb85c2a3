// Package metrics содержит prometheus-коллекторы сервиса и middleware для HTTP.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Исходы обращения к внешнему сервису помимо видов ошибок.
const (
	OutcomeOK = "ok"
)

var (
	// Registry хранит коллекторы приложения.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "api_aggregator",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "api_aggregator",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "api_aggregator",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)

	externalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "api_aggregator",
			Subsystem: "external",
			Name:      "requests_total",
			Help:      "Total number of calls to external services by outcome.",
		},
		[]string{"service", "outcome"},
	)

	externalDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "api_aggregator",
			Subsystem: "external",
			Name:      "request_duration_seconds",
			Help:      "Duration of calls to external services.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"service"},
	)

	configPatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "api_aggregator",
			Subsystem: "config",
			Name:      "patches_total",
			Help:      "Total number of subscription config patches by result.",
		},
		[]string{"service", "result"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		externalRequests,
		externalDuration,
		configPatches,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler отдаёт зарегистрированные метрики.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler собирает метрики HTTP-запросов. Путь берётся из шаблона маршрута chi.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := routePattern(r)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	})
}

// ObserveExternalCall учитывает одно обращение к внешнему сервису.
func ObserveExternalCall(service, outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = OutcomeOK
	}
	externalRequests.WithLabelValues(service, outcome).Inc()
	externalDuration.WithLabelValues(service).Observe(duration.Seconds())
}

// RecordPatch учитывает изменение настроек подписки.
func RecordPatch(service string, success bool) {
	result := "ok"
	if !success {
		result = "error"
	}
	configPatches.WithLabelValues(service, result).Inc()
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
