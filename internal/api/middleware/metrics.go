// metrics.go — Prometheus HTTP метрики для Media Module.
// Регистрирует метрики: mm_http_requests_total, mm_http_request_duration_seconds.
// Нормализация путей предотвращает взрывной рост кардинальности.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики Media Module
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mm_http_requests_total",
			Help: "Общее количество HTTP-запросов к Media Module",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mm_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Media Module в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик
			// (заменяем UUID на {id} для предотвращения кардинальности)
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// normalizePath заменяет UUID-сегменты пути на {id} для предотвращения
// взрывного роста кардинальности метрик.
// /api/v1/assets/a1b2c3d4-... → /api/v1/assets/{id}
// /api/v1/assets/a1b2c3d4-.../views → /api/v1/assets/{id}/views
func normalizePath(path string) string {
	// Статические пути — возвращаем как есть
	switch path {
	case "/health/live", "/health/ready", "/metrics",
		"/api/v1/search", "/api/v1/assets", "/api/v1/owners":
		return path
	}

	// Динамические пути с UUID (36 символов)
	const assetsPrefix = "/api/v1/assets/"
	if len(path) > len(assetsPrefix) && path[:len(assetsPrefix)] == assetsPrefix {
		suffix := ""
		if len(path) > len(assetsPrefix)+36 {
			suffix = path[len(assetsPrefix)+36:]
		}
		switch suffix {
		case "/views":
			return "/api/v1/assets/{id}/views"
		case "/technical-metadata":
			return "/api/v1/assets/{id}/technical-metadata"
		case "/archive", "/restore", "/orphan", "/pending-delete":
			return "/api/v1/assets/{id}" + suffix
		default:
			return "/api/v1/assets/{id}"
		}
	}

	const ownersPrefix = "/api/v1/owners/"
	if len(path) > len(ownersPrefix) && path[:len(ownersPrefix)] == ownersPrefix {
		return "/api/v1/owners/{id}"
	}

	const viewsPrefix = "/api/v1/views/"
	if len(path) > len(viewsPrefix) {
		return "/api/v1/views/{id}"
	}

	return path
}
