// metrics.go — Prometheus HTTP метрики сервиса Rivilog.
// Регистрирует метрики: rv_http_requests_total, rv_http_request_duration_seconds.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rv_http_requests_total",
			Help: "Общее количество HTTP-запросов к Rivilog",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rv_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Rivilog в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// normalizePath заменяет идентификаторы в пути на плейсхолдеры, чтобы
// кардинальность метрик не росла с числом сессий и заявок.
// /api/v1/submissions/<uuid>/evidence/receipt → /api/v1/submissions/{id}/evidence/{kind}
func normalizePath(path string) string {
	switch path {
	case "/health/live", "/health/ready", "/metrics",
		"/api/v1/operations",
		"/api/v1/openapi.yaml",
		"/api/v1/submissions",
		"/api/v1/admin/login",
		"/api/v1/admin/claims",
		"/api/v1/admin/claims/export/spreadsheet",
		"/api/v1/admin/claims/export/archive",
		"/api/v1/admin/maintenance/orphans":
		return path
	}

	if strings.HasPrefix(path, "/files/") {
		return "/files/{name}"
	}

	if rest, ok := strings.CutPrefix(path, "/api/v1/submissions/"); ok {
		_, action, _ := strings.Cut(rest, "/")
		switch {
		case action == "":
			return "/api/v1/submissions/{id}"
		case strings.HasPrefix(action, "evidence/"):
			return "/api/v1/submissions/{id}/evidence/{kind}"
		default:
			return "/api/v1/submissions/{id}/" + action
		}
	}

	if strings.HasPrefix(path, "/api/v1/admin/claims/") {
		return "/api/v1/admin/claims/{key}"
	}

	return path
}
