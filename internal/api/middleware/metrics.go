// metrics.go — Prometheus HTTP метрики сервиса сбора материалов.
// Регистрирует метрики: up_http_requests_total, up_http_request_duration_seconds.
// Бизнес-метрики (up_uploads_total, up_check_findings_total и др.)
// обновляются из сервисного слоя.
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
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "up_http_requests_total",
			Help: "Общее количество HTTP-запросов к сервису сбора материалов",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "up_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к сервису сбора материалов в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Бизнес-метрики (экспортируются для обновления из сервисного слоя)
var (
	// UploadsTotal — количество загрузок по типу материала и результату.
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "up_uploads_total",
			Help: "Количество загрузок материалов",
		},
		[]string{"item", "result"},
	)

	// UploadBytes — суммарный объём принятых файлов.
	UploadBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "up_upload_bytes_total",
			Help: "Суммарный объём принятых файлов в байтах",
		},
	)

	// CheckFindingsTotal — количество замечаний автоматических проверок.
	CheckFindingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "up_check_findings_total",
			Help: "Количество замечаний автоматических проверок",
		},
		[]string{"item", "severity"},
	)

	// DeletesTotal — количество удалений материалов.
	DeletesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "up_deletes_total",
			Help: "Количество удалений материалов",
		},
		[]string{"result"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик: идентификаторы
			// докладов и токены заменяются на шаблон, иначе
			// кардинальность лейбла path растёт с каждым докладом
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

// normalizePath сводит путь запроса к шаблону маршрута.
// /api/upload/v-full_12/video-full/1735000000/AbCdEf01234 → /api/upload
func normalizePath(path string) string {
	switch path {
	case "/health/live", "/health/ready", "/metrics":
		return path
	}

	for _, prefix := range []string{
		"/api/upload",
		"/api/delete",
		"/api/download",
		"/api/items",
		"/api/urls",
		"/api/admin/submissions",
		"/api/admin/items",
	} {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return prefix
		}
	}
	return path
}
