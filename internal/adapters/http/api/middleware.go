package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/okian/duelist/pkg/metrics"
)

// MetricsMiddleware records request counts, latencies and error classes
// for one endpoint.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		durationMs := float64(time.Since(start).Microseconds()) / 1000
		status := strconv.Itoa(sw.status)
		metrics.RecordHTTPRequest(endpoint, r.Method, status)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, status, durationMs)

		if class, severity, ok := classifyStatus(sw.status); ok {
			metrics.RecordErrorByEndpoint(endpoint, r.Method, class)
			metrics.RecordErrorByType(class, severity)
			metrics.RecordErrorLatency("http", class, durationMs)
		}
	}
}

// classifyStatus maps an error status to the class and severity used in
// metrics labels. ok is false for non-error statuses.
func classifyStatus(status int) (class, severity string, ok bool) {
	switch {
	case status < http.StatusBadRequest:
		return "", "", false
	case status == http.StatusServiceUnavailable:
		return "unavailable", "high", true
	case status >= http.StatusInternalServerError:
		return "server_error", "high", true
	case status == http.StatusConflict:
		return "conflict", "low", true
	case status == http.StatusNotFound:
		return "not_found", "medium", true
	default:
		return "client_error", "medium", true
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}
