package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okian/aura/pkg/metrics"
)

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// MetricsMiddleware records request counts and latency per endpoint.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next(rw, r)
		metrics.RecordHTTPRequest(endpoint, r.Method, strconv.Itoa(rw.status), time.Since(start).Seconds())
	}
}

// pathTail returns the path segment after prefix, or "" when absent.
func pathTail(r *http.Request, prefix string) string {
	tail := strings.TrimPrefix(r.URL.Path, prefix)
	return strings.Trim(tail, "/")
}
