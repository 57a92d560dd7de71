package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush lets streamed downloads flush through the wrapper
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware instruments HTTP handlers with request metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK, // Default to 200 if WriteHeader not called
		}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)
		method := r.Method
		status := strconv.Itoa(wrapped.statusCode)

		HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
		HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

// normalizePath normalizes URL paths for metric labels to avoid cardinality explosion.
// Record ids are replaced with :id; routes are reported with their /api prefix
// whether or not the request used it.
func normalizePath(path string) string {
	switch path {
	case "/", "/health", "/health/live", "/health/ready", "/metrics":
		return path
	}

	api := path
	if !strings.HasPrefix(api, "/api/") {
		api = "/api" + api
	}

	switch {
	case api == "/api/files":
		return "/api/files"
	case api == "/api/files/bulk":
		return "/api/files/bulk"
	case api == "/api/files/upload":
		return "/api/files/upload"
	case api == "/api/pitch-deck/files":
		return "/api/pitch-deck/files"
	case strings.HasPrefix(api, "/api/files/"):
		return "/api/files/:id"
	case strings.HasPrefix(api, "/api/download/"):
		if strings.HasSuffix(api, "/download") && strings.Count(api, "/") == 4 {
			return "/api/download/:id/download"
		}
		return "/api/download/:id"
	case strings.HasPrefix(path, "/assets/"):
		return "/assets/*"
	default:
		return "/other"
	}
}
