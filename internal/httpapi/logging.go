package httpapi

import (
	"expvar"
	"log"
	"net/http"
	"time"
)

var (
	requestsTotal     = expvar.NewInt("requests_total")
	requestsErrors    = expvar.NewInt("requests_errors_total")
	responsesByStatus = expvar.NewMap("responses_by_status_class")
)

// slowRequest is the threshold above which successful reads are logged.
const slowRequest = 500 * time.Millisecond

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware counts every request and logs it. Successful GETs are the
// screens polling every few seconds, so those are only logged when slow.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		writer := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(writer, r)
		duration := time.Since(start)

		requestsTotal.Add(1)
		responsesByStatus.Add(statusClass(writer.status), 1)
		failed := writer.status >= http.StatusBadRequest
		if failed {
			requestsErrors.Add(1)
		}
		if r.Method == http.MethodGet && !failed && duration < slowRequest {
			return
		}
		log.Printf("request method=%s path=%s status=%d duration_ms=%d device=%s request_id=%s",
			r.Method, r.URL.Path, writer.status, duration.Milliseconds(), r.Header.Get(deviceHeader), r.Header.Get("X-Request-ID"))
	})
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
