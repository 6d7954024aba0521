package metrics

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const exportFilesPrefix = "/api/exports/files/"

// Resource identifiers that would otherwise give every facility, station and
// run its own series.
var idPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`),
	regexp.MustCompile(`TSF-[A-Z]+-\d{3}`),
	regexp.MustCompile(`(ENV-MON-\d{3}|QGIS_[A-Za-z0-9_]+)`),
}

// statusRecorder captures the status code and body size of a response.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int
	started bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.started {
		sr.status = code
		sr.started = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	sr.started = true
	n, err := sr.ResponseWriter.Write(b)
	sr.written += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

// normalizePath collapses resource IDs and export file keys into
// placeholders.
func normalizePath(path string) string {
	if strings.HasPrefix(path, exportFilesPrefix) {
		return exportFilesPrefix + "{key}"
	}
	for _, p := range idPatterns {
		path = p.ReplaceAllString(path, "{id}")
	}
	return path
}

// Middleware records request count, latency and response size per
// normalized path. /metrics and the /ws stream are passed through untouched.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" || r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}

		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		path := normalizePath(r.URL.Path)
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(elapsed.Seconds())
		HTTPResponseBytes.WithLabelValues(path).Observe(float64(rec.written))
	})
}
