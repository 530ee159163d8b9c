package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records every request against its route template, so
// /api/v1/teams/746/stats and /api/v1/teams/167/stats share a series.
func Middleware(m *Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			path := r.URL.Path
			if route := mux.CurrentRoute(r); route != nil {
				if tmpl, err := route.GetPathTemplate(); err == nil {
					path = tmpl
				}
			}
			m.RecordHTTPRequest(r.Method, path, strconv.Itoa(rec.status), time.Since(start))
		})
	}
}

// Timer measures a fetch.
type Timer struct {
	start   time.Time
	metrics *Metrics
	source  string
}

// NewTimer starts timing a fetch from source.
func NewTimer(m *Metrics, source string) *Timer {
	return &Timer{start: time.Now(), metrics: m, source: source}
}

// Stop records the fetch with its outcome.
func (t *Timer) Stop(outcome string) {
	t.metrics.RecordFetch(t.source, outcome, time.Since(t.start))
}
