package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	m := NewMetrics()

	m.RecordFetch("ncaa", OutcomeOK, 10*time.Millisecond)
	m.RecordFetch("ncaa", OutcomeBlocked, time.Millisecond)
	NewTimer(m, "ncaa").Stop(OutcomeOK)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FetchesTotal.WithLabelValues("ncaa", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchesTotal.WithLabelValues("ncaa", OutcomeBlocked)))

	m.RecordDecode("team_aggregate", 30, map[string]int{"cell_count": 2})
	assert.Equal(t, 30.0, testutil.ToFloat64(m.RowsDecoded.WithLabelValues("team_aggregate")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RowsRejected.WithLabelValues("team_aggregate", "cell_count")))

	m.RecordEntity("team_stats", false)
	m.RecordEntity("team_stats", true)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BackfillEntities.WithLabelValues("team_stats")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BackfillFailures.WithLabelValues("team_stats")))

	m.JobStarted()
	m.JobStarted()
	m.JobFinished()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsActive))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordFetch("ncaa", OutcomeOK, time.Second)
	m.RecordDecode("x", 1, nil)
	m.RecordEntity("x", true)
	m.JobStarted()
	m.WSConnected()
	NewTimer(m, "ncaa").Stop(OutcomeError)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	m := NewMetrics()
	r := mux.NewRouter()
	r.Use(Middleware(m))
	r.HandleFunc("/api/v1/teams/{id}/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Handle("/metrics", m.Handler())

	for _, id := range []string{"746", "167"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/teams/"+id+"/stats", nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/api/v1/teams/{id}/stats", "418")))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "collegebaseball_http_requests_total")
}
