package ncaa

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/collegebaseball/internal/monitoring"
)

func testClient(m *monitoring.Metrics) *Client {
	return NewClient(ClientConfig{
		Source:       "ncaa",
		Timeout:      5 * time.Second,
		RetryMax:     1,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 2 * time.Millisecond,
	}, nil, m)
}

func TestClientFetch(t *testing.T) {
	var hits atomic.Int32
	var agent atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		agent.Store(r.UserAgent())
		switch r.URL.Path {
		case "/ok":
			_, _ = w.Write([]byte("<html>ok</html>"))
		case "/blocked":
			w.WriteHeader(http.StatusForbidden)
		case "/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	tests := []struct {
		name     string
		path     string
		wantBody string
		wantErr  func(t *testing.T, err error)
		wantHits int32
		outcome  string
	}{
		{
			name:     "ok",
			path:     "/ok",
			wantBody: "<html>ok</html>",
			wantHits: 1,
			outcome:  monitoring.OutcomeOK,
		},
		{
			name: "blocked is not retried",
			path: "/blocked",
			wantErr: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrBlocked)
			},
			wantHits: 1,
			outcome:  monitoring.OutcomeBlocked,
		},
		{
			name: "server error is retried",
			path: "/broken",
			wantErr: func(t *testing.T, err error) {
				var se *StatusError
				require.True(t, errors.As(err, &se))
				assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
			},
			wantHits: 2,
			outcome:  monitoring.OutcomeError,
		},
		{
			name: "not found",
			path: "/missing",
			wantErr: func(t *testing.T, err error) {
				var se *StatusError
				require.True(t, errors.As(err, &se))
				assert.Equal(t, http.StatusNotFound, se.StatusCode)
			},
			wantHits: 1,
			outcome:  monitoring.OutcomeError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits.Store(0)
			m := monitoring.NewMetrics()
			body, err := testClient(m).Fetch(context.Background(), srv.URL+tt.path)
			if tt.wantErr != nil {
				require.Error(t, err)
				tt.wantErr(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantBody, string(body))
			}
			assert.Equal(t, tt.wantHits, hits.Load())
			assert.Equal(t, DefaultUserAgent, agent.Load())
			assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchesTotal.WithLabelValues("ncaa", tt.outcome)))
		})
	}
}

func TestClientHonoursContext(t *testing.T) {
	c := NewClient(ClientConfig{MaxJitter: time.Hour, Timeout: time.Second}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Fetch(ctx, "http://127.0.0.1:1/never")
	assert.ErrorIs(t, err, context.Canceled)
}
