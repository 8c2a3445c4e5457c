package elevation

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carceral-ecologies/pfas-cli/internal/resilience"
)

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 1}
}

func newTestClient(srv *httptest.Server) Client {
	return New(srv.URL, "ned10m",
		WithHTTPClient(srv.Client()),
		WithRateLimit(1000),
		WithRetry(fastRetry()),
	)
}

func TestLookupPreservesOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.Path, "/ned10m"))
		locs := r.URL.Query().Get("locations")
		n := strings.Count(locs, "|") + 1
		var results []string
		for i := 0; i < n; i++ {
			results = append(results, fmt.Sprintf(`{"elevation": %d.0, "location": {"lat": 39.0, "lng": -77.0}}`, (i+1)*10))
		}
		fmt.Fprintf(w, `{"status": "OK", "results": [%s]}`, strings.Join(results, ","))
	}))
	defer srv.Close()

	results, err := newTestClient(srv).Lookup(context.Background(), []Point{
		{Lon: -77.0, Lat: 39.0},
		{Lon: -76.5, Lat: 39.1},
		{Lon: -76.0, Lat: 39.2},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.InDelta(t, 10.0, results[0].Elevation, 1e-9)
	assert.InDelta(t, 20.0, results[1].Elevation, 1e-9)
	assert.InDelta(t, 30.0, results[2].Elevation, 1e-9)
	assert.Equal(t, "m", results[0].Unit)
}

func TestLookupRetriesTransient(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"status": "OK", "results": [{"elevation": 42.0, "location": {"lat": 39.0, "lng": -77.0}}]}`)
	}))
	defer srv.Close()

	results, err := newTestClient(srv).Lookup(context.Background(), []Point{{Lon: -77, Lat: 39}})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.InDelta(t, 42.0, results[0].Elevation, 1e-9)
}

func TestLookupNoCoverageIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status": "OK", "results": [{"elevation": null, "location": {"lat": 0.0, "lng": 0.0}}]}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Lookup(context.Background(), []Point{{Lon: -160, Lat: 20}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no coverage")
}

func TestLookupServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status": "INVALID_REQUEST", "error": "bad dataset"}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Lookup(context.Background(), []Point{{Lon: -77, Lat: 39}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_REQUEST")
}

func TestLookupCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status": "OK", "results": []}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Lookup(context.Background(), []Point{{Lon: -77, Lat: 39}})
	assert.Error(t, err)
}

func TestLookupRejectsOversizeBatch(t *testing.T) {
	c := New("http://localhost", "ned10m")
	_, err := c.Lookup(context.Background(), make([]Point, MaxBatchSize+1))
	assert.Error(t, err)
}

func TestLookupEmptyBatch(t *testing.T) {
	c := New("http://localhost", "ned10m")
	results, err := c.Lookup(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, results)
}
