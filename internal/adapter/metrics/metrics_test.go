package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/eventsync/internal/domain"
)

func TestRecorder_GeocodeOutcome(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.GeocodeOutcome("venue", domain.GeocodeStatusSuccess)
	r.GeocodeOutcome("venue", domain.GeocodeStatusSuccess)
	r.GeocodeOutcome("provider", domain.GeocodeStatusFailed)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.geocode.WithLabelValues("venue", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.geocode.WithLabelValues("provider", "failed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.geocode.WithLabelValues("feed", "cached")))
}

func TestRecorder_RunCompleted(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.RunCompleted(domain.SyncStats{Processed: 5, Inserted: 3, Skipped: 2, DurationMs: 1500}, nil)
	r.RunCompleted(domain.SyncStats{Processed: 2, WouldInsert: 2, DryRunOnly: true}, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.runs.WithLabelValues("ok", "apply")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runs.WithLabelValues("ok", "dry_run")))
	assert.Equal(t, 7.0, testutil.ToFloat64(r.events.WithLabelValues("processed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.lastRunEvents.WithLabelValues("processed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.lastRunEvents.WithLabelValues("inserted")))
	assert.Greater(t, testutil.ToFloat64(r.lastSuccessTS), 0.0)
}

func TestRecorder_RunCompleted_Failed(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.RunCompleted(domain.SyncStats{}, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(r.runs.WithLabelValues("failed", "apply")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.lastSuccessTS))
}

func TestRecorder_Handler(t *testing.T) {
	r := New(prometheus.NewRegistry())
	r.GeocodeOutcome("feed", domain.GeocodeStatusCached)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `eventsync_geocode_resolutions_total{source="feed",status="cached"} 1`)
}

func TestRecorder_Push(t *testing.T) {
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotPath = req.URL.Path
		b, _ := io.ReadAll(req.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := New(prometheus.NewRegistry())
	r.RunCompleted(domain.SyncStats{Processed: 1, Inserted: 1}, nil)

	require.NoError(t, r.Push(context.Background(), srv.URL, "eventsync"))
	assert.True(t, strings.HasPrefix(gotPath, "/metrics/job/eventsync"), "path = %s", gotPath)
	assert.NotEmpty(t, gotBody)
}

func TestRecorder_Push_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := New(prometheus.NewRegistry())
	assert.Error(t, r.Push(context.Background(), srv.URL, "eventsync"))
}
