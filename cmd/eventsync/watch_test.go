package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/eventsync/internal/domain"
)

func getHealth(t *testing.T, state *watchState) (int, healthResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	healthHandler(state).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func TestHealthHandler_BeforeFirstRun(t *testing.T) {
	code, resp := getHealth(t, &watchState{})

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.LastRun)
	assert.Nil(t, resp.LastRunAt)
}

func TestHealthHandler_AfterRuns(t *testing.T) {
	state := &watchState{}
	at := time.Date(2025, 11, 15, 12, 0, 0, 0, time.UTC)

	state.record(domain.SyncStats{RunID: "run_a"}, errors.New("calendar not found"), at)
	code, resp := getHealth(t, state)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "calendar not found", resp.LastError)

	state.record(domain.SyncStats{RunID: "run_b", Inserted: 2}, nil, at.Add(time.Minute))
	code, resp = getHealth(t, state)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp.Status)
	require.NotNil(t, resp.LastRun)
	assert.Equal(t, "run_b", resp.LastRun.RunID)
	assert.Equal(t, 2, resp.LastRun.Inserted)
}

func TestCronLogger(t *testing.T) {
	var buf bytes.Buffer
	l := cronLogger{log: slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))}

	l.Info("skip", "now", "x")
	l.Error(errors.New("panic"), "job failed")

	out := buf.String()
	assert.Contains(t, out, "cron: skip")
	assert.Contains(t, out, "cron: job failed")
	assert.Contains(t, out, "error=panic")
}
