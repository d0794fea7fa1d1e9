package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/fire-incident-pipeline/internal/adapter/http"
	"github.com/couchcryptid/fire-incident-pipeline/internal/pipeline"
	"github.com/couchcryptid/fire-incident-pipeline/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStatus struct {
	err  error
	last *pipeline.RunSummary
}

func (m *mockStatus) CheckReadiness(_ context.Context) error { return m.err }

func (m *mockStatus) LastSummary() (pipeline.RunSummary, bool) {
	if m.last == nil {
		return pipeline.RunSummary{}, false
	}
	return *m.last, true
}

type mockJobs []scheduler.JobInfo

func (m mockJobs) Jobs() []scheduler.JobInfo { return m }

func newTestServer(status *mockStatus) *httpadapter.Server {
	return httpadapter.NewServer(":0", status, nil, slog.Default())
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(&mockStatus{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv := newTestServer(&mockStatus{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newTestServer(&mockStatus{err: fmt.Errorf("pipeline has not completed a run yet")})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(&mockStatus{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestStatusBeforeFirstRun(t *testing.T) {
	srv := newTestServer(&mockStatus{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"last_run":null}`, rec.Body.String())
}

func TestStatusReportsLastRunAndJobs(t *testing.T) {
	started := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	status := &mockStatus{last: &pipeline.RunSummary{
		RunID:     "01JH6Z0000000000000000000",
		Stage:     pipeline.StageDone,
		StartedAt: started,
		Verified:  2,
		Notified:  true,
	}}
	jobs := mockJobs{{Name: "run", Spec: "@every 1h", NextRun: started.Add(time.Hour)}}
	srv := httpadapter.NewServer(":0", status, jobs, slog.Default())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)

	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		LastRun pipeline.RunSummary `json:"last_run"`
		Jobs    []scheduler.JobInfo `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, pipeline.StageDone, body.LastRun.Stage)
	assert.Equal(t, 2, body.LastRun.Verified)
	assert.True(t, body.LastRun.Notified)
	require.Len(t, body.Jobs, 1)
	assert.Equal(t, "@every 1h", body.Jobs[0].Spec)
}
