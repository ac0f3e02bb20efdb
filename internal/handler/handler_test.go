package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/journey-reconciler/internal/catalog"
	"github.com/noah-isme/journey-reconciler/internal/decoder"
	"github.com/noah-isme/journey-reconciler/internal/models"
	"github.com/noah-isme/journey-reconciler/internal/service"
	appErrors "github.com/noah-isme/journey-reconciler/pkg/errors"
)

type batchRunnerStub struct {
	mu      sync.Mutex
	got     []service.BatchRequest
	summary *models.BatchSummary
	err     error
	done    chan struct{}
}

func (s *batchRunnerStub) Run(_ context.Context, req service.BatchRequest) (*models.BatchSummary, error) {
	s.mu.Lock()
	s.got = append(s.got, req)
	s.mu.Unlock()
	if s.done != nil {
		close(s.done)
	}
	return s.summary, s.err
}

type historyStub struct {
	analysis *service.Analysis
	err      error
}

func (s historyStub) Get(_ context.Context, id string) (*service.Analysis, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := *s.analysis
	out.History.StudentID = id
	return &out, nil
}

type envelope struct {
	Data  json.RawMessage  `json:"data"`
	Error *appErrors.Error `json:"error"`
}

func serve(t *testing.T, r *gin.Engine, method, path string, body []byte) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func newTestRouter(t *testing.T, batches batchRunner, history historyGetter) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cat, err := catalog.Load("")
	require.NoError(t, err)
	metrics := service.NewMetricsService()
	return NewRouter(RouterConfig{
		Observer:       metrics,
		Reconciliation: NewReconciliationHandler(context.Background(), batches, nil),
		History:        NewHistoryHandler(history),
		Decode:         NewDecodeHandler(decoder.New(cat)),
		Metrics:        NewMetricsHandler(metrics, nil),
	})
}

func TestReconciliationHandlerRunsSynchronously(t *testing.T) {
	runner := &batchRunnerStub{summary: &models.BatchSummary{RunID: "run-1", StudentsProcessed: 3, StudentsReconciled: 3, JourneysCreated: 3}}
	r := newTestRouter(t, runner, historyStub{})

	body, _ := json.Marshal(map[string]interface{}{"batchSize": 50, "studentIds": []string{"stu-1"}, "mode": "per_period"})
	w, env := serve(t, r, http.MethodPost, "/api/v1/reconciliations", body)
	require.Equal(t, http.StatusOK, w.Code)

	var summary models.BatchSummary
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, 3, summary.JourneysCreated)

	require.Len(t, runner.got, 1)
	assert.Equal(t, 50, runner.got[0].BatchSize)
	assert.Equal(t, []string{"stu-1"}, runner.got[0].StudentIDs)
	assert.Equal(t, models.JourneyModePerPeriod, runner.got[0].Mode)
	assert.NotEmpty(t, runner.got[0].RunID)
}

func TestReconciliationHandlerEmptyBody(t *testing.T) {
	runner := &batchRunnerStub{summary: &models.BatchSummary{}}
	r := newTestRouter(t, runner, historyStub{})

	w, _ := serve(t, r, http.MethodPost, "/api/v1/reconciliations", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, runner.got, 1)
}

func TestReconciliationHandlerAsync(t *testing.T) {
	runner := &batchRunnerStub{summary: &models.BatchSummary{}, done: make(chan struct{})}
	r := newTestRouter(t, runner, historyStub{})

	w, env := serve(t, r, http.MethodPost, "/api/v1/reconciliations", []byte(`{"async":true}`))
	require.Equal(t, http.StatusAccepted, w.Code)

	var accepted struct {
		RunID  string `json:"runId"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &accepted))
	assert.Equal(t, "accepted", accepted.Status)

	select {
	case <-runner.done:
	case <-time.After(2 * time.Second):
		t.Fatal("async run never started")
	}
	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Equal(t, accepted.RunID, runner.got[0].RunID)
}

// drainingRunner keeps running after its context is cancelled, like a batch
// finishing its in-flight students.
type drainingRunner struct {
	started  chan struct{}
	finished atomic.Bool
}

func (r *drainingRunner) Run(ctx context.Context, _ service.BatchRequest) (*models.BatchSummary, error) {
	close(r.started)
	<-ctx.Done()
	time.Sleep(50 * time.Millisecond)
	r.finished.Store(true)
	return &models.BatchSummary{}, ctx.Err()
}

func TestReconciliationHandlerWaitsForAsyncRuns(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	runner := &drainingRunner{started: make(chan struct{})}
	h := NewReconciliationHandler(ctx, runner, nil)
	r := NewRouter(RouterConfig{Reconciliation: h})

	w, _ := serve(t, r, http.MethodPost, "/api/v1/reconciliations", []byte(`{"async":true}`))
	require.Equal(t, http.StatusAccepted, w.Code)
	<-runner.started

	cancel()
	require.NoError(t, h.Wait(context.Background()))
	assert.True(t, runner.finished.Load())
}

func TestReconciliationHandlerWaitHonoursDeadline(t *testing.T) {
	gin.SetMode(gin.TestMode)
	runner := &drainingRunner{started: make(chan struct{})}
	runCtx, stopRuns := context.WithCancel(context.Background())
	h := NewReconciliationHandler(runCtx, runner, nil)
	r := NewRouter(RouterConfig{Reconciliation: h})

	w, _ := serve(t, r, http.MethodPost, "/api/v1/reconciliations", []byte(`{"async":true}`))
	require.Equal(t, http.StatusAccepted, w.Code)
	<-runner.started

	waitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.Wait(waitCtx), context.DeadlineExceeded)

	stopRuns()
	require.NoError(t, h.Wait(context.Background()))
}

func TestReconciliationHandlerErrors(t *testing.T) {
	runner := &batchRunnerStub{err: appErrors.Clone(appErrors.ErrValidation, "invalid reconciliation request")}
	r := newTestRouter(t, runner, historyStub{})

	w, env := serve(t, r, http.MethodPost, "/api/v1/reconciliations", []byte(`{"mode":"weekly"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, env.Error.Code)

	w, _ = serve(t, r, http.MethodPost, "/api/v1/reconciliations", []byte(`{not json`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	runner.err = errors.New("ledger unreachable")
	w, _ = serve(t, r, http.MethodPost, "/api/v1/reconciliations", []byte(`{}`))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHistoryHandler(t *testing.T) {
	analysis := &service.Analysis{History: models.StudentProgramHistory{FinalAcademicMajor: "Psychology", TermsAnalyzed: 4}}
	r := newTestRouter(t, &batchRunnerStub{}, historyStub{analysis: analysis})

	w, env := serve(t, r, http.MethodGet, "/api/v1/students/stu-7/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got service.Analysis
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "stu-7", got.History.StudentID)
	assert.Equal(t, "Psychology", got.History.FinalAcademicMajor)

	r = newTestRouter(t, &batchRunnerStub{}, historyStub{err: appErrors.Clone(appErrors.ErrNotFound, "student not found")})
	w, env = serve(t, r, http.MethodGet, "/api/v1/students/ghost/history", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "student not found", env.Error.Message)
}

func TestDecodeHandler(t *testing.T) {
	r := newTestRouter(t, &batchRunnerStub{}, historyStub{})

	w, env := serve(t, r, http.MethodGet, "/api/v1/decode?token=IEAP-4M%2FB_Listening&program=ieap", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		Reference   models.DecodedCourseReference `json:"reference"`
		MatchedRule string                        `json:"matchedRule"`
		Warnings    []map[string]string           `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "IEAP-04", got.Reference.CourseCode)
	assert.Equal(t, "B", got.Reference.Section)
	assert.Empty(t, got.Warnings)

	w, env = serve(t, r, http.MethodGet, "/api/v1/decode?token=%23%21%3F&program=IEAP", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got.Reference, got.Warnings = models.DecodedCourseReference{}, nil
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Empty(t, got.Reference.CourseCode)
	codes := make([]string, 0, len(got.Warnings))
	for _, warning := range got.Warnings {
		codes = append(codes, warning["code"])
	}
	assert.Contains(t, codes, string(decoder.WarnUnmatchedPattern))

	w, _ = serve(t, r, http.MethodGet, "/api/v1/decode", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsAndHealth(t *testing.T) {
	r := newTestRouter(t, &batchRunnerStub{}, historyStub{})

	w, _ := serve(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = serve(t, r, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `http_requests_total{method="GET",path="/health",status="200"} 1`)
}

func TestReadyReportsFailingProbe(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewMetricsHandler(nil, map[string]Probe{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	})
	r := NewRouter(RouterConfig{Metrics: h})

	w, _ := serve(t, r, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "ok", body.Checks["postgres"])
	assert.Equal(t, "connection refused", body.Checks["redis"])

	w, _ = serve(t, r, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestReadyWithoutProbes(t *testing.T) {
	r := newTestRouter(t, &batchRunnerStub{}, historyStub{})
	w, _ := serve(t, r, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
