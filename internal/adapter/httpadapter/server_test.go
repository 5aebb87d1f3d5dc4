package httpadapter_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/storm-radar-etl/internal/adapter/httpadapter"
	"github.com/couchcryptid/storm-radar-etl/internal/domain"
	"github.com/couchcryptid/storm-radar-etl/internal/pipeline"
	"github.com/couchcryptid/storm-radar-etl/internal/state"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockSubmitter struct {
	got   *pipeline.Request
	ctx   context.Context
	runID string
	err   error
}

func (m *mockSubmitter) Submit(ctx context.Context, req pipeline.Request) (string, error) {
	m.got = &req
	m.ctx = ctx
	return m.runID, m.err
}

type ctxKey struct{}

var testNow = time.Date(2024, time.April, 26, 15, 10, 30, 0, time.UTC)

var testDefaults = pipeline.Defaults{
	Site:      "KDMX",
	Threshold: 0.5,
	Stride:    1,
	Cluster:   false,
	Params:    domain.ClusterParams{Eps: 0.05, MinPts: 10},
}

type fixture struct {
	srv   *httpadapter.Server
	st    *state.State
	runs  *mockSubmitter
	base  context.Context
	ready *mockReadiness
}

func newFixture() *fixture {
	f := &fixture{
		st:    state.New(),
		runs:  &mockSubmitter{runID: "run-1"},
		base:  context.WithValue(context.Background(), ctxKey{}, "service"),
		ready: &mockReadiness{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.srv = httpadapter.NewServer(f.base, ":0", f.ready, f.runs, f.st, testDefaults, logger,
		httpadapter.WithClock(clockwork.NewFakeClockAt(testNow)))
	return f
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, httptest.NewRequest(method, target, r))
	return rec
}

func completedResult() *state.Result {
	white := domain.RGB{R: 255, G: 255, B: 255}
	return &state.Result{
		RunID:       "run-7",
		Site:        "KDMX",
		Scan:        "KDMX20240426_150502_V06",
		CompletedAt: testNow,
		Points: []domain.ColoredPoint{
			{Pos: r3.Vec{X: 1, Y: 2, Z: 3}, Strength: 12, Raw: domain.RGB{R: 1, G: 2, B: 3}, Cluster: white},
			{Pos: r3.Vec{X: 4, Y: 5, Z: 6}, Strength: 45, Raw: domain.RGB{R: 4, G: 5, B: 6}, Cluster: white},
			{Pos: r3.Vec{X: 7, Y: 8, Z: 9}, Strength: 60, Raw: domain.RGB{R: 7, G: 8, B: 9}, Cluster: white},
		},
		Clusters: []domain.ClusterSummary{{ID: 0, Size: 2, CoreCount: 2, MaxStrength: 60}},
		Statistics: state.Statistics{
			DecodeMS:      12,
			DerivedPoints: 3,
			SampledPoints: 3,
			Clusters:      1,
			NoisePoints:   1,
		},
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// --- operational endpoints ---

func TestHealthzReturns200(t *testing.T) {
	rec := newFixture().do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyz(t *testing.T) {
	f := newFixture()
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/readyz", "").Code)

	f.ready.err = fmt.Errorf("no scan has been processed yet")
	assert.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodGet, "/readyz", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := newFixture().do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

// --- state ---

func TestState_Empty(t *testing.T) {
	rec := newFixture().do(http.MethodGet, "/api/v1/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := decode[map[string]any](t, rec)
	assert.Equal(t, false, body["processing"])
	assert.NotContains(t, body, "statistics")
	assert.NotContains(t, body, "last_error")
}

func TestState_AfterRunAndFailure(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.st.Begin("run-7"))
	f.st.Complete(completedResult())
	require.NoError(t, f.st.Begin("run-8"))
	f.st.Fail(errors.New("fetch: connection reset"), testNow)

	body := decode[map[string]any](t, f.do(http.MethodGet, "/api/v1/state", ""))
	assert.Equal(t, false, body["processing"])
	assert.Equal(t, "run-7", body["run_id"])
	assert.Equal(t, "KDMX20240426_150502_V06", body["scan_id"])
	assert.Equal(t, 3.0, body["points"])
	assert.Equal(t, 1.0, body["clusters"])
	assert.Equal(t, "fetch: connection reset", body["last_error"])

	stats, ok := body["statistics"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 12.0, stats["decode_ms"])
}

// --- points ---

type pointsBody struct {
	RunID  string `json:"run_id"`
	Mode   string `json:"mode"`
	Total  int    `json:"total"`
	Points []struct {
		X        float64    `json:"x"`
		Y        float64    `json:"y"`
		Z        float64    `json:"z"`
		Strength float64    `json:"strength"`
		Color    domain.RGB `json:"color"`
	} `json:"points"`
}

func TestPoints_NoResult(t *testing.T) {
	body := decode[pointsBody](t, newFixture().do(http.MethodGet, "/api/v1/points", ""))
	assert.Equal(t, "raw", body.Mode)
	assert.Zero(t, body.Total)
	assert.NotNil(t, body.Points)
	assert.Empty(t, body.Points)
}

func TestPoints_Modes(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.st.Begin("run-7"))
	f.st.Complete(completedResult())

	raw := decode[pointsBody](t, f.do(http.MethodGet, "/api/v1/points", ""))
	require.Len(t, raw.Points, 3)
	assert.Equal(t, "run-7", raw.RunID)
	assert.Equal(t, domain.RGB{R: 4, G: 5, B: 6}, raw.Points[1].Color)
	assert.Equal(t, 5.0, raw.Points[1].Y)
	assert.Equal(t, 45.0, raw.Points[1].Strength)

	debug := decode[pointsBody](t, f.do(http.MethodGet, "/api/v1/points?mode=cluster", ""))
	assert.Equal(t, "cluster", debug.Mode)
	assert.Equal(t, domain.RGB{R: 255, G: 255, B: 255}, debug.Points[1].Color)
}

func TestPoints_Limit(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.st.Begin("run-7"))
	f.st.Complete(completedResult())

	body := decode[pointsBody](t, f.do(http.MethodGet, "/api/v1/points?limit=2", ""))
	assert.Equal(t, 3, body.Total)
	assert.Len(t, body.Points, 2)

	body = decode[pointsBody](t, f.do(http.MethodGet, "/api/v1/points?limit=10", ""))
	assert.Len(t, body.Points, 3)
}

func TestPoints_BadQuery(t *testing.T) {
	f := newFixture()
	for _, target := range []string{
		"/api/v1/points?mode=sepia",
		"/api/v1/points?limit=-1",
		"/api/v1/points?limit=ten",
	} {
		t.Run(target, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, target, "").Code)
		})
	}
}

// --- clusters ---

func TestClusters(t *testing.T) {
	f := newFixture()

	empty := decode[map[string]any](t, f.do(http.MethodGet, "/api/v1/clusters", ""))
	assert.Equal(t, []any{}, empty["clusters"])

	require.NoError(t, f.st.Begin("run-7"))
	f.st.Complete(completedResult())

	body := decode[struct {
		RunID    string                  `json:"run_id"`
		Noise    int                     `json:"noise_points"`
		Clusters []domain.ClusterSummary `json:"clusters"`
	}](t, f.do(http.MethodGet, "/api/v1/clusters", ""))
	assert.Equal(t, "run-7", body.RunID)
	assert.Equal(t, 1, body.Noise)
	require.Len(t, body.Clusters, 1)
	assert.Equal(t, 2, body.Clusters[0].Size)
}

// --- runs ---

func TestSubmitRun_Defaults(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodPost, "/api/v1/runs", "")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, "run-1", decode[map[string]string](t, rec)["run_id"])

	require.NotNil(t, f.runs.got)
	got := *f.runs.got
	assert.Equal(t, "KDMX", got.Site)
	assert.Equal(t, time.Date(2024, time.April, 26, 0, 0, 0, 0, time.UTC), got.Date)
	assert.Equal(t, domain.NewTimeOfDay(15, 10, 30), got.Time)
	assert.Equal(t, 0.5, got.Threshold)
	assert.False(t, got.Cluster)
	assert.False(t, got.IncludeFolded)
	assert.Equal(t, "service", f.runs.ctx.Value(ctxKey{}), "runs are bound to the service context")
}

func TestSubmitRun_Overrides(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodPost, "/api/v1/runs", `{
		"site": "ktlx",
		"date": "2023-04-06",
		"time": "00:05:00",
		"threshold": 20,
		"stride": 3,
		"include_folded": true,
		"cluster": true,
		"eps": 0.02,
		"min_points": 4
	}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	got := *f.runs.got
	assert.Equal(t, pipeline.Request{
		Site:          "KTLX",
		Date:          time.Date(2023, time.April, 6, 0, 0, 0, 0, time.UTC),
		Time:          domain.NewTimeOfDay(0, 5, 0),
		Threshold:     20,
		Stride:        3,
		IncludeFolded: true,
		Cluster:       true,
		Params:        domain.ClusterParams{Eps: 0.02, MinPts: 4},
	}, got)
}

func TestSubmitRun_BadBody(t *testing.T) {
	for name, body := range map[string]string{
		"malformed json": `{"site":`,
		"unknown field":  `{"sight":"KDMX"}`,
		"bad date":       `{"date":"04/06/2023"}`,
		"bad time":       `{"time":"25:00:00"}`,
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			rec := f.do(http.MethodPost, "/api/v1/runs", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Nil(t, f.runs.got, "nothing is submitted")
		})
	}
}

func TestSubmitRun_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"input", fmt.Errorf("%w: stride 0", domain.ErrInvalidStride), http.StatusBadRequest},
		{"busy", state.ErrAlreadyProcessing, http.StatusConflict},
		{"upstream", &pipeline.UpstreamError{Stage: "list", Err: errors.New("timeout")}, http.StatusBadGateway},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.runs.err = tt.err

			rec := f.do(http.MethodPost, "/api/v1/runs", `{}`)
			assert.Equal(t, tt.want, rec.Code)
			assert.Contains(t, decode[map[string]string](t, rec)["error"], tt.err.Error())
		})
	}
}

func TestSubmitRun_MethodNotAllowed(t *testing.T) {
	rec := newFixture().do(http.MethodGet, "/api/v1/runs", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
