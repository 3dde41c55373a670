package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"mockmes/internal/mes"
	"mockmes/internal/routing"
	"mockmes/internal/sfc"
	"mockmes/internal/status"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestService(t *testing.T) *mes.Service {
	t.Helper()
	opts := mes.DefaultOptions()
	opts.Catalog.Rand = rand.New(rand.NewPCG(7, 7))
	opts.Rand = rand.New(rand.NewPCG(8, 8))
	svc, err := mes.New(opts)
	require.NoError(t, err)
	return svc
}

func newTestHandler(t *testing.T, opts ...Option) (http.Handler, *mes.Service) {
	t.Helper()
	svc := newTestService(t)
	return NewServer(Settings{Host: "127.0.0.1"}, svc, opts...).Handler(), svc
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestServer_RoutingEndpoints(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := do(t, h, http.MethodPost, "/routing", `{"operations":3}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	r := decode[routing.Routing](t, rec)
	assert.Equal(t, "ROUTING1", r.ID)
	require.Len(t, r.Operations, 3)
	assert.Equal(t, status.Blank, r.Operations[2].State)

	rec = do(t, h, http.MethodPost, "/routing", "")
	require.Equal(t, http.StatusOK, rec.Code)
	r = decode[routing.Routing](t, rec)
	assert.Equal(t, "ROUTING2", r.ID)
	assert.NotEmpty(t, r.Operations)

	rec = do(t, h, http.MethodGet, "/routing/ROUTING1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[routing.Routing](t, rec).Operations, 3)

	rec = do(t, h, http.MethodGet, "/routings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[map[string]routing.Operations](t, rec)
	assert.Len(t, all, 2)
	assert.Len(t, all["ROUTING1"], 3)
}

func TestServer_SFCLifecycle(t *testing.T) {
	h, _ := newTestHandler(t)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/routing", `{"operations":3}`).Code)

	rec := do(t, h, http.MethodPost, "/sfc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	created := decode[sfc.Record](t, rec)
	assert.Equal(t, "SFCMOCK1", created.ID)
	assert.Equal(t, status.StatusNew, created.Status)
	assert.NotContains(t, rec.Body.String(), "routing_id")

	rec = do(t, h, http.MethodPost, "/sfc/SFCMOCK1/assign_routing", `{"routing_id":"ROUTING1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assigned := decode[sfc.Record](t, rec)
	assert.Equal(t, "ROUTING1", assigned.RoutingID)
	assert.Equal(t, []status.State{status.InWork, status.Blank, status.Blank}, assigned.Operations.States())

	rec = do(t, h, http.MethodPost, "/sfc/SFCMOCK1/advance", "")
	require.Equal(t, http.StatusOK, rec.Code)
	tr := decode[sfc.Transition](t, rec)
	assert.True(t, tr.Changed)
	assert.Equal(t, []status.State{status.Done, status.InWork, status.Blank}, tr.Operations.States())
	assert.Equal(t, status.StatusInWork, tr.Status)

	rec = do(t, h, http.MethodPost, "/sfc/SFCMOCK1/force_advance", `{"step":3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	tr = decode[sfc.Transition](t, rec)
	assert.Equal(t, []status.State{status.Done, status.Bypassed, status.InWork}, tr.Operations.States())

	rec = do(t, h, http.MethodPost, "/sfc/SFCMOCK1/rollback_single", "")
	require.Equal(t, http.StatusOK, rec.Code)
	tr = decode[sfc.Transition](t, rec)
	assert.Equal(t, []status.State{status.Done, status.InWork, status.Blank}, tr.Operations.States())

	rec = do(t, h, http.MethodPost, "/sfc/SFCMOCK1/rollback", `{"step":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	tr = decode[sfc.Transition](t, rec)
	assert.Equal(t, []status.State{status.InWork, status.Blank, status.Blank}, tr.Operations.States())

	for range 3 {
		require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/sfc/SFCMOCK1/complete", "").Code)
	}
	rec = do(t, h, http.MethodPost, "/sfc/SFCMOCK1/advance", "")
	require.Equal(t, http.StatusOK, rec.Code)
	tr = decode[sfc.Transition](t, rec)
	assert.False(t, tr.Changed)
	assert.Equal(t, status.StatusDone, tr.Status)

	rec = do(t, h, http.MethodGet, "/sfc/SFCMOCK1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, status.StatusDone, decode[sfc.Record](t, rec).Status)

	rec = do(t, h, http.MethodGet, "/sfc/SFCMOCK1/routing_state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	state := decode[sfc.RoutingState](t, rec)
	assert.Equal(t, "ROUTING1", state.RoutingID)
	assert.Len(t, state.Operations, 3)

	rec = do(t, h, http.MethodGet, "/sfc/SFCMOCK1/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	hist := decode[historyResponse](t, rec)
	assert.Equal(t, "SFCMOCK1", hist.SFCID)
	require.NotEmpty(t, hist.Entries)
	assert.Equal(t, sfc.ActionCreate, hist.Entries[0].Action)
	assert.Equal(t, sfc.ActionComplete, hist.Entries[len(hist.Entries)-1].Action)
}

func TestServer_Errors(t *testing.T) {
	h, _ := newTestHandler(t)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/routing", `{"operations":2}`).Code)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/sfc", "").Code)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/sfc", "").Code)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/sfc/SFCMOCK1/assign_routing", `{"routing_id":"ROUTING1"}`).Code)

	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		wantCode int
		wantKind string
		wantMsg  string
	}{
		{"unknown sfc", http.MethodGet, "/sfc/SFCMOCK99", "", http.StatusNotFound, "not_found", "sfc not found"},
		{"unknown routing", http.MethodGet, "/routing/ROUTING9", "", http.StatusNotFound, "not_found", "routing not found"},
		{"assign unknown routing", http.MethodPost, "/sfc/SFCMOCK1/assign_routing", `{"routing_id":"ROUTING9"}`, http.StatusNotFound, "not_found", ""},
		{"assign without routing id", http.MethodPost, "/sfc/SFCMOCK1/assign_routing", `{}`, http.StatusBadRequest, "invalid_argument", "routing_id not provided"},
		{"advance unknown sfc", http.MethodPost, "/sfc/SFCMOCK99/advance", "", http.StatusNotFound, "not_found", ""},
		{"rollback without step", http.MethodPost, "/sfc/SFCMOCK1/rollback", `{}`, http.StatusBadRequest, "invalid_argument", "step not provided"},
		{"rollback empty body", http.MethodPost, "/sfc/SFCMOCK1/rollback", "", http.StatusBadRequest, "invalid_argument", "step not provided"},
		{"rollback non-integer step", http.MethodPost, "/sfc/SFCMOCK1/rollback", `{"step":"two"}`, http.StatusBadRequest, "invalid_argument", "invalid JSON body"},
		{"rollback fractional step", http.MethodPost, "/sfc/SFCMOCK1/rollback", `{"step":1.5}`, http.StatusBadRequest, "invalid_argument", "invalid JSON body"},
		{"rollback step out of range", http.MethodPost, "/sfc/SFCMOCK1/rollback", `{"step":3}`, http.StatusBadRequest, "invalid_argument", "invalid step"},
		{"force advance step zero", http.MethodPost, "/sfc/SFCMOCK1/force_advance", `{"step":0}`, http.StatusBadRequest, "invalid_argument", ""},
		{"force advance unknown sfc", http.MethodPost, "/sfc/SFCMOCK99/force_advance", `{"step":1}`, http.StatusNotFound, "not_found", ""},
		{"rollback single at first operation", http.MethodPost, "/sfc/SFCMOCK1/rollback_single", "", http.StatusConflict, "failed_precondition", "cannot rollback the first operation"},
		{"rollback single without routing", http.MethodPost, "/sfc/SFCMOCK2/rollback_single", "", http.StatusConflict, "failed_precondition", "no operation currently in work"},
		{"create routing too many operations", http.MethodPost, "/routing", `{"operations":16}`, http.StatusBadRequest, "invalid_argument", ""},
		{"create routing malformed body", http.MethodPost, "/routing", `{"operations":`, http.StatusBadRequest, "invalid_argument", "invalid JSON body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := do(t, h, http.MethodGet, "/sfc/SFCMOCK1", "").Body.String()

			rec := do(t, h, tt.method, tt.path, tt.body)

			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			body := decode[errorResponse](t, rec)
			assert.Equal(t, tt.wantKind, string(body.Kind))
			if tt.wantMsg != "" {
				assert.Contains(t, body.Error, tt.wantMsg)
			}
			assert.Equal(t, before, do(t, h, http.MethodGet, "/sfc/SFCMOCK1", "").Body.String(),
				"failed request must not change the sfc")
		})
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := do(t, h, http.MethodGet, "/sfc/SFCMOCK1/advance", "")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_ListSFCsGolden(t *testing.T) {
	h, _ := newTestHandler(t)
	steps := []struct{ path, body string }{
		{"/routing", `{"operations":2}`},
		{"/routing", `{"operations":3}`},
		{"/sfc", ""},
		{"/sfc", ""},
		{"/sfc", ""},
		{"/sfc/SFCMOCK1/assign_routing", `{"routing_id":"ROUTING1"}`},
		{"/sfc/SFCMOCK1/advance", ""},
		{"/sfc/SFCMOCK2/assign_routing", `{"routing_id":"ROUTING2"}`},
		{"/sfc/SFCMOCK2/force_advance", `{"step":3}`},
	}
	for _, s := range steps {
		rec := do(t, h, http.MethodPost, s.path, s.body)
		require.Equal(t, http.StatusOK, rec.Code, "%s: %s", s.path, rec.Body.String())
	}

	rec := do(t, h, http.MethodGet, "/sfcs", "")
	require.Equal(t, http.StatusOK, rec.Code)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "sfcs", rec.Body.Bytes())
}

func TestServer_RequestIDAndAccessLog(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	h, _ := newTestHandler(t, WithLogger(logger), WithRequestIDs(func() string { return "req-fixed" }))

	rec := do(t, h, http.MethodGet, "/sfcs", "")
	assert.Equal(t, "req-fixed", rec.Header().Get(RequestIDHeader))
	assert.Contains(t, logs.String(), `"request_id":"req-fixed"`)
	assert.Contains(t, logs.String(), `"path":"/sfcs"`)
	assert.Contains(t, logs.String(), `"status":200`)

	req := httptest.NewRequest(http.MethodGet, "/sfcs", nil)
	req.Header.Set(RequestIDHeader, "from-client")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "from-client", rec.Header().Get(RequestIDHeader))
}

func TestServer_DefaultRequestIDIsUUID(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := do(t, h, http.MethodGet, "/health", "")

	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)
}

func TestServer_StartShutdown(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	srv := NewServer(Settings{Host: "127.0.0.1", Port: 0, ReadTimeout: time.Second, WriteTimeout: time.Second, IdleTimeout: time.Second},
		newTestService(t), WithClock(clock))

	require.NoError(t, srv.Start(context.Background()))
	assert.Error(t, srv.Start(context.Background()), "second start must fail")
	assert.NotEmpty(t, srv.Addr())
	assert.True(t, strings.HasPrefix(srv.BaseURL(), "http://127.0.0.1:"))

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(srv.BaseURL() + "/health")
	require.NoError(t, err)
	var health healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, int64(0), health.UptimeSeconds)
	client.CloseIdleConnections()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.Empty(t, srv.Addr())
	assert.NoError(t, srv.Shutdown(ctx), "shutdown is idempotent")
}

func TestSettings_Address(t *testing.T) {
	assert.Equal(t, "0.0.0.0:5000", Settings{Host: "0.0.0.0", Port: 5000}.Address())
	assert.Equal(t, "[::1]:80", Settings{Host: "::1", Port: 80}.Address())
}
