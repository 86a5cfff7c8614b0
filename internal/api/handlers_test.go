package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"routeplanner/internal/config"
	"routeplanner/internal/model"
	"routeplanner/internal/store"
)

func testConfig() *config.Config {
	cfg := config.Default()
	seed := int64(1)
	cfg.Solver.RandomSeed = &seed
	cfg.Solver.MaxIterations = 200
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	s, err := NewServer(context.Background(), cfg)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2026, 10, 19, 9, 30, 15, 123e6, time.UTC) }
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func do(t *testing.T, h http.Handler, method, path string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-Id", "t_test")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func intp(v int) *int { return &v }

func seedAccount(t *testing.T, h http.Handler) {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/v1/vehicles", map[string]any{"vehicles": []model.VehicleIn{
		{ID: "van-a", StartLocation: &model.GeoPoint{}, Capacity: intp(2)},
		{ID: "van-b", StartLocation: &model.GeoPoint{Lat: 10}, Capacity: intp(2)},
	}}, nil)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	rr = do(t, h, http.MethodPost, "/v1/jobs", map[string]any{"accountName": "acme", "jobs": []model.JobIn{
		{ID: "j1", Name: "Main St", Location: &model.GeoPoint{Lat: 1}},
		{ID: "j2", Name: "Oak Ave", Location: &model.GeoPoint{Lat: 2}},
		{ID: "j3", Name: "Pine Rd", Location: &model.GeoPoint{Lat: 9}},
		{ID: "j4", Name: "Elm St", Location: &model.GeoPoint{Lat: 11}},
	}}, nil)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
}

func TestHealthReady(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", nil, nil).Code)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/readyz", nil, nil).Code)
	rr := do(t, h, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "http_requests_total")

	rr = do(t, h, http.MethodGet, "/openapi.yaml", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "/v1/plan-tasks/{id}/ws")
}

func TestSolveEndpoint(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	req := model.SolveRequest{
		Vehicles: []model.VehicleIn{{ID: "v1", StartLocation: &model.GeoPoint{}, Capacity: intp(2)}},
		Jobs: []model.JobIn{
			{ID: "j1", Location: &model.GeoPoint{Lat: 1}, Demand: intp(1)},
			{ID: "j2", Location: &model.GeoPoint{Lat: 2}, Demand: intp(1)},
			{ID: "j3", Location: &model.GeoPoint{Lat: 3}, Demand: intp(1)},
		},
	}
	rr := do(t, h, http.MethodPost, "/v1/solve", req, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decode[model.SolveResponse](t, rr)
	require.Len(t, resp.Routes, 1)
	require.Len(t, resp.Routes[0].Waypoints, 2)
	require.Equal(t, 0, resp.Routes[0].Waypoints[0].SequenceNumber)
	require.Equal(t, []string{"j3"}, resp.UnassignedJobIDs)
	require.Equal(t, "Routes 1 calculated.", resp.Summary)
}

func TestSolveValidation(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	negPenalty := -1.0
	cases := map[string]struct {
		req   model.SolveRequest
		field string
	}{
		"duplicate vehicle": {model.SolveRequest{Vehicles: []model.VehicleIn{
			{ID: "v1", StartLocation: &model.GeoPoint{}, Capacity: intp(1)},
			{ID: "v1", StartLocation: &model.GeoPoint{}, Capacity: intp(1)},
		}}, "vehicles[1].id"},
		"negative demand":  {model.SolveRequest{Jobs: []model.JobIn{{ID: "j", Location: &model.GeoPoint{}, Demand: intp(-1)}}}, "jobs[0].demand"},
		"missing location": {model.SolveRequest{Jobs: []model.JobIn{{ID: "j", Demand: intp(1)}}}, "jobs[0].location"},
		"bad metric":       {model.SolveRequest{Config: &model.SolveConfig{Metric: "manhattan"}}, "config.metric"},
		"too many runs":    {model.SolveRequest{Config: &model.SolveConfig{ParallelRuns: 1000}}, "config.parallelRuns"},
		"negative penalty": {model.SolveRequest{Config: &model.SolveConfig{UnassignedPenalty: &negPenalty}}, "config.unassignedPenalty"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, "/v1/solve", tc.req, nil)
			require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			p := decode[Problem](t, rr)
			require.Equal(t, tc.field, p.Field)
		})
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/solve", strings.NewReader("{")))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSolverConfigZeroPenalty(t *testing.T) {
	zero := 0.0
	sc := config.Default().Solver.Overlay(&model.SolveConfig{UnassignedPenalty: &zero})
	cfg, err := SolverConfig(sc, nil)
	require.NoError(t, err)
	require.NotNil(t, cfg.UnassignedPenalty)
	require.Zero(t, *cfg.UnassignedPenalty)

	cfg, err = SolverConfig(config.Default().Solver, nil)
	require.NoError(t, err)
	require.Equal(t, 10000.0, *cfg.UnassignedPenalty)
}

func TestSolveEmptyInputs(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	rr := do(t, h, http.MethodPost, "/v1/solve", model.SolveRequest{
		Jobs: []model.JobIn{{ID: "j1", Location: &model.GeoPoint{}, Demand: intp(1)}},
	}, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[model.SolveResponse](t, rr)
	require.Empty(t, resp.Routes)
	require.NotNil(t, resp.Routes)
	require.Equal(t, []string{"j1"}, resp.UnassignedJobIDs)
}

func TestPlanAccountPersistsPlan(t *testing.T) {
	s := newTestServer(t, nil)
	h := s.Handler()
	seedAccount(t, h)

	rr := do(t, h, http.MethodPost, "/v1/plans", model.PlanRequest{AccountName: "acme"}, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	resp := decode[model.PlanResponse](t, rr)
	require.NotEmpty(t, resp.PlanID)
	require.Equal(t, "Delivery Plan @ 2026-10-19 09:30:15.123", resp.Name)
	require.Equal(t, "Routes 2 calculated.", resp.Summary)
	require.Empty(t, resp.UnassignedJobIDs)

	rr = do(t, h, http.MethodGet, "/v1/plans/"+resp.PlanID, nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	plan := decode[model.DeliveryPlan](t, rr)
	require.Equal(t, "acme", plan.AccountName)
	require.Len(t, plan.Routes, 2)

	rr = do(t, h, http.MethodGet, "/v1/plans/"+resp.PlanID+"/waypoints", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	wps := decode[struct {
		Items []model.DeliveryWaypoint `json:"items"`
	}](t, rr)
	require.Len(t, wps.Items, 4)
	names := map[string]string{}
	for _, w := range wps.Items {
		names[w.JobID] = w.JobName
	}
	require.Equal(t, "Main St", names["j1"])

	rr = do(t, h, http.MethodGet, "/v1/admin/plan-metrics?planId="+resp.PlanID, nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	mx := decode[struct {
		Items []map[string]any `json:"items"`
	}](t, rr)
	require.Len(t, mx.Items, 1)
	require.EqualValues(t, 200, mx.Items[0]["iterations"])

	// other tenants cannot see the plan
	rr = do(t, h, http.MethodGet, "/v1/plans/"+resp.PlanID, nil, map[string]string{"X-Tenant-Id": "t_other"})
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPlanUnknownAccount(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	rr := do(t, h, http.MethodPost, "/v1/plans", model.PlanRequest{AccountName: "nobody"}, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	rr = do(t, h, http.MethodPost, "/v1/plans", model.PlanRequest{}, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	rr = do(t, h, http.MethodPost, "/v1/plan-tasks", model.PlanRequest{AccountName: "nobody"}, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPlanEmitsWebhook(t *testing.T) {
	var (
		mu   sync.Mutex
		got  []string
		sigs []string
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		got = append(got, r.Header.Get("X-Event-Type"))
		sigs = append(sigs, r.Header.Get("X-Signature"))
		mu.Unlock()
	}))
	defer hook.Close()

	s := newTestServer(t, nil)
	h := s.Handler()
	seedAccount(t, h)
	rr := do(t, h, http.MethodPost, "/v1/subscriptions", model.SubscriptionRequest{URL: hook.URL, Events: []string{"plan.completed"}, Secret: "k"}, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(t, h, http.MethodPost, "/v1/plans", model.PlanRequest{AccountName: "acme"}, nil)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = do(t, h, http.MethodGet, "/v1/admin/webhook-deliveries?status="+store.DeliveryPending, nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	pending := decode[struct {
		Items []store.WebhookDelivery `json:"items"`
	}](t, rr)
	require.Len(t, pending.Items, 1)

	worker := s.NewWebhookWorker()
	worker.HTTP = hook.Client()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	worker.PollInterval = 10 * time.Millisecond
	go worker.Run(ctx)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, 2*time.Second, 10*time.Millisecond)
	mu.Lock()
	require.Equal(t, "plan.completed", got[0])
	require.NotEmpty(t, sigs[0])
	mu.Unlock()
}

func TestOptimizerConfigOverrides(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	rr := do(t, h, http.MethodPut, "/v1/admin/optimizer/config", map[string]any{"config": map[string]any{"maxIterations": 50, "metric": "haversine"}}, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = do(t, h, http.MethodGet, "/v1/optimizer/config", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	eff := decode[struct {
		Defaults model.SolveConfig `json:"defaults"`
	}](t, rr)
	require.Equal(t, 50, eff.Defaults.MaxIterations)
	require.Equal(t, "haversine", eff.Defaults.Metric)
	require.Equal(t, 1, eff.Defaults.ParallelRuns)

	rr = do(t, h, http.MethodPut, "/v1/admin/optimizer/config", map[string]any{"config": map[string]any{"cooling": 2}}, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodGet, "/v1/admin/optimizer/config", nil, map[string]string{"X-Role": "planner"})
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestTenantMismatchForbidden(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	rr := do(t, h, http.MethodPost, "/v1/vehicles", map[string]any{"tenantId": "t_other", "vehicles": []model.VehicleIn{{ID: "v"}}}, map[string]string{"X-Role": "planner"})
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestHMACModeRequiresToken(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.AuthConfig{Mode: "hmac", HMACSecret: "k"}
	h := newTestServer(t, cfg).Handler()
	rr := do(t, h, http.MethodGet, "/v1/vehicles", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	rr = do(t, h, http.MethodGet, "/v1/vehicles", nil, map[string]string{"Authorization": "Bearer nope"})
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRateLimitPerTenant(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateConfig{RPS: 0.001, Burst: 2}
	h := newTestServer(t, cfg).Handler()
	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/v1/vehicles", nil, nil).Code)
	}
	require.Equal(t, http.StatusTooManyRequests, do(t, h, http.MethodGet, "/v1/vehicles", nil, nil).Code)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/v1/vehicles", nil, map[string]string{"X-Tenant-Id": "t_other"}).Code)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", nil, nil).Code)
}

func TestSubscriptionLifecycle(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	rr := do(t, h, http.MethodPost, "/v1/subscriptions", model.SubscriptionRequest{URL: "ftp://x", Events: []string{"plan.completed"}}, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	rr = do(t, h, http.MethodPost, "/v1/subscriptions", model.SubscriptionRequest{URL: "https://example.test/hook", Events: []string{"*"}}, nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	sub := decode[model.Subscription](t, rr)

	rr = do(t, h, http.MethodDelete, "/v1/subscriptions/"+sub.ID, nil, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)
	rr = do(t, h, http.MethodDelete, "/v1/subscriptions/"+sub.ID, nil, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func checkPlanTask(t *testing.T, cfg *config.Config) {
	t.Helper()
	s := newTestServer(t, cfg)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()
	h := s.Handler()
	seedAccount(t, h)

	rr := do(t, h, http.MethodPost, "/v1/plan-tasks", model.PlanRequest{AccountName: "acme"}, nil)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	started := decode[map[string]any](t, rr)
	taskID := started["taskId"].(string)
	require.Equal(t, "running", started["status"])
	require.EqualValues(t, 4, started["jobs"])

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/plan-tasks/" + taskID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"X-Tenant-Id": []string{"t_test"}})
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	var last Event
	for {
		var evt Event
		if err := conn.ReadJSON(&evt); err != nil {
			break
		}
		last = evt
		if evt.Data["status"] == "completed" {
			break
		}
	}
	require.Equal(t, "completed", last.Data["status"])
	planID, _ := last.Data["planId"].(string)
	require.NotEmpty(t, planID)

	s.Wait()
	rr = do(t, h, http.MethodGet, "/v1/plan-tasks/"+taskID, nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	task := decode[model.PlanTask](t, rr)
	require.Equal(t, "completed", task.Status)
	require.Equal(t, planID, task.PlanID)
	require.Equal(t, 4, task.Completed)

	rr = do(t, h, http.MethodGet, "/v1/plan-tasks/"+taskID, nil, map[string]string{"X-Tenant-Id": "t_other"})
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPlanTaskMemory(t *testing.T) {
	checkPlanTask(t, nil)
}

func TestPlanTaskRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.Redis.URL = "redis://" + mr.Addr()
	checkPlanTask(t, cfg)
}

func TestSQLiteBackedServer(t *testing.T) {
	cfg := testConfig()
	cfg.Database = config.DatabaseConfig{Driver: "sqlite", URL: "file:" + t.TempDir() + "/plans.db", Migrate: true}
	s := newTestServer(t, cfg)
	h := s.Handler()
	seedAccount(t, h)
	rr := do(t, h, http.MethodPost, "/v1/plans", model.PlanRequest{AccountName: "acme"}, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/readyz", nil, nil).Code)
}

func TestRouteLabel(t *testing.T) {
	require.Equal(t, "/v1/plans/{id}/waypoints", routeLabel("/v1/plans/abc/waypoints"))
	require.Equal(t, "/v1/plan-tasks/{id}/ws", routeLabel("/v1/plan-tasks/123/ws"))
	require.Equal(t, "/v1/solve", routeLabel("/v1/solve"))
}

func TestPlanName(t *testing.T) {
	require.Equal(t, "Delivery Plan @ 2026-01-02 03:04:05.006", planName(time.Date(2026, 1, 2, 3, 4, 5, 6e6, time.UTC)))
}
