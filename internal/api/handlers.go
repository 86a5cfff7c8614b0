package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"routeplanner/internal/model"
	"routeplanner/internal/store"
)

// SolveHandler handles POST /v1/solve: a stateless solve of the posted
// vehicles and jobs.
func (s *Server) SolveHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req model.SolveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, ok := s.tenant(w, r, req.TenantID)
	if !ok {
		return
	}
	vehicles, jobs, err := solveInputs(req)
	if err != nil {
		writeError(w, r, "Invalid solve request", err)
		return
	}
	sc, err := s.effectiveConfig(r.Context(), p.Tenant, req.Config)
	if err != nil {
		writeError(w, r, "Load optimizer config failed", err)
		return
	}
	res, err := s.solve(r.Context(), "solve", vehicles, jobs, sc)
	if err != nil {
		writeError(w, r, "Solve failed", err)
		return
	}
	writeJSON(w, http.StatusOK, ToSolveResponse(res.Output))
}

// PlansHandler handles POST /v1/plans: plan an account and persist the plan.
func (s *Server) PlansHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req model.PlanRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, ok := s.tenant(w, r, req.TenantID)
	if !ok {
		return
	}
	if strings.TrimSpace(req.AccountName) == "" {
		writeError(w, r, "Invalid plan request", invalid("accountName", "is required"))
		return
	}
	resp, err := s.planAccount(r.Context(), p.Tenant, req.AccountName, req.Config)
	if err != nil {
		writeError(w, r, "Plan failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// PlanByIDHandler handles GET /v1/plans/{id} and GET /v1/plans/{id}/waypoints.
func (s *Server) PlanByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/plans/"), "/")
	parts := strings.Split(rest, "/")
	if rest == "" || len(parts) > 2 || (len(parts) == 2 && parts[1] != "waypoints") {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p, ok := s.tenant(w, r, "")
	if !ok {
		return
	}
	id := parts[0]
	if len(parts) == 2 {
		items, err := s.Store.ListWaypoints(r.Context(), p.Tenant, id)
		if err != nil {
			writeError(w, r, "List waypoints failed", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"planId": id, "items": items})
		return
	}
	plan, err := s.Store.GetPlan(r.Context(), p.Tenant, id)
	if err != nil {
		writeError(w, r, "Get plan failed", err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// PlanTasksHandler handles POST /v1/plan-tasks: plan an account in the background.
func (s *Server) PlanTasksHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req model.PlanRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, ok := s.tenant(w, r, req.TenantID)
	if !ok {
		return
	}
	if strings.TrimSpace(req.AccountName) == "" {
		writeError(w, r, "Invalid plan request", invalid("accountName", "is required"))
		return
	}
	if req.Config != nil {
		if err := validateSolveConfig(s.Defaults.Overlay(req.Config)); err != nil {
			writeError(w, r, "Invalid plan request", err)
			return
		}
	}
	task, err := s.startPlanTask(r.Context(), p.Tenant, req.AccountName, req.Config)
	if err != nil {
		writeError(w, r, "Start plan task failed", err)
		return
	}
	w.Header().Set("Location", "/v1/plan-tasks/"+task.ID)
	writeJSON(w, http.StatusAccepted, map[string]any{"taskId": task.ID, "status": task.Status, "jobs": task.Jobs})
}

// PlanTaskByIDHandler handles GET /v1/plan-tasks/{id} and the /ws stream.
func (s *Server) PlanTaskByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/plan-tasks/"), "/")
	parts := strings.Split(rest, "/")
	if rest == "" || len(parts) > 2 || (len(parts) == 2 && parts[1] != "ws") {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p, ok := s.tenant(w, r, "")
	if !ok {
		return
	}
	if len(parts) == 2 {
		s.taskStream(w, r, p.Tenant, parts[0])
		return
	}
	task, err := s.Tracker.Get(r.Context(), parts[0])
	if err == nil && task.TenantID != p.Tenant {
		err = store.ErrNotFound
	}
	if err != nil {
		writeError(w, r, "Get plan task failed", err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// VehiclesHandler handles POST/GET /v1/vehicles
func (s *Server) VehiclesHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req struct {
			TenantID string            `json:"tenantId"`
			Vehicles []model.VehicleIn `json:"vehicles"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		p, ok := s.tenant(w, r, req.TenantID)
		if !ok {
			return
		}
		for i, v := range req.Vehicles {
			if strings.TrimSpace(v.ID) == "" {
				writeError(w, r, "Invalid vehicles", invalid("vehicles["+strconv.Itoa(i)+"].id", "must not be empty"))
				return
			}
		}
		n, err := s.Store.UpsertVehicles(r.Context(), p.Tenant, req.Vehicles)
		if err != nil {
			writeError(w, r, "Upsert vehicles failed", err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"upserted": n})
	case http.MethodGet:
		p, ok := s.tenant(w, r, "")
		if !ok {
			return
		}
		items, err := s.Store.ListVehicles(r.Context(), p.Tenant)
		if err != nil {
			writeError(w, r, "List vehicles failed", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// JobsHandler handles POST /v1/jobs and GET /v1/jobs?account=
func (s *Server) JobsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req struct {
			TenantID    string        `json:"tenantId"`
			AccountName string        `json:"accountName"`
			Jobs        []model.JobIn `json:"jobs"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		p, ok := s.tenant(w, r, req.TenantID)
		if !ok {
			return
		}
		if strings.TrimSpace(req.AccountName) == "" {
			writeError(w, r, "Invalid jobs", invalid("accountName", "is required"))
			return
		}
		for i, j := range req.Jobs {
			if strings.TrimSpace(j.ID) == "" {
				writeError(w, r, "Invalid jobs", invalid("jobs["+strconv.Itoa(i)+"].id", "must not be empty"))
				return
			}
		}
		n, err := s.Store.UpsertJobs(r.Context(), p.Tenant, req.AccountName, req.Jobs)
		if err != nil {
			writeError(w, r, "Upsert jobs failed", err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"upserted": n})
	case http.MethodGet:
		p, ok := s.tenant(w, r, "")
		if !ok {
			return
		}
		account := r.URL.Query().Get("account")
		if account == "" {
			writeError(w, r, "Invalid query", invalid("account", "is required"))
			return
		}
		items, err := s.Store.ListJobs(r.Context(), p.Tenant, account)
		if err != nil {
			writeError(w, r, "List jobs failed", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SubscriptionsHandler handles POST/GET /v1/subscriptions
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req model.SubscriptionRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		p, ok := s.tenant(w, r, req.TenantID)
		if !ok {
			return
		}
		req.TenantID = p.Tenant
		if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
			writeError(w, r, "Invalid subscription", invalid("url", "must be an http(s) URL"))
			return
		}
		if len(req.Events) == 0 {
			writeError(w, r, "Invalid subscription", invalid("events", "must not be empty"))
			return
		}
		sub, err := s.Store.CreateSubscription(r.Context(), req)
		if err != nil {
			writeError(w, r, "Create subscription failed", err)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	case http.MethodGet:
		p, ok := s.tenant(w, r, "")
		if !ok {
			return
		}
		items, err := s.Store.ListSubscriptions(r.Context(), p.Tenant)
		if err != nil {
			writeError(w, r, "List subscriptions failed", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SubscriptionByIDHandler handles DELETE /v1/subscriptions/{id}
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p, ok := s.tenant(w, r, "")
	if !ok {
		return
	}
	if err := s.Store.DeleteSubscription(r.Context(), p.Tenant, id); err != nil {
		writeError(w, r, "Delete subscription failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// OptimizerConfigHandler returns the effective solver defaults for the caller's tenant.
func (s *Server) OptimizerConfigHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p, ok := s.tenant(w, r, "")
	if !ok {
		return
	}
	cfg, err := s.effectiveConfig(r.Context(), p.Tenant, nil)
	if err != nil {
		writeError(w, r, "Load optimizer config failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"defaults": cfg})
}

// AdminOptimizerConfigHandler gets or replaces the tenant's stored overrides.
func (s *Server) AdminOptimizerConfigHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := s.admin(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		cfg, err := s.Store.GetOptimizerConfig(r.Context(), p.Tenant)
		if err != nil {
			writeError(w, r, "Load optimizer config failed", err)
			return
		}
		if cfg == nil {
			cfg = map[string]any{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"config": cfg})
	case http.MethodPut:
		var body struct {
			Config map[string]any `json:"config"`
		}
		if !decodeJSON(w, r, &body) {
			return
		}
		if body.Config == nil {
			writeProblem(w, http.StatusBadRequest, "Missing config", "", r.URL.Path)
			return
		}
		sc, err := solveConfigFromMap(body.Config)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid config", err.Error(), r.URL.Path)
			return
		}
		if err := validateSolveConfig(s.Defaults.Overlay(&sc)); err != nil {
			writeError(w, r, "Invalid config", err)
			return
		}
		if err := s.Store.SaveOptimizerConfig(r.Context(), p.Tenant, body.Config); err != nil {
			writeError(w, r, "Save failed", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// PlanMetricsHandler handles GET /v1/admin/plan-metrics?planId=
func (s *Server) PlanMetricsHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := s.admin(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	planID := r.URL.Query().Get("planId")
	if planID == "" {
		writeError(w, r, "Invalid query", invalid("planId", "is required"))
		return
	}
	items, err := s.Store.ListPlanMetrics(r.Context(), p.Tenant, planID)
	if err != nil {
		writeError(w, r, "List plan metrics failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"planId": planID, "items": items})
}

// WebhookDeliveriesHandler handles GET /v1/admin/webhook-deliveries?status=
func (s *Server) WebhookDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := s.admin(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	items, err := s.Store.ListWebhookDeliveries(r.Context(), p.Tenant, r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, r, "List webhook deliveries failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
