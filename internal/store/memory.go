package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"routeplanner/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu       sync.Mutex
	vehicles map[string][]model.Vehicle      // tenant -> vehicles in insertion order
	jobs     map[string][]model.Job          // tenant -> jobs in insertion order
	accounts map[string]map[string]bool      // tenant -> account names
	plans    map[string]model.DeliveryPlan   // plan id -> plan
	planMx   map[string][]map[string]any     // plan id -> run metrics
	optCfg   map[string]map[string]any       // tenant -> config
	subs     map[string][]model.Subscription // tenant -> subscriptions
	// Webhooks queue state
	deliveries map[string]*WebhookDelivery
	order      []string
	dedup      map[string]bool
}

func NewMemory() *Memory {
	return &Memory{
		vehicles:   map[string][]model.Vehicle{},
		jobs:       map[string][]model.Job{},
		accounts:   map[string]map[string]bool{},
		plans:      map[string]model.DeliveryPlan{},
		planMx:     map[string][]map[string]any{},
		optCfg:     map[string]map[string]any{},
		subs:       map[string][]model.Subscription{},
		deliveries: map[string]*WebhookDelivery{},
		dedup:      map[string]bool{},
	}
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) UpsertVehicles(ctx context.Context, tenantID string, in []model.VehicleIn) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.vehicles[tenantID]
	for _, vi := range in {
		v := vehicleFromIn(tenantID, vi)
		replaced := false
		for i := range list {
			if list[i].ID == v.ID {
				list[i] = v
				replaced = true
				break
			}
		}
		if !replaced {
			list = append(list, v)
		}
	}
	m.vehicles[tenantID] = list
	return len(in), nil
}

func (m *Memory) ListVehicles(ctx context.Context, tenantID string) ([]model.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Vehicle{}, m.vehicles[tenantID]...), nil
}

func (m *Memory) UpsertJobs(ctx context.Context, tenantID, accountName string, in []model.JobIn) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.accounts[tenantID] == nil {
		m.accounts[tenantID] = map[string]bool{}
	}
	m.accounts[tenantID][accountName] = true
	list := m.jobs[tenantID]
	for _, ji := range in {
		j := jobFromIn(tenantID, accountName, ji)
		replaced := false
		for i := range list {
			if list[i].ID == j.ID {
				list[i] = j
				replaced = true
				break
			}
		}
		if !replaced {
			list = append(list, j)
		}
	}
	m.jobs[tenantID] = list
	return len(in), nil
}

func (m *Memory) ListJobs(ctx context.Context, tenantID, accountName string) ([]model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.accounts[tenantID][accountName] {
		return nil, ErrNotFound
	}
	out := []model.Job{}
	for _, j := range m.jobs[tenantID] {
		if j.AccountName == accountName {
			out = append(out, j)
		}
	}
	return out, nil
}

func (m *Memory) SavePlan(ctx context.Context, plan model.DeliveryPlan) (model.DeliveryPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// build the full plan before publishing it so a failure leaves nothing behind
	p := assignPlanIDs(plan)
	if _, exists := m.plans[p.ID]; exists {
		return model.DeliveryPlan{}, fmt.Errorf("save plan: duplicate plan id %s", p.ID)
	}
	seen := map[string]bool{}
	for _, r := range p.Routes {
		if seen[r.ID] {
			return model.DeliveryPlan{}, fmt.Errorf("save plan: duplicate route id %s", r.ID)
		}
		seen[r.ID] = true
		for _, w := range r.Waypoints {
			if seen[w.ID] {
				return model.DeliveryPlan{}, fmt.Errorf("save plan: duplicate waypoint id %s", w.ID)
			}
			seen[w.ID] = true
		}
	}
	m.plans[p.ID] = p
	return p, nil
}

func (m *Memory) GetPlan(ctx context.Context, tenantID, planID string) (model.DeliveryPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[planID]
	if !ok || p.TenantID != tenantID {
		return model.DeliveryPlan{}, ErrNotFound
	}
	return p, nil
}

func (m *Memory) ListWaypoints(ctx context.Context, tenantID, planID string) ([]model.DeliveryWaypoint, error) {
	p, err := m.GetPlan(ctx, tenantID, planID)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	jobs := map[string]model.Job{}
	for _, j := range m.jobs[tenantID] {
		jobs[j.ID] = j
	}
	out := []model.DeliveryWaypoint{}
	for _, r := range p.Routes {
		for _, w := range r.Waypoints {
			w.VehicleID = r.VehicleID
			if j, ok := jobs[w.JobID]; ok {
				w.JobName = j.Name
				w.Location = j.Location
			}
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *Memory) SavePlanMetrics(ctx context.Context, tenantID, planID string, runs []map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]map[string]any, 0, len(runs))
	for _, r := range runs {
		cp := map[string]any{"tenantId": tenantID, "planId": planID}
		for k, v := range r {
			cp[k] = v
		}
		items = append(items, cp)
	}
	m.planMx[planID] = items
	return nil
}

func (m *Memory) ListPlanMetrics(ctx context.Context, tenantID, planID string) ([]map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []map[string]any{}
	for _, it := range m.planMx[planID] {
		if it["tenantId"] == tenantID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *Memory) GetOptimizerConfig(ctx context.Context, tenantID string) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cfg, ok := m.optCfg[tenantID]; ok {
		return cfg, nil
	}
	return nil, nil
}

func (m *Memory) SaveOptimizerConfig(ctx context.Context, tenantID string, cfg map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.optCfg[tenantID] = cfg
	return nil
}

func (m *Memory) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := model.Subscription{ID: uuid.New().String(), TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}
	m.subs[req.TenantID] = append(m.subs[req.TenantID], s)
	return s, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Subscription
	for _, s := range m.subs[tenantID] {
		if subscribed(s, eventType) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, tenantID string) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Subscription{}, m.subs[tenantID]...), nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	arr := m.subs[tenantID]
	out := make([]model.Subscription, 0, len(arr))
	for _, s := range arr {
		if s.ID != id {
			out = append(out, s)
		}
	}
	if len(out) == len(arr) {
		return ErrNotFound
	}
	m.subs[tenantID] = out
	return nil
}

func (m *Memory) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := tenantID + "|" + eventType + "|" + url + "|" + computeDedupKey(payload)
	if m.dedup[key] {
		return "", nil
	}
	m.dedup[key] = true
	id := uuid.New().String()
	m.deliveries[id] = &WebhookDelivery{ID: id, TenantID: tenantID, SubscriptionID: subscriptionID, EventType: eventType, URL: url, Secret: secret, Payload: payload, Status: DeliveryPending, NextAttemptAt: time.Now()}
	m.order = append(m.order, id)
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	out := []WebhookDelivery{}
	for _, id := range m.order {
		d := m.deliveries[id]
		if (d.Status == DeliveryPending || d.Status == DeliveryRetry) && !d.NextAttemptAt.After(now) {
			out = append(out, *d)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].NextAttemptAt.Before(out[j].NextAttemptAt) })
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return ErrNotFound
	}
	d.Attempts++
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	if success {
		d.Status = DeliveryDelivered
		return nil
	}
	d.Status = DeliveryRetry
	d.LastError = lastError
	if nextAttemptAt != nil {
		d.NextAttemptAt = *nextAttemptAt
	} else {
		d.NextAttemptAt = time.Now().Add(1 * time.Minute)
	}
	return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return ErrNotFound
	}
	d.Attempts++
	d.Status = DeliveryFailed
	d.LastError = lastError
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	return nil
}

func (m *Memory) ListWebhookDeliveries(ctx context.Context, tenantID, status string) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []WebhookDelivery{}
	for _, id := range m.order {
		d := m.deliveries[id]
		if d.TenantID == tenantID && (status == "" || d.Status == status) {
			out = append(out, *d)
		}
	}
	return out, nil
}

// assignPlanIDs fills missing ids and back-references of a plan tree.
func assignPlanIDs(plan model.DeliveryPlan) model.DeliveryPlan {
	p := plan
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt == "" {
		p.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	if p.UnassignedJobIDs == nil {
		p.UnassignedJobIDs = []string{}
	}
	p.Routes = make([]model.DeliveryRoute, len(plan.Routes))
	for i, r := range plan.Routes {
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		r.PlanID = p.ID
		wps := make([]model.DeliveryWaypoint, len(r.Waypoints))
		for k, w := range r.Waypoints {
			if w.ID == "" {
				w.ID = uuid.New().String()
			}
			w.RouteID = r.ID
			wps[k] = w
		}
		r.Waypoints = wps
		p.Routes[i] = r
	}
	return p
}

func subscribed(s model.Subscription, eventType string) bool {
	for _, e := range s.Events {
		if e == eventType || e == "*" {
			return true
		}
	}
	return false
}
