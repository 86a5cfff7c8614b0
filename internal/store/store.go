package store

import (
	"context"
	"errors"
	"time"

	"routeplanner/internal/model"
)

// Defaults applied when ingested records omit capacity or demand.
const (
	DefaultVehicleCapacity = 2
	DefaultJobDemand       = 1
)

// Store is the persistence interface used by the API server.
type Store interface {
	// Fleet and jobs
	UpsertVehicles(ctx context.Context, tenantID string, in []model.VehicleIn) (int, error)
	ListVehicles(ctx context.Context, tenantID string) ([]model.Vehicle, error)
	UpsertJobs(ctx context.Context, tenantID, accountName string, in []model.JobIn) (int, error)
	// ListJobs returns ErrNotFound when the account has never been seen.
	ListJobs(ctx context.Context, tenantID, accountName string) ([]model.Job, error)

	// Plans. SavePlan writes the plan, its routes and waypoints as one unit:
	// either all rows are committed or none are.
	SavePlan(ctx context.Context, plan model.DeliveryPlan) (model.DeliveryPlan, error)
	GetPlan(ctx context.Context, tenantID, planID string) (model.DeliveryPlan, error)
	ListWaypoints(ctx context.Context, tenantID, planID string) ([]model.DeliveryWaypoint, error)

	// Metrics
	SavePlanMetrics(ctx context.Context, tenantID, planID string, runs []map[string]any) error
	ListPlanMetrics(ctx context.Context, tenantID, planID string) ([]map[string]any, error)

	// Optimizer config per tenant
	GetOptimizerConfig(ctx context.Context, tenantID string) (map[string]any, error)
	SaveOptimizerConfig(ctx context.Context, tenantID string, cfg map[string]any) error

	// Subscriptions
	CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
	GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error)
	ListSubscriptions(ctx context.Context, tenantID string) ([]model.Subscription, error)
	DeleteSubscription(ctx context.Context, tenantID, id string) error

	// Webhook deliveries
	EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
	FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
	ListWebhookDeliveries(ctx context.Context, tenantID, status string) ([]WebhookDelivery, error)

	Ping(ctx context.Context) error
}

var ErrNotFound = errors.New("not found")

func vehicleFromIn(tenantID string, in model.VehicleIn) model.Vehicle {
	v := model.Vehicle{ID: in.ID, TenantID: tenantID, Name: in.Name, Capacity: DefaultVehicleCapacity}
	if in.StartLocation != nil {
		v.StartLocation = *in.StartLocation
	}
	if in.Capacity != nil {
		v.Capacity = *in.Capacity
	}
	return v
}

func jobFromIn(tenantID, accountName string, in model.JobIn) model.Job {
	j := model.Job{ID: in.ID, TenantID: tenantID, AccountName: accountName, Name: in.Name, Demand: DefaultJobDemand, Kind: in.Kind}
	if in.Location != nil {
		j.Location = *in.Location
	}
	if in.Demand != nil {
		j.Demand = *in.Demand
	}
	if j.Kind == "" {
		j.Kind = "service"
	}
	return j
}
