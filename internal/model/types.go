package model

// Wire and storage types shared by the API, store and webhooks.

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type VehicleIn struct {
	ID            string    `json:"id"`
	Name          string    `json:"name,omitempty"`
	StartLocation *GeoPoint `json:"startLocation"`
	Capacity      *int      `json:"capacity,omitempty"`
}

type JobIn struct {
	ID       string    `json:"id"`
	Name     string    `json:"name,omitempty"`
	Location *GeoPoint `json:"location"`
	Demand   *int      `json:"demand,omitempty"`
	Kind     string    `json:"kind,omitempty"`
}

type Vehicle struct {
	ID            string   `json:"id"`
	TenantID      string   `json:"tenantId"`
	Name          string   `json:"name,omitempty"`
	StartLocation GeoPoint `json:"startLocation"`
	Capacity      int      `json:"capacity"`
}

type Job struct {
	ID          string   `json:"id"`
	TenantID    string   `json:"tenantId"`
	AccountName string   `json:"accountName"`
	Name        string   `json:"name,omitempty"`
	Location    GeoPoint `json:"location"`
	Demand      int      `json:"demand"`
	Kind        string   `json:"kind"`
}

// SolveConfig holds per-request solver overrides; zero or nil fields
// fall back to the tenant and service defaults. UnassignedPenalty is a
// pointer so that 0 can be requested.
type SolveConfig struct {
	RandomSeed        *int64   `json:"randomSeed,omitempty" yaml:"randomSeed,omitempty"`
	MaxIterations     int      `json:"maxIterations,omitempty" yaml:"maxIterations,omitempty"`
	MaxDurationMs     int      `json:"maxDurationMs,omitempty" yaml:"maxDurationMs,omitempty"`
	ParallelRuns      int      `json:"parallelRuns,omitempty" yaml:"parallelRuns,omitempty"`
	UnassignedPenalty *float64 `json:"unassignedPenalty,omitempty" yaml:"unassignedPenalty,omitempty"`
	ReturnToStart     *bool    `json:"returnToStart,omitempty" yaml:"returnToStart,omitempty"`
	Metric            string   `json:"metric,omitempty" yaml:"metric,omitempty"`
	RuinShare         float64  `json:"ruinShare,omitempty" yaml:"ruinShare,omitempty"`
	MaxRuin           int      `json:"maxRuin,omitempty" yaml:"maxRuin,omitempty"`
	InitialTemp       float64  `json:"initialTemp,omitempty" yaml:"initialTemp,omitempty"`
	Cooling           float64  `json:"cooling,omitempty" yaml:"cooling,omitempty"`
	LocalSearch       *bool    `json:"localSearch,omitempty" yaml:"localSearch,omitempty"`
}

type SolveRequest struct {
	TenantID string       `json:"tenantId,omitempty"`
	Vehicles []VehicleIn  `json:"vehicles"`
	Jobs     []JobIn      `json:"jobs"`
	Config   *SolveConfig `json:"config,omitempty"`
}

type WaypointOut struct {
	JobID          string `json:"jobId"`
	SequenceNumber int    `json:"sequenceNumber"`
}

type RouteOut struct {
	VehicleID string        `json:"vehicleId"`
	Waypoints []WaypointOut `json:"waypoints"`
	Load      int           `json:"load"`
	Cost      float64       `json:"cost"`
}

type SolveResponse struct {
	Routes           []RouteOut `json:"routes"`
	UnassignedJobIDs []string   `json:"unassignedJobIds"`
	TotalCost        float64    `json:"totalCost"`
	Summary          string     `json:"summary"`
}

// PlanRequest plans every job of an account against the tenant fleet.
type PlanRequest struct {
	TenantID    string       `json:"tenantId"`
	AccountName string       `json:"accountName"`
	Config      *SolveConfig `json:"config,omitempty"`
}

type PlanResponse struct {
	PlanID string `json:"planId"`
	Name   string `json:"name"`
	SolveResponse
}

type DeliveryPlan struct {
	ID               string          `json:"id"`
	TenantID         string          `json:"tenantId"`
	AccountName      string          `json:"accountName"`
	Name             string          `json:"name"`
	CreatedAt        string          `json:"createdAt"`
	TotalCost        float64         `json:"totalCost"`
	Summary          string          `json:"summary"`
	UnassignedJobIDs []string        `json:"unassignedJobIds"`
	Routes           []DeliveryRoute `json:"routes"`
}

type DeliveryRoute struct {
	ID        string             `json:"id"`
	PlanID    string             `json:"planId"`
	VehicleID string             `json:"vehicleId"`
	Load      int                `json:"load"`
	Cost      float64            `json:"cost"`
	Waypoints []DeliveryWaypoint `json:"waypoints"`
}

type DeliveryWaypoint struct {
	ID        string   `json:"id"`
	RouteID   string   `json:"routeId"`
	VehicleID string   `json:"vehicleId,omitempty"`
	JobID     string   `json:"jobId"`
	JobName   string   `json:"jobName,omitempty"`
	Location  GeoPoint `json:"location"`
	Number    int      `json:"number"`
}

// PlanTask tracks an asynchronous planning request.
type PlanTask struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	AccountName string `json:"accountName"`
	Status      string `json:"status"`
	Jobs        int    `json:"jobs"`
	Completed   int    `json:"completed"`
	PlanID      string `json:"planId,omitempty"`
	Error       string `json:"error,omitempty"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

type SubscriptionRequest struct {
	TenantID string   `json:"tenantId"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret"`
}

type Subscription struct {
	ID       string   `json:"id"`
	TenantID string   `json:"tenantId"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret,omitempty"`
}
