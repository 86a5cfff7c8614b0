package opt

import (
	"fmt"
	"sort"
	"strings"
)

// JobKind decides which activity a job becomes inside a route.
type JobKind int

const (
	// JobService is visited as a pickup-class activity.
	JobService JobKind = iota
	JobPickup
	JobDelivery
)

func (k JobKind) String() string {
	switch k {
	case JobPickup:
		return "pickup"
	case JobDelivery:
		return "delivery"
	default:
		return "service"
	}
}

// ParseJobKind maps "", "service", "pickup" and "delivery".
func ParseJobKind(s string) (JobKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "service":
		return JobService, nil
	case "pickup":
		return JobPickup, nil
	case "delivery":
		return JobDelivery, nil
	}
	return JobService, &ValidationError{Field: "job.kind", Reason: fmt.Sprintf("unknown kind %q", s)}
}

type Vehicle struct {
	ID       string
	Start    Location
	Capacity int
}

type Job struct {
	ID       string
	Location Location
	Demand   int
	Kind     JobKind
}

type ProblemOptions struct {
	Metric        Metric
	ReturnToStart bool
}

// Problem is the validated, immutable input of a solve. It is shared
// read-only by every search run.
type Problem struct {
	vehicles      []Vehicle
	jobs          []Job
	metric        Metric
	returnToStart bool
	// lexical rank of ids, used for deterministic tie-breaks
	vehicleRank []int
	jobRank     []int
}

// NewProblem validates the inputs and builds a Problem. Inputs are copied.
func NewProblem(vehicles []Vehicle, jobs []Job, opts ProblemOptions) (*Problem, error) {
	if opts.Metric != MetricEuclidean && opts.Metric != MetricHaversine {
		return nil, &ValidationError{Field: "metric", Reason: fmt.Sprintf("unknown metric %d", opts.Metric)}
	}
	seen := make(map[string]struct{}, len(vehicles))
	for i, v := range vehicles {
		if strings.TrimSpace(v.ID) == "" {
			return nil, &ValidationError{Field: fmt.Sprintf("vehicles[%d].id", i), Reason: "required"}
		}
		if _, dup := seen[v.ID]; dup {
			return nil, &ValidationError{Field: fmt.Sprintf("vehicles[%d].id", i), Reason: fmt.Sprintf("duplicate vehicle id %q", v.ID)}
		}
		seen[v.ID] = struct{}{}
		if v.Capacity < 0 {
			return nil, &ValidationError{Field: fmt.Sprintf("vehicles[%d].capacity", i), Reason: "must be non-negative"}
		}
		if err := checkLocation(opts.Metric, v.Start); err != nil {
			return nil, &ValidationError{Field: fmt.Sprintf("vehicles[%d].startLocation", i), Reason: err.Error()}
		}
	}
	seen = make(map[string]struct{}, len(jobs))
	for i, j := range jobs {
		if strings.TrimSpace(j.ID) == "" {
			return nil, &ValidationError{Field: fmt.Sprintf("jobs[%d].id", i), Reason: "required"}
		}
		if _, dup := seen[j.ID]; dup {
			return nil, &ValidationError{Field: fmt.Sprintf("jobs[%d].id", i), Reason: fmt.Sprintf("duplicate job id %q", j.ID)}
		}
		seen[j.ID] = struct{}{}
		if j.Demand < 0 {
			return nil, &ValidationError{Field: fmt.Sprintf("jobs[%d].demand", i), Reason: "must be non-negative"}
		}
		if j.Kind < JobService || j.Kind > JobDelivery {
			return nil, &ValidationError{Field: fmt.Sprintf("jobs[%d].kind", i), Reason: fmt.Sprintf("unknown kind %d", j.Kind)}
		}
		if err := checkLocation(opts.Metric, j.Location); err != nil {
			return nil, &ValidationError{Field: fmt.Sprintf("jobs[%d].location", i), Reason: err.Error()}
		}
	}
	p := &Problem{
		vehicles:      append([]Vehicle(nil), vehicles...),
		jobs:          append([]Job(nil), jobs...),
		metric:        opts.Metric,
		returnToStart: opts.ReturnToStart,
	}
	p.vehicleRank = rankIDs(len(vehicles), func(i int) string { return vehicles[i].ID })
	p.jobRank = rankIDs(len(jobs), func(i int) string { return jobs[i].ID })
	return p, nil
}

func checkLocation(m Metric, l Location) error {
	if !l.finite() {
		return fmt.Errorf("coordinates must be finite")
	}
	if m == MetricHaversine && (l.Lat < -90 || l.Lat > 90 || l.Lon < -180 || l.Lon > 180) {
		return fmt.Errorf("coordinates out of range")
	}
	return nil
}

func rankIDs(n int, id func(int) string) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return id(idx[a]) < id(idx[b]) })
	rank := make([]int, n)
	for r, i := range idx {
		rank[i] = r
	}
	return rank
}

func (p *Problem) Vehicles() []Vehicle { return append([]Vehicle(nil), p.vehicles...) }
func (p *Problem) Jobs() []Job         { return append([]Job(nil), p.jobs...) }
func (p *Problem) NumVehicles() int    { return len(p.vehicles) }
func (p *Problem) NumJobs() int        { return len(p.jobs) }
func (p *Problem) Vehicle(i int) Vehicle {
	return p.vehicles[i]
}
func (p *Problem) Job(i int) Job { return p.jobs[i] }
func (p *Problem) Metric() Metric {
	return p.metric
}
func (p *Problem) ReturnToStart() bool { return p.returnToStart }

// Cost is the travel cost between two locations.
func (p *Problem) Cost(a, b Location) float64 { return p.metric.distance(a, b) }

func (p *Problem) isDelivery(job int) bool { return p.jobs[job].Kind == JobDelivery }
