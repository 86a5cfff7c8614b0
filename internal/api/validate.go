package api

import (
	"fmt"
	"math"
	"time"

	"routeplanner/internal/model"
	"routeplanner/internal/opt"
)

const (
	maxParallelRuns  = 64
	maxIterations    = 1_000_000
	maxSolveDuration = 10 * time.Minute
)

func invalid(field, format string, args ...any) error {
	return &opt.ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// validateSolveConfig checks request-level bounds on top of the solver's
// own validation.
func validateSolveConfig(c model.SolveConfig) error {
	switch {
	case c.MaxIterations < 0 || c.MaxIterations > maxIterations:
		return invalid("config.maxIterations", "must be within [0,%d]", maxIterations)
	case c.MaxDurationMs < 0 || time.Duration(c.MaxDurationMs)*time.Millisecond > maxSolveDuration:
		return invalid("config.maxDurationMs", "must be within [0,%d]", maxSolveDuration.Milliseconds())
	case c.ParallelRuns < 0 || c.ParallelRuns > maxParallelRuns:
		return invalid("config.parallelRuns", "must be within [0,%d]", maxParallelRuns)
	case c.UnassignedPenalty != nil && (*c.UnassignedPenalty < 0 || math.IsNaN(*c.UnassignedPenalty) || math.IsInf(*c.UnassignedPenalty, 0)):
		return invalid("config.unassignedPenalty", "must be a non-negative number")
	case c.Cooling != 0 && (c.Cooling <= 0 || c.Cooling >= 1):
		return invalid("config.cooling", "must be in (0,1)")
	}
	if _, err := opt.ParseMetric(c.Metric); err != nil {
		return invalid("config.metric", "unknown metric %q", c.Metric)
	}
	return nil
}

// SolverConfig converts a merged request config to solver settings.
func SolverConfig(c model.SolveConfig, logf func(string, ...any)) (opt.Config, error) {
	if err := validateSolveConfig(c); err != nil {
		return opt.Config{}, err
	}
	metric, _ := opt.ParseMetric(c.Metric)
	cfg := opt.Config{
		MaxIterations:     c.MaxIterations,
		MaxDuration:       time.Duration(c.MaxDurationMs) * time.Millisecond,
		ParallelRuns:      c.ParallelRuns,
		UnassignedPenalty: c.UnassignedPenalty,
		Metric:            metric,
		RuinShare:         c.RuinShare,
		MaxRuin:           c.MaxRuin,
		InitialTemp:       c.InitialTemp,
		Cooling:           c.Cooling,
		Logf:              logf,
	}
	if c.RandomSeed != nil {
		cfg.RandomSeed = *c.RandomSeed
	}
	if c.ReturnToStart != nil {
		cfg.ReturnToStart = *c.ReturnToStart
	}
	if c.LocalSearch != nil {
		cfg.DisableLocalSearch = !*c.LocalSearch
	}
	return cfg, cfg.Validate()
}

// solveInputs converts a stateless request. Locations, capacities and
// demands are required here; stored records get defaults on ingestion.
func solveInputs(req model.SolveRequest) ([]opt.Vehicle, []opt.Job, error) {
	vs := make([]opt.Vehicle, 0, len(req.Vehicles))
	for i, v := range req.Vehicles {
		if v.StartLocation == nil {
			return nil, nil, invalid(fmt.Sprintf("vehicles[%d].startLocation", i), "is required")
		}
		if v.Capacity == nil {
			return nil, nil, invalid(fmt.Sprintf("vehicles[%d].capacity", i), "is required")
		}
		vs = append(vs, opt.Vehicle{
			ID:       v.ID,
			Start:    opt.Location{Lat: v.StartLocation.Lat, Lon: v.StartLocation.Lon},
			Capacity: *v.Capacity,
		})
	}
	js := make([]opt.Job, 0, len(req.Jobs))
	for i, j := range req.Jobs {
		if j.Location == nil {
			return nil, nil, invalid(fmt.Sprintf("jobs[%d].location", i), "is required")
		}
		if j.Demand == nil {
			return nil, nil, invalid(fmt.Sprintf("jobs[%d].demand", i), "is required")
		}
		kind, err := opt.ParseJobKind(j.Kind)
		if err != nil {
			return nil, nil, invalid(fmt.Sprintf("jobs[%d].kind", i), "unknown kind %q", j.Kind)
		}
		js = append(js, opt.Job{
			ID:       j.ID,
			Location: opt.Location{Lat: j.Location.Lat, Lon: j.Location.Lon},
			Demand:   *j.Demand,
			Kind:     kind,
		})
	}
	return vs, js, nil
}
