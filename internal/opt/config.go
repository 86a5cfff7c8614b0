package opt

import (
	"math"
	"time"
)

const (
	DefaultMaxIterations     = 2000
	DefaultParallelRuns      = 1
	DefaultUnassignedPenalty = 10000.0
	DefaultRuinShare         = 0.3
	DefaultMaxRuin           = 30
	snapshotEvery            = 50
)

// Config tunes a solve. Zero values select the defaults above; a zero
// MaxDuration leaves the wall clock unbounded. UnassignedPenalty is a
// pointer so that an explicit 0 is kept.
type Config struct {
	RandomSeed        int64
	MaxIterations     int
	MaxDuration       time.Duration
	ParallelRuns      int
	UnassignedPenalty *float64
	ReturnToStart     bool
	Metric            Metric
	RuinShare         float64
	MaxRuin           int
	InitialTemp       float64
	Cooling           float64
	// DisableLocalSearch skips the 2-opt polish of each run's best solution.
	DisableLocalSearch bool
	// Constraints replaces DefaultConstraints when set.
	Constraints *ConstraintSet
	// Logf receives one line per finished run. Optional.
	Logf func(format string, args ...any)
}

// Validate rejects negative or non-finite values.
func (c Config) Validate() error {
	switch {
	case c.MaxIterations < 0:
		return &ValidationError{Field: "config.maxIterations", Reason: "must be non-negative"}
	case c.MaxDuration < 0:
		return &ValidationError{Field: "config.maxDurationMs", Reason: "must be non-negative"}
	case c.ParallelRuns < 0:
		return &ValidationError{Field: "config.parallelRuns", Reason: "must be non-negative"}
	case c.UnassignedPenalty != nil && (*c.UnassignedPenalty < 0 || math.IsNaN(*c.UnassignedPenalty) || math.IsInf(*c.UnassignedPenalty, 0)):
		return &ValidationError{Field: "config.unassignedPenalty", Reason: "must be a non-negative number"}
	case c.RuinShare < 0 || c.RuinShare > 1 || math.IsNaN(c.RuinShare):
		return &ValidationError{Field: "config.ruinShare", Reason: "must be within [0,1]"}
	case c.MaxRuin < 0:
		return &ValidationError{Field: "config.maxRuin", Reason: "must be non-negative"}
	case c.InitialTemp < 0 || math.IsNaN(c.InitialTemp) || math.IsInf(c.InitialTemp, 0):
		return &ValidationError{Field: "config.initialTemp", Reason: "must be a non-negative number"}
	case c.Cooling < 0 || c.Cooling >= 1 || math.IsNaN(c.Cooling):
		return &ValidationError{Field: "config.cooling", Reason: "must be within [0,1)"}
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.MaxIterations == 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.ParallelRuns == 0 {
		c.ParallelRuns = DefaultParallelRuns
	}
	if c.UnassignedPenalty == nil {
		v := DefaultUnassignedPenalty
		c.UnassignedPenalty = &v
	}
	if c.RuinShare == 0 {
		c.RuinShare = DefaultRuinShare
	}
	if c.MaxRuin == 0 {
		c.MaxRuin = DefaultMaxRuin
	}
	if c.Cooling == 0 {
		// decay to 1% of the start temperature over the iteration budget
		c.Cooling = math.Pow(0.01, 1/float64(c.MaxIterations))
	}
	if c.Constraints == nil {
		c.Constraints = DefaultConstraints()
	}
	return c
}

func (c Config) penalty() float64 {
	if c.UnassignedPenalty == nil {
		return DefaultUnassignedPenalty
	}
	return *c.UnassignedPenalty
}

// initialTemp derives a start temperature from the mean travel cost per
// assigned job when none is configured.
func (c Config) initialTemp(initial *Solution) float64 {
	if c.InitialTemp > 0 {
		return c.InitialTemp
	}
	if n := initial.Assigned(); n > 0 {
		if t := 0.1 * initial.RouteCost() / float64(n); t > 0 {
			return t
		}
	}
	return 1.0
}
