package opt

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Result carries the selected solution, its export and per-run metrics.
type Result struct {
	Problem    *Problem
	Solution   *Solution
	Initial    *Solution
	Output     Output
	RouteCount int
	Run        int
	Runs       []Metrics
	FailedRuns int
}

// Solve validates the input, builds the initial solution by cheapest
// insertion and improves it with ParallelRuns independent ruin and
// recreate searches on a bounded worker pool. The best run wins.
func Solve(ctx context.Context, vehicles []Vehicle, jobs []Job, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p, err := NewProblem(vehicles, jobs, ProblemOptions{Metric: cfg.Metric, ReturnToStart: cfg.ReturnToStart})
	if err != nil {
		return nil, err
	}
	return SolveProblem(ctx, p, cfg)
}

// SolveProblem runs the search on an already validated problem.
func SolveProblem(ctx context.Context, p *Problem, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	initial, err := safeConstruct(p, cfg)
	if err != nil {
		return nil, &SolverError{Runs: cfg.ParallelRuns, Errs: []error{err}}
	}

	results := make([]RunResult, cfg.ParallelRuns)
	workers := cfg.ParallelRuns
	if n := runtime.GOMAXPROCS(0); workers > n {
		workers = n
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for i := range results {
		i := i
		g.Go(func() error {
			results[i] = runSearch(ctx, p, cfg, initial, i)
			return nil
		})
	}
	_ = g.Wait()

	res := &Result{Problem: p, Initial: initial, Runs: make([]Metrics, 0, len(results))}
	for _, r := range results {
		res.Runs = append(res.Runs, r.Metrics)
		if r.Err != nil {
			res.FailedRuns++
			logf(cfg, "opt: run=%d failed err=%v", r.Run, r.Err)
			continue
		}
		logf(cfg, "opt: run=%d iterations=%d improvements=%d initial=%.3f best=%.3f elapsed=%s",
			r.Run, r.Metrics.Iterations, r.Metrics.Improvements, r.Metrics.InitialCost, r.Metrics.BestCost, r.Metrics.Elapsed)
	}
	sel, err := SelectBest(p, results)
	if err != nil {
		return nil, err
	}
	res.Solution = sel.Solution
	res.RouteCount = sel.RouteCount
	res.Run = sel.Run
	res.Output = Export(p, sel.Solution)
	return res, nil
}

// safeConstruct turns a panic in a caller supplied constraint during
// construction into an error, like runSearch does for each run.
func safeConstruct(p *Problem, cfg Config) (sol *Solution, err error) {
	defer func() {
		if r := recover(); r != nil {
			sol, err = nil, fmt.Errorf("opt: construction panicked: %v", r)
		}
	}()
	return construct(p, cfg.Constraints, cfg.penalty()), nil
}

func logf(cfg Config, format string, args ...any) {
	if cfg.Logf != nil {
		cfg.Logf(format, args...)
	}
}
