package opt

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

const (
	insertCheapestOp = iota
	insertRegretOp
	numInsertOps
)

var insertNames = [numInsertOps]string{"cheapest", "regret2"}

// Metrics summarises one search run.
type Metrics struct {
	Run                int
	Seed               int64
	Iterations         int
	Improvements       int
	AcceptedWorse      int
	Rejected           int
	RuinSelects        map[string]int
	InsertSelects      map[string]int
	InitialCost        float64
	BestCost           float64
	FinalRuinWeights   map[string]float64
	FinalInsertWeights map[string]float64
	Snapshots          []WeightSnapshot
	Elapsed            time.Duration
}

type WeightSnapshot struct {
	Iteration int
	Ruin      [numRuinOps]float64
	Insert    [numInsertOps]float64
}

// RunResult is the outcome of one search run. Err is set when the run
// failed and its solution must be ignored.
type RunResult struct {
	Run      int
	Solution *Solution
	Metrics  Metrics
	Err      error
}

// search is the state of one run: current and best snapshots, the
// operator weights and the annealing temperature.
type search struct {
	p    *Problem
	cfg  Config
	rng  *rand.Rand
	curr *Solution
	best *Solution
	remW [numRuinOps]float64
	insW [numInsertOps]float64
	temp float64
	m    Metrics
}

func newSearch(p *Problem, cfg Config, initial *Solution, run int) *search {
	seed := cfg.RandomSeed + int64(run)
	s := &search{
		p:    p,
		cfg:  cfg,
		rng:  rand.New(rand.NewSource(seed)),
		curr: initial,
		best: initial,
		temp: cfg.initialTemp(initial),
		m: Metrics{
			Run:           run,
			Seed:          seed,
			InitialCost:   initial.Cost,
			BestCost:      initial.Cost,
			RuinSelects:   map[string]int{},
			InsertSelects: map[string]int{},
		},
	}
	for i := range s.remW {
		s.remW[i] = 1
	}
	for i := range s.insW {
		s.insW[i] = 1
	}
	return s
}

// step runs one ruin, recreate and accept/reject cycle on a snapshot of
// the current solution.
func (s *search) step() {
	s.m.Iterations++
	op := selectOp(s.remW[:], s.rng)
	ip := selectOp(s.insW[:], s.rng)

	cand := s.curr.snapshot()
	k := ruinSize(cand.Assigned(), s.cfg.RuinShare, s.cfg.MaxRuin, s.rng)
	var picked []int
	switch op {
	case ruinRandom:
		picked = pickRandomJobs(cand, k, s.rng)
	case ruinRadial:
		picked = pickRadialJobs(s.p, cand, k, s.rng)
	case ruinString:
		picked = pickString(cand, k, s.rng)
	}
	pool := removeJobs(cand, picked)
	pool = append(pool, cand.Unassigned...)
	cand.Unassigned = nil
	switch ip {
	case insertCheapestOp:
		insertCheapest(s.p, s.cfg.Constraints, cand, pool)
	case insertRegretOp:
		insertRegret(s.p, s.cfg.Constraints, cand, pool)
	}
	cand.updateCost(s.cfg.penalty())

	delta := cand.Cost - s.best.Cost
	if delta < -costEps || s.rng.Float64() < math.Exp(-delta/(s.temp+1e-9)) {
		s.curr = cand
		if delta < -costEps {
			s.best = cand
			s.remW[op] += 0.1
			s.insW[ip] += 0.1
			s.m.Improvements++
			s.m.BestCost = cand.Cost
		} else {
			s.remW[op] += 0.01
			s.insW[ip] += 0.01
			s.m.AcceptedWorse++
		}
	} else {
		s.remW[op] = math.Max(0.01, s.remW[op]*0.999)
		s.insW[ip] = math.Max(0.01, s.insW[ip]*0.999)
		s.m.Rejected++
	}
	s.temp *= s.cfg.Cooling
	if s.m.Iterations%snapshotEvery == 0 {
		s.m.Snapshots = append(s.m.Snapshots, WeightSnapshot{Iteration: s.m.Iterations, Ruin: s.remW, Insert: s.insW})
	}
	s.m.RuinSelects[ruinNames[op]]++
	s.m.InsertSelects[insertNames[ip]]++
}

// runSearch improves initial until the iteration or time budget is spent
// or ctx is cancelled. Budgets are only checked between iterations.
func runSearch(ctx context.Context, p *Problem, cfg Config, initial *Solution, run int) (res RunResult) {
	start := time.Now()
	res.Run = run
	defer func() {
		if r := recover(); r != nil {
			res.Solution = nil
			res.Err = fmt.Errorf("opt: run %d panicked: %v", run, r)
		}
	}()
	s := newSearch(p, cfg, initial, run)
	var deadline time.Time
	if cfg.MaxDuration > 0 {
		deadline = start.Add(cfg.MaxDuration)
	}
	for s.m.Iterations < cfg.MaxIterations && p.NumJobs() > 0 && p.NumVehicles() > 0 {
		if ctx.Err() != nil {
			break
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			break
		}
		s.step()
	}
	best := s.best
	if !cfg.DisableLocalSearch {
		polished := best.snapshot()
		if improveTwoOpt(p, cfg.Constraints, polished, 3) {
			polished.updateCost(cfg.penalty())
			if polished.Cost < best.Cost-costEps {
				best = polished
				s.m.BestCost = best.Cost
			}
		}
	}
	s.m.FinalRuinWeights = make(map[string]float64, numRuinOps)
	for i, w := range s.remW {
		s.m.FinalRuinWeights[ruinNames[i]] = w
	}
	s.m.FinalInsertWeights = make(map[string]float64, numInsertOps)
	for i, w := range s.insW {
		s.m.FinalInsertWeights[insertNames[i]] = w
	}
	s.m.Elapsed = time.Since(start)
	res.Metrics = s.m
	if err := best.validate(p, cfg.Constraints); err != nil {
		res.Err = fmt.Errorf("opt: run %d: %w", run, err)
		return res
	}
	res.Solution = best
	return res
}

// selectOp picks an operator index by roulette over weights.
func selectOp(weights []float64, rng *rand.Rand) int {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		return 0
	}
	r := rng.Float64() * sum
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r <= acc {
			return i
		}
	}
	return len(weights) - 1
}
