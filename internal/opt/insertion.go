package opt

import "math"

const costEps = 1e-9

// insertion is the best placement of a job in one route.
type insertion struct {
	job   int
	route int
	pos   int
	cost  float64
}

var noInsertion = insertion{route: -1, pos: -1, cost: math.Inf(1)}

func (in insertion) ok() bool { return in.route >= 0 }

// better orders insertions by cost, then job id, vehicle id and position.
func better(p *Problem, a, b insertion) bool {
	if !b.ok() {
		return a.ok()
	}
	if !a.ok() {
		return false
	}
	if d := a.cost - b.cost; math.Abs(d) > costEps {
		return d < 0
	}
	if a.job != b.job {
		return p.jobRank[a.job] < p.jobRank[b.job]
	}
	if a.route != b.route {
		return p.vehicleRank[a.route] < p.vehicleRank[b.route]
	}
	return a.pos < b.pos
}

// bestInRoute scans every position of r for job. Positions are visited
// in ascending order so the lowest one wins ties.
func bestInRoute(cs *ConstraintSet, r *Route, job, route int) insertion {
	best := noInsertion
	loc := r.p.jobs[job].Location
	for pos := 0; pos <= r.Len(); pos++ {
		if cs.checkInsert(r, job, pos) != nil {
			continue
		}
		c := r.insertionDelta(loc, pos)
		if c < best.cost-costEps {
			best = insertion{job: job, route: route, pos: pos, cost: c}
		}
	}
	return best
}

// insertionTable caches the best placement of each pending job per route.
// Only the route touched by the previous step needs a refresh.
type insertionTable struct {
	pending []int
	best    [][]insertion
}

func newInsertionTable(cs *ConstraintSet, sol *Solution, pending []int) *insertionTable {
	t := &insertionTable{pending: append([]int(nil), pending...), best: make([][]insertion, len(pending))}
	for i, job := range t.pending {
		t.best[i] = make([]insertion, len(sol.Routes))
		for ri, r := range sol.Routes {
			t.best[i][ri] = bestInRoute(cs, r, job, ri)
		}
	}
	return t
}

func (t *insertionTable) refresh(cs *ConstraintSet, r *Route, route int) {
	for i, job := range t.pending {
		t.best[i][route] = bestInRoute(cs, r, job, route)
	}
}

func (t *insertionTable) drop(i int) {
	t.pending = append(t.pending[:i], t.pending[i+1:]...)
	t.best = append(t.best[:i], t.best[i+1:]...)
}

// bestOf returns the overall and second-best insertion cost of pending job i.
func (t *insertionTable) bestOf(p *Problem, i int) (insertion, float64) {
	best, second := noInsertion, math.Inf(1)
	for _, in := range t.best[i] {
		if !in.ok() {
			continue
		}
		if better(p, in, best) {
			if best.ok() {
				second = best.cost
			}
			best = in
		} else if in.cost < second {
			second = in.cost
		}
	}
	return best, second
}

// pruneInfeasible moves jobs without any feasible placement to the
// unassigned set. Routes only gain load, so such jobs stay infeasible.
func (t *insertionTable) pruneInfeasible(p *Problem, sol *Solution) {
	for i := len(t.pending) - 1; i >= 0; i-- {
		if best, _ := t.bestOf(p, i); !best.ok() {
			sol.Unassigned = append(sol.Unassigned, t.pending[i])
			t.drop(i)
		}
	}
}

func (t *insertionTable) apply(p *Problem, cs *ConstraintSet, sol *Solution, i int, in insertion) {
	r := sol.mutable(in.route)
	r.insertAt(activityFor(p, in.job), in.pos)
	t.drop(i)
	t.refresh(cs, r, in.route)
}

// insertCheapest places pending jobs by global cheapest feasible
// insertion until none are left.
func insertCheapest(p *Problem, cs *ConstraintSet, sol *Solution, pending []int) {
	t := newInsertionTable(cs, sol, pending)
	for {
		t.pruneInfeasible(p, sol)
		if len(t.pending) == 0 {
			break
		}
		pick, choice := -1, noInsertion
		for i := range t.pending {
			if in, _ := t.bestOf(p, i); better(p, in, choice) {
				pick, choice = i, in
			}
		}
		t.apply(p, cs, sol, pick, choice)
	}
	sol.sortUnassigned()
}

// insertRegret places first the job that loses most when its best route
// is taken (regret-2). Jobs with a single feasible route go first.
func insertRegret(p *Problem, cs *ConstraintSet, sol *Solution, pending []int) {
	t := newInsertionTable(cs, sol, pending)
	for {
		t.pruneInfeasible(p, sol)
		if len(t.pending) == 0 {
			break
		}
		pick, choice, regret := -1, noInsertion, math.Inf(-1)
		for i := range t.pending {
			in, second := t.bestOf(p, i)
			rg := second - in.cost
			switch {
			case pick < 0, rg > regret+costEps:
			case math.Abs(rg-regret) <= costEps || (math.IsInf(rg, 1) && math.IsInf(regret, 1)):
				if !better(p, in, choice) {
					continue
				}
			default:
				continue
			}
			pick, choice, regret = i, in, rg
		}
		t.apply(p, cs, sol, pick, choice)
	}
	sol.sortUnassigned()
}

// construct builds the initial solution by cheapest insertion of every job.
func construct(p *Problem, cs *ConstraintSet, penalty float64) *Solution {
	sol := newSolution(p)
	all := make([]int, p.NumJobs())
	for i := range all {
		all[i] = i
	}
	insertCheapest(p, cs, sol, all)
	sol.updateCost(penalty)
	return sol
}
