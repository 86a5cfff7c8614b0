package opt

import "math"

// Selection is the winning run's solution.
type Selection struct {
	Run        int
	Solution   *Solution
	RouteCount int
}

// SelectBest picks the lowest-cost solution among successful runs. Ties
// go to fewer unassigned jobs, then to the lexically smallest sequence of
// non-empty route vehicle ids, then to the lower run index.
func SelectBest(p *Problem, results []RunResult) (Selection, error) {
	var (
		best  *RunResult
		fails []error
	)
	for i := range results {
		r := &results[i]
		if r.Err != nil || r.Solution == nil {
			if r.Err != nil {
				fails = append(fails, r.Err)
			}
			continue
		}
		if best == nil || preferred(p, r, best) {
			best = r
		}
	}
	if best == nil {
		return Selection{}, &SolverError{Runs: len(results), Errs: fails}
	}
	return Selection{Run: best.Run, Solution: best.Solution, RouteCount: best.Solution.NonEmptyRoutes()}, nil
}

func preferred(p *Problem, a, b *RunResult) bool {
	if d := a.Solution.Cost - b.Solution.Cost; math.Abs(d) > costEps {
		return d < 0
	}
	if na, nb := len(a.Solution.Unassigned), len(b.Solution.Unassigned); na != nb {
		return na < nb
	}
	ka, kb := routeKey(p, a.Solution), routeKey(p, b.Solution)
	for i := 0; i < len(ka) && i < len(kb); i++ {
		if ka[i] != kb[i] {
			return ka[i] < kb[i]
		}
	}
	if len(ka) != len(kb) {
		return len(ka) < len(kb)
	}
	return a.Run < b.Run
}

func routeKey(p *Problem, s *Solution) []string {
	var out []string
	for _, r := range s.Routes {
		if !r.Empty() {
			out = append(out, p.vehicles[r.Vehicle].ID)
		}
	}
	return out
}
