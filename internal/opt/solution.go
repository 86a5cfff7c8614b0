package opt

import (
	"fmt"
	"sort"
)

// Solution is one route per vehicle plus the unassigned jobs. Snapshots
// share routes; a route is copied the first time a snapshot mutates it.
type Solution struct {
	Routes     []*Route
	Unassigned []int
	Cost       float64

	owned []bool
}

func newSolution(p *Problem) *Solution {
	s := &Solution{
		Routes: make([]*Route, p.NumVehicles()),
		owned:  make([]bool, p.NumVehicles()),
	}
	for i := range s.Routes {
		s.Routes[i] = newRoute(p, i)
		s.owned[i] = true
	}
	return s
}

// snapshot returns a copy sharing every route with s.
func (s *Solution) snapshot() *Solution {
	return &Solution{
		Routes:     append([]*Route(nil), s.Routes...),
		Unassigned: append([]int(nil), s.Unassigned...),
		Cost:       s.Cost,
		owned:      make([]bool, len(s.Routes)),
	}
}

// mutable returns route i, copying it first if still shared.
func (s *Solution) mutable(i int) *Route {
	if !s.owned[i] {
		s.Routes[i] = s.Routes[i].clone()
		s.owned[i] = true
	}
	return s.Routes[i]
}

// RouteCost sums travel cost over all routes.
func (s *Solution) RouteCost() float64 {
	total := 0.0
	for _, r := range s.Routes {
		total += r.Cost()
	}
	return total
}

func (s *Solution) updateCost(penalty float64) {
	s.Cost = s.RouteCost() + penalty*float64(len(s.Unassigned))
}

// Assigned counts the jobs placed in routes.
func (s *Solution) Assigned() int {
	n := 0
	for _, r := range s.Routes {
		n += r.Len()
	}
	return n
}

// NonEmptyRoutes counts routes with at least one activity.
func (s *Solution) NonEmptyRoutes() int {
	n := 0
	for _, r := range s.Routes {
		if !r.Empty() {
			n++
		}
	}
	return n
}

func (s *Solution) sortUnassigned() { sort.Ints(s.Unassigned) }

// validate checks the structural invariants of a finished solution
// against p and cs.
func (s *Solution) validate(p *Problem, cs *ConstraintSet) error {
	if len(s.Routes) != p.NumVehicles() {
		return fmt.Errorf("opt: %d routes for %d vehicles", len(s.Routes), p.NumVehicles())
	}
	seen := make([]int, p.NumJobs())
	for ri, r := range s.Routes {
		if r.Vehicle != ri {
			return fmt.Errorf("opt: route %d bound to vehicle %d", ri, r.Vehicle)
		}
		load := 0
		for i, a := range r.Activities {
			if a.Position != i {
				return fmt.Errorf("opt: route %d position %d holds activity at %d", ri, i, a.Position)
			}
			seen[a.Job]++
			load += p.jobs[a.Job].Demand
			if load != r.load[i] {
				return fmt.Errorf("opt: route %d stale load at %d", ri, i)
			}
			if load > r.capacity() {
				return fmt.Errorf("opt: route %d over capacity at %d", ri, i)
			}
		}
		if err := cs.admits(p, ri, r.jobs()); err != nil {
			return fmt.Errorf("opt: route %d infeasible: %w", ri, err)
		}
	}
	for _, j := range s.Unassigned {
		seen[j]++
	}
	for j, n := range seen {
		if n != 1 {
			return fmt.Errorf("opt: job %q appears %d times", p.jobs[j].ID, n)
		}
	}
	return nil
}
