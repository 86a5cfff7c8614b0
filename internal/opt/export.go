package opt

import (
	"fmt"
	"sort"
)

type Waypoint struct {
	JobID    string
	Sequence int
}

type RouteOutput struct {
	VehicleID string
	Waypoints []Waypoint
	Load      int
	Cost      float64
}

// Output is the exported form of a solution.
type Output struct {
	Routes           []RouteOutput
	UnassignedJobIDs []string
	TotalCost        float64
	Summary          string
}

// Summary is the one-line report of a solve.
func Summary(routes int) string {
	return fmt.Sprintf("Routes %d calculated.", routes)
}

// Export maps sol to Output. Vehicles without jobs are omitted; routes
// keep vehicle input order and unassigned ids keep job input order.
// Sequence numbers start at 0.
func Export(p *Problem, sol *Solution) Output {
	out := Output{
		Routes:           []RouteOutput{},
		UnassignedJobIDs: []string{},
		TotalCost:        sol.Cost,
	}
	for _, r := range sol.Routes {
		if r.Empty() {
			continue
		}
		ro := RouteOutput{
			VehicleID: p.vehicles[r.Vehicle].ID,
			Waypoints: make([]Waypoint, 0, r.Len()),
			Load:      r.Load(),
			Cost:      r.Cost(),
		}
		for i, a := range r.Activities {
			ro.Waypoints = append(ro.Waypoints, Waypoint{JobID: p.jobs[a.Job].ID, Sequence: i})
		}
		out.Routes = append(out.Routes, ro)
	}
	unassigned := append([]int(nil), sol.Unassigned...)
	sort.Ints(unassigned)
	for _, j := range unassigned {
		out.UnassignedJobIDs = append(out.UnassignedJobIDs, p.jobs[j].ID)
	}
	out.Summary = Summary(len(out.Routes))
	return out
}
