package opt

// ActivityKind is the role of a stop in a route. Start and End are
// implicit sentinels at the vehicle start; they are never stored.
type ActivityKind int

const (
	ActivityStart ActivityKind = iota
	ActivityService
	ActivityPickup
	ActivityDelivery
	ActivityEnd
)

func (k ActivityKind) String() string {
	switch k {
	case ActivityStart:
		return "start"
	case ActivityService:
		return "service"
	case ActivityPickup:
		return "pickup"
	case ActivityDelivery:
		return "delivery"
	case ActivityEnd:
		return "end"
	}
	return "unknown"
}

// Activity is one visit of a job inside a route.
type Activity struct {
	Kind     ActivityKind
	Job      int
	Position int
}

func (a Activity) IsDelivery() bool { return a.Kind == ActivityDelivery }

func activityFor(p *Problem, job int) Activity {
	kind := ActivityService
	switch p.jobs[job].Kind {
	case JobPickup:
		kind = ActivityPickup
	case JobDelivery:
		kind = ActivityDelivery
	}
	return Activity{Kind: kind, Job: job, Position: -1}
}

// Route is the ordered visit list of one vehicle together with its
// prefix state: load[i] and cost[i] hold the cumulative demand and
// travel cost from the vehicle start through position i.
type Route struct {
	p          *Problem
	Vehicle    int
	Activities []Activity
	load       []int
	cost       []float64
	total      float64
}

func newRoute(p *Problem, vehicle int) *Route {
	return &Route{p: p, Vehicle: vehicle}
}

func (r *Route) Len() int { return len(r.Activities) }

func (r *Route) Empty() bool { return len(r.Activities) == 0 }

// Load is the total demand carried by the route.
func (r *Route) Load() int {
	if len(r.load) == 0 {
		return 0
	}
	return r.load[len(r.load)-1]
}

// LoadAt is the cumulative demand through position i.
func (r *Route) LoadAt(i int) int { return r.load[i] }

// CostAt is the cumulative travel cost through position i.
func (r *Route) CostAt(i int) float64 { return r.cost[i] }

// Cost is the route travel cost, including the return leg when the
// problem closes routes at the start.
func (r *Route) Cost() float64 { return r.total }

func (r *Route) capacity() int { return r.p.vehicles[r.Vehicle].Capacity }

// locationAt returns the location of position i; -1 and Len() resolve to
// the vehicle start.
func (r *Route) locationAt(i int) Location {
	if i < 0 || i >= len(r.Activities) {
		return r.p.vehicles[r.Vehicle].Start
	}
	return r.p.jobs[r.Activities[i].Job].Location
}

// insertionDelta is the added travel cost of visiting loc between
// positions pos-1 and pos.
func (r *Route) insertionDelta(loc Location, pos int) float64 {
	prev := r.locationAt(pos - 1)
	if pos == len(r.Activities) && !r.p.returnToStart {
		return r.p.Cost(prev, loc)
	}
	next := r.locationAt(pos)
	return r.p.Cost(prev, loc) + r.p.Cost(loc, next) - r.p.Cost(prev, next)
}

func (r *Route) insertAt(act Activity, pos int) {
	r.Activities = append(r.Activities, Activity{})
	copy(r.Activities[pos+1:], r.Activities[pos:])
	r.Activities[pos] = act
	r.load = append(r.load, 0)
	r.cost = append(r.cost, 0)
	r.recomputeFrom(pos)
}

func (r *Route) removeAt(pos int) Activity {
	act := r.Activities[pos]
	r.Activities = append(r.Activities[:pos], r.Activities[pos+1:]...)
	r.load = r.load[:len(r.Activities)]
	r.cost = r.cost[:len(r.Activities)]
	r.recomputeFrom(pos)
	act.Position = -1
	return act
}

// removeJobs drops every activity whose job is in drop and returns the
// removed job indices in route order.
func (r *Route) removeJobs(drop map[int]bool) []int {
	first := -1
	var removed []int
	kept := r.Activities[:0]
	for i, a := range r.Activities {
		if drop[a.Job] {
			if first < 0 {
				first = i
			}
			removed = append(removed, a.Job)
			continue
		}
		kept = append(kept, a)
	}
	if first < 0 {
		return nil
	}
	r.Activities = kept
	r.load = r.load[:len(kept)]
	r.cost = r.cost[:len(kept)]
	r.recomputeFrom(first)
	return removed
}

// recomputeFrom refreshes positions and prefix aggregates from pos on;
// entries before pos are left untouched.
func (r *Route) recomputeFrom(pos int) {
	if pos < 0 {
		pos = 0
	}
	if len(r.load) != len(r.Activities) {
		r.load = make([]int, len(r.Activities))
		r.cost = make([]float64, len(r.Activities))
		pos = 0
	}
	load, cost := 0, 0.0
	if pos > 0 {
		load, cost = r.load[pos-1], r.cost[pos-1]
	}
	for i := pos; i < len(r.Activities); i++ {
		r.Activities[i].Position = i
		job := r.p.jobs[r.Activities[i].Job]
		load += job.Demand
		cost += r.p.Cost(r.locationAt(i-1), job.Location)
		r.load[i] = load
		r.cost[i] = cost
	}
	r.total = cost
	if n := len(r.Activities); n > 0 && r.p.returnToStart {
		r.total += r.p.Cost(r.locationAt(n-1), r.p.vehicles[r.Vehicle].Start)
	}
}

func (r *Route) clone() *Route {
	return &Route{
		p:          r.p,
		Vehicle:    r.Vehicle,
		Activities: append([]Activity(nil), r.Activities...),
		load:       append([]int(nil), r.load...),
		cost:       append([]float64(nil), r.cost...),
		total:      r.total,
	}
}

// jobs lists the job indices in visit order.
func (r *Route) jobs() []int {
	out := make([]int, len(r.Activities))
	for i, a := range r.Activities {
		out[i] = a.Job
	}
	return out
}
