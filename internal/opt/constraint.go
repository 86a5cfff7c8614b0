package opt

import (
	"fmt"
	"sort"
)

// Priority orders constraint evaluation; lower values run first.
type Priority int

const (
	PriorityCritical Priority = iota
	PriorityHigh
	PriorityLow
)

// InsertionContext describes a candidate placement of Activity at
// Position in Route. Prev and Next are nil at the implicit start/end.
type InsertionContext struct {
	Problem  *Problem
	Route    *Route
	Vehicle  Vehicle
	Job      Job
	Activity Activity
	Position int
	Prev     *Activity
	Next     *Activity
}

// Violation is returned by a constraint that rejects a placement.
type Violation struct {
	Constraint string
	Reason     string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("constraint %s: %s", v.Constraint, v.Reason)
}

// Constraint is a hard feasibility rule. Check returns nil when the
// placement is allowed.
type Constraint interface {
	Name() string
	Check(ctx InsertionContext) error
}

type constraintEntry struct {
	c    Constraint
	prio Priority
	seq  int
}

// ConstraintSet evaluates constraints by priority, then registration
// order, stopping at the first violation. It is read-only once solving
// starts.
type ConstraintSet struct {
	entries []constraintEntry
}

func NewConstraintSet() *ConstraintSet { return &ConstraintSet{} }

// DefaultConstraints registers capacity then deliveries-first, both critical.
func DefaultConstraints() *ConstraintSet {
	s := NewConstraintSet()
	s.Add(CapacityConstraint{}, PriorityCritical)
	s.Add(DeliveriesFirstConstraint{}, PriorityCritical)
	return s
}

func (s *ConstraintSet) Add(c Constraint, prio Priority) {
	s.entries = append(s.entries, constraintEntry{c: c, prio: prio, seq: len(s.entries)})
	sort.SliceStable(s.entries, func(i, j int) bool {
		if s.entries[i].prio != s.entries[j].prio {
			return s.entries[i].prio < s.entries[j].prio
		}
		return s.entries[i].seq < s.entries[j].seq
	})
}

// Names lists constraints in evaluation order.
func (s *ConstraintSet) Names() []string {
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.c.Name()
	}
	return out
}

func (s *ConstraintSet) Check(ctx InsertionContext) error {
	for _, e := range s.entries {
		if err := e.c.Check(ctx); err != nil {
			return err
		}
	}
	return nil
}

// checkInsert builds the context for placing job at pos in r.
func (s *ConstraintSet) checkInsert(r *Route, job, pos int) error {
	act := activityFor(r.p, job)
	act.Position = pos
	ctx := InsertionContext{
		Problem:  r.p,
		Route:    r,
		Vehicle:  r.p.vehicles[r.Vehicle],
		Job:      r.p.jobs[job],
		Activity: act,
		Position: pos,
	}
	if pos > 0 {
		ctx.Prev = &r.Activities[pos-1]
	}
	if pos < len(r.Activities) {
		ctx.Next = &r.Activities[pos]
	}
	return s.Check(ctx)
}

// admits replays the visit order through the constraints, appending one
// job at a time. It reports whether the whole sequence is feasible.
func (s *ConstraintSet) admits(p *Problem, vehicle int, order []int) error {
	r := newRoute(p, vehicle)
	for i, job := range order {
		if err := s.checkInsert(r, job, i); err != nil {
			return err
		}
		r.insertAt(activityFor(p, job), i)
	}
	return nil
}

// CapacityConstraint keeps the route load within the vehicle capacity.
// With a single non-negative dimension the total bounds every prefix.
type CapacityConstraint struct{}

func (CapacityConstraint) Name() string { return "capacity" }

func (CapacityConstraint) Check(ctx InsertionContext) error {
	if load := ctx.Route.Load() + ctx.Job.Demand; load > ctx.Vehicle.Capacity {
		return &Violation{Constraint: "capacity", Reason: fmt.Sprintf("load %d exceeds capacity %d", load, ctx.Vehicle.Capacity)}
	}
	return nil
}

// DeliveriesFirstConstraint forbids a delivery after any non-delivery
// activity in the same route.
type DeliveriesFirstConstraint struct{}

func (DeliveriesFirstConstraint) Name() string { return "deliveries-first" }

func (DeliveriesFirstConstraint) Check(ctx InsertionContext) error {
	if ctx.Activity.IsDelivery() {
		if ctx.Prev != nil && !ctx.Prev.IsDelivery() {
			return &Violation{Constraint: "deliveries-first", Reason: "delivery after " + ctx.Prev.Kind.String()}
		}
		return nil
	}
	if ctx.Next != nil && ctx.Next.IsDelivery() {
		return &Violation{Constraint: "deliveries-first", Reason: ctx.Activity.Kind.String() + " before delivery"}
	}
	return nil
}
