package opt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func mixedProblem(t *testing.T, capacity int) *Problem {
	t.Helper()
	jobs := []Job{
		{ID: "d1", Location: Location{Lat: 1}, Demand: 1, Kind: JobDelivery},
		{ID: "s1", Location: Location{Lat: 2}, Demand: 1},
		{ID: "p1", Location: Location{Lat: 3}, Demand: 1, Kind: JobPickup},
		{ID: "d2", Location: Location{Lat: 4}, Demand: 1, Kind: JobDelivery},
	}
	p, err := NewProblem([]Vehicle{{ID: "v1", Capacity: capacity}}, jobs, ProblemOptions{})
	require.NoError(t, err)
	return p
}

func TestDeliveriesFirst(t *testing.T) {
	p := mixedProblem(t, 10)
	cs := DefaultConstraints()
	r := newRoute(p, 0)
	r.insertAt(activityFor(p, 0), 0) // d1
	r.insertAt(activityFor(p, 1), 1) // s1

	require.NoError(t, cs.checkInsert(r, 3, 0), "delivery before everything")
	require.NoError(t, cs.checkInsert(r, 3, 1), "delivery after delivery")
	err := cs.checkInsert(r, 3, 2)
	var v *Violation
	require.True(t, errors.As(err, &v))
	require.Equal(t, "deliveries-first", v.Constraint)

	require.NoError(t, cs.checkInsert(r, 2, 1), "pickup between delivery and service")
	require.NoError(t, cs.checkInsert(r, 2, 2), "pickup at end")
	require.Error(t, cs.checkInsert(r, 2, 0), "pickup before delivery")
}

func TestCapacityConstraint(t *testing.T) {
	p := mixedProblem(t, 2)
	cs := DefaultConstraints()
	r := newRoute(p, 0)
	r.insertAt(activityFor(p, 0), 0)
	r.insertAt(activityFor(p, 1), 1)
	err := cs.checkInsert(r, 2, 2)
	var v *Violation
	require.True(t, errors.As(err, &v))
	require.Equal(t, "capacity", v.Constraint)
}

type recordingConstraint struct {
	name  string
	calls *[]string
	fail  bool
}

func (c recordingConstraint) Name() string { return c.name }

func (c recordingConstraint) Check(InsertionContext) error {
	*c.calls = append(*c.calls, c.name)
	if c.fail {
		return &Violation{Constraint: c.name, Reason: "rejected"}
	}
	return nil
}

func TestConstraintSetOrderAndShortCircuit(t *testing.T) {
	var calls []string
	cs := NewConstraintSet()
	cs.Add(recordingConstraint{name: "low", calls: &calls}, PriorityLow)
	cs.Add(recordingConstraint{name: "critical-a", calls: &calls}, PriorityCritical)
	cs.Add(recordingConstraint{name: "high", calls: &calls, fail: true}, PriorityHigh)
	cs.Add(recordingConstraint{name: "critical-b", calls: &calls}, PriorityCritical)
	require.Equal(t, []string{"critical-a", "critical-b", "high", "low"}, cs.Names())

	err := cs.Check(InsertionContext{})
	require.Error(t, err)
	require.Equal(t, []string{"critical-a", "critical-b", "high"}, calls)
}

func TestAdmitsReplaysOrder(t *testing.T) {
	p := mixedProblem(t, 10)
	cs := DefaultConstraints()
	require.NoError(t, cs.admits(p, 0, []int{0, 3, 1, 2}))
	require.Error(t, cs.admits(p, 0, []int{0, 1, 3}))
	require.Error(t, cs.admits(mixedProblem(t, 1), 0, []int{0, 3}))
}
