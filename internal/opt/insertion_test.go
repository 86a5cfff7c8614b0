package opt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheapestInsertionTieBreaksByJobID(t *testing.T) {
	p, err := NewProblem(
		[]Vehicle{{ID: "v1", Capacity: 1}},
		[]Job{
			{ID: "b", Location: Location{Lat: 1}, Demand: 1},
			{ID: "a", Location: Location{Lat: -1}, Demand: 1},
		},
		ProblemOptions{},
	)
	require.NoError(t, err)
	sol := construct(p, DefaultConstraints(), DefaultUnassignedPenalty)
	require.Equal(t, []int{1}, sol.Routes[0].jobs())
	require.Equal(t, []int{0}, sol.Unassigned)
}

func TestCheapestInsertionTieBreaksByVehicleID(t *testing.T) {
	p, err := NewProblem(
		[]Vehicle{{ID: "v2", Capacity: 1}, {ID: "v1", Capacity: 1}},
		[]Job{{ID: "j", Location: Location{Lat: 1}, Demand: 1}},
		ProblemOptions{},
	)
	require.NoError(t, err)
	sol := construct(p, DefaultConstraints(), DefaultUnassignedPenalty)
	require.True(t, sol.Routes[0].Empty())
	require.Equal(t, []int{0}, sol.Routes[1].jobs())
}

func TestConstructionKeepsDeliveriesFirst(t *testing.T) {
	p := mixedProblem(t, 10)
	sol := construct(p, DefaultConstraints(), DefaultUnassignedPenalty)
	require.Empty(t, sol.Unassigned)
	require.NoError(t, sol.validate(p, DefaultConstraints()))
	seenOther := false
	for _, a := range sol.Routes[0].Activities {
		if a.IsDelivery() {
			require.False(t, seenOther, "delivery after non-delivery")
		} else {
			seenOther = true
		}
	}
}

func TestOversizedJobIsUnassigned(t *testing.T) {
	p, err := NewProblem(
		[]Vehicle{{ID: "v1", Capacity: 3}, {ID: "v2", Capacity: 2}},
		[]Job{{ID: "big", Demand: 4}, {ID: "small", Location: Location{Lat: 2}, Demand: 1}},
		ProblemOptions{},
	)
	require.NoError(t, err)
	sol := construct(p, DefaultConstraints(), 100)
	require.Equal(t, []int{0}, sol.Unassigned)
	require.Equal(t, 1, sol.Assigned())
	require.InDelta(t, 2+100, sol.Cost, 1e-9)
}

func TestRegretInsertionIsComplete(t *testing.T) {
	p := clusterProblem(t, 3, 4)
	sol := newSolution(p)
	all := make([]int, p.NumJobs())
	for i := range all {
		all[i] = i
	}
	insertRegret(p, DefaultConstraints(), sol, all)
	sol.updateCost(DefaultUnassignedPenalty)
	require.Empty(t, sol.Unassigned)
	require.NoError(t, sol.validate(p, DefaultConstraints()))
}
