package opt

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func lineProblem(t *testing.T, n int, returnToStart bool) *Problem {
	t.Helper()
	jobs := make([]Job, n)
	for i := range jobs {
		jobs[i] = Job{ID: string(rune('a' + i)), Location: Location{Lat: float64(i + 1)}, Demand: i%3 + 1}
	}
	p, err := NewProblem([]Vehicle{{ID: "v1", Capacity: 100}}, jobs, ProblemOptions{ReturnToStart: returnToStart})
	require.NoError(t, err)
	return p
}

func requireStateFresh(t *testing.T, r *Route) {
	t.Helper()
	fresh := r.clone()
	fresh.load, fresh.cost = nil, nil
	fresh.recomputeFrom(0)
	require.Equal(t, append([]int{}, fresh.load...), append([]int{}, r.load...))
	require.InDeltaSlice(t, append([]float64{}, fresh.cost...), append([]float64{}, r.cost...), 1e-9)
	require.InDelta(t, fresh.total, r.total, 1e-9)
	require.InDelta(t, orderCost(r.p, r.Vehicle, r.jobs()), r.Cost(), 1e-9)
	for i, a := range r.Activities {
		require.Equal(t, i, a.Position)
	}
}

func TestRouteStateIncrementalMatchesFull(t *testing.T) {
	for _, closed := range []bool{false, true} {
		p := lineProblem(t, 8, closed)
		r := newRoute(p, 0)
		rng := rand.New(rand.NewSource(3))
		for j := 0; j < p.NumJobs(); j++ {
			r.insertAt(activityFor(p, j), rng.Intn(r.Len()+1))
			requireStateFresh(t, r)
		}
		require.Equal(t, 1+2+3+1+2+3+1+2, r.Load())
		for r.Len() > 0 {
			r.removeAt(rng.Intn(r.Len()))
			requireStateFresh(t, r)
		}
		require.Equal(t, 0, r.Load())
		require.Zero(t, r.Cost())
	}
}

func TestRouteRemoveJobsRecomputesFromFirstHit(t *testing.T) {
	p := lineProblem(t, 5, false)
	r := newRoute(p, 0)
	for j := 0; j < 5; j++ {
		r.insertAt(activityFor(p, j), j)
	}
	removed := r.removeJobs(map[int]bool{3: true, 1: true})
	require.Equal(t, []int{1, 3}, removed)
	require.Equal(t, []int{0, 2, 4}, r.jobs())
	requireStateFresh(t, r)
}

func TestInsertionDeltaOpenAndClosed(t *testing.T) {
	open := lineProblem(t, 2, false)
	r := newRoute(open, 0)
	r.insertAt(activityFor(open, 0), 0)
	// appending after (1,0) at (2,0) costs one unit on an open route
	require.InDelta(t, 1.0, r.insertionDelta(open.Job(1).Location, 1), 1e-12)
	require.InDelta(t, 2.0, r.insertionDelta(open.Job(1).Location, 0), 1e-12)

	closed := lineProblem(t, 2, true)
	r = newRoute(closed, 0)
	r.insertAt(activityFor(closed, 0), 0)
	require.InDelta(t, 2.0, r.Cost(), 1e-12)
	require.InDelta(t, 2.0, r.insertionDelta(closed.Job(1).Location, 1), 1e-12)
}

func TestSnapshotCopiesOnWrite(t *testing.T) {
	p := lineProblem(t, 3, false)
	base := newSolution(p)
	base.Routes[0].insertAt(activityFor(p, 0), 0)
	snap := base.snapshot()
	require.Same(t, base.Routes[0], snap.Routes[0])
	snap.mutable(0).insertAt(activityFor(p, 1), 1)
	require.NotSame(t, base.Routes[0], snap.Routes[0])
	require.Equal(t, 1, base.Routes[0].Len())
	require.Equal(t, 2, snap.Routes[0].Len())
}
