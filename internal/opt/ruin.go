package opt

import (
	"math"
	"math/rand"
	"sort"
)

const (
	ruinRandom = iota
	ruinRadial
	ruinString
	numRuinOps
)

var ruinNames = [numRuinOps]string{"random", "radial", "string"}

// assignedJobs lists placed jobs in route then position order.
func assignedJobs(sol *Solution) []int {
	var out []int
	for _, r := range sol.Routes {
		for _, a := range r.Activities {
			out = append(out, a.Job)
		}
	}
	return out
}

// ruinSize draws the number of jobs to remove from [1, max].
func ruinSize(assigned int, share float64, maxRuin int, rng *rand.Rand) int {
	hi := int(math.Ceil(share * float64(assigned)))
	if maxRuin > 0 && hi > maxRuin {
		hi = maxRuin
	}
	if hi > assigned {
		hi = assigned
	}
	if hi < 1 {
		hi = 1
	}
	return 1 + rng.Intn(hi)
}

// pickRandomJobs samples k distinct assigned jobs.
func pickRandomJobs(sol *Solution, k int, rng *rand.Rand) []int {
	all := assignedJobs(sol)
	if len(all) == 0 {
		return nil
	}
	removed := []int{}
	for i := 0; i < k && len(all) > 0; i++ {
		j := rng.Intn(len(all))
		removed = append(removed, all[j])
		all = append(all[:j], all[j+1:]...)
	}
	return removed
}

// pickRadialJobs takes a random seed job and its k-1 nearest assigned
// neighbours.
func pickRadialJobs(p *Problem, sol *Solution, k int, rng *rand.Rand) []int {
	assigned := assignedJobs(sol)
	if len(assigned) == 0 {
		return nil
	}
	seed := assigned[rng.Intn(len(assigned))]
	type pair struct {
		job  int
		dist float64
	}
	rel := make([]pair, 0, len(assigned))
	sLoc := p.jobs[seed].Location
	for _, j := range assigned {
		if j == seed {
			continue
		}
		rel = append(rel, pair{job: j, dist: p.Cost(sLoc, p.jobs[j].Location)})
	}
	sort.Slice(rel, func(a, b int) bool {
		if rel[a].dist != rel[b].dist {
			return rel[a].dist < rel[b].dist
		}
		return rel[a].job < rel[b].job
	})
	removed := []int{seed}
	for i := 0; i < len(rel) && len(removed) < k; i++ {
		removed = append(removed, rel[i].job)
	}
	return removed
}

// pickString takes a contiguous run of up to k jobs from one route.
func pickString(sol *Solution, k int, rng *rand.Rand) []int {
	var candidates []int
	for ri, r := range sol.Routes {
		if !r.Empty() {
			candidates = append(candidates, ri)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	r := sol.Routes[candidates[rng.Intn(len(candidates))]]
	n := k
	if n > r.Len() {
		n = r.Len()
	}
	start := rng.Intn(r.Len() - n + 1)
	out := make([]int, 0, n)
	for _, a := range r.Activities[start : start+n] {
		out = append(out, a.Job)
	}
	return out
}

// removeJobs takes the given jobs out of their routes and returns them
// in the order they were removed from the routes.
func removeJobs(sol *Solution, jobs []int) []int {
	if len(jobs) == 0 {
		return nil
	}
	drop := make(map[int]bool, len(jobs))
	for _, j := range jobs {
		drop[j] = true
	}
	var removed []int
	for ri, r := range sol.Routes {
		hit := false
		for _, a := range r.Activities {
			if drop[a.Job] {
				hit = true
				break
			}
		}
		if !hit {
			continue
		}
		removed = append(removed, sol.mutable(ri).removeJobs(drop)...)
	}
	return removed
}
