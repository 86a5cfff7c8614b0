package opt

// improveTwoOpt applies first-improvement 2-opt to every route of sol.
// Reversed segments are kept only when the constraints still admit the
// route and its cost drops.
func improveTwoOpt(p *Problem, cs *ConstraintSet, sol *Solution, iterations int) bool {
	if iterations <= 0 {
		iterations = 1
	}
	changed := false
	for ri, r := range sol.Routes {
		if r.Len() < 3 {
			continue
		}
		best := r.jobs()
		bestCost := r.Cost()
		improved := false
		for it := 0; it < iterations; it++ {
			pass := false
			for i := 0; i < len(best)-1; i++ {
				for k := i + 1; k < len(best); k++ {
					order := twoOptSwap(best, i, k)
					c := orderCost(p, r.Vehicle, order)
					if c+1e-6 >= bestCost {
						continue
					}
					if cs.admits(p, r.Vehicle, order) != nil {
						continue
					}
					best, bestCost = order, c
					pass = true
				}
			}
			if !pass {
				break
			}
			improved = true
		}
		if !improved {
			continue
		}
		m := sol.mutable(ri)
		for i, job := range best {
			m.Activities[i] = activityFor(p, job)
		}
		m.recomputeFrom(0)
		changed = true
	}
	return changed
}

func twoOptSwap(ord []int, i, k int) []int {
	out := make([]int, len(ord))
	copy(out, ord[:i])
	pos := i
	for j := k; j >= i; j-- {
		out[pos] = ord[j]
		pos++
	}
	copy(out[pos:], ord[k+1:])
	return out
}

// orderCost is the route cost of visiting order with vehicle v.
func orderCost(p *Problem, v int, order []int) float64 {
	start := p.vehicles[v].Start
	cur := start
	total := 0.0
	for _, j := range order {
		loc := p.jobs[j].Location
		total += p.Cost(cur, loc)
		cur = loc
	}
	if p.returnToStart && len(order) > 0 {
		total += p.Cost(cur, start)
	}
	return total
}
