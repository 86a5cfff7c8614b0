package model

// Overlay returns c with every set field of o applied on top. Zero
// numbers, empty strings and nil pointers in o leave c unchanged.
func (c SolveConfig) Overlay(o *SolveConfig) SolveConfig {
	if o == nil {
		return c
	}
	if o.RandomSeed != nil {
		v := *o.RandomSeed
		c.RandomSeed = &v
	}
	if o.MaxIterations != 0 {
		c.MaxIterations = o.MaxIterations
	}
	if o.MaxDurationMs != 0 {
		c.MaxDurationMs = o.MaxDurationMs
	}
	if o.ParallelRuns != 0 {
		c.ParallelRuns = o.ParallelRuns
	}
	if o.UnassignedPenalty != nil {
		v := *o.UnassignedPenalty
		c.UnassignedPenalty = &v
	}
	if o.ReturnToStart != nil {
		v := *o.ReturnToStart
		c.ReturnToStart = &v
	}
	if o.Metric != "" {
		c.Metric = o.Metric
	}
	if o.RuinShare != 0 {
		c.RuinShare = o.RuinShare
	}
	if o.MaxRuin != 0 {
		c.MaxRuin = o.MaxRuin
	}
	if o.InitialTemp != 0 {
		c.InitialTemp = o.InitialTemp
	}
	if o.Cooling != 0 {
		c.Cooling = o.Cooling
	}
	if o.LocalSearch != nil {
		v := *o.LocalSearch
		c.LocalSearch = &v
	}
	return c
}
