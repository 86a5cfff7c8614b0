package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"routeplanner/internal/metrics"
	"routeplanner/internal/model"
	"routeplanner/internal/opt"
	"routeplanner/internal/webhooks"
)

// planNameLayout renders "yyyy-MM-dd HH:mm:ss.SSS".
const planNameLayout = "2006-01-02 15:04:05.000"

func planName(t time.Time) string {
	return "Delivery Plan @ " + t.Format(planNameLayout)
}

// effectiveConfig overlays the tenant's stored optimizer config and then
// the request config on the service defaults.
func (s *Server) effectiveConfig(ctx context.Context, tenant string, req *model.SolveConfig) (model.SolveConfig, error) {
	cfg := s.Defaults
	stored, err := s.Store.GetOptimizerConfig(ctx, tenant)
	if err != nil {
		return cfg, fmt.Errorf("optimizer config: %w", err)
	}
	if len(stored) > 0 {
		tc, err := solveConfigFromMap(stored)
		if err != nil {
			return cfg, fmt.Errorf("optimizer config for %s: %w", tenant, err)
		}
		cfg = cfg.Overlay(&tc)
	}
	return cfg.Overlay(req), nil
}

func solveConfigFromMap(m map[string]any) (model.SolveConfig, error) {
	var c model.SolveConfig
	b, err := json.Marshal(m)
	if err != nil {
		return c, err
	}
	err = json.Unmarshal(b, &c)
	return c, err
}

// solve runs the optimizer and records solver metrics under source.
func (s *Server) solve(ctx context.Context, source string, vehicles []opt.Vehicle, jobs []opt.Job, sc model.SolveConfig) (*opt.Result, error) {
	cfg, err := SolverConfig(sc, log.Printf)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	res, err := opt.Solve(ctx, vehicles, jobs, cfg)
	if err != nil {
		return nil, err
	}
	iterations := 0
	for _, m := range res.Runs {
		iterations += m.Iterations
	}
	metrics.ObserveSolve(source, time.Since(start).Seconds(), iterations, res.FailedRuns, len(res.Runs)-res.FailedRuns, len(res.Output.UnassignedJobIDs))
	log.Printf("solve: source=%s vehicles=%d jobs=%d routes=%d unassigned=%d cost=%.3f run=%d",
		source, len(vehicles), len(jobs), res.RouteCount, len(res.Output.UnassignedJobIDs), res.Output.TotalCost, res.Run)
	return res, nil
}

// ToSolveResponse maps solver output to the wire response.
func ToSolveResponse(out opt.Output) model.SolveResponse {
	resp := model.SolveResponse{
		Routes:           make([]model.RouteOut, 0, len(out.Routes)),
		UnassignedJobIDs: out.UnassignedJobIDs,
		TotalCost:        out.TotalCost,
		Summary:          out.Summary,
	}
	for _, r := range out.Routes {
		ro := model.RouteOut{VehicleID: r.VehicleID, Load: r.Load, Cost: r.Cost, Waypoints: make([]model.WaypointOut, 0, len(r.Waypoints))}
		for _, w := range r.Waypoints {
			ro.Waypoints = append(ro.Waypoints, model.WaypointOut{JobID: w.JobID, SequenceNumber: w.Sequence})
		}
		resp.Routes = append(resp.Routes, ro)
	}
	return resp
}

// planAccount plans every job of an account against the tenant fleet,
// persists the plan atomically and notifies subscribers.
func (s *Server) planAccount(ctx context.Context, tenant, account string, req *model.SolveConfig) (model.PlanResponse, error) {
	sc, err := s.effectiveConfig(ctx, tenant, req)
	if err != nil {
		return model.PlanResponse{}, err
	}
	if err := validateSolveConfig(sc); err != nil {
		return model.PlanResponse{}, err
	}
	jobs, err := s.Store.ListJobs(ctx, tenant, account)
	if err != nil {
		return model.PlanResponse{}, fmt.Errorf("account %s: %w", account, err)
	}
	fleet, err := s.Store.ListVehicles(ctx, tenant)
	if err != nil {
		return model.PlanResponse{}, fmt.Errorf("list vehicles: %w", err)
	}

	vehicles, optJobs, err := PlanInputs(fleet, jobs)
	if err != nil {
		return model.PlanResponse{}, err
	}
	byID := make(map[string]model.Job, len(jobs))
	for _, j := range jobs {
		byID[j.ID] = j
	}

	res, err := s.solve(ctx, "plan", vehicles, optJobs, sc)
	if err != nil {
		return model.PlanResponse{}, err
	}
	out := ToSolveResponse(res.Output)

	plan := model.DeliveryPlan{
		TenantID:         tenant,
		AccountName:      account,
		Name:             planName(s.now()),
		TotalCost:        out.TotalCost,
		Summary:          out.Summary,
		UnassignedJobIDs: out.UnassignedJobIDs,
	}
	for _, r := range out.Routes {
		dr := model.DeliveryRoute{VehicleID: r.VehicleID, Load: r.Load, Cost: r.Cost}
		for _, w := range r.Waypoints {
			j := byID[w.JobID]
			dr.Waypoints = append(dr.Waypoints, model.DeliveryWaypoint{
				VehicleID: r.VehicleID,
				JobID:     w.JobID,
				JobName:   j.Name,
				Location:  j.Location,
				Number:    w.SequenceNumber,
			})
		}
		plan.Routes = append(plan.Routes, dr)
	}
	saved, err := s.Store.SavePlan(ctx, plan)
	if err != nil {
		return model.PlanResponse{}, fmt.Errorf("save plan: %w", err)
	}

	// The plan is committed; metric and notification failures are logged only.
	if err := s.Store.SavePlanMetrics(ctx, tenant, saved.ID, runMetrics(res.Runs)); err != nil {
		log.Printf("plan: save metrics plan=%s err=%v", saved.ID, err)
	}
	if s.Pub != nil {
		data := map[string]any{
			"planId":           saved.ID,
			"accountName":      account,
			"name":             saved.Name,
			"routes":           len(saved.Routes),
			"unassignedJobIds": saved.UnassignedJobIDs,
			"summary":          saved.Summary,
		}
		if _, err := s.Pub.Emit(ctx, tenant, webhooks.EventPlanCompleted, data); err != nil {
			log.Printf("plan: emit %s plan=%s err=%v", webhooks.EventPlanCompleted, saved.ID, err)
		}
	}
	log.Printf("plan: tenant=%s account=%s plan=%s %s", tenant, account, saved.ID, saved.Summary)
	return model.PlanResponse{PlanID: saved.ID, Name: saved.Name, SolveResponse: out}, nil
}

// PlanInputs converts stored fleet and job records to solver input.
func PlanInputs(fleet []model.Vehicle, jobs []model.Job) ([]opt.Vehicle, []opt.Job, error) {
	vehicles := make([]opt.Vehicle, 0, len(fleet))
	for _, v := range fleet {
		vehicles = append(vehicles, opt.Vehicle{ID: v.ID, Start: opt.Location{Lat: v.StartLocation.Lat, Lon: v.StartLocation.Lon}, Capacity: v.Capacity})
	}
	out := make([]opt.Job, 0, len(jobs))
	for i, j := range jobs {
		kind, err := opt.ParseJobKind(j.Kind)
		if err != nil {
			return nil, nil, invalid(fmt.Sprintf("jobs[%d].kind", i), "unknown kind %q", j.Kind)
		}
		out = append(out, opt.Job{ID: j.ID, Location: opt.Location{Lat: j.Location.Lat, Lon: j.Location.Lon}, Demand: j.Demand, Kind: kind})
	}
	return vehicles, out, nil
}

func runMetrics(runs []opt.Metrics) []map[string]any {
	out := make([]map[string]any, 0, len(runs))
	for _, m := range runs {
		out = append(out, map[string]any{
			"run":                m.Run,
			"seed":               m.Seed,
			"iterations":         m.Iterations,
			"improvements":       m.Improvements,
			"acceptedWorse":      m.AcceptedWorse,
			"rejected":           m.Rejected,
			"initialCost":        m.InitialCost,
			"bestCost":           m.BestCost,
			"elapsedMs":          m.Elapsed.Milliseconds(),
			"ruinSelects":        m.RuinSelects,
			"insertSelects":      m.InsertSelects,
			"finalRuinWeights":   m.FinalRuinWeights,
			"finalInsertWeights": m.FinalInsertWeights,
		})
	}
	return out
}
