package integrations

import (
	"context"
	"fmt"
	"log"

	"routeplanner/internal/model"
	"routeplanner/internal/store"
)

// Source supplies fleet and job records from an external system.
type Source interface {
	Name() string
	Vehicles(ctx context.Context) ([]model.VehicleIn, error)
	Jobs(ctx context.Context) ([]AccountJobs, error)
}

// AccountJobs groups the jobs of one customer account.
type AccountJobs struct {
	Account string
	Jobs    []model.JobIn
}

type ImportResult struct {
	Vehicles int            `json:"vehicles"`
	Jobs     map[string]int `json:"jobs"`
}

// Import upserts everything src provides into s for tenantID.
func Import(ctx context.Context, s store.Store, tenantID string, src Source) (ImportResult, error) {
	res := ImportResult{Jobs: map[string]int{}}
	vs, err := src.Vehicles(ctx)
	if err != nil {
		return res, fmt.Errorf("import %s: vehicles: %w", src.Name(), err)
	}
	if len(vs) > 0 {
		if res.Vehicles, err = s.UpsertVehicles(ctx, tenantID, vs); err != nil {
			return res, fmt.Errorf("import %s: upsert vehicles: %w", src.Name(), err)
		}
	}
	groups, err := src.Jobs(ctx)
	if err != nil {
		return res, fmt.Errorf("import %s: jobs: %w", src.Name(), err)
	}
	for _, g := range groups {
		n, err := s.UpsertJobs(ctx, tenantID, g.Account, g.Jobs)
		if err != nil {
			return res, fmt.Errorf("import %s: upsert jobs for %s: %w", src.Name(), g.Account, err)
		}
		res.Jobs[g.Account] += n
	}
	log.Printf("import: source=%s tenant=%s vehicles=%d accounts=%d", src.Name(), tenantID, res.Vehicles, len(res.Jobs))
	return res, nil
}
