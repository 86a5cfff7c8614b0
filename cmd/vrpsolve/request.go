package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"routeplanner/internal/integrations"
	"routeplanner/internal/model"
)

// requestAccount holds the jobs of a JSON problem and CSV rows without an account.
const requestAccount = "default"

func readRequest(path string) (model.SolveRequest, error) {
	var req model.SolveRequest
	data, err := os.ReadFile(path)
	if err != nil {
		return req, err
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("%s: %w", path, err)
	}
	return req, nil
}

// requestSource serves a decoded JSON problem as an import source.
type requestSource struct {
	req model.SolveRequest
}

func (s requestSource) Name() string { return "json" }

func (s requestSource) Vehicles(ctx context.Context) ([]model.VehicleIn, error) {
	if err := uniqueIDs("vehicles", len(s.req.Vehicles), func(i int) string { return s.req.Vehicles[i].ID }); err != nil {
		return nil, err
	}
	return s.req.Vehicles, nil
}

func (s requestSource) Jobs(ctx context.Context) ([]integrations.AccountJobs, error) {
	if len(s.req.Jobs) == 0 {
		return nil, nil
	}
	if err := uniqueIDs("jobs", len(s.req.Jobs), func(i int) string { return s.req.Jobs[i].ID }); err != nil {
		return nil, err
	}
	return []integrations.AccountJobs{{Account: requestAccount, Jobs: s.req.Jobs}}, nil
}

// uniqueIDs rejects duplicates the store would otherwise merge.
func uniqueIDs(what string, n int, id func(int) string) error {
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		if seen[id(i)] {
			return fmt.Errorf("%s[%d].id: duplicate id %q", what, i, id(i))
		}
		seen[id(i)] = true
	}
	return nil
}
