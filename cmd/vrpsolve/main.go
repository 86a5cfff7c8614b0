// Command vrpsolve solves a routing problem from a JSON or CSV file and
// imports CSV records into the service database.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"time"

	"github.com/urfave/cli"

	"routeplanner/internal/api"
	"routeplanner/internal/buildinfo"
	"routeplanner/internal/config"
	"routeplanner/internal/integrations"
	"routeplanner/internal/integrations/csvimport"
	"routeplanner/internal/model"
	"routeplanner/internal/opt"
	"routeplanner/internal/store"
)

const localTenant = "local"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "vrpsolve"
	app.Usage = "capacitated vehicle routing with deliveries first"
	app.Version = buildinfo.Version
	app.Commands = []cli.Command{
		{
			Name:   "solve",
			Usage:  "solve a problem file and print the routes as JSON",
			Flags:  solveFlags,
			Action: solveAction,
		},
		{
			Name:  "import",
			Usage: "import vehicles and jobs from CSV into the database",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "database-url", EnvVar: "DATABASE_URL", Usage: "postgres:// URL or sqlite file"},
				cli.StringFlag{Name: "driver", EnvVar: "DATABASE_DRIVER", Usage: "pgx or sqlite (derived from the URL when empty)"},
				cli.StringFlag{Name: "tenant", Value: "t_demo", Usage: "tenant to import into"},
				cli.StringFlag{Name: "vehicles", Usage: "vehicles CSV"},
				cli.StringFlag{Name: "jobs", Usage: "jobs CSV"},
				cli.StringFlag{Name: "account", Usage: "account for job rows without one"},
			},
			Action: importAction,
		},
	}
	return app
}

var solveFlags = []cli.Flag{
	cli.StringFlag{Name: "input, i", Usage: "JSON file with {vehicles, jobs, config}"},
	cli.StringFlag{Name: "vehicles", Usage: "vehicles CSV (instead of --input)"},
	cli.StringFlag{Name: "jobs", Usage: "jobs CSV (instead of --input)"},
	cli.StringFlag{Name: "account", Usage: "account to plan when the jobs CSV holds several"},
	cli.StringFlag{Name: "output, o", Usage: "output file (default stdout)"},
	cli.Int64Flag{Name: "seed", Usage: "random seed"},
	cli.IntFlag{Name: "iterations", Usage: "iterations per run"},
	cli.IntFlag{Name: "runs", Usage: "parallel runs"},
	cli.DurationFlag{Name: "max-duration", Usage: "wall clock limit per solve"},
	cli.StringFlag{Name: "metric", Usage: "euclidean or haversine"},
	cli.Float64Flag{Name: "penalty", Usage: "cost per unassigned job"},
	cli.BoolFlag{Name: "return-to-start", Usage: "close routes at the vehicle start"},
	cli.BoolFlag{Name: "metrics", Usage: "include per-run search metrics and host info"},
}

// output is written by solve; Runs and Host are set with --metrics.
type output struct {
	model.SolveResponse
	Runs []opt.Metrics   `json:"runs,omitempty"`
	Host *buildinfo.Host `json:"host,omitempty"`
}

func solveAction(c *cli.Context) error {
	ctx := context.Background()
	vehicles, jobs, sc, err := loadProblem(ctx, c)
	if err != nil {
		return cli.NewExitError(err.Error(), 2)
	}
	sc = sc.Overlay(flagConfig(c))
	cfg, err := api.SolverConfig(sc, log.Printf)
	if err != nil {
		return cli.NewExitError(err.Error(), 2)
	}

	start := time.Now()
	res, err := opt.Solve(ctx, vehicles, jobs, cfg)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	log.Printf("vrpsolve: vehicles=%d jobs=%d routes=%d unassigned=%d cost=%.3f elapsed=%s",
		len(vehicles), len(jobs), res.RouteCount, len(res.Output.UnassignedJobIDs), res.Output.TotalCost, time.Since(start))

	out := output{SolveResponse: api.ToSolveResponse(res.Output)}
	if c.Bool("metrics") {
		out.Runs = res.Runs
		h := buildinfo.HostInfo()
		out.Host = &h
	}

	var w io.Writer = os.Stdout
	if path := c.String("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// loadProblem reads the problem through an in-memory store so records
// get the same defaults as in the service.
func loadProblem(ctx context.Context, c *cli.Context) ([]opt.Vehicle, []opt.Job, model.SolveConfig, error) {
	sc := config.Default().Solver
	var src integrations.Source
	switch {
	case c.String("input") != "":
		req, err := readRequest(c.String("input"))
		if err != nil {
			return nil, nil, sc, err
		}
		sc = sc.Overlay(req.Config)
		src = requestSource{req: req}
	case c.String("jobs") != "":
		src = csvimport.Adapter{VehiclesPath: c.String("vehicles"), JobsPath: c.String("jobs"), DefaultAccount: requestAccount}
	default:
		return nil, nil, sc, fmt.Errorf("either --input or --jobs is required")
	}

	mem := store.NewMemory()
	res, err := integrations.Import(ctx, mem, localTenant, src)
	if err != nil {
		return nil, nil, sc, err
	}
	account, err := pickAccount(c.String("account"), res.Jobs)
	if err != nil {
		return nil, nil, sc, err
	}
	fleet, err := mem.ListVehicles(ctx, localTenant)
	if err != nil {
		return nil, nil, sc, err
	}
	var recs []model.Job
	if account != "" {
		if recs, err = mem.ListJobs(ctx, localTenant, account); err != nil {
			return nil, nil, sc, err
		}
	}
	vehicles, jobs, err := api.PlanInputs(fleet, recs)
	return vehicles, jobs, sc, err
}

func pickAccount(want string, counts map[string]int) (string, error) {
	if want != "" {
		if _, ok := counts[want]; !ok {
			return "", fmt.Errorf("account %q not found", want)
		}
		return want, nil
	}
	switch len(counts) {
	case 0:
		return "", nil
	case 1:
		for a := range counts {
			return a, nil
		}
	}
	names := make([]string, 0, len(counts))
	for a := range counts {
		names = append(names, a)
	}
	sort.Strings(names)
	return "", fmt.Errorf("jobs span several accounts %v; pick one with --account", names)
}

func flagConfig(c *cli.Context) *model.SolveConfig {
	var o model.SolveConfig
	if c.IsSet("seed") {
		v := c.Int64("seed")
		o.RandomSeed = &v
	}
	o.MaxIterations = c.Int("iterations")
	o.ParallelRuns = c.Int("runs")
	o.MaxDurationMs = int(c.Duration("max-duration").Milliseconds())
	o.Metric = c.String("metric")
	if c.IsSet("penalty") {
		v := c.Float64("penalty")
		o.UnassignedPenalty = &v
	}
	if c.IsSet("return-to-start") {
		v := c.Bool("return-to-start")
		o.ReturnToStart = &v
	}
	return &o
}

func importAction(c *cli.Context) error {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Database.URL = c.String("database-url")
	cfg.Database.Driver = c.String("driver")
	if cfg.Database.URL == "" {
		return cli.NewExitError("--database-url is required", 2)
	}
	db, err := store.Open(ctx, cfg.DatabaseDriver(), cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return err
	}
	src := csvimport.Adapter{VehiclesPath: c.String("vehicles"), JobsPath: c.String("jobs"), DefaultAccount: c.String("account")}
	res, err := integrations.Import(ctx, db, c.String("tenant"), src)
	if err != nil {
		return err
	}
	return json.NewEncoder(os.Stdout).Encode(res)
}
