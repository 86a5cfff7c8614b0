package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFileOverDefaults(t *testing.T) {
	path := writeFile(t, `
port: "9090"
database:
  driver: sqlite
  url: file:plans.db
webhooks:
  maxAttempts: 4
  pollInterval: 2s
solver:
  maxIterations: 500
  parallelRuns: 4
  metric: haversine
  returnToStart: true
`)
	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, "9090", cfg.Port)
	require.Equal(t, "sqlite", cfg.DatabaseDriver())
	require.True(t, cfg.Database.Migrate)
	require.Equal(t, 4, cfg.Webhooks.MaxAttempts)
	require.Equal(t, 2*time.Second, cfg.Webhooks.PollInterval)
	require.Equal(t, 5*time.Second, cfg.Webhooks.Timeout)
	require.Equal(t, 500, cfg.Solver.MaxIterations)
	require.Equal(t, 4, cfg.Solver.ParallelRuns)
	require.Equal(t, "haversine", cfg.Solver.Metric)
	require.True(t, *cfg.Solver.ReturnToStart)
	require.NotNil(t, cfg.Solver.UnassignedPenalty)
	require.Equal(t, 10000.0, *cfg.Solver.UnassignedPenalty)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "port: \"9090\"\nsolver:\n  maxIterations: 500\n")
	t.Setenv("PORT", "7070")
	t.Setenv("SOLVER_MAX_ITERATIONS", "42")
	t.Setenv("SOLVER_RANDOM_SEED", "0")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/db")
	t.Setenv("DB_MIGRATE", "false")
	t.Setenv("RATE_RPS", "2.5")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, "7070", cfg.Port)
	require.Equal(t, 42, cfg.Solver.MaxIterations)
	require.NotNil(t, cfg.Solver.RandomSeed)
	require.Equal(t, int64(0), *cfg.Solver.RandomSeed)
	require.Equal(t, "pgx", cfg.DatabaseDriver())
	require.False(t, cfg.Database.Migrate)
	require.Equal(t, 2.5, cfg.Rate.RPS)
}

func TestBadEnvValue(t *testing.T) {
	t.Setenv("SOLVER_PARALLEL_RUNS", "many")
	_, err := FromEnv()
	require.ErrorContains(t, err, "SOLVER_PARALLEL_RUNS")
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"driver":      func(c *Config) { c.Database.URL = "x"; c.Database.Driver = "mysql" },
		"attempts":    func(c *Config) { c.Webhooks.MaxAttempts = 0 },
		"auth mode":   func(c *Config) { c.Auth.Mode = "saml" },
		"hmac secret": func(c *Config) { c.Auth.Mode = "hmac" },
		"iterations":  func(c *Config) { c.Solver.MaxIterations = -1 },
		"rate":        func(c *Config) { c.Rate.RPS = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
	require.NoError(t, Default().Validate())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Setenv("ROUTEPLANNER_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := Load()
	require.ErrorIs(t, err, os.ErrNotExist)
}
