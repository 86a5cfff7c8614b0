package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"

	"routeplanner/internal/auth"
	"routeplanner/internal/config"
	"routeplanner/internal/metrics"
	"routeplanner/internal/model"
	"routeplanner/internal/store"
	"routeplanner/internal/tracker"
	"routeplanner/internal/webhooks"
)

type Server struct {
	Config   *config.Config
	Store    store.Store
	Tracker  tracker.Tracker
	Pub      *webhooks.Publisher
	Auth     *auth.Verifier
	Broker   EventBroker
	Defaults model.SolveConfig

	limiter   *tenantLimiter
	storeKind string
	closers   []func() error
	now       func() time.Time

	// baseCtx is cancelled by Close; background tasks derive from it.
	baseCtx context.Context
	cancel  context.CancelFunc
	tasks   sync.WaitGroup
}

// NewServer wires the store, task tracker and event broker selected by
// cfg. Without DATABASE_URL the in-memory store is used; without
// REDIS_URL tasks and events stay in process.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	s := &Server{
		Config:   cfg,
		Auth:     auth.NewVerifier(cfg.Auth.Mode, cfg.Auth.HMACSecret),
		Defaults: cfg.Solver,
		now:      time.Now,
	}
	s.baseCtx, s.cancel = context.WithCancel(context.Background())

	if cfg.Database.URL == "" {
		s.Store, s.storeKind = store.NewMemory(), "memory"
	} else {
		driver := cfg.DatabaseDriver()
		sq, err := store.Open(ctx, driver, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		if cfg.Database.Migrate {
			if err := sq.Migrate(ctx); err != nil {
				_ = sq.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		s.Store, s.storeKind = sq, driver
		s.closers = append(s.closers, sq.Close)
	}

	if cfg.Redis.URL != "" {
		ropts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("redis url: %w", err)
		}
		rdb := redis.NewClient(ropts)
		s.Tracker = tracker.NewRedis(rdb, tracker.DefaultTTL)
		s.Broker = NewRedisBroker(rdb)
		s.closers = append(s.closers, rdb.Close)
	} else {
		s.Tracker = tracker.NewMemory()
		s.Broker = NewBroker()
	}

	if cfg.Rate.RPS > 0 {
		s.limiter = newTenantLimiter(cfg.Rate.RPS, cfg.Rate.Burst)
	}
	s.Pub = webhooks.NewPublisher(s.Store)
	return s, nil
}

// Handler returns the routed, instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	metrics.RegisterDefault()
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.HandleFunc("/readyz", s.ReadyHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/debug", s.DebugJSON)
	mux.HandleFunc("/openapi.yaml", s.OpenAPIHandler)
	mux.HandleFunc("/docs", s.DocsHandler)

	// Solving and planning
	mux.HandleFunc("/v1/solve", s.SolveHandler)
	mux.HandleFunc("/v1/plans", s.PlansHandler)
	mux.HandleFunc("/v1/plans/", s.PlanByIDHandler)
	mux.HandleFunc("/v1/plan-tasks", s.PlanTasksHandler)
	mux.HandleFunc("/v1/plan-tasks/", s.PlanTaskByIDHandler)

	// Records
	mux.HandleFunc("/v1/vehicles", s.VehiclesHandler)
	mux.HandleFunc("/v1/jobs", s.JobsHandler)
	mux.HandleFunc("/v1/subscriptions", s.SubscriptionsHandler)
	mux.HandleFunc("/v1/subscriptions/", s.SubscriptionByIDHandler)

	// Optimizer config and admin
	mux.HandleFunc("/v1/optimizer/config", s.OptimizerConfigHandler)
	mux.HandleFunc("/v1/admin/optimizer/config", s.AdminOptimizerConfigHandler)
	mux.HandleFunc("/v1/admin/plan-metrics", s.PlanMetricsHandler)
	mux.HandleFunc("/v1/admin/webhook-deliveries", s.WebhookDeliveriesHandler)

	return logMiddleware(s.rateLimit(mux))
}

// NewWebhookWorker creates the background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store, s.Config.Webhooks.MaxAttempts, s.Config.Webhooks.PollInterval, s.Config.Webhooks.Timeout)
}

// Wait blocks until background plan tasks have finished.
func (s *Server) Wait() { s.tasks.Wait() }

// Close cancels background tasks, waits for them and releases connections.
func (s *Server) Close() error {
	s.cancel()
	s.tasks.Wait()
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}
