package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"routeplanner/internal/model"
)

// Supported database/sql driver names.
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

// tsLayout is fixed width so stored timestamps compare as strings.
const tsLayout = "2006-01-02T15:04:05.000000Z"

func ts(t time.Time) string { return t.UTC().Format(tsLayout) }

// SQL is a Store over database/sql. Statements are written with '?'
// placeholders and rebound to $n for PostgreSQL.
type SQL struct {
	db     *sql.DB
	driver string
}

// Open connects with the given driver ("pgx" or "sqlite") and pings.
func Open(ctx context.Context, driver, dsn string) (*SQL, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// one connection keeps in-memory databases and write locking simple
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping %s: %w", driver, err)
	}
	s := &SQL{db: db, driver: driver}
	if driver == DriverSQLite {
		if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: pragma: %w", err)
		}
	}
	return s, nil
}

// NewPostgres opens a PostgreSQL store through the pgx stdlib driver.
func NewPostgres(ctx context.Context, dsn string) (*SQL, error) {
	return Open(ctx, DriverPostgres, dsn)
}

// NewSQLite opens a SQLite store; ":memory:" gives a private database.
func NewSQLite(ctx context.Context, dsn string) (*SQL, error) {
	return Open(ctx, DriverSQLite, dsn)
}

func (s *SQL) Close() error { return s.db.Close() }

func (s *SQL) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQL) q(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS vehicles (
		tenant_id TEXT NOT NULL,
		id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		start_lat DOUBLE PRECISION NOT NULL,
		start_lon DOUBLE PRECISION NOT NULL,
		capacity INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		PRIMARY KEY (tenant_id, id))`,
	`CREATE TABLE IF NOT EXISTS accounts (
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (tenant_id, name))`,
	`CREATE TABLE IF NOT EXISTS jobs (
		tenant_id TEXT NOT NULL,
		id TEXT NOT NULL,
		account_name TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		lat DOUBLE PRECISION NOT NULL,
		lon DOUBLE PRECISION NOT NULL,
		demand INTEGER NOT NULL,
		kind TEXT NOT NULL,
		seq INTEGER NOT NULL,
		PRIMARY KEY (tenant_id, id))`,
	`CREATE TABLE IF NOT EXISTS delivery_plans (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		account_name TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL,
		total_cost DOUBLE PRECISION NOT NULL,
		summary TEXT NOT NULL,
		unassigned TEXT NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS delivery_routes (
		id TEXT PRIMARY KEY,
		plan_id TEXT NOT NULL REFERENCES delivery_plans(id) ON DELETE CASCADE,
		tenant_id TEXT NOT NULL,
		vehicle_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		route_load INTEGER NOT NULL,
		route_cost DOUBLE PRECISION NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS delivery_waypoints (
		id TEXT PRIMARY KEY,
		route_id TEXT NOT NULL REFERENCES delivery_routes(id) ON DELETE CASCADE,
		plan_id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		job_id TEXT NOT NULL,
		number INTEGER NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS plan_metrics (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		plan_id TEXT NOT NULL,
		run INTEGER NOT NULL,
		data TEXT NOT NULL,
		created_at TEXT NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS optimizer_configs (
		tenant_id TEXT PRIMARY KEY,
		config TEXT NOT NULL,
		updated_at TEXT NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		url TEXT NOT NULL,
		events TEXT NOT NULL,
		secret TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS webhook_deliveries (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		subscription_id TEXT NOT NULL DEFAULT '',
		event_type TEXT NOT NULL,
		url TEXT NOT NULL,
		secret TEXT NOT NULL DEFAULT '',
		payload TEXT NOT NULL,
		status TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		next_attempt_at TEXT NOT NULL,
		last_error TEXT NOT NULL DEFAULT '',
		response_code INTEGER NOT NULL DEFAULT 0,
		latency_ms INTEGER NOT NULL DEFAULT 0,
		dedup_key TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE (tenant_id, event_type, url, dedup_key))`,
	`CREATE INDEX IF NOT EXISTS webhook_deliveries_due ON webhook_deliveries (status, next_attempt_at)`,
}

// Migrate creates the schema if missing.
func (s *SQL) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}

func (s *SQL) UpsertVehicles(ctx context.Context, tenantID string, in []model.VehicleIn) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()
	var seq int
	if err := tx.QueryRowContext(ctx, s.q(`SELECT COALESCE(MAX(seq),0) FROM vehicles WHERE tenant_id=?`), tenantID).Scan(&seq); err != nil {
		return 0, fmt.Errorf("upsert vehicles: %w", err)
	}
	for _, vi := range in {
		v := vehicleFromIn(tenantID, vi)
		seq++
		_, err := tx.ExecContext(ctx, s.q(`INSERT INTO vehicles (tenant_id, id, name, start_lat, start_lon, capacity, seq) VALUES (?,?,?,?,?,?,?)
			ON CONFLICT (tenant_id, id) DO UPDATE SET name=excluded.name, start_lat=excluded.start_lat, start_lon=excluded.start_lon, capacity=excluded.capacity`),
			tenantID, v.ID, v.Name, v.StartLocation.Lat, v.StartLocation.Lon, v.Capacity, seq)
		if err != nil {
			return 0, fmt.Errorf("upsert vehicles: %s: %w", v.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(in), nil
}

func (s *SQL) ListVehicles(ctx context.Context, tenantID string) ([]model.Vehicle, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT id, name, start_lat, start_lon, capacity FROM vehicles WHERE tenant_id=? ORDER BY seq`), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Vehicle{}
	for rows.Next() {
		v := model.Vehicle{TenantID: tenantID}
		if err := rows.Scan(&v.ID, &v.Name, &v.StartLocation.Lat, &v.StartLocation.Lon, &v.Capacity); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SQL) UpsertJobs(ctx context.Context, tenantID, accountName string, in []model.JobIn) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO accounts (tenant_id, name, created_at) VALUES (?,?,?) ON CONFLICT (tenant_id, name) DO NOTHING`),
		tenantID, accountName, ts(time.Now())); err != nil {
		return 0, fmt.Errorf("upsert jobs: account: %w", err)
	}
	var seq int
	if err := tx.QueryRowContext(ctx, s.q(`SELECT COALESCE(MAX(seq),0) FROM jobs WHERE tenant_id=?`), tenantID).Scan(&seq); err != nil {
		return 0, fmt.Errorf("upsert jobs: %w", err)
	}
	for _, ji := range in {
		j := jobFromIn(tenantID, accountName, ji)
		seq++
		_, err := tx.ExecContext(ctx, s.q(`INSERT INTO jobs (tenant_id, id, account_name, name, lat, lon, demand, kind, seq) VALUES (?,?,?,?,?,?,?,?,?)
			ON CONFLICT (tenant_id, id) DO UPDATE SET account_name=excluded.account_name, name=excluded.name, lat=excluded.lat, lon=excluded.lon, demand=excluded.demand, kind=excluded.kind`),
			tenantID, j.ID, j.AccountName, j.Name, j.Location.Lat, j.Location.Lon, j.Demand, j.Kind, seq)
		if err != nil {
			return 0, fmt.Errorf("upsert jobs: %s: %w", j.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(in), nil
}

func (s *SQL) ListJobs(ctx context.Context, tenantID, accountName string) ([]model.Job, error) {
	var one int
	err := s.db.QueryRowContext(ctx, s.q(`SELECT 1 FROM accounts WHERE tenant_id=? AND name=?`), tenantID, accountName).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT id, name, lat, lon, demand, kind FROM jobs WHERE tenant_id=? AND account_name=? ORDER BY seq`), tenantID, accountName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Job{}
	for rows.Next() {
		j := model.Job{TenantID: tenantID, AccountName: accountName}
		if err := rows.Scan(&j.ID, &j.Name, &j.Location.Lat, &j.Location.Lon, &j.Demand, &j.Kind); err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// SavePlan inserts plan, routes and waypoints in one transaction.
func (s *SQL) SavePlan(ctx context.Context, plan model.DeliveryPlan) (model.DeliveryPlan, error) {
	p := assignPlanIDs(plan)
	unassigned, err := json.Marshal(p.UnassignedJobIDs)
	if err != nil {
		return model.DeliveryPlan{}, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.DeliveryPlan{}, err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO delivery_plans (id, tenant_id, account_name, name, created_at, total_cost, summary, unassigned) VALUES (?,?,?,?,?,?,?,?)`),
		p.ID, p.TenantID, p.AccountName, p.Name, p.CreatedAt, p.TotalCost, p.Summary, string(unassigned)); err != nil {
		return model.DeliveryPlan{}, fmt.Errorf("save plan: %w", err)
	}
	for i, r := range p.Routes {
		if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO delivery_routes (id, plan_id, tenant_id, vehicle_id, seq, route_load, route_cost) VALUES (?,?,?,?,?,?,?)`),
			r.ID, p.ID, p.TenantID, r.VehicleID, i, r.Load, r.Cost); err != nil {
			return model.DeliveryPlan{}, fmt.Errorf("save plan: route %s: %w", r.VehicleID, err)
		}
		for _, w := range r.Waypoints {
			if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO delivery_waypoints (id, route_id, plan_id, tenant_id, job_id, number) VALUES (?,?,?,?,?,?)`),
				w.ID, r.ID, p.ID, p.TenantID, w.JobID, w.Number); err != nil {
				return model.DeliveryPlan{}, fmt.Errorf("save plan: waypoint %s: %w", w.JobID, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return model.DeliveryPlan{}, fmt.Errorf("save plan: commit: %w", err)
	}
	return p, nil
}

func (s *SQL) GetPlan(ctx context.Context, tenantID, planID string) (model.DeliveryPlan, error) {
	p := model.DeliveryPlan{ID: planID, TenantID: tenantID}
	var unassigned string
	err := s.db.QueryRowContext(ctx, s.q(`SELECT account_name, name, created_at, total_cost, summary, unassigned FROM delivery_plans WHERE tenant_id=? AND id=?`), tenantID, planID).
		Scan(&p.AccountName, &p.Name, &p.CreatedAt, &p.TotalCost, &p.Summary, &unassigned)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DeliveryPlan{}, ErrNotFound
	}
	if err != nil {
		return model.DeliveryPlan{}, err
	}
	if err := json.Unmarshal([]byte(unassigned), &p.UnassignedJobIDs); err != nil {
		return model.DeliveryPlan{}, fmt.Errorf("get plan: unassigned: %w", err)
	}
	p.Routes, err = s.planRoutes(ctx, tenantID, planID)
	if err != nil {
		return model.DeliveryPlan{}, err
	}
	wps, err := s.planWaypoints(ctx, tenantID, planID)
	if err != nil {
		return model.DeliveryPlan{}, err
	}
	idx := map[string]int{}
	for i, r := range p.Routes {
		idx[r.ID] = i
	}
	for _, w := range wps {
		i := idx[w.RouteID]
		w.VehicleID = ""
		p.Routes[i].Waypoints = append(p.Routes[i].Waypoints, w)
	}
	return p, nil
}

func (s *SQL) planRoutes(ctx context.Context, tenantID, planID string) ([]model.DeliveryRoute, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT id, vehicle_id, route_load, route_cost FROM delivery_routes WHERE tenant_id=? AND plan_id=? ORDER BY seq`), tenantID, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.DeliveryRoute{}
	for rows.Next() {
		r := model.DeliveryRoute{PlanID: planID, Waypoints: []model.DeliveryWaypoint{}}
		if err := rows.Scan(&r.ID, &r.VehicleID, &r.Load, &r.Cost); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQL) planWaypoints(ctx context.Context, tenantID, planID string) ([]model.DeliveryWaypoint, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT w.id, w.route_id, r.vehicle_id, w.job_id, COALESCE(j.name,''), COALESCE(j.lat,0), COALESCE(j.lon,0), w.number
		FROM delivery_waypoints w
		JOIN delivery_routes r ON r.id = w.route_id
		LEFT JOIN jobs j ON j.tenant_id = w.tenant_id AND j.id = w.job_id
		WHERE w.tenant_id=? AND w.plan_id=?
		ORDER BY r.seq, w.number`), tenantID, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.DeliveryWaypoint{}
	for rows.Next() {
		var w model.DeliveryWaypoint
		if err := rows.Scan(&w.ID, &w.RouteID, &w.VehicleID, &w.JobID, &w.JobName, &w.Location.Lat, &w.Location.Lon, &w.Number); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *SQL) ListWaypoints(ctx context.Context, tenantID, planID string) ([]model.DeliveryWaypoint, error) {
	var one int
	err := s.db.QueryRowContext(ctx, s.q(`SELECT 1 FROM delivery_plans WHERE tenant_id=? AND id=?`), tenantID, planID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.planWaypoints(ctx, tenantID, planID)
}

func (s *SQL) SavePlanMetrics(ctx context.Context, tenantID, planID string, runs []map[string]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM plan_metrics WHERE tenant_id=? AND plan_id=?`), tenantID, planID); err != nil {
		return err
	}
	now := ts(time.Now())
	for i, r := range runs {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("save plan metrics: %w", err)
		}
		if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO plan_metrics (id, tenant_id, plan_id, run, data, created_at) VALUES (?,?,?,?,?,?)`),
			uuid.New().String(), tenantID, planID, i, string(data), now); err != nil {
			return fmt.Errorf("save plan metrics: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQL) ListPlanMetrics(ctx context.Context, tenantID, planID string) ([]map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT data FROM plan_metrics WHERE tenant_id=? AND plan_id=? ORDER BY run`), tenantID, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []map[string]any{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		item := map[string]any{}
		if err := json.Unmarshal([]byte(data), &item); err != nil {
			return nil, err
		}
		item["tenantId"] = tenantID
		item["planId"] = planID
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *SQL) GetOptimizerConfig(ctx context.Context, tenantID string) (map[string]any, error) {
	var js string
	err := s.db.QueryRowContext(ctx, s.q(`SELECT config FROM optimizer_configs WHERE tenant_id=?`), tenantID).Scan(&js)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cfg map[string]any
	if err := json.Unmarshal([]byte(js), &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *SQL) SaveOptimizerConfig(ctx context.Context, tenantID string, cfg map[string]any) error {
	js, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.q(`INSERT INTO optimizer_configs (tenant_id, config, updated_at) VALUES (?,?,?)
		ON CONFLICT (tenant_id) DO UPDATE SET config=excluded.config, updated_at=excluded.updated_at`), tenantID, string(js), ts(time.Now()))
	return err
}

func (s *SQL) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	id := uuid.New().String()
	ev, err := json.Marshal(req.Events)
	if err != nil {
		return model.Subscription{}, err
	}
	_, err = s.db.ExecContext(ctx, s.q(`INSERT INTO subscriptions (id, tenant_id, url, events, secret, created_at) VALUES (?,?,?,?,?,?)`),
		id, req.TenantID, req.URL, string(ev), req.Secret, ts(time.Now()))
	if err != nil {
		return model.Subscription{}, err
	}
	return model.Subscription{ID: id, TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}, nil
}

func (s *SQL) ListSubscriptions(ctx context.Context, tenantID string) ([]model.Subscription, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT id, url, secret, events FROM subscriptions WHERE tenant_id=? ORDER BY created_at, id`), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Subscription{}
	for rows.Next() {
		sub := model.Subscription{TenantID: tenantID}
		var ev string
		if err := rows.Scan(&sub.ID, &sub.URL, &sub.Secret, &ev); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(ev), &sub.Events); err != nil {
			return nil, fmt.Errorf("subscription %s events: %w", sub.ID, err)
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// GetSubscriptionsForEvent filters in Go so the query stays portable.
func (s *SQL) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
	all, err := s.ListSubscriptions(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	var out []model.Subscription
	for _, sub := range all {
		if subscribed(sub, eventType) {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *SQL) DeleteSubscription(ctx context.Context, tenantID, id string) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM subscriptions WHERE tenant_id=? AND id=?`), tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Webhook deliveries
func (s *SQL) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	now := ts(time.Now())
	res, err := s.db.ExecContext(ctx, s.q(`INSERT INTO webhook_deliveries (id, tenant_id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at, dedup_key, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,0,?,?,?,?)
		ON CONFLICT (tenant_id, event_type, url, dedup_key) DO NOTHING`),
		id, tenantID, subscriptionID, eventType, url, secret, string(payload), DeliveryPending, now, computeDedupKey(payload), now, now)
	if err != nil {
		return "", err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", nil
	}
	return id, nil
}

const deliveryColumns = `id, tenant_id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at, last_error, response_code, latency_ms`

func scanDeliveries(rows *sql.Rows) ([]WebhookDelivery, error) {
	defer rows.Close()
	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		var payload, next string
		if err := rows.Scan(&d.ID, &d.TenantID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &payload, &d.Status, &d.Attempts, &next, &d.LastError, &d.ResponseCode, &d.LatencyMs); err != nil {
			return nil, err
		}
		d.Payload = []byte(payload)
		d.NextAttemptAt, _ = time.Parse(tsLayout, next)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQL) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT `+deliveryColumns+` FROM webhook_deliveries
		WHERE status IN ('pending','retry') AND next_attempt_at <= ? ORDER BY next_attempt_at ASC LIMIT ?`), ts(time.Now()), limit)
	if err != nil {
		return nil, err
	}
	return scanDeliveries(rows)
}

func (s *SQL) ListWebhookDeliveries(ctx context.Context, tenantID, status string) ([]WebhookDelivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM webhook_deliveries WHERE tenant_id=?`
	args := []any{tenantID}
	if status != "" {
		query += ` AND status=?`
		args = append(args, status)
	}
	rows, err := s.db.QueryContext(ctx, s.q(query+` ORDER BY created_at, id`), args...)
	if err != nil {
		return nil, err
	}
	return scanDeliveries(rows)
}

func (s *SQL) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	now := time.Now()
	var res sql.Result
	var err error
	if success {
		res, err = s.db.ExecContext(ctx, s.q(`UPDATE webhook_deliveries SET attempts=attempts+1, status=?, updated_at=?, response_code=?, latency_ms=? WHERE id=?`),
			DeliveryDelivered, ts(now), responseCode, latencyMs, id)
	} else {
		next := now.Add(1 * time.Minute)
		if nextAttemptAt != nil {
			next = *nextAttemptAt
		}
		res, err = s.db.ExecContext(ctx, s.q(`UPDATE webhook_deliveries SET attempts=attempts+1, status=?, last_error=?, next_attempt_at=?, updated_at=?, response_code=?, latency_ms=? WHERE id=?`),
			DeliveryRetry, lastError, ts(next), ts(now), responseCode, latencyMs, id)
	}
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQL) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE webhook_deliveries SET attempts=attempts+1, status=?, last_error=?, updated_at=?, response_code=?, latency_ms=? WHERE id=?`),
		DeliveryFailed, lastError, ts(time.Now()), responseCode, latencyMs, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
