package tracker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"routeplanner/internal/model"
)

// DefaultTTL bounds how long finished task records stay in Redis.
const DefaultTTL = 24 * time.Hour

// Redis stores each task as a hash at task:{id} with the fields status,
// jobs, completed, planId and error.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{rdb: rdb, ttl: ttl}
}

// NewRedisFromURL parses a redis:// URL.
func NewRedisFromURL(url string) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("tracker: parse redis url: %w", err)
	}
	return NewRedis(redis.NewClient(opt), DefaultTTL), nil
}

func key(id string) string { return "task:" + id }

func (r *Redis) Start(ctx context.Context, task model.PlanTask) (model.PlanTask, error) {
	task.Status = StatusRunning
	task.CreatedAt = now()
	task.UpdatedAt = task.CreatedAt
	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, key(task.ID), map[string]any{
		"tenantId":    task.TenantID,
		"accountName": task.AccountName,
		"status":      task.Status,
		"jobs":        task.Jobs,
		"completed":   task.Completed,
		"createdAt":   task.CreatedAt,
		"updatedAt":   task.UpdatedAt,
	})
	pipe.Expire(ctx, key(task.ID), r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return model.PlanTask{}, fmt.Errorf("tracker: start %s: %w", task.ID, err)
	}
	return task, nil
}

func (r *Redis) Complete(ctx context.Context, id, planID string, completed int) (model.PlanTask, error) {
	return r.update(ctx, id, map[string]any{
		"status":    StatusCompleted,
		"planId":    planID,
		"completed": completed,
	})
}

func (r *Redis) Fail(ctx context.Context, id, reason string) (model.PlanTask, error) {
	return r.update(ctx, id, map[string]any{
		"status": StatusFailed,
		"error":  reason,
	})
}

func (r *Redis) update(ctx context.Context, id string, fields map[string]any) (model.PlanTask, error) {
	n, err := r.rdb.Exists(ctx, key(id)).Result()
	if err != nil {
		return model.PlanTask{}, fmt.Errorf("tracker: update %s: %w", id, err)
	}
	if n == 0 {
		return model.PlanTask{}, ErrNotFound
	}
	fields["updatedAt"] = now()
	if err := r.rdb.HSet(ctx, key(id), fields).Err(); err != nil {
		return model.PlanTask{}, fmt.Errorf("tracker: update %s: %w", id, err)
	}
	return r.Get(ctx, id)
}

func (r *Redis) Get(ctx context.Context, id string) (model.PlanTask, error) {
	h, err := r.rdb.HGetAll(ctx, key(id)).Result()
	if err != nil {
		return model.PlanTask{}, fmt.Errorf("tracker: get %s: %w", id, err)
	}
	if len(h) == 0 {
		return model.PlanTask{}, ErrNotFound
	}
	t := model.PlanTask{
		ID:          id,
		TenantID:    h["tenantId"],
		AccountName: h["accountName"],
		Status:      h["status"],
		PlanID:      h["planId"],
		Error:       h["error"],
		CreatedAt:   h["createdAt"],
		UpdatedAt:   h["updatedAt"],
	}
	t.Jobs, _ = strconv.Atoi(h["jobs"])
	t.Completed, _ = strconv.Atoi(h["completed"])
	return t, nil
}
