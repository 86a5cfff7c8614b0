// Package tracker records the progress of asynchronous planning tasks.
package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	"routeplanner/internal/model"
)

// Task statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var ErrNotFound = errors.New("task not found")

// Tracker stores task state keyed by task id.
type Tracker interface {
	Start(ctx context.Context, task model.PlanTask) (model.PlanTask, error)
	Complete(ctx context.Context, id, planID string, completed int) (model.PlanTask, error)
	Fail(ctx context.Context, id, reason string) (model.PlanTask, error)
	Get(ctx context.Context, id string) (model.PlanTask, error)
}

func now() string { return time.Now().UTC().Format(time.RFC3339Nano) }

// Memory keeps tasks in process memory.
type Memory struct {
	mu    sync.Mutex
	tasks map[string]model.PlanTask
}

func NewMemory() *Memory { return &Memory{tasks: map[string]model.PlanTask{}} }

func (m *Memory) Start(ctx context.Context, task model.PlanTask) (model.PlanTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task.Status = StatusRunning
	task.CreatedAt = now()
	task.UpdatedAt = task.CreatedAt
	m.tasks[task.ID] = task
	return task, nil
}

func (m *Memory) Complete(ctx context.Context, id, planID string, completed int) (model.PlanTask, error) {
	return m.update(id, func(t *model.PlanTask) {
		t.Status = StatusCompleted
		t.PlanID = planID
		t.Completed = completed
	})
}

func (m *Memory) Fail(ctx context.Context, id, reason string) (model.PlanTask, error) {
	return m.update(id, func(t *model.PlanTask) {
		t.Status = StatusFailed
		t.Error = reason
	})
}

func (m *Memory) Get(ctx context.Context, id string) (model.PlanTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return model.PlanTask{}, ErrNotFound
	}
	return t, nil
}

func (m *Memory) update(id string, fn func(*model.PlanTask)) (model.PlanTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return model.PlanTask{}, ErrNotFound
	}
	fn(&t)
	t.UpdatedAt = now()
	m.tasks[id] = t
	return t, nil
}
