package api

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"routeplanner/internal/model"
	"routeplanner/internal/tracker"
)

// Task stream event types.
const (
	EventTaskStatus    = "task.status"
	EventTaskRunning   = "task.running"
	EventTaskCompleted = "task.completed"
	EventTaskFailed    = "task.failed"
)

// taskTimeout bounds a background planning task.
const taskTimeout = 15 * time.Minute

func taskData(t model.PlanTask) map[string]any {
	d := map[string]any{
		"taskId":    t.ID,
		"status":    t.Status,
		"jobs":      t.Jobs,
		"completed": t.Completed,
	}
	if t.PlanID != "" {
		d["planId"] = t.PlanID
	}
	if t.Error != "" {
		d["error"] = t.Error
	}
	return d
}

// startPlanTask registers a task for the account and plans it in the
// background. Unknown accounts fail synchronously.
func (s *Server) startPlanTask(ctx context.Context, tenant, account string, cfg *model.SolveConfig) (model.PlanTask, error) {
	jobs, err := s.Store.ListJobs(ctx, tenant, account)
	if err != nil {
		return model.PlanTask{}, fmt.Errorf("account %s: %w", account, err)
	}
	task, err := s.Tracker.Start(ctx, model.PlanTask{
		ID:          uuid.NewString(),
		TenantID:    tenant,
		AccountName: account,
		Jobs:        len(jobs),
	})
	if err != nil {
		return model.PlanTask{}, err
	}
	s.Broker.Publish(task.ID, Event{Type: EventTaskRunning, Data: taskData(task)})

	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		s.runPlanTask(task, cfg)
	}()
	return task, nil
}

func (s *Server) runPlanTask(task model.PlanTask, cfg *model.SolveConfig) {
	ctx, cancel := context.WithTimeout(s.baseCtx, taskTimeout)
	defer cancel()

	resp, err := s.planAccount(ctx, task.TenantID, task.AccountName, cfg)
	// record the outcome even when the base context is gone
	recCtx, recCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer recCancel()
	if err != nil {
		log.Printf("task: id=%s account=%s failed err=%v", task.ID, task.AccountName, err)
		failed, ferr := s.Tracker.Fail(recCtx, task.ID, err.Error())
		if ferr != nil {
			log.Printf("task: id=%s record failure err=%v", task.ID, ferr)
			failed = task
			failed.Status, failed.Error = tracker.StatusFailed, err.Error()
		}
		s.Broker.Publish(task.ID, Event{Type: EventTaskFailed, Data: taskData(failed)})
		return
	}
	assigned := task.Jobs - len(resp.UnassignedJobIDs)
	done, err := s.Tracker.Complete(recCtx, task.ID, resp.PlanID, assigned)
	if err != nil {
		log.Printf("task: id=%s record completion err=%v", task.ID, err)
		done = task
		done.Status, done.PlanID, done.Completed = tracker.StatusCompleted, resp.PlanID, assigned
	}
	s.Broker.Publish(task.ID, Event{Type: EventTaskCompleted, Data: taskData(done)})
}

func terminal(status string) bool {
	return status == tracker.StatusCompleted || status == tracker.StatusFailed
}
