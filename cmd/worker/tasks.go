package main

import (
	"context"

	"github.com/truesoulcoder/dealpig-sub000/internal/runner"
	"github.com/truesoulcoder/dealpig-sub000/internal/service"
)

const (
	recoverStaleSpec = "@every 5m"
	defaultRetry     = 50
)

// registerTasks puts the worker's periodic and on-demand tasks on m.
func (a *app) registerTasks(m *runner.Manager) error {
	tasks := []runner.Task{
		{Name: service.TaskScheduler, Spec: a.cfg.SchedulerSpec, Run: func(ctx context.Context, _ int) error {
			_, err := a.scheduler.RunCycle(ctx)
			return err
		}},
		{Name: service.TaskExecutor, Spec: a.cfg.ExecutorSpec, Run: func(ctx context.Context, limit int) error {
			if limit <= 0 {
				limit = a.cfg.ExecutorBatchSize
			}
			_, err := a.executor.ProcessDue(ctx, limit)
			return err
		}},
		{Name: service.TaskDailyReset, Spec: a.cfg.ResetCheckSpec, Run: func(ctx context.Context, _ int) error {
			_, err := a.reset.RunIfDue(ctx)
			return err
		}},
		{Name: service.TaskRecoverStale, Spec: recoverStaleSpec, Run: func(ctx context.Context, _ int) error {
			_, err := a.executor.RecoverStale(ctx, a.cfg.StaleClaimAfter)
			return err
		}},
		{Name: service.TaskResetAll, Run: func(ctx context.Context, _ int) error {
			return a.reset.ResetAll(ctx)
		}},
		{Name: service.TaskRetryFailed, Run: func(ctx context.Context, limit int) error {
			if limit <= 0 {
				limit = defaultRetry
			}
			_, err := a.executor.RetryFailed(ctx, limit)
			return err
		}},
	}
	for _, t := range tasks {
		if err := m.Register(t); err != nil {
			return err
		}
	}
	return nil
}
