package runner

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	appErrors "github.com/truesoulcoder/dealpig-sub000/internal/errors"
	"github.com/truesoulcoder/dealpig-sub000/internal/metrics"
)

// Func runs one pass of a task. limit is the caller's batch size; zero
// means the task's default.
type Func func(ctx context.Context, limit int) error

// Task is a named unit of periodic work. Tasks without a Spec only run on
// demand.
type Task struct {
	Name string
	Spec string
	Run  Func
}

type handle struct {
	task    Task
	entryID cron.EntryID
	running sync.Mutex
}

// Manager owns the periodic tasks of one worker process. Each task runs at
// most once at a time, whether fired by cron or requested through RunNow.
type Manager struct {
	cron *cron.Cron
	log  zerolog.Logger

	mu    sync.Mutex
	tasks map[string]*handle

	ctx    context.Context
	cancel context.CancelFunc
}

func NewManager(log zerolog.Logger, loc *time.Location) *Manager {
	if loc == nil {
		loc = time.UTC
	}
	cl := cronLogger{log: log}
	m := &Manager{
		log:   log,
		tasks: make(map[string]*handle),
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	return m
}

// Register adds a task. A task with a Spec is scheduled immediately; it
// fires once Start is called.
func (m *Manager) Register(t Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[t.Name]; ok {
		return appErrors.Newf("task %q registered twice", t.Name)
	}
	h := &handle{task: t}
	if t.Spec != "" {
		id, err := m.cron.AddFunc(t.Spec, func() {
			if err := m.run(m.ctx, h, 0); err != nil && !appErrors.Is(err, appErrors.ErrTaskRunning) {
				m.log.Error().Err(err).Str("task", t.Name).Msg("scheduled task failed")
			}
		})
		if err != nil {
			return appErrors.Wrapf(err, "schedule task %q with %q", t.Name, t.Spec)
		}
		h.entryID = id
	}
	m.tasks[t.Name] = h
	return nil
}

// RunNow runs task synchronously. It fails with ErrUnknownTask for names
// that were never registered and with ErrTaskRunning when the task is busy.
func (m *Manager) RunNow(ctx context.Context, task string, limit int) error {
	m.mu.Lock()
	h, ok := m.tasks[task]
	m.mu.Unlock()
	if !ok {
		return appErrors.Wrapf(appErrors.ErrUnknownTask, "task %q", task)
	}
	return m.run(ctx, h, limit)
}

func (m *Manager) run(ctx context.Context, h *handle, limit int) (err error) {
	if !h.running.TryLock() {
		m.log.Warn().Str("task", h.task.Name).Msg("task still running, skipped")
		return appErrors.Wrapf(appErrors.ErrTaskRunning, "task %q", h.task.Name)
	}
	defer h.running.Unlock()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = appErrors.Newf("task %s panicked: %v", h.task.Name, r)
		}
		metrics.IncTaskRun(h.task.Name, err)
		ev := m.log.Debug()
		if err != nil {
			ev = m.log.Error().Err(err)
		}
		ev.Str("task", h.task.Name).Dur("took", time.Since(start)).Msg("task finished")
	}()

	return h.task.Run(ctx, limit)
}

// Tasks lists registered task names in order.
func (m *Manager) Tasks() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.tasks))
	for name := range m.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Next reports when a scheduled task fires next. ok is false for unknown
// or on-demand tasks, or before Start.
func (m *Manager) Next(task string) (time.Time, bool) {
	m.mu.Lock()
	h, ok := m.tasks[task]
	m.mu.Unlock()
	if !ok || h.entryID == 0 {
		return time.Time{}, false
	}
	next := m.cron.Entry(h.entryID).Next
	return next, !next.IsZero()
}

func (m *Manager) Start() {
	m.cron.Start()
	m.log.Info().Strs("tasks", m.Tasks()).Msg("task manager started")
}

// Stop halts the schedule and waits for running tasks until ctx expires,
// then cancels them.
func (m *Manager) Stop(ctx context.Context) error {
	done := m.cron.Stop()
	defer m.cancel()
	select {
	case <-done.Done():
		m.log.Info().Msg("task manager stopped")
		return nil
	case <-ctx.Done():
		return appErrors.Wrap(ctx.Err(), "waiting for running tasks")
	}
}

// cronLogger routes robfig/cron's logging to zerolog.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(pairs(keysAndValues)).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(pairs(keysAndValues)).Msg("cron: " + msg)
}

func pairs(kv []interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return out
}
