// Package worker polls the task-lease engine and dispatches leased tasks to
// pipeline stage handlers. It reports outcomes back to the engine; retry
// policy stays on the engine side.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/docpipe/docpipe/internal/config"
	"github.com/docpipe/docpipe/internal/taskengine"
)

// Handler executes one leased task and returns its output variables.
type Handler func(ctx context.Context, task taskengine.Task) (taskengine.Variables, error)

// Registry maps topics to handlers. Built once at startup, never mutated
// afterwards.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry copies the handler map into an immutable registry.
func NewRegistry(handlers map[string]Handler) *Registry {
	m := make(map[string]Handler, len(handlers))
	for topic, h := range handlers {
		m[topic] = h
	}
	return &Registry{handlers: m}
}

// Handler returns the handler for a topic.
func (r *Registry) Handler(topic string) (Handler, bool) {
	h, ok := r.handlers[topic]
	return h, ok
}

// Engine is the task-lease surface the worker consumes.
type Engine interface {
	FetchAndLock(ctx context.Context, topic string, maxTasks int, lockDuration time.Duration) ([]taskengine.Task, error)
	Complete(ctx context.Context, taskID string, variables taskengine.Variables) error
	Fail(ctx context.Context, taskID, message string, retries int, retryTimeout time.Duration) error
}

// Worker runs the polling loop. Tasks for different topics execute
// concurrently on bounded per-topic pools so a slow stage never starves the
// others.
type Worker struct {
	engine   Engine
	registry *Registry
	cfg      config.WorkerConfig
	logger   *slog.Logger

	pools map[string]*ants.Pool
	wg    sync.WaitGroup
}

// New builds a Worker. Every configured topic must have a registered
// handler; a missing handler is a configuration error raised here, not at
// dispatch time.
func New(engine Engine, registry *Registry, cfg config.WorkerConfig, logger *slog.Logger) (*Worker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, topic := range cfg.Topics {
		if _, ok := registry.Handler(topic); !ok {
			return nil, fmt.Errorf("no handler registered for topic %q", topic)
		}
	}

	concurrency := cfg.TopicConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	pools := make(map[string]*ants.Pool, len(cfg.Topics))
	for _, topic := range cfg.Topics {
		// Nonblocking so a saturated topic rejects instead of stalling
		// the polling loop for every other topic.
		pool, err := ants.NewPool(concurrency, ants.WithNonblocking(true))
		if err != nil {
			return nil, fmt.Errorf("creating pool for topic %q: %w", topic, err)
		}
		pools[topic] = pool
	}

	return &Worker{
		engine:   engine,
		registry: registry,
		cfg:      cfg,
		logger:   logger.With("component", "worker", "worker_id", cfg.WorkerID),
		pools:    pools,
	}, nil
}

// Run polls until ctx is cancelled, then waits for in-flight tasks.
func (w *Worker) Run(ctx context.Context) error {
	interval := time.Duration(w.cfg.PollIntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.Info("worker started", "topics", w.cfg.Topics, "poll_interval", interval)

	w.pollAll(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping, draining in-flight tasks")
			w.wg.Wait()
			for _, pool := range w.pools {
				pool.Release()
			}
			return ctx.Err()
		case <-ticker.C:
			w.pollAll(ctx)
		}
	}
}

// pollAll fetches work for every topic. Zero tasks for a topic is nothing
// to do, not an error.
func (w *Worker) pollAll(ctx context.Context) {
	lockDuration := time.Duration(w.cfg.LockDurationMS) * time.Millisecond
	if lockDuration <= 0 {
		lockDuration = 30 * time.Second
	}
	maxTasks := w.cfg.MaxTasksPerPoll
	if maxTasks <= 0 {
		maxTasks = 1
	}

	for _, topic := range w.cfg.Topics {
		// Never lease more than the topic pool can run right now; a task
		// leased and then dropped would sit locked until its lease lapses.
		fetch := maxTasks
		if free := w.pools[topic].Free(); free < fetch {
			fetch = free
		}
		if fetch == 0 {
			continue
		}
		tasks, err := w.engine.FetchAndLock(ctx, topic, fetch, lockDuration)
		if err != nil {
			if ctx.Err() == nil {
				w.logger.Warn("fetch failed", "topic", topic, "error", err)
			}
			continue
		}
		for _, task := range tasks {
			w.dispatch(ctx, topic, task, lockDuration)
		}
	}
}

func (w *Worker) dispatch(ctx context.Context, topic string, task taskengine.Task, lockDuration time.Duration) {
	handler, _ := w.registry.Handler(topic)
	pool := w.pools[topic]

	w.wg.Add(1)
	err := pool.Submit(func() {
		defer w.wg.Done()
		w.execute(ctx, handler, task, lockDuration)
	})
	if err != nil {
		w.wg.Done()
		if errors.Is(err, ants.ErrPoolOverload) {
			// The lease lapses back to the engine; the task is refetched
			// once a worker slot frees up.
			w.logger.Debug("topic saturated, returning task to engine", "topic", topic, "task_id", task.ID)
			return
		}
		w.logger.Warn("dispatch rejected", "topic", topic, "task_id", task.ID, "error", err)
	}
}

// execute runs one handler under a deadline matching the lock expiry. A
// handler outliving its lease is cancelled; its task belongs to the engine
// again.
func (w *Worker) execute(ctx context.Context, handler Handler, task taskengine.Task, lockDuration time.Duration) {
	deadline := task.LockExpiration
	if deadline.IsZero() {
		deadline = time.Now().Add(lockDuration)
	}
	taskCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	logger := w.logger.With("topic", task.Topic, "task_id", task.ID)
	started := time.Now()

	output, err := handler(taskCtx, task)
	if err != nil {
		logger.Warn("stage failed", "error", err, "duration", time.Since(started))
		w.report(func(reportCtx context.Context) error {
			return w.engine.Fail(reportCtx, task.ID, err.Error(), retriesFor(task), 5*time.Second)
		}, logger, "failure")
		return
	}

	logger.Info("stage completed", "duration", time.Since(started))
	w.report(func(reportCtx context.Context) error {
		return w.engine.Complete(reportCtx, task.ID, output)
	}, logger, "completion")
}

// report delivers an outcome on a fresh context: the task context may
// already be past its deadline, but the engine still deserves the report.
// A rejected report means the lock expired and the engine moved on; it is
// logged, never retried locally.
func (w *Worker) report(fn func(context.Context) error, logger *slog.Logger, kind string) {
	reportCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := fn(reportCtx); err != nil {
		var engineErr *taskengine.EngineError
		if errors.As(err, &engineErr) {
			logger.Warn(kind+" rejected by engine", "status", engineErr.StatusCode, "error", engineErr.Message)
			return
		}
		logger.Error("reporting "+kind+" failed", "error", err)
	}
}

// retriesFor passes the engine's retry count through unchanged; the engine
// decrements it per its own policy.
func retriesFor(task taskengine.Task) int {
	if task.Retries == nil {
		return 0
	}
	return *task.Retries
}
