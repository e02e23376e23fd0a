package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/docpipe/docpipe/internal/config"
	"github.com/docpipe/docpipe/internal/taskengine"
)

// fakeEngine hands out queued tasks once and records outcome reports.
type fakeEngine struct {
	mu        sync.Mutex
	queue     map[string][]taskengine.Task
	completed map[string]taskengine.Variables
	failed    map[string]string
	rejectAll bool
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		queue:     make(map[string][]taskengine.Task),
		completed: make(map[string]taskengine.Variables),
		failed:    make(map[string]string),
	}
}

func (f *fakeEngine) enqueue(task taskengine.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue[task.Topic] = append(f.queue[task.Topic], task)
}

func (f *fakeEngine) FetchAndLock(_ context.Context, topic string, maxTasks int, _ time.Duration) ([]taskengine.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tasks := f.queue[topic]
	if len(tasks) > maxTasks {
		tasks = tasks[:maxTasks]
	}
	f.queue[topic] = f.queue[topic][len(tasks):]
	return tasks, nil
}

func (f *fakeEngine) Complete(_ context.Context, taskID string, variables taskengine.Variables) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rejectAll {
		return &taskengine.EngineError{StatusCode: 500, Message: "task is not locked"}
	}
	f.completed[taskID] = variables
	return nil
}

func (f *fakeEngine) Fail(_ context.Context, taskID, message string, _ int, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[taskID] = message
	return nil
}

func (f *fakeEngine) completions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.completed)
}

func (f *fakeEngine) failures() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.failed)
}

func testConfig(topics ...string) config.WorkerConfig {
	return config.WorkerConfig{
		WorkerID:         "test-worker",
		Topics:           topics,
		PollIntervalMS:   10,
		LockDurationMS:   5000,
		MaxTasksPerPoll:  5,
		TopicConcurrency: 2,
	}
}

func runUntil(t *testing.T, w *Worker, done func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(finished)
	}()

	deadline := time.After(2 * time.Second)
	for !done() {
		select {
		case <-deadline:
			cancel()
			<-finished
			t.Fatal("condition not reached in time")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-finished
}

func TestNew_MissingHandlerIsStartupError(t *testing.T) {
	registry := NewRegistry(map[string]Handler{
		"document-chunk": func(context.Context, taskengine.Task) (taskengine.Variables, error) {
			return nil, nil
		},
	})
	_, err := New(newFakeEngine(), registry, testConfig("document-chunk", "document-embed"), nil)
	if err == nil {
		t.Fatal("expected configuration error for unhandled topic")
	}
}

func TestWorker_CompletesTask(t *testing.T) {
	engine := newFakeEngine()
	engine.enqueue(taskengine.Task{ID: "t1", Topic: "document-chunk", Variables: taskengine.Variables{
		"documentHash": taskengine.StringVar("abc"),
	}})

	registry := NewRegistry(map[string]Handler{
		"document-chunk": func(_ context.Context, task taskengine.Task) (taskengine.Variables, error) {
			return taskengine.Variables{
				"echo": taskengine.StringVar(task.Variables.String("documentHash")),
			}, nil
		},
	})
	w, err := New(engine, registry, testConfig("document-chunk"), nil)
	if err != nil {
		t.Fatal(err)
	}

	runUntil(t, w, func() bool { return engine.completions() == 1 })

	engine.mu.Lock()
	defer engine.mu.Unlock()
	if engine.completed["t1"].String("echo") != "abc" {
		t.Errorf("output variables not reported: %+v", engine.completed["t1"])
	}
}

func TestWorker_ReportsFailure(t *testing.T) {
	engine := newFakeEngine()
	engine.enqueue(taskengine.Task{ID: "t1", Topic: "document-validate"})

	registry := NewRegistry(map[string]Handler{
		"document-validate": func(context.Context, taskengine.Task) (taskengine.Variables, error) {
			return nil, errors.New("document is empty")
		},
	})
	w, err := New(engine, registry, testConfig("document-validate"), nil)
	if err != nil {
		t.Fatal(err)
	}

	runUntil(t, w, func() bool { return engine.failures() == 1 })

	engine.mu.Lock()
	defer engine.mu.Unlock()
	if engine.failed["t1"] != "document is empty" {
		t.Errorf("failure message not reported: %q", engine.failed["t1"])
	}
	if len(engine.completed) != 0 {
		t.Errorf("failed task must not complete: %+v", engine.completed)
	}
}

func TestWorker_RejectedCompletionIsNotRetried(t *testing.T) {
	engine := newFakeEngine()
	engine.rejectAll = true
	engine.enqueue(taskengine.Task{ID: "t1", Topic: "document-chunk",
		LockExpiration: time.Now().Add(time.Second)})

	calls := 0
	var mu sync.Mutex
	registry := NewRegistry(map[string]Handler{
		"document-chunk": func(context.Context, taskengine.Task) (taskengine.Variables, error) {
			mu.Lock()
			calls++
			mu.Unlock()
			return taskengine.Variables{}, nil
		},
	})
	w, err := New(engine, registry, testConfig("document-chunk"), nil)
	if err != nil {
		t.Fatal(err)
	}

	runUntil(t, w, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 1
	})
	// Let any misguided retry surface before asserting.
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("rejected completion must not re-run the handler: %d calls", calls)
	}
	if engine.completions() != 0 {
		t.Errorf("engine rejected the completion, nothing should register")
	}
}

func TestWorker_HandlerGetsLockDeadline(t *testing.T) {
	engine := newFakeEngine()
	expiry := time.Now().Add(750 * time.Millisecond)
	engine.enqueue(taskengine.Task{ID: "t1", Topic: "document-embed", LockExpiration: expiry})

	var gotDeadline time.Time
	var mu sync.Mutex
	registry := NewRegistry(map[string]Handler{
		"document-embed": func(ctx context.Context, _ taskengine.Task) (taskengine.Variables, error) {
			if d, ok := ctx.Deadline(); ok {
				mu.Lock()
				gotDeadline = d
				mu.Unlock()
			}
			return taskengine.Variables{}, nil
		},
	})
	w, err := New(engine, registry, testConfig("document-embed"), nil)
	if err != nil {
		t.Fatal(err)
	}

	runUntil(t, w, func() bool { return engine.completions() == 1 })

	mu.Lock()
	defer mu.Unlock()
	if !gotDeadline.Equal(expiry) {
		t.Errorf("handler deadline should equal lock expiry: got %v, want %v", gotDeadline, expiry)
	}
}

func TestWorker_SaturatedTopicDoesNotBlockOthers(t *testing.T) {
	engine := newFakeEngine()
	engine.enqueue(taskengine.Task{ID: "slow-1", Topic: "document-chunk"})
	engine.enqueue(taskengine.Task{ID: "slow-2", Topic: "document-chunk"})
	engine.enqueue(taskengine.Task{ID: "fast-1", Topic: "document-embed"})

	// The chunk handler parks until shutdown, so chunk tasks can only
	// finish after the test cancels the worker. If polling ever blocked
	// on the saturated chunk topic, the embed task would never run.
	registry := NewRegistry(map[string]Handler{
		"document-chunk": func(ctx context.Context, _ taskengine.Task) (taskengine.Variables, error) {
			<-ctx.Done()
			return taskengine.Variables{}, nil
		},
		"document-embed": func(context.Context, taskengine.Task) (taskengine.Variables, error) {
			return taskengine.Variables{}, nil
		},
	})

	cfg := testConfig("document-chunk", "document-embed")
	cfg.TopicConcurrency = 1
	w, err := New(engine, registry, cfg, nil)
	if err != nil {
		t.Fatal(err)
	}

	runUntil(t, w, func() bool {
		engine.mu.Lock()
		defer engine.mu.Unlock()
		_, ok := engine.completed["fast-1"]
		return ok
	})
}

func TestWorker_FetchCappedAtFreeCapacity(t *testing.T) {
	engine := newFakeEngine()
	engine.enqueue(taskengine.Task{ID: "t1", Topic: "document-chunk"})
	engine.enqueue(taskengine.Task{ID: "t2", Topic: "document-chunk"})
	engine.enqueue(taskengine.Task{ID: "t3", Topic: "document-chunk"})

	var mu sync.Mutex
	running := 0
	peak := 0
	registry := NewRegistry(map[string]Handler{
		"document-chunk": func(context.Context, taskengine.Task) (taskengine.Variables, error) {
			mu.Lock()
			running++
			if running > peak {
				peak = running
			}
			mu.Unlock()
			time.Sleep(20 * time.Millisecond)
			mu.Lock()
			running--
			mu.Unlock()
			return taskengine.Variables{}, nil
		},
	})

	cfg := testConfig("document-chunk")
	cfg.TopicConcurrency = 1
	w, err := New(engine, registry, cfg, nil)
	if err != nil {
		t.Fatal(err)
	}

	runUntil(t, w, func() bool { return engine.completions() == 3 })

	mu.Lock()
	defer mu.Unlock()
	if peak != 1 {
		t.Errorf("topic concurrency 1 must never run tasks in parallel: peak %d", peak)
	}
}

func TestWorker_TopicsPollIndependently(t *testing.T) {
	engine := newFakeEngine()
	engine.enqueue(taskengine.Task{ID: "t1", Topic: "document-chunk"})
	engine.enqueue(taskengine.Task{ID: "t2", Topic: "document-embed"})

	noop := func(context.Context, taskengine.Task) (taskengine.Variables, error) {
		return taskengine.Variables{}, nil
	}
	registry := NewRegistry(map[string]Handler{
		"document-chunk": noop,
		"document-embed": noop,
	})
	w, err := New(engine, registry, testConfig("document-chunk", "document-embed"), nil)
	if err != nil {
		t.Fatal(err)
	}

	runUntil(t, w, func() bool { return engine.completions() == 2 })
}
