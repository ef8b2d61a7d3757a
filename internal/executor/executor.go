package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"flowreplay/internal/browser"
	"flowreplay/internal/config"
	"flowreplay/internal/engine"
	"flowreplay/internal/events"
	"flowreplay/internal/runner"
	"flowreplay/internal/storage"
)

// ReplayExecutor is the worker pool behind every replay request: manual,
// scheduled and resumed runs all queue here. One flow replays at most once
// at a time; each job gets its own browser instance.
type ReplayExecutor struct {
	cfg    *config.Config
	store  *storage.GormStore
	bus    events.Publisher
	logger *zap.Logger

	workQueue chan job

	mu      sync.RWMutex
	running map[uint]*runner.Runner // keyed by flow ID
}

type job struct {
	flowID      uint
	executionID uint
	resume      *runner.RunState
}

var Global *ReplayExecutor

// InitExecutor builds the global pool and starts its workers.
func InitExecutor(cfg *config.Config, store *storage.GormStore, bus events.Publisher, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bus == nil {
		bus = events.NopPublisher{}
	}
	Global = &ReplayExecutor{
		cfg:       cfg,
		store:     store,
		bus:       bus,
		logger:    logger,
		workQueue: make(chan job, cfg.Replay.MaxWorkers*2),
		running:   make(map[uint]*runner.Runner),
	}
	for i := 0; i < cfg.Replay.MaxWorkers; i++ {
		go Global.worker()
	}
	logger.Info("replay executor initialized", zap.Int("workers", cfg.Replay.MaxWorkers))
}

// Enqueue schedules a fresh replay of a flow into an already-created
// execution row.
func (e *ReplayExecutor) Enqueue(flowID, executionID uint) error {
	return e.enqueue(job{flowID: flowID, executionID: executionID})
}

// EnqueueResume schedules the continuation of an interrupted run.
func (e *ReplayExecutor) EnqueueResume(state *runner.RunState) error {
	return e.enqueue(job{flowID: state.FlowID, executionID: state.ExecutionID, resume: state})
}

func (e *ReplayExecutor) enqueue(j job) error {
	e.mu.Lock()
	if _, busy := e.running[j.flowID]; busy {
		e.mu.Unlock()
		return fmt.Errorf("flow %d is already running", j.flowID)
	}
	// Reserve the slot before the worker picks the job up so a double
	// enqueue in the queueing window is rejected too.
	e.running[j.flowID] = nil
	e.mu.Unlock()

	select {
	case e.workQueue <- j:
		return nil
	default:
		e.mu.Lock()
		delete(e.running, j.flowID)
		e.mu.Unlock()
		return fmt.Errorf("execution queue is full")
	}
}

// Stop requests a graceful stop of a flow's active run. Returns false when
// the flow is not running.
func (e *ReplayExecutor) Stop(flowID uint) bool {
	e.mu.RLock()
	r, ok := e.running[flowID]
	e.mu.RUnlock()
	if !ok || r == nil {
		return false
	}
	r.Stop()
	return true
}

// IsRunning reports whether a flow currently has an active or queued run.
func (e *ReplayExecutor) IsRunning(flowID uint) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.running[flowID]
	return ok
}

func (e *ReplayExecutor) worker() {
	for j := range e.workQueue {
		e.run(j)
		e.mu.Lock()
		delete(e.running, j.flowID)
		e.mu.Unlock()
	}
}

func (e *ReplayExecutor) run(j job) {
	log := e.logger.With(zap.Uint("flow_id", j.flowID), zap.Uint("execution_id", j.executionID))
	ctx := context.Background()

	if err := e.store.MarkExecutionRunning(ctx, j.executionID); err != nil {
		log.Error("mark execution running failed", zap.Error(err))
	}

	b, err := browser.Launch(ctx, browser.Options{
		Headless:   e.cfg.Chrome.HeadlessMode,
		ChromePath: e.cfg.Chrome.ExecPath,
		Width:      e.cfg.Chrome.WindowWidth,
		Height:     e.cfg.Chrome.WindowHeight,
	}, log)
	if err != nil {
		log.Error("browser launch failed", zap.Error(err))
		e.failExecution(ctx, j.executionID, fmt.Sprintf("browser launch failed: %v", err))
		return
	}
	defer b.Close()

	r := runner.New(e.store, []engine.Page{b.Page()}, runner.Config{
		StepTimeout:     e.cfg.Replay.StepTimeout,
		PollInterval:    e.cfg.Replay.PollInterval,
		NavigationGrace: e.cfg.Replay.NavigationGrace,
		Engine: engine.Config{
			PollInterval: e.cfg.Replay.PollInterval,
		},
	}, e.bus, log)
	// Frames only exist once the start URL is open, so the runner re-asks
	// after every navigation instead of taking a fixed context set.
	r.SetContextSource(func(ctx context.Context) []engine.Page {
		pages, err := b.Pages(ctx)
		if err != nil {
			log.Warn("frame enumeration failed, using main document only", zap.Error(err))
			return []engine.Page{b.Page()}
		}
		return pages
	})

	e.mu.Lock()
	e.running[j.flowID] = r
	e.mu.Unlock()

	started := time.Now()
	var report *runner.Report
	if j.resume != nil {
		report, err = r.Resume(ctx, j.resume)
	} else {
		report, err = r.Run(ctx, j.flowID, j.executionID)
	}
	if err != nil {
		log.Error("replay aborted", zap.Error(err))
		e.failExecution(ctx, j.executionID, err.Error())
		return
	}

	log.Info("replay finished",
		zap.String("status", string(report.Status)),
		zap.Int("steps_done", report.StepsDone),
		zap.Int("bugs", len(report.Bugs)),
		zap.Duration("duration", time.Since(started)))
}

func (e *ReplayExecutor) failExecution(ctx context.Context, executionID uint, message string) {
	if err := e.store.FailExecution(ctx, executionID, message); err != nil {
		e.logger.Error("persist execution failure failed",
			zap.Uint("execution_id", executionID), zap.Error(err))
	}
}
