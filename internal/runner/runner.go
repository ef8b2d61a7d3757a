package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"flowreplay/internal/engine"
	"flowreplay/internal/events"
)

// Config tunes run pacing.
type Config struct {
	// StepTimeout bounds each step's wall clock, locating included. The
	// timer is released as soon as the step ends.
	StepTimeout time.Duration
	// PollInterval paces the rounds over execution contexts while locating.
	PollInterval time.Duration
	// NavigationGrace is how long the document must stay quiet after a full
	// page load before a suspended run continues.
	NavigationGrace time.Duration
	// Engine tunes the per-context step engine. MaxAttempts is forced to 1
	// so no single context can starve the others of locating rounds.
	Engine engine.Config
}

func DefaultConfig() Config {
	return Config{
		StepTimeout:     30 * time.Second,
		PollInterval:    500 * time.Millisecond,
		NavigationGrace: time.Second,
		Engine:          engine.DefaultConfig(),
	}
}

// Runner replays one flow at a time against a set of execution contexts:
// the main document plus any same-origin frames. Steps run in order; each
// step is offered to every context until one resolves it or the step timer
// fires.
type Runner struct {
	store  Store
	pub    events.Publisher
	logger *zap.Logger
	cfg    Config

	pages   []engine.Page
	engines []*engine.Engine
	source  func(context.Context) []engine.Page

	mu     sync.Mutex
	status Status
	cancel context.CancelFunc
}

func New(store Store, pages []engine.Page, cfg Config, pub events.Publisher, logger *zap.Logger) *Runner {
	if len(pages) == 0 {
		panic("runner: at least one execution context required")
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = DefaultConfig().StepTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.NavigationGrace <= 0 {
		cfg.NavigationGrace = DefaultConfig().NavigationGrace
	}
	if pub == nil {
		pub = events.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	engineCfg := cfg.Engine
	engineCfg.MaxAttempts = 1
	r := &Runner{
		store:  store,
		pub:    pub,
		logger: logger,
		cfg:    cfg,
		pages:  pages,
		status: StatusIdle,
	}
	for _, p := range pages {
		r.engines = append(r.engines, engine.New(p, engineCfg, logger))
	}
	return r
}

// SetContextSource installs a provider of fresh execution contexts: the main
// document first, then any reachable same-origin frames. The frame tree only
// exists once a real document is loaded and changes with every navigation, so
// the runner queries the source after each navigation settles rather than
// holding the set it was constructed with.
func (r *Runner) SetContextSource(src func(context.Context) []engine.Page) {
	r.source = src
}

// refreshContexts swaps in the current context set. The main document must
// stay first; load tracking and failure snapshots use it.
func (r *Runner) refreshContexts(ctx context.Context) {
	if r.source == nil {
		return
	}
	pages := r.source(ctx)
	if len(pages) == 0 {
		return
	}
	engineCfg := r.cfg.Engine
	engineCfg.MaxAttempts = 1
	r.pages = pages
	r.engines = r.engines[:0]
	for _, p := range pages {
		r.engines = append(r.engines, engine.New(p, engineCfg, r.logger))
	}
}

// Status returns the current run-level status.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Stop requests a graceful stop. Only a running or suspended run can be
// stopped; stopping a finished or idle run is a no-op.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusRunning && r.status != StatusSuspended {
		return
	}
	r.status = StatusStopped
	if r.cancel != nil {
		r.cancel()
	}
}

// setStatus transitions unless a stop already won the race.
func (r *Runner) setStatus(s Status) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.Terminal() {
		return false
	}
	r.status = s
	return true
}

// Run replays the flow from its first step, navigating to the start URL
// first. The report is always returned, stopped and failed runs included;
// the error covers infrastructure problems only.
func (r *Runner) Run(ctx context.Context, flowID, executionID uint) (*Report, error) {
	flow, err := r.store.GetFlow(ctx, flowID)
	if err != nil {
		return nil, fmt.Errorf("load flow %d: %w", flowID, err)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.mu.Lock()
	r.cancel = cancel
	r.status = StatusRunning
	r.mu.Unlock()

	if flow.StartURL != "" {
		if err := r.pages[0].Navigate(ctx, flow.StartURL); err != nil {
			return nil, fmt.Errorf("open start url: %w", err)
		}
		r.settle(ctx)
	}
	r.refreshContexts(ctx)
	return r.execute(ctx, flow, executionID, 0, nil, time.Now())
}

// Resume continues an interrupted run from its checkpoint, re-opening the
// page the flow was on when it died.
func (r *Runner) Resume(ctx context.Context, state *RunState) (*Report, error) {
	flow, err := r.store.GetFlow(ctx, state.FlowID)
	if err != nil {
		return nil, fmt.Errorf("load flow %d: %w", state.FlowID, err)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.mu.Lock()
	r.cancel = cancel
	r.status = StatusRunning
	r.mu.Unlock()

	url := flow.StartURL
	if state.StepIndex < len(flow.Steps) && flow.Steps[state.StepIndex].PageURL != "" {
		url = flow.Steps[state.StepIndex].PageURL
	}
	if url != "" {
		if err := r.pages[0].Navigate(ctx, url); err != nil {
			return nil, fmt.Errorf("reopen page: %w", err)
		}
		r.settle(ctx)
	}
	r.refreshContexts(ctx)
	start := state.StartTime
	if start.IsZero() {
		start = time.Now()
	}
	return r.execute(ctx, flow, state.ExecutionID, state.StepIndex, state.Bugs, start)
}

func (r *Runner) execute(ctx context.Context, flow *Flow, executionID uint, startIdx int, bugs []Bug, started time.Time) (*Report, error) {
	report := &Report{
		FlowID:      flow.ID,
		ExecutionID: executionID,
		StepsTotal:  len(flow.Steps),
		StepsDone:   startIdx,
		Bugs:        bugs,
	}
	finish := func(status Status) (*Report, error) {
		if !status.Terminal() {
			status = StatusFailed
		}
		r.mu.Lock()
		if r.status == StatusStopped {
			status = StatusStopped
		} else {
			r.status = status
		}
		r.mu.Unlock()
		report.Status = status
		report.Duration = time.Since(started)
		r.pub.Publish(events.Event{
			Type: events.TypeRunFinished, FlowID: flow.ID, ExecutionID: executionID,
			StepIndex: report.StepsDone, Status: string(status),
		})
		// The run context is already cancelled when a stop brought us here;
		// the terminal report still has to reach the store.
		persistCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := r.store.ReportExecution(persistCtx, report); err != nil {
			r.logger.Error("persist execution report failed",
				zap.Uint("flow_id", flow.ID), zap.Error(err))
		}
		if status == StatusSucceeded || status == StatusStopped {
			if err := r.store.ClearRunState(persistCtx, flow.ID); err != nil {
				r.logger.Warn("clear run state failed", zap.Uint("flow_id", flow.ID), zap.Error(err))
			}
		}
		return report, nil
	}

	for i := startIdx; i < len(flow.Steps); i++ {
		if ctx.Err() != nil {
			return finish(StatusStopped)
		}
		step := flow.Steps[i]

		checkpoint := &RunState{
			FlowID: flow.ID, ExecutionID: executionID, StepIndex: i,
			Status: StatusRunning, Bugs: report.Bugs, StartTime: started,
		}
		if err := r.store.SaveRunState(ctx, checkpoint); err != nil {
			r.logger.Warn("save run state failed", zap.Uint("flow_id", flow.ID), zap.Error(err))
		}
		r.pub.Publish(events.Event{
			Type: events.TypeStepStarted, FlowID: flow.ID, ExecutionID: executionID,
			StepIndex: i, Message: step.Description(),
		})

		r.drainLoads()
		result := r.runStep(ctx, step)

		for _, nuance := range result.Nuances {
			bug := Bug{StepIndex: i, Kind: BugNuance, Message: nuance}
			report.Bugs = append(report.Bugs, bug)
			r.pub.Publish(events.Event{
				Type: events.TypeNuanceDetected, FlowID: flow.ID, ExecutionID: executionID,
				StepIndex: i, Message: nuance,
			})
		}

		if result.Err != nil {
			// A click that tears down the page before confirmation looks
			// like a failure. If a fresh load arrived on its heels, the
			// click worked and navigated; carry on behind a nuance.
			if step.Action == engine.ActionClick && r.loadArrived(ctx, r.cfg.NavigationGrace) {
				msg := "page reloaded during click; step treated as successful"
				report.Bugs = append(report.Bugs, Bug{StepIndex: i, Kind: BugNuance, Message: msg})
				r.logger.Info("click interrupted by navigation",
					zap.Uint("flow_id", flow.ID), zap.Int("step", i))
				r.suspendForNavigation(ctx, flow.ID, executionID, i)
				result.Err = nil
			} else {
				report.StepsDone = i
				report.ErrorMessage = result.Err.Error()
				report.Bugs = append(report.Bugs, Bug{StepIndex: i, Kind: BugError, Message: result.Err.Error()})
				if snapshot, serr := r.pages[0].SnapshotHTML(ctx); serr == nil {
					report.PageSnapshot = snapshot
				}
				r.pub.Publish(events.Event{
					Type: events.TypeStepFailed, FlowID: flow.ID, ExecutionID: executionID,
					StepIndex: i, Message: result.Err.Error(),
				})
				return finish(StatusFailed)
			}
		}

		report.StepsDone = i + 1
		r.pub.Publish(events.Event{
			Type: events.TypeStepCompleted, FlowID: flow.ID, ExecutionID: executionID, StepIndex: i,
		})

		// Full page loads triggered by this step suspend the run until the
		// new document settles.
		if step.Action == engine.ActionNavigate || r.loadPending() {
			r.suspendForNavigation(ctx, flow.ID, executionID, i)
		}
	}
	return finish(StatusSucceeded)
}

// runStep offers the step to each context in rounds under a single timer.
// Not-found results are absorbed while time remains: the element may live in
// another frame or not exist yet. Any other error is final.
func (r *Runner) runStep(ctx context.Context, step engine.Step) engine.StepResult {
	stepCtx, cancel := context.WithTimeout(ctx, r.cfg.StepTimeout)
	defer cancel()

	// Locator-free steps always run on the main document.
	if step.Action == engine.ActionScroll || step.Action == engine.ActionNavigate {
		return r.engines[0].RunStep(stepCtx, step)
	}

	var last engine.StepResult
	for {
		for _, eng := range r.engines {
			last = eng.RunStep(stepCtx, step)
			if last.Err == nil {
				return last
			}
			var nf *engine.NotFoundError
			if !errors.As(last.Err, &nf) {
				return last
			}
		}
		select {
		case <-stepCtx.Done():
			// The timer expiring with only not-found rounds behind it means
			// the element never appeared; keep that verdict.
			return last
		case <-time.After(r.cfg.PollInterval):
		}
	}
}

// suspendForNavigation holds the run until no further page loads arrive for
// a full grace window.
func (r *Runner) suspendForNavigation(ctx context.Context, flowID, executionID uint, stepIdx int) {
	if !r.setStatus(StatusSuspended) {
		return
	}
	r.pub.Publish(events.Event{
		Type: events.TypeRunSuspended, FlowID: flowID, ExecutionID: executionID,
		StepIndex: stepIdx, Status: string(StatusSuspended),
	})
	r.settle(ctx)
	r.refreshContexts(ctx)
	r.setStatus(StatusRunning)
}

// settle waits for the page to stay quiet for NavigationGrace, bounded by
// the step timeout so a reload loop cannot hang the run.
func (r *Runner) settle(ctx context.Context) {
	deadline := time.Now().Add(r.cfg.StepTimeout)
	loads := r.pages[0].LoadEvents()
	for {
		select {
		case <-ctx.Done():
			return
		case <-loads:
			if time.Now().After(deadline) {
				return
			}
		case <-time.After(r.cfg.NavigationGrace):
			return
		}
	}
}

// drainLoads clears stale load notifications so later checks only see loads
// caused by the current step.
func (r *Runner) drainLoads() {
	loads := r.pages[0].LoadEvents()
	for {
		select {
		case <-loads:
		default:
			return
		}
	}
}

func (r *Runner) loadPending() bool {
	select {
	case <-r.pages[0].LoadEvents():
		return true
	default:
		return false
	}
}

// loadArrived waits up to grace for a page load notification.
func (r *Runner) loadArrived(ctx context.Context, grace time.Duration) bool {
	select {
	case <-r.pages[0].LoadEvents():
		return true
	case <-ctx.Done():
		return false
	case <-time.After(grace):
		return false
	}
}
