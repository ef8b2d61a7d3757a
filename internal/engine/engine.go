package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"flowreplay/internal/locator"
)

// StepState is the per-step execution state machine:
// pending -> locating -> found -> acting -> completed, or locating ->
// exhausted -> failed.
type StepState string

const (
	StepPending   StepState = "pending"
	StepLocating  StepState = "locating"
	StepFound     StepState = "found"
	StepActing    StepState = "acting"
	StepCompleted StepState = "completed"
	StepFailed    StepState = "failed"
)

// Config tunes the locating loop and action pacing.
type Config struct {
	// PollInterval is the fixed delay between resolution attempts.
	PollInterval time.Duration
	// MaxAttempts bounds the locating loop. Attempts times interval should
	// sit just above the runner's per-step timeout so the timer, not the
	// attempt counter, normally decides.
	MaxAttempts int
	// SettleDelay is applied after scrolling an element into view and
	// before dispatching events.
	SettleDelay time.Duration
}

// DefaultConfig mirrors the recorder platform's tuning: half-second polls
// for up to thirty seconds.
func DefaultConfig() Config {
	return Config{
		PollInterval: 500 * time.Millisecond,
		MaxAttempts:  60,
		SettleDelay:  200 * time.Millisecond,
	}
}

// StepResult reports one step's outcome to the runner.
type StepResult struct {
	StepIndex int
	State     StepState
	Nuances   []string
	Err       error
	Duration  time.Duration
}

// Engine executes single recorded steps against one Page. It is the
// state machine between the resolver and the host context: wait for a
// visible element, detect drift, perform the action, classify failure.
type Engine struct {
	page   Page
	cfg    Config
	logger *zap.Logger
}

func New(page Page, cfg Config, logger *zap.Logger) *Engine {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{page: page, cfg: cfg, logger: logger}
}

// RunStep drives one step to a terminal state. The context bounds the whole
// step; cancellation during the locating loop surfaces as a NotFoundError so
// the runner can convert it into its timeout classification.
func (e *Engine) RunStep(ctx context.Context, step Step) StepResult {
	started := time.Now()
	result := StepResult{StepIndex: step.SequenceIndex, State: StepPending}

	finish := func(state StepState, err error) StepResult {
		result.State = state
		result.Err = err
		result.Duration = time.Since(started)
		return result
	}

	// Locator-free actions skip straight to acting.
	switch step.Action {
	case ActionScroll:
		target, err := step.scrollTarget()
		if err != nil {
			return finish(StepFailed, &ActionError{StepIndex: step.SequenceIndex, Action: step.Action, Err: err})
		}
		if err := e.page.Scroll(ctx, target.X, target.Y); err != nil {
			return finish(StepFailed, &ActionError{StepIndex: step.SequenceIndex, Action: step.Action, Err: err})
		}
		return finish(StepCompleted, nil)
	case ActionNavigate:
		url := step.Value
		if url == "" {
			url = step.PageURL
		}
		if err := e.page.Navigate(ctx, url); err != nil {
			return finish(StepFailed, &ActionError{StepIndex: step.SequenceIndex, Action: step.Action, Err: err})
		}
		return finish(StepCompleted, nil)
	}

	result.State = StepLocating
	match, err := e.locate(ctx, step)
	if err != nil {
		return finish(StepFailed, err)
	}
	result.State = StepFound

	// Drift detection is advisory: nuances attach to the step but never
	// fail it.
	if step.Snapshot != nil {
		if current, err := e.page.CaptureState(ctx, match); err == nil && current != nil {
			result.Nuances = locator.CompareStates(*step.Snapshot, *current)
		}
	}

	result.State = StepActing
	if err := e.act(ctx, step, match); err != nil {
		return finish(StepFailed, err)
	}
	return finish(StepCompleted, nil)
}

// locate polls the resolver against fresh document snapshots until a visible
// element appears, attempts run out, or the context is cancelled.
func (e *Engine) locate(ctx context.Context, step Step) (*locator.Match, error) {
	notFound := &NotFoundError{StepIndex: step.SequenceIndex, Detail: step.Description()}

	for attempt := 0; attempt < e.cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, notFound
		}

		doc, err := e.page.Document(ctx)
		if err == nil {
			if m, rerr := locator.Resolve(step.Locator, doc); rerr == nil {
				return m, nil
			}
		} else {
			e.logger.Debug("document snapshot failed, retrying",
				zap.Int("step", step.SequenceIndex), zap.Error(err))
		}

		if attempt+1 == e.cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, notFound
		case <-time.After(e.cfg.PollInterval):
		}
	}
	return nil, notFound
}

// act performs the side effect for a located step. One handler per action
// variant; the switch is exhaustive over the Action constants.
func (e *Engine) act(ctx context.Context, step Step, match *locator.Match) error {
	actionErr := func(err error) error {
		if err == nil {
			return nil
		}
		return &ActionError{StepIndex: step.SequenceIndex, Action: step.Action, Err: err}
	}

	switch step.Action {
	case ActionClick:
		return actionErr(e.page.Click(ctx, match, step.Offset))

	case ActionInput:
		target := match
		// A label wrapping a control receives the recorded event, but the
		// value belongs on the control itself.
		if control := locator.ControlForLabel(match.Node); control != nil {
			target = locator.MatchFor(control, match.ShadowPath)
		}
		return actionErr(e.page.SetValue(ctx, target, step.Value))

	case ActionAssertExists:
		// Resolution succeeding is the assertion.
		return nil

	case ActionAssertText:
		actual := locator.NodeText(match.Node)
		if !textMatches(step.Value, actual) {
			return &AssertionError{StepIndex: step.SequenceIndex, Expected: step.Value, Actual: actual}
		}
		return nil

	case ActionScroll, ActionNavigate:
		// Handled before locating; unreachable here.
		return nil
	}
	return actionErr(errors.New("unsupported action " + string(step.Action)))
}

// textMatches compares assertion text against the element's visible text:
// normalized, case-insensitive equality. Plain substring containment would
// accept negations of the expected text ("Not a Supplier Option" contains
// "Supplier"), so equality it is.
func textMatches(expected, actual string) bool {
	return strings.EqualFold(locator.NormalizeText(expected), locator.NormalizeText(actual))
}
