package runner_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowreplay/internal/engine"
	"flowreplay/internal/events"
	"flowreplay/internal/locator"
	"flowreplay/internal/runner"
)

type memStore struct {
	mu      sync.Mutex
	flows   map[uint]*runner.Flow
	reports []*runner.Report
	states  []*runner.RunState
	cleared []uint
	// honorCtx makes writes fail on a cancelled context, the way a real
	// database session bound to the context does.
	honorCtx bool
}

func newMemStore(flows ...*runner.Flow) *memStore {
	s := &memStore{flows: make(map[uint]*runner.Flow)}
	for _, f := range flows {
		s.flows[f.ID] = f
	}
	return s
}

func (s *memStore) GetFlow(ctx context.Context, id uint) (*runner.Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flows[id]
	if !ok {
		return nil, errors.New("flow not found")
	}
	return f, nil
}

func (s *memStore) ReportExecution(ctx context.Context, report *runner.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.honorCtx && ctx.Err() != nil {
		return ctx.Err()
	}
	s.reports = append(s.reports, report)
	return nil
}

func (s *memStore) SaveRunState(ctx context.Context, state *runner.RunState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *state
	s.states = append(s.states, &copied)
	return nil
}

func (s *memStore) ClearRunState(ctx context.Context, flowID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.honorCtx && ctx.Err() != nil {
		return ctx.Err()
	}
	s.cleared = append(s.cleared, flowID)
	return nil
}

type stubPage struct {
	mu         sync.Mutex
	doc        locator.Document
	clicks     int
	clickErr   error
	clickHook  func(p *stubPage)
	values     []string
	navigated  []string
	snapshot   string
	loads      chan struct{}
	blockUntil chan struct{}
}

func newStubPage(t *testing.T, src string) *stubPage {
	t.Helper()
	doc, err := locator.ParseDocument(src)
	require.NoError(t, err)
	return &stubPage{doc: doc, snapshot: src, loads: make(chan struct{}, 4)}
}

func (p *stubPage) Document(ctx context.Context) (locator.Document, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc, nil
}

func (p *stubPage) Click(ctx context.Context, target *locator.Match, offset *engine.Offset) error {
	p.mu.Lock()
	p.clicks++
	hook, err := p.clickHook, p.clickErr
	p.mu.Unlock()
	if p.blockUntil != nil {
		select {
		case <-p.blockUntil:
		case <-ctx.Done():
		}
	}
	if hook != nil {
		hook(p)
	}
	return err
}

func (p *stubPage) SetValue(ctx context.Context, target *locator.Match, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values = append(p.values, value)
	return nil
}

func (p *stubPage) Scroll(ctx context.Context, x, y float64) error { return nil }

func (p *stubPage) CaptureState(ctx context.Context, target *locator.Match) (*locator.ElementState, error) {
	return nil, nil
}

func (p *stubPage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigated = append(p.navigated, url)
	return nil
}

func (p *stubPage) SnapshotHTML(ctx context.Context) (string, error) { return p.snapshot, nil }

func (p *stubPage) LoadEvents() <-chan struct{} { return p.loads }

func (p *stubPage) fireLoad() {
	select {
	case p.loads <- struct{}{}:
	default:
	}
}

func (p *stubPage) clickCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clicks
}

func fastRunnerConfig() runner.Config {
	return runner.Config{
		StepTimeout:     150 * time.Millisecond,
		PollInterval:    time.Millisecond,
		NavigationGrace: 5 * time.Millisecond,
		Engine:          engine.Config{PollInterval: time.Millisecond, MaxAttempts: 1},
	}
}

func clickStep(t *testing.T, src, selector string, idx int) engine.Step {
	t.Helper()
	doc, err := locator.ParseDocument(src)
	require.NoError(t, err)
	nodes, err := doc.QueryCSS(selector)
	require.NoError(t, err)
	require.NotEmpty(t, nodes)
	return engine.Step{
		Action:        engine.ActionClick,
		Locator:       locator.Build(nodes[0]),
		SequenceIndex: idx,
	}
}

func TestRunResolvesStepInSecondContext(t *testing.T) {
	frameSrc := `<html><body><button id="accept">Accept cookies</button></body></html>`
	main := newStubPage(t, `<html><body><h1>Shop</h1></body></html>`)
	frame := newStubPage(t, frameSrc)

	flow := &runner.Flow{
		ID:       7,
		StartURL: "https://shop.test/",
		Steps:    []engine.Step{clickStep(t, frameSrc, "#accept", 0)},
	}
	store := newMemStore(flow)
	r := runner.New(store, []engine.Page{main, frame}, fastRunnerConfig(), nil, nil)

	report, err := r.Run(context.Background(), 7, 1)

	require.NoError(t, err)
	assert.Equal(t, runner.StatusSucceeded, report.Status)
	assert.Equal(t, 0, main.clickCount())
	assert.Equal(t, 1, frame.clickCount())
	assert.Equal(t, []string{"https://shop.test/"}, main.navigated)
	assert.Contains(t, store.cleared, uint(7))
}

func TestRunTreatsReloadDuringClickAsSuccess(t *testing.T) {
	src := `<html><body><button id="submit">Submit order</button></body></html>`
	page := newStubPage(t, src)
	page.clickErr = errors.New("execution context destroyed")
	page.clickHook = func(p *stubPage) { p.fireLoad() }

	flow := &runner.Flow{ID: 3, Steps: []engine.Step{clickStep(t, src, "#submit", 0)}}
	store := newMemStore(flow)
	r := runner.New(store, []engine.Page{page}, fastRunnerConfig(), nil, nil)

	report, err := r.Run(context.Background(), 3, 1)

	require.NoError(t, err)
	assert.Equal(t, runner.StatusSucceeded, report.Status)
	require.Len(t, report.Bugs, 1)
	assert.Equal(t, runner.BugNuance, report.Bugs[0].Kind)
	assert.Contains(t, report.Bugs[0].Message, "reloaded")
}

func TestRunFailsWithSnapshotWhenElementNeverAppears(t *testing.T) {
	src := `<html><body><p>empty page</p></body></html>`
	page := newStubPage(t, src)

	step := engine.Step{
		Action: engine.ActionClick,
		Locator: &locator.Descriptor{
			Strategies: []locator.Strategy{{Kind: locator.KindID, Value: "ghost"}},
			TagName:    "button",
		},
	}
	flow := &runner.Flow{ID: 5, Steps: []engine.Step{step}}
	store := newMemStore(flow)
	cfg := fastRunnerConfig()
	r := runner.New(store, []engine.Page{page}, cfg, nil, nil)

	start := time.Now()
	report, err := r.Run(context.Background(), 5, 2)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, runner.StatusFailed, report.Status)
	assert.Contains(t, report.ErrorMessage, "not found")
	assert.GreaterOrEqual(t, elapsed, cfg.StepTimeout)
	assert.Less(t, elapsed, 4*cfg.StepTimeout)
	assert.Equal(t, src, report.PageSnapshot)
	require.NotEmpty(t, report.Bugs)
	assert.Equal(t, runner.BugError, report.Bugs[len(report.Bugs)-1].Kind)
	assert.NotContains(t, store.cleared, uint(5))
}

func TestStopEndsRunBetweenSteps(t *testing.T) {
	src := `<html><body><button id="next">Next</button></body></html>`
	page := newStubPage(t, src)
	page.blockUntil = make(chan struct{})

	steps := []engine.Step{
		clickStep(t, src, "#next", 0),
		clickStep(t, src, "#next", 1),
		clickStep(t, src, "#next", 2),
	}
	flow := &runner.Flow{ID: 9, Steps: steps}
	store := newMemStore(flow)
	r := runner.New(store, []engine.Page{page}, fastRunnerConfig(), nil, nil)

	done := make(chan *runner.Report, 1)
	go func() {
		report, _ := r.Run(context.Background(), 9, 1)
		done <- report
	}()

	require.Eventually(t, func() bool { return page.clickCount() > 0 }, time.Second, time.Millisecond)
	r.Stop()
	close(page.blockUntil)

	report := <-done
	require.NotNil(t, report)
	assert.Equal(t, runner.StatusStopped, report.Status)
	assert.Equal(t, runner.StatusStopped, r.Status())
	assert.Less(t, report.StepsDone, len(steps))
}

func TestStoppedRunStillPersistsTerminalReport(t *testing.T) {
	src := `<html><body><button id="next">Next</button></body></html>`
	page := newStubPage(t, src)
	page.blockUntil = make(chan struct{})

	flow := &runner.Flow{ID: 12, Steps: []engine.Step{
		clickStep(t, src, "#next", 0),
		clickStep(t, src, "#next", 1),
	}}
	store := newMemStore(flow)
	store.honorCtx = true
	r := runner.New(store, []engine.Page{page}, fastRunnerConfig(), nil, nil)

	done := make(chan *runner.Report, 1)
	go func() {
		report, _ := r.Run(context.Background(), 12, 1)
		done <- report
	}()

	require.Eventually(t, func() bool { return page.clickCount() > 0 }, time.Second, time.Millisecond)
	r.Stop()
	close(page.blockUntil)

	report := <-done
	require.NotNil(t, report)
	assert.Equal(t, runner.StatusStopped, report.Status)

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.reports, 1)
	assert.Equal(t, runner.StatusStopped, store.reports[0].Status)
	assert.Contains(t, store.cleared, uint(12))
}

func TestContextSourceSuppliesFramesAfterNavigation(t *testing.T) {
	frameSrc := `<html><body><button id="accept">Accept cookies</button></body></html>`
	main := newStubPage(t, `<html><body><h1>Shop</h1></body></html>`)
	frame := newStubPage(t, frameSrc)

	flow := &runner.Flow{
		ID:       14,
		StartURL: "https://shop.test/",
		Steps:    []engine.Step{clickStep(t, frameSrc, "#accept", 0)},
	}
	store := newMemStore(flow)
	r := runner.New(store, []engine.Page{main}, fastRunnerConfig(), nil, nil)

	// Frames only exist once a document is loaded; before the start
	// navigation the source sees the blank tab alone.
	r.SetContextSource(func(ctx context.Context) []engine.Page {
		main.mu.Lock()
		navigated := len(main.navigated) > 0
		main.mu.Unlock()
		if !navigated {
			return []engine.Page{main}
		}
		return []engine.Page{main, frame}
	})

	report, err := r.Run(context.Background(), 14, 1)

	require.NoError(t, err)
	assert.Equal(t, runner.StatusSucceeded, report.Status)
	assert.Equal(t, 0, main.clickCount())
	assert.Equal(t, 1, frame.clickCount())
}

func TestStopOnIdleRunnerIsNoop(t *testing.T) {
	page := newStubPage(t, `<html><body></body></html>`)
	r := runner.New(newMemStore(), []engine.Page{page}, fastRunnerConfig(), nil, nil)

	r.Stop()

	assert.Equal(t, runner.StatusIdle, r.Status())
}

func TestResumeContinuesFromCheckpoint(t *testing.T) {
	src := `<html><body><button id="go">Go</button></body></html>`
	page := newStubPage(t, src)

	steps := []engine.Step{
		clickStep(t, src, "#go", 0),
		clickStep(t, src, "#go", 1),
		clickStep(t, src, "#go", 2),
	}
	steps[1].PageURL = "https://shop.test/checkout"
	flow := &runner.Flow{ID: 11, StartURL: "https://shop.test/", Steps: steps}
	store := newMemStore(flow)
	r := runner.New(store, []engine.Page{page}, fastRunnerConfig(), nil, nil)

	carried := []runner.Bug{{StepIndex: 0, Kind: runner.BugNuance, Message: "color drift"}}
	state := &runner.RunState{FlowID: 11, ExecutionID: 4, StepIndex: 1, Bugs: carried, StartTime: time.Now()}
	report, err := r.Resume(context.Background(), state)

	require.NoError(t, err)
	assert.Equal(t, runner.StatusSucceeded, report.Status)
	assert.Equal(t, 2, page.clickCount())
	assert.Equal(t, 3, report.StepsDone)
	assert.Equal(t, []string{"https://shop.test/checkout"}, page.navigated)
	require.NotEmpty(t, report.Bugs)
	assert.Equal(t, "color drift", report.Bugs[0].Message)
}

func TestRunPublishesLifecycleEvents(t *testing.T) {
	src := `<html><body><button id="ok">OK</button></body></html>`
	page := newStubPage(t, src)

	flow := &runner.Flow{ID: 2, Steps: []engine.Step{clickStep(t, src, "#ok", 0)}}
	store := newMemStore(flow)
	bus := events.NewBus()
	ch, cancel := bus.Subscribe(16)
	defer cancel()

	r := runner.New(store, []engine.Page{page}, fastRunnerConfig(), bus, nil)
	_, err := r.Run(context.Background(), 2, 1)
	require.NoError(t, err)

	var types []events.Type
	for {
		select {
		case e := <-ch:
			types = append(types, e.Type)
			if e.Type == events.TypeRunFinished {
				assert.Equal(t, string(runner.StatusSucceeded), e.Status)
				assert.Contains(t, types, events.TypeStepStarted)
				assert.Contains(t, types, events.TypeStepCompleted)
				return
			}
		case <-time.After(time.Second):
			t.Fatal("run finished event never arrived")
		}
	}
}

func TestNavigateStepSuspendsUntilLoadSettles(t *testing.T) {
	page := newStubPage(t, `<html><body></body></html>`)

	flow := &runner.Flow{ID: 6, Steps: []engine.Step{{
		Action: engine.ActionNavigate,
		Value:  "https://shop.test/cart",
	}}}
	store := newMemStore(flow)
	bus := events.NewBus()
	ch, cancel := bus.Subscribe(16)
	defer cancel()

	r := runner.New(store, []engine.Page{page}, fastRunnerConfig(), bus, nil)
	page.fireLoad()
	report, err := r.Run(context.Background(), 6, 1)

	require.NoError(t, err)
	assert.Equal(t, runner.StatusSucceeded, report.Status)
	assert.Contains(t, page.navigated, "https://shop.test/cart")

	suspended := false
	for len(ch) > 0 {
		if e := <-ch; e.Type == events.TypeRunSuspended {
			suspended = true
		}
	}
	assert.True(t, suspended)
}

func TestRunCheckpointsEveryStep(t *testing.T) {
	src := `<html><body><button id="go">Go</button></body></html>`
	page := newStubPage(t, src)

	flow := &runner.Flow{ID: 8, Steps: []engine.Step{
		clickStep(t, src, "#go", 0),
		clickStep(t, src, "#go", 1),
	}}
	store := newMemStore(flow)
	r := runner.New(store, []engine.Page{page}, fastRunnerConfig(), nil, nil)

	_, err := r.Run(context.Background(), 8, 1)
	require.NoError(t, err)

	require.Len(t, store.states, 2)
	assert.Equal(t, 0, store.states[0].StepIndex)
	assert.Equal(t, 1, store.states[1].StepIndex)
}
