package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowreplay/internal/engine"
	"flowreplay/internal/locator"
)

type clickCall struct {
	match  *locator.Match
	offset *engine.Offset
}

type setValueCall struct {
	match *locator.Match
	value string
}

type fakePage struct {
	html    string
	docFn   func(call int) (locator.Document, error)
	state   *locator.ElementState
	docErr  error
	doc     locator.Document
	docCall int

	clicks    []clickCall
	setValues []setValueCall
	scrollX   float64
	scrollY   float64
	scrolled  bool
	navigated []string
	loadCh    chan struct{}
}

func newFakePage(t *testing.T, src string) *fakePage {
	t.Helper()
	doc, err := locator.ParseDocument(src)
	require.NoError(t, err)
	return &fakePage{doc: doc, loadCh: make(chan struct{}, 1)}
}

func (p *fakePage) Document(ctx context.Context) (locator.Document, error) {
	call := p.docCall
	p.docCall++
	if p.docFn != nil {
		return p.docFn(call)
	}
	if p.docErr != nil {
		return nil, p.docErr
	}
	return p.doc, nil
}

func (p *fakePage) Click(ctx context.Context, target *locator.Match, offset *engine.Offset) error {
	p.clicks = append(p.clicks, clickCall{match: target, offset: offset})
	return nil
}

func (p *fakePage) SetValue(ctx context.Context, target *locator.Match, value string) error {
	p.setValues = append(p.setValues, setValueCall{match: target, value: value})
	return nil
}

func (p *fakePage) Scroll(ctx context.Context, x, y float64) error {
	p.scrolled = true
	p.scrollX, p.scrollY = x, y
	return nil
}

func (p *fakePage) CaptureState(ctx context.Context, target *locator.Match) (*locator.ElementState, error) {
	return p.state, nil
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.navigated = append(p.navigated, url)
	return nil
}

func (p *fakePage) SnapshotHTML(ctx context.Context) (string, error) { return p.html, nil }

func (p *fakePage) LoadEvents() <-chan struct{} { return p.loadCh }

func fastConfig() engine.Config {
	return engine.Config{PollInterval: time.Millisecond, MaxAttempts: 3}
}

func descriptorFor(t *testing.T, src, selector string) *locator.Descriptor {
	t.Helper()
	doc, err := locator.ParseDocument(src)
	require.NoError(t, err)
	nodes, err := doc.QueryCSS(selector)
	require.NoError(t, err)
	require.NotEmpty(t, nodes)
	return locator.Build(nodes[0])
}

func TestRunStepClickDeliversOffset(t *testing.T) {
	src := `<html><body><button id="save">Save</button></body></html>`
	page := newFakePage(t, src)
	eng := engine.New(page, fastConfig(), nil)

	step := engine.Step{
		Action:  engine.ActionClick,
		Locator: descriptorFor(t, src, "#save"),
		Offset:  &engine.Offset{X: 12, Y: 7},
	}
	result := eng.RunStep(context.Background(), step)

	require.NoError(t, result.Err)
	assert.Equal(t, engine.StepCompleted, result.State)
	require.Len(t, page.clicks, 1)
	require.NotNil(t, page.clicks[0].offset)
	assert.Equal(t, 12.0, page.clicks[0].offset.X)
	assert.Equal(t, 7.0, page.clicks[0].offset.Y)
}

func TestRunStepInputRedirectsLabelToControl(t *testing.T) {
	src := `<html><body><label>Email<input type="email" name="email"></label></body></html>`
	page := newFakePage(t, src)
	eng := engine.New(page, fastConfig(), nil)

	step := engine.Step{
		Action:  engine.ActionInput,
		Locator: descriptorFor(t, src, "label"),
		Value:   "a@b.test",
	}
	result := eng.RunStep(context.Background(), step)

	require.NoError(t, result.Err)
	require.Len(t, page.setValues, 1)
	call := page.setValues[0]
	assert.Equal(t, "a@b.test", call.value)
	assert.Equal(t, "input", call.match.Node.Data)
}

func TestRunStepAssertTextRejectsContainment(t *testing.T) {
	src := `<html><body><span class="status">Not a Supplier Option</span></body></html>`
	page := newFakePage(t, src)
	eng := engine.New(page, fastConfig(), nil)

	step := engine.Step{
		Action:  engine.ActionAssertText,
		Locator: descriptorFor(t, src, "span.status"),
		Value:   "Supplier",
	}
	result := eng.RunStep(context.Background(), step)

	require.Error(t, result.Err)
	var aerr *engine.AssertionError
	require.ErrorAs(t, result.Err, &aerr)
	assert.Equal(t, "Supplier", aerr.Expected)
	assert.Equal(t, "Not a Supplier Option", aerr.Actual)
	assert.Equal(t, engine.StepFailed, result.State)
}

func TestRunStepAssertTextNormalizes(t *testing.T) {
	src := "<html><body><h1 id=\"title\">  Order\n   Confirmed </h1></body></html>"
	page := newFakePage(t, src)
	eng := engine.New(page, fastConfig(), nil)

	step := engine.Step{
		Action:  engine.ActionAssertText,
		Locator: descriptorFor(t, src, "#title"),
		Value:   "order confirmed",
	}
	result := eng.RunStep(context.Background(), step)

	assert.NoError(t, result.Err)
	assert.Equal(t, engine.StepCompleted, result.State)
}

func TestRunStepNotFoundAfterExhaustedAttempts(t *testing.T) {
	src := `<html><body><p>nothing clickable here</p></body></html>`
	page := newFakePage(t, src)
	eng := engine.New(page, fastConfig(), nil)

	step := engine.Step{
		Action: engine.ActionClick,
		Locator: &locator.Descriptor{
			Strategies: []locator.Strategy{{Kind: locator.KindID, Value: "missing"}},
			TagName:    "button",
		},
		SequenceIndex: 4,
	}
	result := eng.RunStep(context.Background(), step)

	require.Error(t, result.Err)
	assert.True(t, errors.Is(result.Err, locator.ErrNotFound))
	var nferr *engine.NotFoundError
	require.ErrorAs(t, result.Err, &nferr)
	assert.Equal(t, 4, nferr.StepIndex)
	assert.Empty(t, page.clicks)
}

func TestRunStepWaitsForLateElement(t *testing.T) {
	empty, err := locator.ParseDocument(`<html><body></body></html>`)
	require.NoError(t, err)
	src := `<html><body><button id="late">Continue</button></body></html>`
	full, err := locator.ParseDocument(src)
	require.NoError(t, err)

	page := newFakePage(t, src)
	page.docFn = func(call int) (locator.Document, error) {
		if call < 2 {
			return empty, nil
		}
		return full, nil
	}
	eng := engine.New(page, engine.Config{PollInterval: time.Millisecond, MaxAttempts: 5}, nil)

	step := engine.Step{Action: engine.ActionClick, Locator: descriptorFor(t, src, "#late")}
	result := eng.RunStep(context.Background(), step)

	require.NoError(t, result.Err)
	assert.Len(t, page.clicks, 1)
}

func TestRunStepCancelledContextReportsNotFound(t *testing.T) {
	page := newFakePage(t, `<html><body></body></html>`)
	eng := engine.New(page, engine.Config{PollInterval: 50 * time.Millisecond, MaxAttempts: 100}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	step := engine.Step{
		Action: engine.ActionClick,
		Locator: &locator.Descriptor{
			Strategies: []locator.Strategy{{Kind: locator.KindID, Value: "gone"}},
			TagName:    "button",
		},
	}
	result := eng.RunStep(ctx, step)

	assert.True(t, errors.Is(result.Err, locator.ErrNotFound))
}

func TestRunStepReportsNuancesWithoutFailing(t *testing.T) {
	src := `<html><body><button id="pay">Pay now</button></body></html>`
	page := newFakePage(t, src)
	recorded := locator.ElementState{
		Box:    locator.Rect{X: 10, Y: 10, Width: 80, Height: 24},
		Styles: map[string]string{"color": "rgb(0, 0, 0)"},
	}
	page.state = &locator.ElementState{
		Box:    locator.Rect{X: 200, Y: 10, Width: 80, Height: 24},
		Styles: map[string]string{"color": "rgb(255, 0, 0)"},
	}
	eng := engine.New(page, fastConfig(), nil)

	step := engine.Step{
		Action:   engine.ActionClick,
		Locator:  descriptorFor(t, src, "#pay"),
		Snapshot: &recorded,
	}
	result := eng.RunStep(context.Background(), step)

	require.NoError(t, result.Err)
	assert.Equal(t, engine.StepCompleted, result.State)
	assert.Len(t, result.Nuances, 2)
	assert.Len(t, page.clicks, 1)
}

func TestRunStepScrollDecodesCoordinates(t *testing.T) {
	page := newFakePage(t, `<html><body></body></html>`)
	eng := engine.New(page, fastConfig(), nil)

	step := engine.Step{Action: engine.ActionScroll, Value: `{"x":0,"y":850.5}`}
	result := eng.RunStep(context.Background(), step)

	require.NoError(t, result.Err)
	assert.True(t, page.scrolled)
	assert.Equal(t, 850.5, page.scrollY)
}

func TestRunStepScrollRejectsBadValue(t *testing.T) {
	page := newFakePage(t, `<html><body></body></html>`)
	eng := engine.New(page, fastConfig(), nil)

	result := eng.RunStep(context.Background(), engine.Step{Action: engine.ActionScroll, Value: "garbage"})

	var aerr *engine.ActionError
	require.ErrorAs(t, result.Err, &aerr)
	assert.Equal(t, engine.ActionScroll, aerr.Action)
}

func TestRunStepNavigate(t *testing.T) {
	page := newFakePage(t, `<html><body></body></html>`)
	eng := engine.New(page, fastConfig(), nil)

	result := eng.RunStep(context.Background(), engine.Step{Action: engine.ActionNavigate, Value: "https://shop.test/cart"})

	require.NoError(t, result.Err)
	assert.Equal(t, []string{"https://shop.test/cart"}, page.navigated)
}

func TestRunStepAssertExists(t *testing.T) {
	src := `<html><body><div class="banner" aria-label="Welcome"></div></body></html>`
	page := newFakePage(t, src)
	eng := engine.New(page, fastConfig(), nil)

	step := engine.Step{Action: engine.ActionAssertExists, Locator: descriptorFor(t, src, "div.banner")}
	result := eng.RunStep(context.Background(), step)

	assert.NoError(t, result.Err)
	assert.Equal(t, engine.StepCompleted, result.State)
	assert.Empty(t, page.clicks)
}
