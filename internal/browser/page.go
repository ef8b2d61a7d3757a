package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"golang.org/x/net/html"

	"flowreplay/internal/engine"
	"flowreplay/internal/locator"
)

// Page adapts one live execution context, the main document or a
// same-origin frame, to the engine's host-context interface. All element
// work happens in evaluated page script addressed by the structural paths
// the resolver produced offline.
type Page struct {
	ctx       context.Context
	framePath []int
	settle    time.Duration
	loads     chan struct{}
}

func newPage(ctx context.Context, framePath []int, settle time.Duration) *Page {
	p := &Page{
		ctx:       ctx,
		framePath: framePath,
		settle:    settle,
		loads:     make(chan struct{}, 8),
	}
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		if _, ok := ev.(*page.EventLoadEventFired); ok {
			select {
			case p.loads <- struct{}{}:
			default:
			}
		}
	})
	return p
}

// wrapExpr builds a self-contained IIFE: helper library, frame-local
// document lookup, then the call with `doc` in scope.
func wrapExpr(framePath []int, call string) string {
	if framePath == nil {
		framePath = []int{}
	}
	fp, _ := json.Marshal(framePath)
	return fmt.Sprintf("(function() {%s\nvar doc = frDoc(%s);\nreturn %s;\n})()",
		jsHelpers, fp, call)
}

func jsArg(v interface{}) string {
	data, _ := json.Marshal(v)
	return string(data)
}

// resolveCall renders the element lookup for a match as a JS expression.
func resolveCall(target *locator.Match) string {
	return fmt.Sprintf("frResolve(doc, %s, %s)", jsArg(target.ShadowPath), jsArg(target.XPath))
}

func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return chromedp.Run(p.ctx, actions...)
}

type domSnapshot struct {
	HTML    string   `json:"html"`
	Hidden  []string `json:"hidden"`
	Shadows []struct {
		Host string `json:"host"`
		HTML string `json:"html"`
	} `json:"shadows"`
}

// Document serializes the live DOM, open shadow roots included, into the
// offline document the resolver works on. Elements the browser reports as
// not rendered are excluded from visibility there.
func (p *Page) Document(ctx context.Context) (locator.Document, error) {
	var raw string
	if err := p.run(ctx, chromedp.Evaluate(wrapExpr(p.framePath, "frSnapshot(doc)"), &raw)); err != nil {
		return nil, fmt.Errorf("snapshot dom: %w", err)
	}
	var snap domSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("decode dom snapshot: %w", err)
	}

	doc, err := locator.ParseDocument(snap.HTML)
	if err != nil {
		return nil, fmt.Errorf("parse dom snapshot: %w", err)
	}
	if len(snap.Hidden) > 0 {
		hidden := make(map[string]struct{}, len(snap.Hidden))
		for _, xp := range snap.Hidden {
			hidden[xp] = struct{}{}
		}
		doc.SetVisibleFunc(func(n *html.Node) bool {
			_, ok := hidden[locator.AbsoluteXPath(n)]
			return !ok
		})
	}
	for _, s := range snap.Shadows {
		sdoc, err := locator.ParseDocument(s.HTML)
		if err != nil {
			continue
		}
		doc.AttachShadow(s.Host, sdoc)
	}
	return doc, nil
}

// Click re-addresses the element and fires the recorded pointer sequence,
// at the recorded in-element offset when one was captured.
func (p *Page) Click(ctx context.Context, target *locator.Match, offset *engine.Offset) error {
	var x, y float64
	hasOffset := offset != nil
	if hasOffset {
		x, y = offset.X, offset.Y
	}
	call := fmt.Sprintf(
		"(function(el) { if (!el) return false; frClick(el, %s, %s, %s); return true; })(%s)",
		jsArg(x), jsArg(y), jsArg(hasOffset), resolveCall(target))

	var ok bool
	if err := p.run(ctx,
		chromedp.Evaluate(wrapExpr(p.framePath, call), &ok),
		chromedp.Sleep(p.settle),
	); err != nil {
		return fmt.Errorf("click: %w", err)
	}
	if !ok {
		return fmt.Errorf("click: element no longer addressable")
	}
	return nil
}

// SetValue writes through the native value setter and fires the event
// sequence framework change-detection listens for.
func (p *Page) SetValue(ctx context.Context, target *locator.Match, value string) error {
	call := fmt.Sprintf(
		"(function(el) { if (!el) return false; frSetValue(el, %s); return true; })(%s)",
		jsArg(value), resolveCall(target))

	var ok bool
	if err := p.run(ctx,
		chromedp.Evaluate(wrapExpr(p.framePath, call), &ok),
		chromedp.Sleep(p.settle),
	); err != nil {
		return fmt.Errorf("set value: %w", err)
	}
	if !ok {
		return fmt.Errorf("set value: element no longer addressable")
	}
	return nil
}

func (p *Page) Scroll(ctx context.Context, x, y float64) error {
	call := fmt.Sprintf("(function() { doc.defaultView.scrollTo(%s, %s); return true; })()",
		jsArg(x), jsArg(y))
	if err := p.run(ctx,
		chromedp.Evaluate(wrapExpr(p.framePath, call), nil),
		chromedp.Sleep(p.settle),
	); err != nil {
		return fmt.Errorf("scroll: %w", err)
	}
	return nil
}

// CaptureState reads the live bounding box, tracked computed styles, tracked
// attributes and visible text for drift comparison.
func (p *Page) CaptureState(ctx context.Context, target *locator.Match) (*locator.ElementState, error) {
	call := fmt.Sprintf(
		"(function(el) { return el ? frCaptureState(el, %s, %s) : ''; })(%s)",
		jsArg(locator.TrackedStyles), jsArg(locator.TrackedAttributes), resolveCall(target))

	var raw string
	if err := p.run(ctx, chromedp.Evaluate(wrapExpr(p.framePath, call), &raw)); err != nil {
		return nil, fmt.Errorf("capture state: %w", err)
	}
	if raw == "" {
		return nil, fmt.Errorf("capture state: element no longer addressable")
	}
	var state locator.ElementState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("decode element state: %w", err)
	}
	return &state, nil
}

// Navigate loads a URL in the top-level document. Frame contexts delegate to
// the top document too: a recorded navigation always replaces the page.
func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// SnapshotHTML serializes the current page for failure reports.
func (p *Page) SnapshotHTML(ctx context.Context) (string, error) {
	var markup string
	if err := p.run(ctx, chromedp.OuterHTML("html", &markup, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("snapshot html: %w", err)
	}
	return markup, nil
}

func (p *Page) LoadEvents() <-chan struct{} { return p.loads }
