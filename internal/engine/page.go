package engine

import (
	"context"

	"flowreplay/internal/locator"
)

// Page is the Host Execution Context API: everything the step engine needs
// from one document/frame. The chromedp adapter in internal/browser is the
// production implementation; tests use in-memory fakes.
type Page interface {
	// Document returns the current DOM of this context, including attached
	// open shadow roots, for the resolver to work against.
	Document(ctx context.Context) (locator.Document, error)

	// Click dispatches the full pointer/mouse event sequence on the matched
	// element, using the recorded offset within its bounding box when given,
	// the element center otherwise.
	Click(ctx context.Context, target *locator.Match, offset *Offset) error

	// SetValue writes text into a form control through its native value
	// setter and fires the framework-compatibility event sequence. Checkbox
	// and radio inputs toggle their checked state instead.
	SetValue(ctx context.Context, target *locator.Match, value string) error

	// Scroll smoothly scrolls the context to the absolute coordinates.
	Scroll(ctx context.Context, x, y float64) error

	// CaptureState takes a live element-state snapshot for drift comparison.
	CaptureState(ctx context.Context, target *locator.Match) (*locator.ElementState, error)

	// Navigate loads a URL in this context.
	Navigate(ctx context.Context, url string) error

	// SnapshotHTML serializes the current page for failure diagnostics.
	SnapshotHTML(ctx context.Context) (string, error)

	// LoadEvents signals every completed full page load in this context.
	// The runner uses it for navigation suspension and for the unexpected
	// reload heuristic.
	LoadEvents() <-chan struct{}
}
