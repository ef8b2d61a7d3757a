package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"flowreplay/internal/engine"
	"flowreplay/pkg/chrome"
)

// Options controls the launched browser instance.
type Options struct {
	Headless   bool
	ChromePath string
	Width      int
	Height     int
	// SettleDelay is inserted after scroll-into-view before events fire.
	SettleDelay time.Duration
}

// Browser owns one Chrome instance and its root target. Close releases both.
type Browser struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	ctxCancel   context.CancelFunc
	opts        Options
	logger      *zap.Logger
}

// Launch starts Chrome with the replay flag set: automation hints disabled,
// web security relaxed so same-origin frame documents stay reachable, and
// background throttling off so timers in backgrounded pages keep firing.
func Launch(parent context.Context, opts Options, logger *zap.Logger) (*Browser, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Width == 0 {
		opts.Width = 1920
	}
	if opts.Height == 0 {
		opts.Height = 1080
	}
	if opts.SettleDelay == 0 {
		opts.SettleDelay = 200 * time.Millisecond
	}
	if opts.ChromePath == "" {
		opts.ChromePath = chrome.FindExecutable()
	}

	execOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-web-security", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.Flag("allow-running-insecure-content", true),
		chromedp.Flag("excludeSwitches", "enable-automation"),
		chromedp.Flag("useAutomationExtension", false),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("force-device-scale-factor", "1"),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-component-update", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("no-pings", true),
		chromedp.WindowSize(opts.Width, opts.Height),
	)
	if opts.ChromePath != "" {
		execOpts = append(execOpts, chromedp.ExecPath(opts.ChromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, execOpts...)
	ctx, ctxCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}))

	// Force the browser process to start now so launch failures surface
	// here, not on the first step.
	if err := chromedp.Run(ctx); err != nil {
		ctxCancel()
		allocCancel()
		return nil, fmt.Errorf("launch chrome: %w", err)
	}
	logger.Info("browser launched",
		zap.Bool("headless", opts.Headless), zap.String("path", opts.ChromePath))

	return &Browser{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		ctx:         ctx,
		ctxCancel:   ctxCancel,
		opts:        opts,
		logger:      logger,
	}, nil
}

// Context exposes the tab's chromedp context for callers that need to run
// their own actions against it.
func (b *Browser) Context() context.Context { return b.ctx }

// Page returns the root execution context of the main tab.
func (b *Browser) Page() *Page {
	return newPage(b.ctx, nil, b.opts.SettleDelay)
}

// Pages returns the root context plus one context per reachable same-origin
// frame, in frame-tree order. Cross-origin frames are skipped.
func (b *Browser) Pages(ctx context.Context) ([]engine.Page, error) {
	root := b.Page()
	pages := []engine.Page{root}

	var count int
	expr := wrapExpr(nil, "frFrameCount(doc)")
	if err := chromedp.Run(b.ctx, chromedp.Evaluate(expr, &count)); err != nil {
		return pages, fmt.Errorf("enumerate frames: %w", err)
	}
	for i := 0; i < count; i++ {
		pages = append(pages, newPage(b.ctx, []int{i}, b.opts.SettleDelay))
	}
	return pages, nil
}

// Close tears down the tab and the browser process.
func (b *Browser) Close() {
	b.ctxCancel()
	b.allocCancel()
}
