package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"flowreplay/internal/browser"
	"flowreplay/internal/engine"
	"flowreplay/internal/locator"
)

// rawEvent is what the injected capture script buffers in the page.
type rawEvent struct {
	Type       string         `json:"type"`
	XPath      string         `json:"xpath"`
	ShadowPath []string       `json:"shadow_path"`
	Value      string         `json:"value"`
	Offset     *engine.Offset `json:"offset"`
	PageURL    string         `json:"page_url"`
	Timestamp  int64          `json:"timestamp"`
}

// Session is one live recording: a visible browser plus the draft step list
// built from the interactions observed in it.
type Session struct {
	ID       string
	StartURL string

	mu        sync.RWMutex
	steps     []engine.Step
	recording bool
	wsConn    *websocket.Conn

	browser *browser.Browser
	page    *browser.Page
	cancel  context.CancelFunc
	logger  *zap.Logger
}

// Manager owns the active recording sessions, keyed by generated session ID.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	opts     browser.Options
	logger   *zap.Logger
}

func NewManager(opts browser.Options, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	// Recording needs a window the user can interact with.
	opts.Headless = false
	return &Manager{
		sessions: make(map[string]*Session),
		opts:     opts,
		logger:   logger,
	}
}

// Start opens a browser on the start URL and begins capturing interactions.
func (m *Manager) Start(ctx context.Context, startURL string) (*Session, error) {
	b, err := browser.Launch(ctx, m.opts, m.logger)
	if err != nil {
		return nil, fmt.Errorf("start recording: %w", err)
	}

	sessCtx, cancel := context.WithCancel(ctx)
	id := uuid.New().String()
	s := &Session{
		ID:        id,
		StartURL:  startURL,
		recording: true,
		browser:   b,
		page:      b.Page(),
		cancel:    cancel,
		logger:    m.logger.With(zap.String("session_id", id)),
	}

	script := captureScript()
	err = chromedp.Run(b.Context(),
		chromedp.ActionFunc(func(cctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(script).Do(cctx)
			return err
		}),
		chromedp.Navigate(startURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(script, nil),
	)
	if err != nil {
		cancel()
		b.Close()
		return nil, fmt.Errorf("open recording page: %w", err)
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	go s.pollEvents(sessCtx)
	s.logger.Info("recording started", zap.String("url", startURL))
	return s, nil
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Stop ends capturing and returns the recorded draft. The session stays
// registered until Cleanup so the draft can still be fetched and saved.
func (m *Manager) Stop(id string) ([]engine.Step, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("recording session %s not found", id)
	}
	return s.stop(), nil
}

func (m *Manager) Cleanup(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.close()
	}
}

func (s *Session) stop() []engine.Step {
	s.mu.Lock()
	s.recording = false
	steps := append([]engine.Step(nil), s.steps...)
	s.mu.Unlock()
	s.cancel()
	engine.Resequence(steps)
	return steps
}

func (s *Session) close() {
	s.cancel()
	s.browser.Close()
	s.mu.Lock()
	if s.wsConn != nil {
		s.wsConn.Close()
		s.wsConn = nil
	}
	s.mu.Unlock()
}

func (s *Session) IsRecording() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recording
}

func (s *Session) Steps() []engine.Step {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]engine.Step(nil), s.steps...)
}

// SetWebSocket attaches a live stream; every captured step is forwarded to
// it as it is built.
func (s *Session) SetWebSocket(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wsConn = conn
}

// pollEvents drains the in-page buffer on a short ticker, the recording
// platform's collection pattern. A navigation wipes the injected script's
// state; AddScriptToEvaluateOnNewDocument restores it, so a failed drain is
// retried on the next tick.
func (s *Session) pollEvents(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.IsRecording() {
				return
			}
			var raws []rawEvent
			err := chromedp.Run(s.browser.Context(),
				chromedp.Evaluate(`window.__flowRecorder ? window.__flowRecorder.drain() : []`, &raws),
			)
			if err != nil {
				s.logger.Debug("drain recording events failed", zap.Error(err))
				continue
			}
			for _, raw := range raws {
				step, err := s.convert(ctx, raw)
				if err != nil {
					s.logger.Warn("drop unconvertible event",
						zap.String("type", raw.Type), zap.Error(err))
					continue
				}
				s.append(*step)
			}
		}
	}
}

// convert turns a raw page event into a replayable step: look the element up
// in a fresh offline snapshot, build its descriptor set, and capture its
// live state for later drift detection.
func (s *Session) convert(ctx context.Context, raw rawEvent) (*engine.Step, error) {
	switch raw.Type {
	case "scroll":
		return &engine.Step{
			Action:  engine.ActionScroll,
			Value:   raw.Value,
			PageURL: raw.PageURL,
		}, nil
	case "click", "input":
	default:
		return nil, fmt.Errorf("unknown event type %q", raw.Type)
	}

	doc, err := s.page.Document(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot page: %w", err)
	}
	node, err := s.lookup(doc, raw)
	if err != nil {
		return nil, err
	}

	step := &engine.Step{
		Locator: locator.Build(node),
		PageURL: raw.PageURL,
	}
	switch raw.Type {
	case "click":
		step.Action = engine.ActionClick
		step.Offset = raw.Offset
	case "input":
		step.Action = engine.ActionInput
		step.Value = raw.Value
	}

	match := &locator.Match{Node: node, XPath: s.liveXPath(raw), ShadowPath: raw.ShadowPath}
	if state, err := s.page.CaptureState(ctx, match); err == nil {
		step.Snapshot = state
	}
	return step, nil
}

// liveXPath maps the raw event path onto the offline wrapper scheme: shadow
// fragments parse under html/body, so shadow-relative paths get that prefix.
func (s *Session) liveXPath(raw rawEvent) string {
	if len(raw.ShadowPath) == 0 {
		return raw.XPath
	}
	return "/html[1]/body[1]" + raw.XPath
}

func (s *Session) lookup(doc locator.Document, raw rawEvent) (*html.Node, error) {
	scope := doc
	for _, host := range raw.ShadowPath {
		var next locator.Document
		for _, sr := range scope.ShadowRoots() {
			if sr.Host == host {
				next = sr.Doc
				break
			}
		}
		if next == nil {
			return nil, fmt.Errorf("shadow host %s not in snapshot", host)
		}
		scope = next
	}
	nodes, err := scope.QueryXPath(s.liveXPath(raw))
	if err != nil {
		return nil, fmt.Errorf("look up recorded element: %w", err)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("recorded element %s not in snapshot", raw.XPath)
	}
	return nodes[0], nil
}

// append adds a step to the draft, collapsing bursts: repeated input on the
// same element keeps only the final value, scroll sequences keep only the
// last position.
func (s *Session) append(step engine.Step) {
	s.mu.Lock()
	if n := len(s.steps); n > 0 {
		last := &s.steps[n-1]
		switch {
		case step.Action == engine.ActionInput && last.Action == engine.ActionInput &&
			reflect.DeepEqual(last.Locator, step.Locator):
			last.Value = step.Value
			last.Snapshot = step.Snapshot
			s.mu.Unlock()
			s.forward(*last)
			return
		case step.Action == engine.ActionScroll && last.Action == engine.ActionScroll &&
			last.PageURL == step.PageURL:
			last.Value = step.Value
			s.mu.Unlock()
			s.forward(*last)
			return
		}
	}
	step.SequenceIndex = len(s.steps)
	s.steps = append(s.steps, step)
	s.mu.Unlock()
	s.forward(step)
}

func (s *Session) forward(step engine.Step) {
	s.mu.RLock()
	conn := s.wsConn
	s.mu.RUnlock()
	if conn == nil {
		return
	}
	data, err := json.Marshal(step)
	if err != nil {
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Debug("websocket forward failed", zap.Error(err))
	}
}
