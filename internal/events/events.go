package events

import (
	"sync"
	"time"
)

// Type identifies the replay lifecycle moments published on the bus.
type Type string

const (
	TypeStepStarted    Type = "step_started"
	TypeStepCompleted  Type = "step_completed"
	TypeStepFailed     Type = "step_failed"
	TypeNuanceDetected Type = "nuance_detected"
	TypeRunSuspended   Type = "run_suspended"
	TypeRunFinished    Type = "run_finished"
)

// Event is a progress notification from a running replay. The websocket
// handler forwards these verbatim to connected clients.
type Event struct {
	Type        Type      `json:"type"`
	FlowID      uint      `json:"flow_id"`
	ExecutionID uint      `json:"execution_id,omitempty"`
	StepIndex   int       `json:"step_index"`
	Message     string    `json:"message,omitempty"`
	Status      string    `json:"status,omitempty"`
	Time        time.Time `json:"time"`
}

// Publisher is the write side of the bus. Runners only publish.
type Publisher interface {
	Publish(Event)
}

// NopPublisher discards events; useful default for tests and one-off runs.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}

// Bus fans events out to subscribers. Slow subscribers lose events rather
// than blocking the runner.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

func NewBus() *Bus {
	return &Bus{subs: make(map[chan Event]struct{})}
}

func (b *Bus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe registers a buffered listener. The returned cancel func must be
// called to release it; the channel is closed afterward.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}
