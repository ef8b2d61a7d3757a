package engine

import (
	"encoding/json"
	"fmt"

	"flowreplay/internal/locator"
)

// Action is the kind of user interaction a recorded step replays.
type Action string

const (
	ActionClick        Action = "click"
	ActionInput        Action = "input"
	ActionScroll       Action = "scroll"
	ActionAssertExists Action = "assertExists"
	ActionAssertText   Action = "assertText"
	ActionNavigate     Action = "navigate"
)

// Step is one recorded user action. Append-only during recording, editable
// while still a draft, immutable once persisted, re-hydrated unchanged for
// replay.
type Step struct {
	Action Action `json:"action"`
	// Locator is absent for scroll and navigate steps.
	Locator *locator.Descriptor `json:"locator,omitempty"`
	// Value carries input text, the navigation URL, or JSON-encoded scroll
	// coordinates depending on the action.
	Value string `json:"value,omitempty"`
	// Offset is the recorded click point relative to the element's bounding
	// box, used for precise pointer-event coordinates.
	Offset *Offset `json:"offset,omitempty"`
	// Snapshot is the element state captured at record time, used only for
	// nuance detection.
	Snapshot *locator.ElementState `json:"state_snapshot,omitempty"`
	PageURL  string                `json:"page_url,omitempty"`
	// SequenceIndex is the position within the flow; the collection is
	// resequenced on every mutation so there are never gaps.
	SequenceIndex int `json:"sequence_index"`
}

// ScrollTarget is the decoded value of a scroll step.
type ScrollTarget struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Offset is a click point relative to the element's bounding box.
type Offset struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ParseSteps decodes the persisted JSON step array of a flow.
func ParseSteps(raw string) ([]Step, error) {
	if raw == "" {
		return nil, nil
	}
	var steps []Step
	if err := json.Unmarshal([]byte(raw), &steps); err != nil {
		return nil, fmt.Errorf("parse steps: %w", err)
	}
	return steps, nil
}

// EncodeSteps serializes steps for persistence, resequencing first so the
// stored order is always gap-free.
func EncodeSteps(steps []Step) (string, error) {
	Resequence(steps)
	data, err := json.Marshal(steps)
	if err != nil {
		return "", fmt.Errorf("encode steps: %w", err)
	}
	return string(data), nil
}

// Resequence rewrites the sequence indices after any mutation of a draft
// step list.
func Resequence(steps []Step) {
	for i := range steps {
		steps[i].SequenceIndex = i
	}
}

func (s *Step) scrollTarget() (ScrollTarget, error) {
	var target ScrollTarget
	if err := json.Unmarshal([]byte(s.Value), &target); err != nil {
		return target, fmt.Errorf("decode scroll coordinates %q: %w", s.Value, err)
	}
	return target, nil
}

// Description renders the step for logs and failure reports.
func (s *Step) Description() string {
	switch s.Action {
	case ActionClick:
		return fmt.Sprintf("click %s", s.locatorLabel())
	case ActionInput:
		return fmt.Sprintf("input into %s", s.locatorLabel())
	case ActionScroll:
		return "scroll"
	case ActionAssertExists:
		return fmt.Sprintf("assert %s exists", s.locatorLabel())
	case ActionAssertText:
		return fmt.Sprintf("assert %s has text %q", s.locatorLabel(), s.Value)
	case ActionNavigate:
		return fmt.Sprintf("navigate to %s", s.Value)
	}
	return string(s.Action)
}

func (s *Step) locatorLabel() string {
	if s.Locator == nil {
		return "element"
	}
	if s.Locator.Text != "" {
		return fmt.Sprintf("%q", s.Locator.Text)
	}
	if len(s.Locator.Strategies) > 0 {
		return fmt.Sprintf("%q", s.Locator.Strategies[0].Value)
	}
	if s.Locator.Legacy != "" {
		return fmt.Sprintf("%q", s.Locator.Legacy)
	}
	return "element"
}
