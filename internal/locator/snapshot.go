package locator

import (
	"fmt"
	"math"
)

// Tracked computed-style properties and attributes, in comparison order.
// The order is part of the contract: nuance lists must be deterministic.
var (
	TrackedStyles = []string{
		"color", "background-color", "font-size", "font-weight",
		"display", "visibility", "opacity",
	}
	TrackedAttributes = []string{"aria-label", "title", "placeholder", "name"}
)

const (
	positionNuanceThreshold = 20.0 // px of Euclidean displacement
	sizeNuanceThreshold     = 10.0 // px of width or height delta
)

// Rect is a viewport-relative bounding box, rounded to integer pixels.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ElementState is a structural/visual fingerprint of an element captured at
// record time and compared at replay time. Value type, compared structurally.
type ElementState struct {
	Box    Rect              `json:"box"`
	Styles map[string]string `json:"styles,omitempty"`
	Attrs  map[string]string `json:"attrs,omitempty"`
	Text   string            `json:"text,omitempty"`
}

// CompareStates diffs a recorded state against the replay-time state and
// returns one human-readable nuance per detected drift. The output order is
// fixed: position, size, styles, attributes, text.
func CompareStates(old, current ElementState) []string {
	var nuances []string

	dx := float64(current.Box.X - old.Box.X)
	dy := float64(current.Box.Y - old.Box.Y)
	if math.Hypot(dx, dy) > positionNuanceThreshold {
		nuances = append(nuances, fmt.Sprintf(
			"Element position changed: (%d,%d) -> (%d,%d)",
			old.Box.X, old.Box.Y, current.Box.X, current.Box.Y))
	}

	dw := math.Abs(float64(current.Box.Width - old.Box.Width))
	dh := math.Abs(float64(current.Box.Height - old.Box.Height))
	if dw > sizeNuanceThreshold || dh > sizeNuanceThreshold {
		nuances = append(nuances, fmt.Sprintf(
			"Element size changed: %dx%d -> %dx%d",
			old.Box.Width, old.Box.Height, current.Box.Width, current.Box.Height))
	}

	for _, prop := range TrackedStyles {
		oldVal, newVal := old.Styles[prop], current.Styles[prop]
		if oldVal != newVal {
			nuances = append(nuances, fmt.Sprintf(
				"Style %q changed: %s -> %s", prop, oldVal, newVal))
		}
	}

	for _, name := range TrackedAttributes {
		oldVal, newVal := old.Attrs[name], current.Attrs[name]
		if oldVal != newVal {
			nuances = append(nuances, fmt.Sprintf(
				"Attribute %q changed: %s -> %s", name, oldVal, newVal))
		}
	}

	if NormalizeText(old.Text) != NormalizeText(current.Text) {
		nuances = append(nuances, fmt.Sprintf(
			"Visible text changed: %q -> %q", old.Text, current.Text))
	}

	return nuances
}
