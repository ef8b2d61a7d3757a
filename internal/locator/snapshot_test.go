package locator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowreplay/internal/locator"
)

func baseState() locator.ElementState {
	return locator.ElementState{
		Box: locator.Rect{X: 100, Y: 200, Width: 80, Height: 32},
		Styles: map[string]string{
			"color":            "rgb(0, 0, 0)",
			"background-color": "rgb(255, 255, 255)",
			"font-size":        "14px",
			"font-weight":      "400",
			"display":          "block",
			"visibility":       "visible",
			"opacity":          "1",
		},
		Attrs: map[string]string{"aria-label": "Save", "title": "", "placeholder": "", "name": "save"},
		Text:  "Save",
	}
}

func TestCompareStatesIdentical(t *testing.T) {
	old := baseState()
	assert.Empty(t, locator.CompareStates(old, baseState()))
}

func TestCompareStatesSingleStyleChange(t *testing.T) {
	old := baseState()
	current := baseState()
	current.Styles["color"] = "rgb(255, 0, 0)"

	nuances := locator.CompareStates(old, current)
	require.Len(t, nuances, 1)
	assert.Equal(t, `Style "color" changed: rgb(0, 0, 0) -> rgb(255, 0, 0)`, nuances[0])
}

func TestCompareStatesThresholds(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*locator.ElementState)
		nuances int
	}{
		{"displacement below threshold", func(s *locator.ElementState) { s.Box.X += 10; s.Box.Y += 10 }, 0},
		{"displacement at threshold stays quiet", func(s *locator.ElementState) { s.Box.X += 20 }, 0},
		{"diagonal displacement above threshold", func(s *locator.ElementState) { s.Box.X += 15; s.Box.Y += 15 }, 1},
		{"size below threshold", func(s *locator.ElementState) { s.Box.Width += 10 }, 0},
		{"size above threshold", func(s *locator.ElementState) { s.Box.Height += 11 }, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current := baseState()
			tt.mutate(&current)
			assert.Len(t, locator.CompareStates(baseState(), current), tt.nuances)
		})
	}
}

func TestCompareStatesOrdering(t *testing.T) {
	old := baseState()
	current := baseState()
	current.Box.X += 100
	current.Box.Width += 40
	current.Styles["color"] = "red"
	current.Styles["opacity"] = "0.5"
	current.Attrs["title"] = "changed"
	current.Text = "Saved"

	nuances := locator.CompareStates(old, current)
	require.Len(t, nuances, 6)
	assert.Contains(t, nuances[0], "position")
	assert.Contains(t, nuances[1], "size")
	assert.Contains(t, nuances[2], `Style "color"`)
	assert.Contains(t, nuances[3], `Style "opacity"`)
	assert.Contains(t, nuances[4], `Attribute "title"`)
	assert.Contains(t, nuances[5], "text")
}
