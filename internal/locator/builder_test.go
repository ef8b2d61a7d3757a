package locator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowreplay/internal/locator"
)

func strategyKinds(d *locator.Descriptor) []locator.Kind {
	kinds := make([]locator.Kind, 0, len(d.Strategies))
	for _, s := range d.Strategies {
		kinds = append(kinds, s.Kind)
	}
	return kinds
}

func TestBuildPositionalStrategiesDemoted(t *testing.T) {
	src := `<div class="toolbar">
		<button data-testid="login-btn">Log in</button>
		<button>Cancel</button>
	</div>`
	_, node := mustQueryOne(t, src, `[data-testid="login-btn"]`)

	d := locator.Build(node)
	require.NotNil(t, d)
	require.NotEmpty(t, d.Strategies)

	assert.Equal(t, locator.KindTestAttr, d.Strategies[0].Kind)
	assert.Equal(t, "login-btn", d.Strategies[0].Value)

	// No positional strategy may appear before a non-positional one.
	seenPositional := false
	for _, s := range d.Strategies {
		positional := locator.HasPositionalQualifier(s.Value)
		if seenPositional {
			assert.True(t, positional,
				"non-positional strategy %s %q ordered after a positional one", s.Kind, s.Value)
		}
		seenPositional = seenPositional || positional
	}
	assert.True(t, seenPositional, "expected at least the absolute XPath to be positional")
}

func TestBuildWorstCaseStillYieldsStrategy(t *testing.T) {
	// Anonymous div with nothing stable about it at all.
	src := `<div><div><div></div><div></div></div></div>`
	_, node := mustQueryOne(t, src, "body > div > div > div:nth-child(2)")

	d := locator.Build(node)
	require.NotNil(t, d)
	require.NotEmpty(t, d.Strategies, "descriptor must never be empty")

	last := d.Strategies[len(d.Strategies)-1]
	assert.Equal(t, locator.KindXPath, last.Kind)
	assert.Regexp(t, `^/html\[1\]/body\[1\]`, last.Value)
}

func TestBuildSkipsDynamicValues(t *testing.T) {
	src := `<input id="tfid-42" name="email" data-testid="f-1a2b3c4d5e" placeholder="Email">`
	_, node := mustQueryOne(t, src, "input")

	d := locator.Build(node)
	require.NotNil(t, d)

	for _, s := range d.Strategies {
		assert.NotEqual(t, locator.KindID, s.Kind, "dynamic id must not become a strategy")
		assert.NotEqual(t, locator.KindTestAttr, s.Kind, "dynamic test attribute must not become a strategy")
	}

	kinds := strategyKinds(d)
	assert.Contains(t, kinds, locator.KindName)
	assert.Contains(t, kinds, locator.KindPlaceholder)
	assert.Equal(t, locator.KindName, d.Strategies[0].Kind, "name outranks placeholder")
}

func TestBuildScopedPathAnchorsOnStableAncestor(t *testing.T) {
	src := `<div id="checkout"><div class="row"><span class="price">Total</span></div></div>`
	_, node := mustQueryOne(t, src, "span.price")

	d := locator.Build(node)
	require.NotNil(t, d)

	var scoped string
	for _, s := range d.Strategies {
		if s.Kind == locator.KindCSS {
			scoped = s.Value
		}
	}
	require.NotEmpty(t, scoped)
	assert.Equal(t, "#checkout > div.row > span.price", scoped)
}

func TestBuildTextXPathGuards(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		selector string
		want     bool
	}{
		{"short text emits strategy", `<button>Save draft</button>`, "button", true},
		{"single quote suppresses", `<button>Don't save</button>`, "button", false},
		{"icon token suppresses", `<span>chevron_right</span>`, "span", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, node := mustQueryOne(t, tt.src, tt.selector)
			d := locator.Build(node)
			require.NotNil(t, d)
			has := false
			for _, s := range d.Strategies {
				if s.Kind == locator.KindTextXPath {
					has = true
				}
			}
			assert.Equal(t, tt.want, has)
		})
	}
}

func TestBuildTextXPathExactHalfUsesDirectText(t *testing.T) {
	textXPathOf := func(d *locator.Descriptor) string {
		for _, s := range d.Strategies {
			if s.Kind == locator.KindTextXPath {
				return s.Value
			}
		}
		return ""
	}

	_, direct := mustQueryOne(t, `<button>Save draft</button>`, "button")
	d := locator.Build(direct)
	require.NotNil(t, d)
	assert.Equal(t,
		"//button[normalize-space(text())='Save draft'] | //button[contains(normalize-space(.),'Save draft')]",
		textXPathOf(d))

	// Text rendered through a child span never matches text(); only the
	// containment half applies.
	_, wrapped := mustQueryOne(t, `<button><span>Save draft</span></button>`, "button")
	d = locator.Build(wrapped)
	require.NotNil(t, d)
	assert.Equal(t, "//button[contains(normalize-space(.),'Save draft')]", textXPathOf(d))
}

func TestBuildDescriptorMetadata(t *testing.T) {
	_, node := mustQueryOne(t, `<button aria-label="Submit order">Go</button>`, "button")
	d := locator.Build(node)
	require.NotNil(t, d)
	assert.Equal(t, "button", d.TagName)
	assert.Equal(t, "Submit order", d.Text)
}
