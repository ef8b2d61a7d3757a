package locator_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"flowreplay/internal/locator"
)

func TestResolveByTestAttribute(t *testing.T) {
	doc, want := mustQueryOne(t,
		`<button data-testid="login-btn">Log in</button>`, "button")

	d := &locator.Descriptor{
		Strategies: []locator.Strategy{{Kind: locator.KindTestAttr, Value: "login-btn"}},
	}

	m, err := locator.Resolve(d, doc)
	require.NoError(t, err)
	assert.Same(t, want, m.Node)
	assert.Empty(t, m.ShadowPath)
	assert.NotEmpty(t, m.XPath)
}

func TestResolveIsIdempotent(t *testing.T) {
	doc, _ := mustQueryOne(t,
		`<div><button id="save">Save</button><button id="cancel">Cancel</button></div>`,
		"#save")

	d := &locator.Descriptor{
		Strategies: []locator.Strategy{{Kind: locator.KindID, Value: "save"}},
	}

	first, err := locator.Resolve(d, doc)
	require.NoError(t, err)
	second, err := locator.Resolve(d, doc)
	require.NoError(t, err)
	assert.Same(t, first.Node, second.Node)
	assert.Equal(t, first.XPath, second.XPath)
}

func TestResolveStrategyOrderWins(t *testing.T) {
	doc, err := locator.ParseDocument(`
		<button data-testid="primary">First</button>
		<button id="fallback">Second</button>`)
	require.NoError(t, err)

	d := &locator.Descriptor{
		Strategies: []locator.Strategy{
			{Kind: locator.KindTestAttr, Value: "primary"},
			{Kind: locator.KindID, Value: "fallback"},
		},
	}

	m, err := locator.Resolve(d, doc)
	require.NoError(t, err)
	assert.Equal(t, "First", locator.NodeText(m.Node))
}

func TestResolveSkipsBrokenStrategies(t *testing.T) {
	doc, want := mustQueryOne(t, `<button id="go">Go</button>`, "button")

	d := &locator.Descriptor{
		Strategies: []locator.Strategy{
			{Kind: locator.KindCSS, Value: ":::not a selector:::"},
			{Kind: locator.KindXPath, Value: "///[[["},
			{Kind: locator.KindID, Value: "go"},
		},
	}

	m, err := locator.Resolve(d, doc)
	require.NoError(t, err)
	assert.Same(t, want, m.Node)
}

func TestResolveSkipsInvisibleMatches(t *testing.T) {
	doc, err := locator.ParseDocument(`
		<button class="cta" style="display:none">Buy</button>
		<button class="cta">Buy</button>`)
	require.NoError(t, err)

	d := &locator.Descriptor{
		Strategies: []locator.Strategy{{Kind: locator.KindCSS, Value: "button.cta"}},
	}

	m, err := locator.Resolve(d, doc)
	require.NoError(t, err)
	assert.Equal(t, "", attrValue(m.Node, "style"))
}

func TestResolveToggleInputVisibilityExemption(t *testing.T) {
	// Checkboxes are routinely hidden behind custom styling but stay
	// interactive; resolution must not treat them as invisible.
	doc, want := mustQueryOne(t,
		`<input type="checkbox" id="agree" style="opacity:0;width:0">`, "input")

	d := &locator.Descriptor{
		Strategies: []locator.Strategy{{Kind: locator.KindID, Value: "agree"}},
	}

	m, err := locator.Resolve(d, doc)
	require.NoError(t, err)
	assert.Same(t, want, m.Node)
}

func TestResolveLegacySelectorFallback(t *testing.T) {
	doc, want := mustQueryOne(t, `<button class="old-style">Run</button>`, "button")

	d := &locator.Descriptor{
		Strategies: []locator.Strategy{{Kind: locator.KindID, Value: "missing"}},
		Legacy:     "button.old-style",
	}

	m, err := locator.Resolve(d, doc)
	require.NoError(t, err)
	assert.Same(t, want, m.Node)
}

func TestResolveFuzzyTextFallback(t *testing.T) {
	doc, want := mustQueryOne(t, `<button class="tfid-x1">  Sign   up </button>`, "button")

	d := &locator.Descriptor{
		Strategies: []locator.Strategy{{Kind: locator.KindCSS, Value: "#gone"}},
		Text:       "Sign up",
		TagName:    "button",
	}

	m, err := locator.Resolve(d, doc)
	require.NoError(t, err)
	assert.Same(t, want, m.Node)
}

func TestResolveFuzzyPrefersExactOverContainment(t *testing.T) {
	doc, err := locator.ParseDocument(`
		<button>Save and continue</button>
		<button>Save</button>`)
	require.NoError(t, err)

	d := &locator.Descriptor{Text: "Save", TagName: "button"}

	m, err := locator.Resolve(d, doc)
	require.NoError(t, err)
	assert.Equal(t, "Save", locator.NodeText(m.Node))
}

func TestResolveRecursesIntoShadowRoots(t *testing.T) {
	doc, err := locator.ParseDocument(`<div id="host"></div>`)
	require.NoError(t, err)
	shadow, inner := mustQueryOne(t, `<button id="inner">Deep</button>`, "button")

	hostNodes, err := doc.QueryCSS("#host")
	require.NoError(t, err)
	hostPath := locator.AbsoluteXPath(hostNodes[0])
	doc.AttachShadow(hostPath, shadow)

	d := &locator.Descriptor{
		Strategies: []locator.Strategy{{Kind: locator.KindID, Value: "inner"}},
	}

	m, err := locator.Resolve(d, doc)
	require.NoError(t, err)
	assert.Same(t, inner, m.Node)
	assert.Equal(t, []string{hostPath}, m.ShadowPath)
}

func TestResolveNotFound(t *testing.T) {
	doc, err := locator.ParseDocument(`<p>nothing interactive here</p>`)
	require.NoError(t, err)

	d := &locator.Descriptor{
		Strategies: []locator.Strategy{{Kind: locator.KindID, Value: "ghost"}},
		Text:       "Launch",
	}

	_, err = locator.Resolve(d, doc)
	require.Error(t, err)
	assert.ErrorIs(t, err, locator.ErrNotFound)
}

func TestDescriptorLegacyJSONFormat(t *testing.T) {
	var d locator.Descriptor
	require.NoError(t, json.Unmarshal([]byte(`"#old-button"`), &d))
	assert.Equal(t, "#old-button", d.Legacy)
	assert.Empty(t, d.Strategies)

	var structured locator.Descriptor
	require.NoError(t, json.Unmarshal(
		[]byte(`{"strategies":[{"kind":"id","value":"x"}],"descriptor_text":"X"}`), &structured))
	require.Len(t, structured.Strategies, 1)
	assert.Equal(t, locator.KindID, structured.Strategies[0].Kind)
}

func attrValue(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}
