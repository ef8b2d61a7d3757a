package locator

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// ErrNotFound is returned when every strategy, the legacy selector, the
// fuzzy fallback and the shadow root sweep all come up empty. In multi
// context setups the caller absorbs it: another frame may still resolve.
var ErrNotFound = errors.New("element not found")

// Interactive tags scanned by the fuzzy text fallback.
var fuzzyTags = []string{"button", "a", "div[role=button]", "input[type=submit]", "span"}

// Match is a resolved element together with the addressing information a
// live page needs to act on it again: its absolute XPath and, when it lives
// inside open shadow roots, the chain of shadow host XPaths outermost first.
type Match struct {
	Node       *html.Node
	XPath      string
	ShadowPath []string
}

// MatchFor re-addresses an arbitrary node of an already resolved document,
// keeping the shadow chain. Used when an action is redirected, e.g. from a
// label to the control it wraps.
func MatchFor(n *html.Node, shadowPath []string) *Match {
	return &Match{Node: n, XPath: AbsoluteXPath(n), ShadowPath: shadowPath}
}

// Resolve finds the live element a descriptor points at. Strategies run in
// stored order against the document; a strategy that errors or matches
// nothing never aborts the resolution. When all strategies miss, the legacy
// single-selector field, then a fuzzy text search over interactive tags, and
// finally a depth-first sweep of every open shadow root are tried.
func Resolve(d *Descriptor, doc Document) (*Match, error) {
	if d == nil || doc == nil {
		return nil, ErrNotFound
	}

	if m := resolveStrategies(d, doc, nil); m != nil {
		return m, nil
	}
	if m := resolveFuzzy(d, doc, nil); m != nil {
		return m, nil
	}
	if m := resolveShadowRoots(d, doc, nil); m != nil {
		return m, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, describeDescriptor(d))
}

func describeDescriptor(d *Descriptor) string {
	switch {
	case d.Text != "":
		return fmt.Sprintf("%q", d.Text)
	case len(d.Strategies) > 0:
		return fmt.Sprintf("%s %q", d.Strategies[0].Kind, d.Strategies[0].Value)
	case d.Legacy != "":
		return fmt.Sprintf("%q", d.Legacy)
	}
	return "empty descriptor"
}

func resolveStrategies(d *Descriptor, doc Document, shadowPath []string) *Match {
	for _, s := range d.Strategies {
		if n := execStrategy(s, d.TagName, doc); n != nil {
			return &Match{Node: n, XPath: AbsoluteXPath(n), ShadowPath: shadowPath}
		}
	}
	if d.Legacy != "" {
		if n := firstVisibleCSS(doc, d.Legacy); n != nil {
			return &Match{Node: n, XPath: AbsoluteXPath(n), ShadowPath: shadowPath}
		}
	}
	return nil
}

// execStrategy runs one strategy through its native mechanism and returns
// the first visible, connected match, or nil. Malformed selectors surface as
// query errors and are swallowed: the next strategy gets its chance.
func execStrategy(s Strategy, tag string, doc Document) *html.Node {
	switch s.Kind {
	case KindAria:
		if n := firstVisibleCSS(doc, fmt.Sprintf(`[aria-label="%s"]`, cssEscape(s.Value))); n != nil {
			return n
		}
		return firstVisibleByText(doc, tag, s.Value, true)
	case KindTestAttr:
		for _, attrName := range testAttributes {
			sel := fmt.Sprintf(`[%s="%s"]`, attrName, cssEscape(s.Value))
			if n := firstVisibleCSS(doc, sel); n != nil {
				return n
			}
		}
	case KindName:
		sel := fmt.Sprintf(`[name="%s"]`, cssEscape(s.Value))
		if tag != "" {
			sel = tag + sel
		}
		return firstVisibleCSS(doc, sel)
	case KindPlaceholder:
		return firstVisibleCSS(doc, fmt.Sprintf(`[placeholder="%s"]`, cssEscape(s.Value)))
	case KindID:
		return firstVisibleCSS(doc, fmt.Sprintf(`[id="%s"]`, cssEscape(s.Value)))
	case KindCSS, KindCSSPath:
		return firstVisibleCSS(doc, s.Value)
	case KindTextXPath, KindXPath:
		return firstVisibleXPath(doc, s.Value)
	}
	return nil
}

func firstVisibleCSS(doc Document, selector string) *html.Node {
	nodes, err := doc.QueryCSS(selector)
	if err != nil {
		return nil
	}
	return firstVisible(doc, nodes)
}

func firstVisibleXPath(doc Document, expr string) *html.Node {
	nodes, err := doc.QueryXPath(expr)
	if err != nil {
		return nil
	}
	return firstVisible(doc, nodes)
}

func firstVisible(doc Document, nodes []*html.Node) *html.Node {
	for _, n := range nodes {
		if isElement(n) && doc.Visible(n) {
			return n
		}
	}
	return nil
}

// firstVisibleByText scans elements of the given tag (or any element when
// tag is empty) for normalized text equality, optionally falling back to an
// aria-label equality check. Case-insensitive.
func firstVisibleByText(doc Document, tag, text string, checkAria bool) *html.Node {
	want := strings.ToLower(NormalizeText(text))
	if want == "" {
		return nil
	}
	sel := tag
	if sel == "" {
		sel = "*"
	}
	nodes, err := doc.QueryCSS(sel)
	if err != nil {
		return nil
	}
	for _, n := range nodes {
		if !doc.Visible(n) {
			continue
		}
		if strings.ToLower(NodeText(n)) == want {
			return n
		}
		if checkAria && strings.ToLower(NormalizeText(attr(n, "aria-label"))) == want {
			return n
		}
	}
	return nil
}

// resolveFuzzy performs the last-resort text similarity search: exact
// normalized equality over interactive tags first, then containment.
func resolveFuzzy(d *Descriptor, doc Document, shadowPath []string) *Match {
	want := strings.ToLower(NormalizeText(d.Text))
	if want == "" {
		return nil
	}

	selectors := fuzzyTags
	if d.TagName != "" && !containsTag(fuzzyTags, d.TagName) {
		selectors = append([]string{d.TagName}, fuzzyTags...)
	}

	var candidates []*html.Node
	for _, sel := range selectors {
		nodes, err := doc.QueryCSS(sel)
		if err != nil {
			continue
		}
		for _, n := range nodes {
			if doc.Visible(n) {
				candidates = append(candidates, n)
			}
		}
	}

	for _, n := range candidates {
		if strings.ToLower(NodeText(n)) == want {
			return &Match{Node: n, XPath: AbsoluteXPath(n), ShadowPath: shadowPath}
		}
	}
	for _, n := range candidates {
		if strings.Contains(strings.ToLower(NodeText(n)), want) {
			return &Match{Node: n, XPath: AbsoluteXPath(n), ShadowPath: shadowPath}
		}
	}
	return nil
}

func containsTag(selectors []string, tag string) bool {
	for _, s := range selectors {
		if s == tag || strings.HasPrefix(s, tag+"[") {
			return true
		}
	}
	return false
}

// resolveShadowRoots recurses depth-first through every open shadow root,
// applying the structured CSS/XPath strategies inside each one.
func resolveShadowRoots(d *Descriptor, doc Document, shadowPath []string) *Match {
	for _, shadow := range doc.ShadowRoots() {
		path := append(append([]string{}, shadowPath...), shadow.Host)
		if m := resolveStrategies(d, shadow.Doc, path); m != nil {
			return m
		}
		if m := resolveShadowRoots(d, shadow.Doc, path); m != nil {
			return m
		}
	}
	return nil
}
