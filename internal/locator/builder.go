package locator

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Test-automation attributes, in the order they are checked.
var testAttributes = []string{"data-testid", "data-cy", "data-test", "data-test-id", "data-qa"}

// Icon-font ligature tokens that render as glyphs; their text is not
// user-meaningful, so accessible-name and text locators must not use it.
var genericIconTokens = map[string]struct{}{
	"chevron_right": {}, "chevron_left": {}, "expand_more": {}, "expand_less": {},
	"arrow_back": {}, "arrow_forward": {}, "more_vert": {}, "more_horiz": {},
	"menu": {}, "close": {}, "search": {}, "check": {}, "add": {}, "remove": {},
}

const (
	scopedPathMaxDepth = 5
	maxClassesPerLevel = 2
	maxTextXPathLength = 50
)

func isGenericIconToken(text string) bool {
	_, ok := genericIconTokens[strings.ToLower(strings.TrimSpace(text))]
	return ok
}

// Build produces the ordered multi-strategy locator descriptor for an
// element. Each strategy is appended only when it yields a stable, non-empty
// value; the absolute XPath at the end guarantees the descriptor is never
// empty. The final ordering is delegated to orderStrategies.
func Build(n *html.Node) *Descriptor {
	if !isElement(n) {
		return nil
	}

	d := &Descriptor{
		TagName: tagName(n),
		Text:    Describe(n),
	}

	var strategies []Strategy
	add := func(kind Kind, value string) {
		if value != "" {
			strategies = append(strategies, Strategy{Kind: kind, Value: value})
		}
	}

	if d.Text != "" && !isGenericIconToken(d.Text) {
		add(KindAria, d.Text)
	}

	for _, attrName := range testAttributes {
		if v := attr(n, attrName); v != "" && !IsDynamicToken(v) {
			add(KindTestAttr, v)
			break
		}
	}

	if name := attr(n, "name"); name != "" && !IsDynamicToken(name) {
		add(KindName, name)
	}
	if placeholder := attr(n, "placeholder"); placeholder != "" {
		add(KindPlaceholder, placeholder)
	}
	if id := attr(n, "id"); id != "" && !IsDynamicToken(id) {
		add(KindID, id)
	}

	add(KindCSS, buildScopedCSSPath(n))
	add(KindTextXPath, buildTextXPath(n))
	add(KindCSSPath, buildFullCSSPath(n))
	add(KindXPath, AbsoluteXPath(n))

	d.Strategies = orderStrategies(strategies)
	return d
}

// buildScopedCSSPath climbs up to scopedPathMaxDepth ancestor levels,
// emitting tag + stable classes per level and an nth-of-type qualifier only
// when same-tag siblings force one. Climbing stops early when an ancestor
// carries a stable id or test attribute; that ancestor becomes the path root.
func buildScopedCSSPath(n *html.Node) string {
	parts := []string{cssSegment(n)}

	cur := n
	for depth := 1; depth < scopedPathMaxDepth; depth++ {
		parent := parentElement(cur)
		if parent == nil {
			break
		}
		tag := tagName(parent)
		if tag == "html" || tag == "body" {
			break
		}

		if id := attr(parent, "id"); id != "" && !IsDynamicToken(id) {
			parts = append([]string{"#" + id}, parts...)
			return strings.Join(parts, " > ")
		}
		if anchor := stableTestAttrSelector(parent); anchor != "" {
			parts = append([]string{anchor}, parts...)
			return strings.Join(parts, " > ")
		}

		parts = append([]string{cssSegment(parent)}, parts...)
		cur = parent
	}

	return strings.Join(parts, " > ")
}

func stableTestAttrSelector(n *html.Node) string {
	for _, attrName := range testAttributes {
		if v := attr(n, attrName); v != "" && !IsDynamicToken(v) {
			return fmt.Sprintf(`%s[%s="%s"]`, tagName(n), attrName, cssEscape(v))
		}
	}
	return ""
}

// cssSegment renders one level of a scoped path: tag, up to two stable
// classes, and a positional qualifier only when needed for disambiguation.
func cssSegment(n *html.Node) string {
	seg := tagName(n)
	for _, class := range stableClasses(n, maxClassesPerLevel) {
		seg += "." + class
	}
	if index, collides := sameTagIndex(n); collides {
		seg += fmt.Sprintf(":nth-of-type(%d)", index)
	}
	return seg
}

// sameTagIndex returns the node's 1-based index among same-tag element
// siblings, and whether any same-tag sibling exists at all.
func sameTagIndex(n *html.Node) (int, bool) {
	tag := tagName(n)
	index := 1
	collides := false
	for prev := n.PrevSibling; prev != nil; prev = prev.PrevSibling {
		if prev.Type == html.ElementNode && tagName(prev) == tag {
			index++
			collides = true
		}
	}
	if !collides {
		for next := n.NextSibling; next != nil; next = next.NextSibling {
			if next.Type == html.ElementNode && tagName(next) == tag {
				collides = true
				break
			}
		}
	}
	return index, collides
}

// buildTextXPath emits an XPath matching the element's visible text both
// exactly and by containment. The exact half compares against the element's
// own text nodes, so text rendered through child spans still matches via the
// containment half. Skipped for long text, text with single quotes (which
// would break the literal), and icon-font tokens.
func buildTextXPath(n *html.Node) string {
	text := NodeText(n)
	if text == "" || len(text) > maxTextXPathLength {
		return ""
	}
	if strings.Contains(text, "'") || isGenericIconToken(text) {
		return ""
	}
	tag := tagName(n)
	contains := fmt.Sprintf("//%s[contains(normalize-space(.),'%s')]", tag, text)
	if exact := ownText(n); exact != "" {
		return fmt.Sprintf("//%s[normalize-space(text())='%s'] | %s", tag, exact, contains)
	}
	return contains
}

// buildFullCSSPath walks from the element up to body, purely structurally:
// best-effort stable class per level, nth-child index whenever same-tag
// siblings collide.
func buildFullCSSPath(n *html.Node) string {
	var parts []string
	for cur := n; cur != nil && isElement(cur); cur = parentElement(cur) {
		tag := tagName(cur)
		if tag == "html" {
			break
		}
		seg := tag
		if classes := stableClasses(cur, 1); len(classes) > 0 {
			seg += "." + classes[0]
		}
		if tag != "body" {
			if index, collides := childIndex(cur); collides {
				seg += fmt.Sprintf(":nth-child(%d)", index)
			}
		}
		parts = append([]string{seg}, parts...)
		if tag == "body" {
			break
		}
	}
	return strings.Join(parts, " > ")
}

// childIndex returns the 1-based index among all element siblings and
// whether any same-tag sibling collides with this node.
func childIndex(n *html.Node) (int, bool) {
	tag := tagName(n)
	index := 1
	collides := false
	for prev := n.PrevSibling; prev != nil; prev = prev.PrevSibling {
		if prev.Type == html.ElementNode {
			index++
			if tagName(prev) == tag {
				collides = true
			}
		}
	}
	if !collides {
		for next := n.NextSibling; next != nil; next = next.NextSibling {
			if next.Type == html.ElementNode && tagName(next) == tag {
				collides = true
				break
			}
		}
	}
	return index, collides
}

func cssEscape(v string) string {
	return strings.ReplaceAll(v, `"`, `\"`)
}
