package locator

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Document is one execution context's DOM: the main document of a page, a
// same-origin iframe, or an open shadow root. The resolver only talks to this
// interface, which keeps the whole locator engine runnable against parsed
// HTML in tests while the browser adapter backs it with a live page.
type Document interface {
	Root() *html.Node
	QueryCSS(selector string) ([]*html.Node, error)
	QueryXPath(expr string) ([]*html.Node, error)
	// Visible reports whether the node would render with non-zero size and
	// without display:none / visibility:hidden / opacity:0, with the
	// radio/checkbox exemption from the resolution visibility rule.
	Visible(n *html.Node) bool
	ShadowRoots() []ShadowRoot
}

// ShadowRoot pairs an open shadow root's document with the absolute XPath of
// its host element in the parent document.
type ShadowRoot struct {
	Host string
	Doc  Document
}

// HTMLDocument is the in-memory Document implementation over an x/net/html
// tree. Visibility defaults to an inline-style heuristic; live adapters
// override it with a computed-style probe.
type HTMLDocument struct {
	root      *html.Node
	shadows   []ShadowRoot
	visibleFn func(*html.Node) bool
}

// ParseDocument parses an HTML fragment or full document.
func ParseDocument(src string) (*HTMLDocument, error) {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return NewDocument(root), nil
}

// NewDocument wraps an already parsed tree.
func NewDocument(root *html.Node) *HTMLDocument {
	return &HTMLDocument{root: root}
}

// AttachShadow registers an open shadow root hosted at the given XPath.
func (d *HTMLDocument) AttachShadow(hostXPath string, doc Document) {
	d.shadows = append(d.shadows, ShadowRoot{Host: hostXPath, Doc: doc})
}

// SetVisibleFunc replaces the default inline-style visibility heuristic.
func (d *HTMLDocument) SetVisibleFunc(fn func(*html.Node) bool) {
	d.visibleFn = fn
}

func (d *HTMLDocument) Root() *html.Node { return d.root }

func (d *HTMLDocument) QueryCSS(selector string) ([]*html.Node, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("compile selector %q: %w", selector, err)
	}
	return sel.MatchAll(d.root), nil
}

func (d *HTMLDocument) QueryXPath(expr string) ([]*html.Node, error) {
	nodes, err := htmlquery.QueryAll(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("evaluate xpath %q: %w", expr, err)
	}
	return nodes, nil
}

func (d *HTMLDocument) ShadowRoots() []ShadowRoot { return d.shadows }

func (d *HTMLDocument) Visible(n *html.Node) bool {
	if d.visibleFn != nil {
		return d.visibleFn(n)
	}
	return styleVisible(n)
}

// styleVisible approximates the visibility rule from static markup: the node
// and its ancestors are checked for hiding inline styles and the hidden
// attribute. Radio and checkbox inputs stay visible under visibility/opacity
// hiding since they are routinely styled away while remaining interactive.
func styleVisible(n *html.Node) bool {
	if !isElement(n) {
		return false
	}
	if tagName(n) == "input" && strings.EqualFold(attr(n, "type"), "hidden") {
		return false
	}
	exempt := isToggleInput(n)
	for cur := n; cur != nil; cur = parentElement(cur) {
		if !isElement(cur) {
			break
		}
		if hasAttr(cur, "hidden") {
			return false
		}
		style := parseInlineStyle(attr(cur, "style"))
		if style["display"] == "none" {
			return false
		}
		if !exempt {
			if style["visibility"] == "hidden" || isZeroOpacity(style["opacity"]) {
				return false
			}
			if isZeroLength(style["width"]) || isZeroLength(style["height"]) {
				return false
			}
		}
		if cur.Parent == nil {
			break
		}
	}
	return true
}

func isToggleInput(n *html.Node) bool {
	if tagName(n) != "input" {
		return false
	}
	t := strings.ToLower(attr(n, "type"))
	return t == "radio" || t == "checkbox"
}

func parseInlineStyle(style string) map[string]string {
	out := map[string]string{}
	for _, decl := range strings.Split(style, ";") {
		key, value, found := strings.Cut(decl, ":")
		if !found {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(key))] = strings.ToLower(strings.TrimSpace(value))
	}
	return out
}

func isZeroOpacity(v string) bool {
	return v == "0" || v == "0.0" || v == "0%"
}

func isZeroLength(v string) bool {
	return v == "0" || v == "0px"
}
