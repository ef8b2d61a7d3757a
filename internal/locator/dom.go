package locator

import (
	"strings"

	"golang.org/x/net/html"
)

func isElement(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode
}

func tagName(n *html.Node) string {
	if !isElement(n) {
		return ""
	}
	return strings.ToLower(n.Data)
}

func attr(n *html.Node, name string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, name string) bool {
	if n == nil {
		return false
	}
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return true
		}
	}
	return false
}

func parentElement(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode {
			return p
		}
	}
	return nil
}

func rootOf(n *html.Node) *html.Node {
	cur := n
	for cur != nil && cur.Parent != nil {
		cur = cur.Parent
	}
	return cur
}

// NodeText returns the rendered text of a node with whitespace collapsed.
// Script and style contents are excluded.
func NodeText(n *html.Node) string {
	var sb strings.Builder
	collectText(n, &sb)
	return NormalizeText(sb.String())
}

func collectText(n *html.Node, sb *strings.Builder) {
	if n == nil {
		return
	}
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		sb.WriteString(" ")
		return
	case html.ElementNode:
		switch strings.ToLower(n.Data) {
		case "script", "style", "noscript", "template":
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
}

// NormalizeText trims and collapses all runs of whitespace to single spaces.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ownText returns only the element's direct text-node content, collapsed.
// Used for the exact-match half of text based XPath expressions.
func ownText(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
			sb.WriteString(" ")
		}
	}
	return NormalizeText(sb.String())
}

// findByID searches the tree rooted at root for the element with the given id.
func findByID(root *html.Node, id string) *html.Node {
	if root == nil || id == "" {
		return nil
	}
	if isElement(root) && attr(root, "id") == id {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

// stableClasses returns up to max class tokens of n that pass the dynamic
// token classifier, in source order.
func stableClasses(n *html.Node, max int) []string {
	var out []string
	for _, class := range strings.Fields(attr(n, "class")) {
		if IsDynamicToken(class) {
			continue
		}
		out = append(out, class)
		if len(out) == max {
			break
		}
	}
	return out
}
