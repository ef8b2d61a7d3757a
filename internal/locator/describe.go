package locator

import (
	"strings"

	"golang.org/x/net/html"
)

// maxDescriptionLength guards against grabbing whole text blocks when an
// element happens to wrap a paragraph of content.
const maxDescriptionLength = 100

// Describe derives a human-meaningful label for an element. Sources are
// tried in a fixed priority order and the first non-empty one wins:
// aria-label, an associated <label>, visible text, alt/value, placeholder,
// title, a stable id, then the name attribute. Returns "" when nothing
// qualifies. Side-effect free.
func Describe(n *html.Node) string {
	if !isElement(n) {
		return ""
	}

	if label := strings.TrimSpace(attr(n, "aria-label")); label != "" {
		return NormalizeText(label)
	}

	if isFormControl(n) {
		if label := associatedLabelText(n); label != "" {
			return label
		}
	}

	if text := NodeText(n); text != "" && len(text) < maxDescriptionLength {
		return text
	}

	if tagName(n) == "img" {
		if alt := NormalizeText(attr(n, "alt")); alt != "" {
			return alt
		}
	}
	if isSubmitInput(n) {
		if value := NormalizeText(attr(n, "value")); value != "" {
			return value
		}
	}

	if placeholder := NormalizeText(attr(n, "placeholder")); placeholder != "" {
		return placeholder
	}
	if title := NormalizeText(attr(n, "title")); title != "" {
		return title
	}

	if id := attr(n, "id"); id != "" && !IsDynamicToken(id) {
		return "#" + id
	}
	if name := NormalizeText(attr(n, "name")); name != "" {
		return name
	}

	return ""
}

func isFormControl(n *html.Node) bool {
	switch tagName(n) {
	case "input", "textarea", "select":
		return true
	}
	return false
}

func isSubmitInput(n *html.Node) bool {
	if tagName(n) != "input" {
		return false
	}
	t := strings.ToLower(attr(n, "type"))
	return t == "submit" || t == "button" || t == "reset"
}

// associatedLabelText resolves the text of the <label> tied to a form
// control: a label[for=id] anywhere in the tree, a wrapping <label>, or the
// element referenced through aria-labelledby.
func associatedLabelText(n *html.Node) string {
	root := rootOf(n)

	if id := attr(n, "id"); id != "" {
		if label := findLabelFor(root, id); label != nil {
			if text := NodeText(label); text != "" {
				return text
			}
		}
	}

	for cur := parentElement(n); cur != nil; cur = parentElement(cur) {
		if tagName(cur) == "label" {
			if text := NodeText(cur); text != "" {
				return text
			}
			break
		}
	}

	if ref := strings.Fields(attr(n, "aria-labelledby")); len(ref) > 0 {
		if target := findByID(root, ref[0]); target != nil {
			if text := NodeText(target); text != "" {
				return text
			}
		}
	}

	return ""
}

func findLabelFor(root *html.Node, id string) *html.Node {
	if root == nil {
		return nil
	}
	if isElement(root) && tagName(root) == "label" && attr(root, "for") == id {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if found := findLabelFor(c, id); found != nil {
			return found
		}
	}
	return nil
}

// ControlForLabel returns the form control a <label> element points at,
// either through its for attribute or by wrapping the control. Returns nil
// when n is not a label or no control can be found.
func ControlForLabel(n *html.Node) *html.Node {
	if tagName(n) != "label" {
		return nil
	}
	if id := attr(n, "for"); id != "" {
		if target := findByID(rootOf(n), id); target != nil && isFormControl(target) {
			return target
		}
	}
	return findDescendantControl(n)
}

func findDescendantControl(n *html.Node) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if isElement(c) && isFormControl(c) {
			return c
		}
		if found := findDescendantControl(c); found != nil {
			return found
		}
	}
	return nil
}
