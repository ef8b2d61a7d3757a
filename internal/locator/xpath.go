package locator

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// AbsoluteXPath builds the purely structural XPath of a node from the
// document root, e.g. /html[1]/body[1]/div[2]/button[1]. Every segment
// carries its 1-based index among same-tag siblings, which makes the path a
// last-resort locator and a precise re-addressing handle for a live page.
func AbsoluteXPath(n *html.Node) string {
	if n == nil {
		return ""
	}

	var parts []string
	for cur := n; cur != nil && cur.Type != html.DocumentNode; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		tag := tagName(cur)
		if tag == "" {
			continue
		}

		index := 1
		for prev := cur.PrevSibling; prev != nil; prev = prev.PrevSibling {
			if prev.Type == html.ElementNode && tagName(prev) == tag {
				index++
			}
		}
		parts = append(parts, fmt.Sprintf("%s[%d]", tag, index))
	}

	if len(parts) == 0 {
		return "/"
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return "/" + strings.Join(parts, "/")
}
