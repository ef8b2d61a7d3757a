package locator_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"flowreplay/internal/locator"
)

// mustQueryOne parses the document and returns the single node matching the
// CSS selector.
func mustQueryOne(t *testing.T, src, selector string) (*locator.HTMLDocument, *html.Node) {
	t.Helper()
	doc, err := locator.ParseDocument(src)
	require.NoError(t, err)
	nodes, err := doc.QueryCSS(selector)
	require.NoError(t, err)
	require.Len(t, nodes, 1, "selector %q", selector)
	return doc, nodes[0]
}

func TestDescribePriorityOrder(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		selector string
		want     string
	}{
		{
			"aria-label wins over text",
			`<button aria-label="Close dialog">X</button>`,
			"button",
			"Close dialog",
		},
		{
			"label for wins for inputs",
			`<label for="email">Email address</label><input id="email" placeholder="you@example.com">`,
			"input",
			"Email address",
		},
		{
			"wrapping label",
			`<label>Remember me<input type="checkbox"></label>`,
			"input",
			"Remember me",
		},
		{
			"aria-labelledby",
			`<span id="cap">Quantity</span><input aria-labelledby="cap">`,
			"input",
			"Quantity",
		},
		{
			"visible text collapsed",
			"<button>\n  Log\n  in  </button>",
			"button",
			"Log in",
		},
		{
			"img alt",
			`<img src="logo.png" alt="Company logo">`,
			"img",
			"Company logo",
		},
		{
			"submit input value",
			`<input type="submit" value="Send">`,
			"input",
			"Send",
		},
		{
			"placeholder",
			`<input placeholder="Search orders">`,
			"input",
			"Search orders",
		},
		{
			"title",
			`<div title="Tooltip here"></div>`,
			"div",
			"Tooltip here",
		},
		{
			"stable id formatted",
			`<div id="sidebar"></div>`,
			"div",
			"#sidebar",
		},
		{
			"dynamic id skipped, name used",
			`<input id="tfid-99" name="quantity">`,
			"input",
			"quantity",
		},
		{
			"nothing qualifies",
			`<div></div>`,
			"body > div",
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, node := mustQueryOne(t, tt.src, tt.selector)
			require.Equal(t, tt.want, locator.Describe(node))
		})
	}
}

func TestDescribeRejectsLongText(t *testing.T) {
	long := ""
	for i := 0; i < 30; i++ {
		long += "lorem "
	}
	_, node := mustQueryOne(t, "<div title='block'>"+long+"</div>", "body > div")
	require.Equal(t, "block", locator.Describe(node))
}
