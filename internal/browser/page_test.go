package browser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"flowreplay/internal/locator"
)

func TestWrapExprEmbedsFramePath(t *testing.T) {
	expr := wrapExpr([]int{0, 2}, "frSnapshot(doc)")

	assert.Contains(t, expr, "frDoc([0,2])")
	assert.Contains(t, expr, "return frSnapshot(doc);")
	assert.True(t, strings.HasPrefix(expr, "(function() {"))
}

func TestWrapExprDefaultsToTopDocument(t *testing.T) {
	expr := wrapExpr(nil, "frFrameCount(doc)")

	assert.Contains(t, expr, "frDoc([])")
}

func TestResolveCallQuotesPaths(t *testing.T) {
	m := &locator.Match{
		XPath:      "/html[1]/body[1]/div[2]/button[1]",
		ShadowPath: []string{"/html[1]/body[1]/x-app[1]"},
	}
	call := resolveCall(m)

	assert.Equal(t,
		`frResolve(doc, ["/html[1]/body[1]/x-app[1]"], "/html[1]/body[1]/div[2]/button[1]")`,
		call)
}

func TestJSArgEscapesStrings(t *testing.T) {
	assert.Equal(t, `"a\"b"`, jsArg(`a"b`))
	assert.Equal(t, "[1,2]", jsArg([]int{1, 2}))
}

// Checkbox and radio inputs are routinely styled invisible behind custom
// widgets; the snapshot script may only count display:none against them.
// An opacity:0 checkbox pushed onto the hidden list would make every replay
// click on it fail as not found.
func TestSnapshotScriptExemptsToggleInputsFromStyleHiding(t *testing.T) {
	assert.Contains(t, jsHelpers, "var styledAway = !toggle && (st.visibility === 'hidden' ||")
	assert.Contains(t, jsHelpers, "if (st.display === 'none' || styledAway)")
	assert.NotContains(t, jsHelpers, "st.display === 'none' || st.visibility")
}
