package locator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"flowreplay/internal/locator"
)

func TestIsDynamicToken(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		dynamic bool
	}{
		{"semantic kebab case", "submit-button", false},
		{"empty", "", false},
		{"leading digit", "123-panel", true},
		{"consecutive digit run", "session-98765-x", true},
		{"interleaved digit run", "a1b2c3d4e5", true},
		{"four digits stays stable", "btn2024x", false},
		{"uuid marker", "field-uuid-holder", true},
		{"random marker", "RandomSeed", true},
		{"test-id marker", "my-test-id-42", true},
		{"tfid prefix", "tfid-8x1", true},
		{"hash-like minified class", "xKpQr", true},
		{"capitalized word is not a hash", "Submit", false},
		{"long camel case", "primaryNavigation", false},
		{"safe prefix beats digit rule", "mui-123456", false},
		{"btn prefix with digits", "btn-99999", false},
		{"nav prefix", "nav-item-active", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.dynamic, locator.IsDynamicToken(tt.token), "token %q", tt.token)
		})
	}
}
