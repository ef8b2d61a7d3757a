package locator

import (
	"strings"
	"unicode"
)

// Tokens carrying these prefixes are treated as semantic naming conventions
// and are never classified dynamic, digits or not.
var safeTokenPrefixes = []string{"mui-", "btn-", "nav-", "list-", "item-", "cell-"}

// Marker substrings that betray machine-generated identifiers.
var dynamicMarkers = []string{"uuid", "random", "test-id"}

const dynamicIDPrefix = "tfid-"

// dynamicDigitThreshold is the number of digits in a token, consecutive or
// interleaved, beyond which it is considered machine generated. The looser
// interleaved counting also catches hash suffixes like "a1b2c3d4e5".
const dynamicDigitThreshold = 5

// IsDynamicToken reports whether an id, class or attribute value looks
// machine generated and therefore unstable across page loads. Every selector
// builder consults it before committing a value to a locator strategy.
func IsDynamicToken(token string) bool {
	token = strings.TrimSpace(token)
	if token == "" {
		return false
	}

	lower := strings.ToLower(token)
	for _, prefix := range safeTokenPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return false
		}
	}

	if unicode.IsDigit(rune(token[0])) {
		return true
	}

	digits := 0
	for _, r := range token {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	if digits >= dynamicDigitThreshold {
		return true
	}

	if strings.HasPrefix(lower, dynamicIDPrefix) {
		return true
	}
	for _, marker := range dynamicMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}

	return looksLikeHash(token, digits)
}

// looksLikeHash flags short alphanumeric tokens with interior case changes
// and no digits, the shape bundler-minified class names tend to have. A
// leading capital alone (ordinary capitalized words) does not count.
func looksLikeHash(token string, digits int) bool {
	if digits > 0 || len(token) < 5 || len(token) > 8 {
		return false
	}
	hasLower := false
	hasInteriorUpper := false
	for i, r := range token {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			if i > 0 {
				hasInteriorUpper = true
			}
		case unicode.IsDigit(r):
			// unreachable, digits == 0
		default:
			return false
		}
	}
	return hasLower && hasInteriorUpper
}
