package transliterate

import "unicode"

// isTamil reports whether s is non-blank and made only of Tamil block code
// points (U+0B80..U+0BFF) and whitespace.
func isTamil(s string) bool {
	seen := false
	for _, r := range s {
		switch {
		case r >= 0x0B80 && r <= 0x0BFF:
			seen = true
		case unicode.IsSpace(r):
		default:
			return false
		}
	}
	return seen
}
