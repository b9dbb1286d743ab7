// Package naming normalizes CMS collection names and recovers entity names
// from generated relation wrapper type names.
package naming

import (
	"strings"
	"unicode"
)

// FormatCollectionName turns an arbitrary collection name into its display
// form: a space is inserted at the first lower-to-upper case boundary (only
// the first one), every word gets an upper-case initial, and everything that
// is not a letter, digit or space is dropped.
//
//	FormatCollectionName("helloWorld") == "Hello World"
//	FormatCollectionName("FAQ_page")   == "FAQPage"
func FormatCollectionName(name string) string {
	runes := []rune(name)

	for i := 0; i+1 < len(runes); i++ {
		if isASCIILower(runes[i]) && isASCIIUpper(runes[i+1]) {
			runes = append(runes[:i+1], append([]rune{' '}, runes[i+1:]...)...)
			break
		}
	}

	var b strings.Builder
	b.Grow(len(runes))
	wordStart := true
	for _, r := range runes {
		switch {
		case unicode.IsSpace(r):
			b.WriteRune(r)
			wordStart = true
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if wordStart {
				r = unicode.ToUpper(r)
			}
			b.WriteRune(r)
			wordStart = false
		default:
			// separators such as '_' or '-' are dropped but still end a word
			wordStart = true
		}
	}
	return b.String()
}

// TypeName is FormatCollectionName without spaces, the form used to match
// configured collection names against schema type names.
func TypeName(name string) string {
	return strings.Join(strings.Fields(FormatCollectionName(name)), "")
}

func isASCIILower(r rune) bool { return r >= 'a' && r <= 'z' }
func isASCIIUpper(r rune) bool { return r >= 'A' && r <= 'Z' }
