// Package normalize canonicalizes user-supplied identifiers before they are
// stored or compared.
package normalize

import "strings"

// Email returns a normalized form of an email address suitable for
// storage and comparisons. Normalization currently trims surrounding
// whitespace and lower-cases the address.
func Email(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// Username trims surrounding whitespace and collapses inner runs of
// whitespace to a single space. Case is preserved for display.
func Username(u string) string {
	return strings.Join(strings.Fields(u), " ")
}
