package common

import "strings"

// IsBlank reports whether s is empty or only whitespace.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// Clean trims surrounding whitespace and collapses inner runs of
// whitespace to single spaces, so "  New   York " becomes "New York".
func Clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
