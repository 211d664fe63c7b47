package util

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	reSpaces  = regexp.MustCompile(`\s+`)
	reKeyJunk = regexp.MustCompile(`[\s.]+`)
)

// NormalizeSpaces folds compatibility characters (NBSP, full-width digits),
// trims, and collapses whitespace runs to one space.
func NormalizeSpaces(input string) string {
	s := norm.NFKC.String(input)
	return strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
}

// CanonicalKey strips whitespace and dots and lower-cases, so "11.a." and
// "11 a" both become "11a".
func CanonicalKey(input string) string {
	return strings.ToLower(reKeyJunk.ReplaceAllString(norm.NFKC.String(input), ""))
}

// LeadingSpaces counts leading space and tab characters before any fold.
func LeadingSpaces(input string) int {
	n := 0
	for _, r := range input {
		if r != ' ' && r != '\t' && r != '\u00a0' {
			break
		}
		n++
	}
	return n
}

func StringPtr(v string) *string {
	return &v
}

func FloatPtr(v float64) *float64 {
	return &v
}

func Deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// FirstNonEmpty returns the first value that is not blank.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
